// Package reporting prints the progress and the results of a batch.
//
// Three formats are available. The text format prints a progress line per
// cell, the full details of every failing cell and a closing summary grouped
// by compiler and optimization level. The quiet format prints only failing
// cells and a one-line summary. The json format writes one JSON object per
// event, for consumption by other tools.
//
// Independently of the format, WriteReport stores a detailed JSON document of
// the whole batch.
package reporting
