// Package suite describes a test suite on disk: where its sources are, how it
// is found, and the declaration of what it is expected to do when compiled
// and run.
//
// A declaration is loaded as a Raw value and must be turned into a Ready
// value with MakeReady before it can be run. MakeReady is where the address
// of a started mock server is injected into the program's flags.
package suite
