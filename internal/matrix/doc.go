// Package matrix evaluates suites across every configured compiler and
// optimization level.
//
// Each (compiler, optimization level) pair is a cell. Cells run on a bounded
// worker pool; compiling is serialized across all of them. A cell loads the
// suite declaration, starts a mock server when the suite scripts network
// traffic, compiles, and runs the result, comparing each step against the
// suite's expected-failure conditions.
//
// Every non-allowed outcome contributes a bit to the batch exit code:
//
//	0x21  unexpected compile failure
//	0x22  unexpected run failure
//	0x24  an expected failure did not happen
//	0x28  infrastructure error (bad suite, bad declaration, mock server setup, ...)
//
// A suite whose run failed unexpectedly keeps its output directory (and the
// temporary directory holding it) for inspection; all other suite
// directories are removed once the suite finishes.
package matrix
