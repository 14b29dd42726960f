// Package toolchain resolves compiler binaries and drives them to build suites.
//
// Compilers are resolved once per process with Resolve and shared as *Handle.
// Builds go through a single Compiler so that no two compiler invocations
// share the build cache at the same time.
package toolchain
