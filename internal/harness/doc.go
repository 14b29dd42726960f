// Package harness runs a compiled suite under the JavaScript runtime.
//
// Run writes four files next to the compiled artifact: the harness script
// that checks ports and logs, an XMLHttpRequest shim, the Ready declaration
// as output.json, and a main.js entry point tying them together. The run
// succeeds when the runtime exits cleanly without writing anything other
// than the compiler's dev/debug advisory.
package harness
