// Package mockserver provides the scripted HTTP servers that suites talk to
// instead of the real network.
//
// A single Pool is created per process. Every Session started from it binds
// its own ephemeral port and answers requests with the suite's scripted
// responses, strictly in the declared order. A request that does not match
// the next scripted item means the suite fixture is broken, and the pool's
// fatal handler (by default: log and exit) is invoked.
//
// Start does not return until the bound address is known, and Session.Close
// does not return until the port has been released.
package mockserver
