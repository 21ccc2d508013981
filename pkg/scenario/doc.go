// Package scenario loads YAML scenarios and replays them against a harness.
//
// A scenario names a socket setup and a list of steps:
//
//	name: reconnect after drop
//	socket:
//	  failConnects: 1
//	steps:
//	  - action: connect
//	    expectError: true
//	  - action: reconnect
//	    maxAttempts: 3
//	  - action: assert
//	    expect: state == "connected"
//
// Files are validated against an embedded JSON schema before decoding.
// Assert steps are expr-lang boolean expressions evaluated over the harness
// state; see Env for the available variables.
package scenario
