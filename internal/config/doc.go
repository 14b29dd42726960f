// Package config provides configuration management for elm-torture.
//
// Configuration is loaded from multiple YAML sources and merged in a specific
// order, with later sources overriding earlier ones field by field:
//
//  1. Built-in defaults (see defaults.go)
//  2. User configuration (~/.config/elm-torture/config.yaml)
//  3. Project configuration (./.elm-torture/config.yaml)
//  4. An explicit file passed with --config
//  5. Command line flags
//
// Since YAML is a superset of JSON, configuration files written as JSON are
// accepted as well. Unknown keys are rejected.
//
//	elm-compilers: [elm, another-elm]
//	node: node
//	opt-levels: [dev, optimize]
//	compiler-max-retries: 3
//	run-timeout: 10s
//	out-dir: /tmp/torture
//	jobs: 8
//
// A .env file in the working directory is loaded into the process environment
// before anything else, so ELM_HOME can be set per checkout.
package config
