// Package cli implements the wsmock command line.
//
// Commands:
//
//	wsmock simulate <glob>...   run YAML scenarios against the harness
//	wsmock backoff              print a reconnect delay schedule
//	wsmock config               show the effective configuration and its sources
//	wsmock init                 scaffold a scenario file
//	wsmock version              print version information
//
// Configuration is resolved from defaults, the --config file (or
// $WSMOCK_CONFIG), WSMOCK_* environment variables and finally flags.
package cli
