// Package config loads wsmock configuration.
//
// Values are resolved in order: defaults, then a YAML file, then WSMOCK_*
// environment variables, then command-line flags. Config.Sources records
// which layer set each value so `wsmock config` can explain the result.
//
// Durations accept Go duration strings ("10ms", "1.5s") or integers, which
// are read as milliseconds.
package config
