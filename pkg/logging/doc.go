// Package logging provides structured logging configuration for wsmock.
//
// This package wraps log/slog so the fake socket, heartbeat managers, the mock
// server and the test harness all log the same way.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatText,
//	})
//
//	mgr := harness.New(harness.WithLogger(logger))
//
// Inside tests, route harness logs to the test output so they only show up for
// failing or verbose runs:
//
//	mgr := harness.New(harness.WithLogger(logging.NewTestLogger(t)))
//
// # Integration
//
// Components accept a *slog.Logger through an option. If none is provided they
// use logging.Nop().
package logging
