package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/wsmock/pkg/config"
	"github.com/getmockd/wsmock/pkg/logging"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// ErrScenariosFailed is returned by simulate when any scenario fails.
var ErrScenariosFailed = errors.New("scenarios failed")

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	url        string
	logLevel   string
	logFormat  string
	logFile    string
	jsonOutput bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "wsmock",
		Short: "wsmock drives simulated WebSocket connections for tests",
		Long: `wsmock replays scripted WebSocket scenarios against an in-process fake socket
or an in-memory mock server, and reports what the connection did.

Configuration can be provided via flags, environment variables (WSMOCK_*), or a
configuration file passed with --config or $WSMOCK_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to a configuration file (default $WSMOCK_CONFIG)")
	pf.StringVar(&g.url, "url", "", "Override the socket URL")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: text, json")
	pf.StringVar(&g.logFile, "log-file", "", "Also append JSON logs to this file")
	pf.BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newSimulateCmd(g),
		newBackoffCmd(g),
		newConfigCmd(g),
		newInitCmd(g),
		newVersionCmd(g),
	)
	return root
}

// Main runs the CLI with the process arguments and returns the exit code.
func Main() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes the CLI with args and returns the exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// loadConfig resolves the configuration and applies flag overrides.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := g.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Socket.URL = g.url
		cfg.SetSource("socket.url", config.SourceFlag)
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
		cfg.SetSource("log.level", config.SourceFlag)
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
		cfg.SetSource("log.format", config.SourceFlag)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger writes to the command's error stream, and with --log-file also
// appends JSON records to that file. The returned func closes the file.
func (g *globalFlags) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	lc := cfg.LoggingConfig()
	lc.Output = cmd.ErrOrStderr()
	if g.logFile == "" {
		return logging.New(lc), func() error { return nil }, nil
	}

	f, err := os.OpenFile(g.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lc.Level, AddSource: lc.AddSource}
	h := logging.NewMultiHandler(
		logging.New(lc).Handler(),
		slog.NewJSONHandler(f, opts),
	)
	return slog.New(h), f.Close, nil
}
