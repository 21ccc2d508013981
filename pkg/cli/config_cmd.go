package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/getmockd/wsmock/pkg/config"
)

// sectionNames are the display names of configuration sections.
var sectionNames = map[string]string{
	"socket":     "socket",
	"buffer":     "buffer",
	"heartbeat":  "heartbeat",
	"backoff":    "backoff",
	"log":        "logging",
	"mockServer": "mock server",
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	var sourcesOnly bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if g.jsonOutput {
				sources := make(map[string]string, len(config.Keys))
				for _, k := range config.Keys {
					sources[k] = cfg.Source(k)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"sources": sources, "env": config.EnvNames()})
			}

			if !sourcesOnly {
				data, err := cfg.YAML()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "# Effective configuration")
				fmt.Fprint(out, string(data))
				fmt.Fprintln(out)
			}

			envFor := make(map[string]string)
			for name, key := range config.EnvNames() {
				envFor[key] = name
			}

			title := cases.Title(language.English)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			current := ""
			for _, key := range config.Keys {
				section, field, _ := strings.Cut(key, ".")
				if section != current {
					if current != "" {
						fmt.Fprintln(w)
					}
					fmt.Fprintln(w, title.String(sectionNames[section]))
					current = section
				}
				env := envFor[key]
				if env == "" {
					env = "-"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\n", field, cfg.Source(key), env)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&sourcesOnly, "sources", false, "Print only the source of each key")
	return cmd
}
