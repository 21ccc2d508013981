package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/wsmock/pkg/metrics"
	"github.com/getmockd/wsmock/pkg/scenario"
)

func newSimulateCmd(g *globalFlags) *cobra.Command {
	var (
		withMetrics bool
		timeout     time.Duration
		stepTimeout time.Duration
		failFast    bool
	)

	cmd := &cobra.Command{
		Use:   "simulate <scenario>...",
		Short: "Run scenario files against the harness",
		Long: `Run one or more YAML scenarios. Arguments are file paths or glob patterns;
** matches across directories. The command fails if any scenario fails.`,
		Example: `  wsmock simulate scenarios/reconnect.yaml
  wsmock simulate 'scenarios/**/*.yaml' --metrics`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closeLog, err := g.logger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			var scenarios []*scenario.Scenario
			for _, pattern := range args {
				found, err := scenario.LoadGlob(pattern)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, found...)
			}

			if withMetrics {
				metrics.Init()
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			results := make([]*scenario.Result, 0, len(scenarios))
			failed := 0
			for _, sc := range scenarios {
				res, err := scenario.Run(ctx, sc,
					scenario.WithConfig(cfg),
					scenario.WithLogger(logger),
					scenario.WithStepTimeout(stepTimeout))
				if err != nil {
					return fmt.Errorf("%s: %w", sc.Name, err)
				}
				results = append(results, res)
				if !res.Passed {
					failed++
					if failFast {
						break
					}
				}
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printResults(cmd, results, failed)
			}

			if withMetrics {
				if err := metrics.Default().WriteText(out); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "Print Prometheus metrics after the run")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the whole run after this long (0 for none)")
	cmd.Flags().DurationVar(&stepTimeout, "step-timeout", scenario.DefaultStepTimeout, "Timeout for waiting steps that set none")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop after the first failed scenario")
	return cmd
}

func printResults(cmd *cobra.Command, results []*scenario.Result, failed int) {
	out := cmd.OutOrStdout()
	for _, res := range results {
		if res.Passed {
			fmt.Fprintf(out, "PASS  %s (%s)\n", res.Name, res.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(out, "FAIL  %s (%s)\n", res.Name, res.Duration.Round(time.Millisecond))
		if step, ok := res.Failed(); ok {
			fmt.Fprintf(out, "      step %d (%s): %s\n", step.Index+1, step.Name, step.Error)
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d failed\n", len(results)-failed, failed)
}
