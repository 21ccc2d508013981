package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type backoffRow struct {
	Attempt int    `json:"attempt"`
	Delay   string `json:"delay"`
	DelayMs int64  `json:"delayMs"`
}

func newBackoffCmd(g *globalFlags) *cobra.Command {
	var (
		base       time.Duration
		multiplier float64
		maxDelay   time.Duration
		attempts   int
		jitter     bool
	)

	cmd := &cobra.Command{
		Use:   "backoff",
		Short: "Print a reconnect delay schedule",
		Long: `Print the delay before each reconnect attempt. Values default to the
backoff section of the configuration; flags override them.`,
		Example: `  wsmock backoff
  wsmock backoff --base 500ms --multiplier 1.5 --max 10s --attempts 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}

			calc := cfg.BackoffCalculator()
			n := cfg.Backoff.MaxAttempts
			flags := cmd.Flags()
			if flags.Changed("base") {
				calc.BaseDelay = base
			}
			if flags.Changed("multiplier") {
				calc.Multiplier = multiplier
			}
			if flags.Changed("max") {
				calc.MaxDelay = maxDelay
			}
			if flags.Changed("attempts") {
				n = attempts
			}
			if !flags.Changed("jitter") {
				jitter = cfg.Backoff.Jitter
			}
			if n <= 0 {
				return errors.New("attempts must be positive")
			}

			rows := make([]backoffRow, 0, n)
			for i := 1; i <= n; i++ {
				d := calc.CalculateDelay(i)
				if jitter {
					d = calc.JitteredDelay(i)
				}
				rows = append(rows, backoffRow{Attempt: i, Delay: d.String(), DelayMs: d.Milliseconds()})
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ATTEMPT\tDELAY")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\n", r.Attempt, r.Delay)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&base, "base", 0, "Delay before the first retry")
	cmd.Flags().Float64Var(&multiplier, "multiplier", 0, "Growth factor per attempt")
	cmd.Flags().DurationVar(&maxDelay, "max", 0, "Upper bound on any delay (0 for none)")
	cmd.Flags().IntVarP(&attempts, "attempts", "n", 0, "Number of attempts to print")
	cmd.Flags().BoolVar(&jitter, "jitter", false, "Add up to 10% random jitter")
	return cmd
}
