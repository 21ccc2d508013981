package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/wsmock/pkg/config"
	"github.com/getmockd/wsmock/pkg/harness"
	"github.com/getmockd/wsmock/pkg/scenario"
)

const defaultScenarioFile = "scenario.yaml"

func newInitCmd(g *globalFlags) *cobra.Command {
	var (
		name       string
		output     string
		mockServer bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a scenario file",
		Long: `Write a starter scenario. Without --name the details are asked for
interactively.`,
		Example: `  wsmock init
  wsmock init --name "chat reconnect" --url ws://chat.test/ws --output chat.yaml
  wsmock init --name echo --mock-server --output -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			url := cfg.Socket.URL

			// If flags were intentionally omitted, run the interactive prompt
			if !cmd.Flags().Changed("name") {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("What is the scenario called?").
							Placeholder("chat reconnect").
							Value(&name).
							Validate(func(s string) error {
								if strings.TrimSpace(s) == "" {
									return errors.New("name is required")
								}
								return nil
							}),
						huh.NewInput().
							Title("Which URL does the socket connect to?").
							Value(&url).
							Validate(validateScenarioURL),
						huh.NewConfirm().
							Title("Use the in-memory mock server?").
							Value(&mockServer),
						huh.NewInput().
							Title("Where should the file be written?").
							Value(&output),
					),
				)
				if err := form.Run(); err != nil {
					return fmt.Errorf("prompt canceled: %w", err)
				}
			}
			if err := validateScenarioURL(url); err != nil {
				return err
			}

			sc := scaffold(strings.TrimSpace(name), url, mockServer)
			data, err := yaml.Marshal(sc)
			if err != nil {
				return fmt.Errorf("encode scenario: %w", err)
			}
			if _, err := scenario.Parse(data); err != nil {
				return fmt.Errorf("generated scenario is invalid: %w", err)
			}

			out := cmd.OutOrStdout()
			if output == "-" {
				_, err := out.Write(data)
				return err
			}
			if output == "" {
				output = defaultScenarioFile
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write scenario: %w", err)
			}
			fmt.Fprintf(out, "Created %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Scenario name")
	cmd.Flags().StringVarP(&output, "output", "o", defaultScenarioFile, `Output file, or "-" for stdout`)
	cmd.Flags().BoolVar(&mockServer, "mock-server", false, "Run the scenario against the in-memory mock server")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func validateScenarioURL(s string) error {
	if strings.HasPrefix(s, "ws://") || strings.HasPrefix(s, "wss://") || strings.HasPrefix(s, "/") {
		return nil
	}
	return fmt.Errorf("url %q must start with ws://, wss:// or /", s)
}

// scaffold builds a starter scenario that passes as written.
func scaffold(name, url string, mockServer bool) *scenario.Scenario {
	sc := &scenario.Scenario{
		Name: name,
		URL:  url,
		Steps: []scenario.Step{
			{Action: scenario.ActionConnect, Timeout: config.Duration(harness.DefaultConnectTimeout)},
			{Action: scenario.ActionSend, Data: map[string]any{"type": "hello"}},
		},
	}

	if mockServer {
		sc.Description = "Messages are echoed back by the mock server."
		sc.MockServer = &scenario.MockServerSettings{Echo: true}
		sc.Steps = append(sc.Steps,
			scenario.Step{
				Action:  scenario.ActionAssert,
				Name:    "echo arrives",
				Expect:  `len(received) == 1 && received[0] == sent[0]`,
				Timeout: config.Duration(harness.DefaultConnectTimeout),
			},
		)
	} else {
		sc.Description = "Replies are simulated by the fake socket."
		sc.Steps = append(sc.Steps,
			scenario.Step{Action: scenario.ActionReceive, Data: map[string]any{"type": "welcome"}},
			scenario.Step{
				Action: scenario.ActionAssert,
				Name:   "one message each way",
				Expect: `state == "connected" && len(sent) == 1 && len(received) == 1`,
			},
		)
	}

	sc.Steps = append(sc.Steps,
		scenario.Step{Action: scenario.ActionClose, Reason: "done"},
		scenario.Step{
			Action:  scenario.ActionAssert,
			Expect:  `state == "disconnected"`,
			Timeout: config.Duration(harness.DefaultConnectTimeout),
		},
	)
	return sc
}
