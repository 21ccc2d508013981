package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/getmockd/wsmock/pkg/cli"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"wsmock": cli.Main,
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(env *testscript.Env) error {
			// Scripts must not pick up the developer's environment.
			for _, name := range []string{"WSMOCK_CONFIG", "WSMOCK_URL", "WSMOCK_LOG_LEVEL"} {
				env.Setenv(name, "")
			}
			return nil
		},
	})
}
