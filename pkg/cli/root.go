// Package cli implements the farmcart command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/farmcart/farmcart/pkg/cli/internal/output"
	"github.com/farmcart/farmcart/pkg/config"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	apiURL     string
	role       string
	logLevel   string
	jsonOutput bool
}

func (g *globalFlags) options() config.Options {
	return config.Options{
		Path:     g.configPath,
		APIURL:   g.apiURL,
		Role:     g.role,
		LogLevel: g.logLevel,
	}
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "farmcart",
		Short: "farmcart is a command line client for the farm-to-table marketplace",
		Long: `farmcart talks to the marketplace API as a farmer, a customer or a delivery agent.

Every resource the active role can see has its own command group, for example
"farmcart addresses list" or "farmcart orders status 12 shipped".

Configuration can be provided via flags, environment variables (FARMCART_*), or a
configuration file. By default, farmcart looks for config.yaml under the user
config directory (e.g. ~/.config/farmcart/config.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to a config file (yaml, toml or json)")
	pf.StringVar(&g.apiURL, "api-url", "", "Marketplace API base URL")
	pf.StringVar(&g.role, "role", "", "Role to act as: farmer, customer, delivery")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newVersionCmd(g),
		newConfigCmd(g),
		newLoginCmd(g),
		newLogoutCmd(g),
		newWhoamiCmd(g),
		newSandboxCmd(g),
	)
	for _, def := range resourceDefinitions() {
		root.AddCommand(newResourceCmd(g, def))
	}
	return root
}

// Execute runs the command line and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError renders err as a failure banner, with its hint when it has one.
func printError(w io.Writer, err error) {
	var h interface{ Hint() string }
	hint := ""
	if errors.As(err, &h) {
		hint = h.Hint()
	}
	output.Failure(w, fmt.Sprint(err), hint)
}
