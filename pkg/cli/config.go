package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/farmcart/farmcart/pkg/cli/internal/output"
	"github.com/farmcart/farmcart/pkg/config"
)

// ConfigShowOutput is the JSON form of `config show`.
type ConfigShowOutput struct {
	Config  config.Config     `json:"config"`
	Sources map[string]string `json:"sources"`
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the client configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display resolved configuration",
		Long: `Display the configuration after merging defaults, the config file, FARMCART_*
environment variables and flags, with the source of every top-level key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(g.options())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if g.jsonOutput {
				return output.JSON(w, ConfigShowOutput{Config: cfg, Sources: cfg.Sources})
			}

			b, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			fmt.Fprint(w, string(b))

			keys := make([]string, 0, len(cfg.Sources))
			for k := range cfg.Sources {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintln(w)
			tw := output.Table(w)
			fmt.Fprintln(tw, "KEY\tSOURCE")
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\n", k, cfg.Sources[k])
			}
			return tw.Flush()
		},
	})
	return cmd
}
