package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/suite"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents and test suites",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			resolver := config.NewResolver(cfg)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Agents:")
			for _, name := range resolver.Known() {
				agentCfg, err := resolver.Resolve(name)
				if err != nil {
					continue
				}
				fmt.Fprintf(out, "  %-16s %s\n", name, agentCfg.Type)
			}

			fmt.Fprintln(out, "Suites:")
			for _, id := range suite.ListIDs() {
				desc := ""
				if f, ok := suite.GetFactory(id); ok {
					desc = f.Description
				}
				fmt.Fprintf(out, "  %-36s %s\n", id, desc)
			}
			return nil
		},
	}
}
