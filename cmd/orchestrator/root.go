package main

import (
	"time"

	"github.com/spf13/cobra"

	"content_orchestra/internal/api"
)

type globalFlags struct {
	configPath string
	server     string
	timeout    time.Duration
}

func (g *globalFlags) client() *api.Client {
	return api.NewClient(g.server, g.timeout)
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Content pipeline orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config.toml (default: ./config.toml when present)")
	rootCmd.PersistentFlags().StringVar(&flags.server, "server", "http://localhost:8091", "orchestrator base URL for client commands")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 10*time.Second, "HTTP timeout for client commands")

	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newStatusCommand(flags))
	rootCmd.AddCommand(newContentCommand(flags))
	rootCmd.AddCommand(newAgentCommand(flags))
	rootCmd.AddCommand(newJournalCommand(flags))
	return rootCmd
}
