package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toolgate/internal/app"
)

type cliOptions struct {
	configPath string
	jsonOutput bool
	debug      bool
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "toolgatectl",
		Short: "Inspect and exercise the tool governor",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !opts.debug {
				return nil
			}
			log, err := app.NewLogger(true)
			if err != nil {
				return err
			}
			opts.logger = log
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the runtime config file (YAML)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "emit JSON instead of text")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRouteCommand(&opts))
	root.AddCommand(newSkillsCommand(&opts))
	root.AddCommand(newAuditCommand(&opts))
	root.AddCommand(newCatalogCommand(&opts))
	return root
}
