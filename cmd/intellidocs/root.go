package main

import (
	"github.com/spf13/cobra"

	"intellidocs/internal/config"
	"intellidocs/pkg/log"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "intellidocs",
	Short:         "Multi-tenant document ingestion, semantic search and grounded Q&A",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		config.Conf = cfg
		log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "path to the YAML config file (empty: defaults and environment only)")
}
