package main

import (
	"errors"

	"github.com/spf13/cobra"

	"intellidocs/internal/config"
	"intellidocs/pkg/database"
	"intellidocs/pkg/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Conf
		if cfg.Database.Driver != "postgres" {
			return errors.New("migrate 只支持 database.driver=postgres")
		}
		db, err := database.Connect(cmd.Context(), cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.Migrate(db, cfg.Embedding.Dimensions); err != nil {
			return err
		}
		log.Infof("数据库迁移完成, 向量维度: %d", cfg.Embedding.Dimensions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
