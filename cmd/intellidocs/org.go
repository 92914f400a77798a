package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"intellidocs/internal/config"
	"intellidocs/internal/model"
	"intellidocs/internal/repository"
	"intellidocs/pkg/database"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage organizations",
}

var orgCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an organization and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Conf
		if cfg.Database.Driver != "postgres" {
			return errors.New("org create 只支持 database.driver=postgres")
		}
		db, err := database.Connect(cmd.Context(), cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		org := &model.Organization{Name: strings.TrimSpace(args[0])}
		if err := repository.NewOrganizationRepository(db).Create(cmd.Context(), org); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "organization %q created with id %d\n", org.Name, org.ID)
		return nil
	},
}

var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List organizations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Conf
		if cfg.Database.Driver != "postgres" {
			return errors.New("org list 只支持 database.driver=postgres")
		}
		db, err := database.Connect(cmd.Context(), cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		orgs, err := repository.NewOrganizationRepository(db).List(cmd.Context())
		if err != nil {
			return err
		}
		for _, o := range orgs {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", o.ID, o.Name)
		}
		return nil
	},
}

func init() {
	orgCmd.AddCommand(orgCreateCmd, orgListCmd)
	rootCmd.AddCommand(orgCmd)
}
