package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intellidocs/internal/config"
	"intellidocs/pkg/token"
)

var (
	tokenUser uint
	tokenOrg  uint
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed development JWT",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := token.NewJWTManager(config.Conf.JWT.Secret, config.Conf.JWT.AccessTokenExpireHours)
		tok, err := m.GenerateToken(tokenUser, tokenOrg, tokenRole)
		if err != nil {
			return fmt.Errorf("签发 token 失败: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().UintVar(&tokenUser, "user", 1, "user id")
	tokenCmd.Flags().UintVar(&tokenOrg, "org", 0, "organization id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", token.RoleEditor, "role: viewer, editor or admin")
	rootCmd.AddCommand(tokenCmd)
}
