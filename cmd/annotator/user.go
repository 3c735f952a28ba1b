package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"annotation-service/internal/service"
)

func newUserCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCommand(cc))
	return cmd
}

func newUserAddCommand(cc *commandContext) *cobra.Command {
	var (
		password string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user; the first admin is created this way",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			r, err := service.ParseRole(role)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.users.Create(cmd.Context(), args[0], password, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s created with role %s\n", u.Username, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().StringVar(&role, "role", "annotator", "Role: admin or annotator")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
