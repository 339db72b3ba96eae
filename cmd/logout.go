package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.credentials.Invalidate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out. Local credentials cleared.")
			return nil
		},
	}
}
