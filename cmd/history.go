package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/medverus-cli/internal/adapters/render/results"
)

func newHistoryCmd(app *app) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent query sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := app.sessions.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoded, err := json.MarshalIndent(sessions, "", "  ")
				if err != nil {
					return fmt.Errorf("encode history: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), results.RenderHistory(sessions, results.RenderOptions{Now: app.now()}))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output sessions as JSON")

	return cmd
}
