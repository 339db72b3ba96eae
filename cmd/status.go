package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/medverus-cli/internal/adapters/render/results"
	"github.com/bnema/medverus-cli/internal/codec"
	"github.com/bnema/medverus-cli/internal/domain"
)

func newStatusCmd(app *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current credential without calling the platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := app.store.Load(cmd.Context())
			if err != nil {
				if errors.Is(err, domain.ErrNoCredential) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Run \"mq login\".")
					return nil
				}
				return err
			}

			credential, err := codec.Decode(record.AccessToken, app.now())
			if err != nil {
				return fmt.Errorf("decode stored credential: %w", err)
			}

			if jsonOutput {
				encoded, err := json.MarshalIndent(credential, "", "  ")
				if err != nil {
					return fmt.Errorf("encode status: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), results.RenderStatus(credential, app.now()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}
