package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/medverus-cli/internal/adapters/render/results"
	"github.com/bnema/medverus-cli/internal/application"
	"github.com/bnema/medverus-cli/internal/domain"
)

func newQueryCmd(app *app) *cobra.Command {
	var (
		sources     []string
		contextText string
		maxResults  int
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: "Dispatch a query across the platform's content sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := application.DispatchRequest{
				Query:      strings.Join(args, " "),
				Sources:    parseSources(sources),
				Context:    contextText,
				MaxResults: maxResults,
				Client: application.ClientContext{
					Identity: clientIdentity,
					Origin:   "terminal",
				},
			}

			var response domain.MergedQueryResponse
			err := runDispatchSpinner(cmd.Context(), cmd.ErrOrStderr(), "Querying sources...", func(ctx context.Context) error {
				var execErr error
				response, execErr = app.queries.Execute(ctx, req)
				return execErr
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				encoded, err := json.MarshalIndent(response, "", "  ")
				if err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), results.Render(response, results.RenderOptions{Now: app.now()}))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", []string{string(domain.SourceMedverusAI)}, "Content source to query (repeatable)")
	cmd.Flags().StringVar(&contextText, "context", "", "Clinical context attached to the query")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum merged results (default server cap)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the merged response as JSON")

	return cmd
}

func parseSources(names []string) []domain.SourceID {
	sources := make([]domain.SourceID, 0, len(names))
	for _, name := range names {
		sources = append(sources, domain.SourceID(strings.TrimSpace(name)))
	}
	return sources
}
