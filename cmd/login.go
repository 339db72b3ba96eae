package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	authadapter "github.com/bnema/medverus-cli/internal/adapters/auth"
	"github.com/bnema/medverus-cli/internal/domain"
)

func newLoginCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowserLogin(cmd, app)
		},
	}
}

func runBrowserLogin(cmd *cobra.Command, app *app) error {
	pkce, err := authadapter.NewPKCEPair()
	if err != nil {
		return fmt.Errorf("generate pkce: %w", err)
	}
	state, err := authadapter.NewState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}

	server, err := authadapter.StartCallbackServer(app.browser.ListenAddr, state)
	if err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}

	authURL, err := authadapter.BuildAuthorizationURL(authadapter.AuthorizationRequest{
		AuthorizeURL:  app.browser.Issuer + "/oauth/authorize",
		ClientID:      app.browser.ClientID,
		RedirectURI:   server.RedirectURI(),
		Scopes:        []string{"openid", "profile", "email", "offline_access"},
		State:         state,
		CodeChallenge: pkce.Challenge,
	})
	if err != nil {
		_ = server.Close()
		return fmt.Errorf("build authorization url: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to sign in:\n%s\n", authURL)

	code, err := server.WaitForCode(app.browser.Timeout)
	if err != nil {
		return fmt.Errorf("wait for oauth callback: %w", err)
	}

	grant, err := app.apiClient.Exchange(cmd.Context(), domain.AuthorizationProof{
		Code:        code,
		Verifier:    pkce.Verifier,
		RedirectURI: server.RedirectURI(),
	})
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	record, err := app.credentials.StoreGrant(cmd.Context(), grant)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", record.User.Email)
	return nil
}
