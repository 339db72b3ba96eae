// Package api implements the HTTP client for the Medverus platform: the
// credential exchange and refresh endpoints and the per-source query
// endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/medverus-cli/internal/domain"
)

const maxResponseBytes = 1 << 20

type API struct {
	BaseURL      string
	ExchangePath string
	RefreshPath  string
	QueryPath    string
}

func DefaultAPI(baseURL string) API {
	return API{
		BaseURL:      baseURL,
		ExchangePath: "/api/v1/auth/token",
		RefreshPath:  "/api/v1/auth/refresh",
		QueryPath:    "/api/v1/query",
	}
}

type Client struct {
	API            API
	ClientID       string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	UserAgent      string
}

type grantResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Tier  string `json:"tier"`
}

type queryRequest struct {
	Query      string `json:"query"`
	Source     string `json:"source"`
	Context    string `json:"context,omitempty"`
	MaxResults int    `json:"max_results"`
}

type queryResponse struct {
	QueryID         string             `json:"query_id"`
	Response        string             `json:"response"`
	Results         []resultItem       `json:"results"`
	Citations       []citationResponse `json:"citations"`
	SafetyApplied   bool               `json:"safety_applied"`
	ContentFiltered bool               `json:"content_filtered"`
}

type resultItem struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	URL        string  `json:"url"`
	Confidence float64 `json:"confidence_score"`
}

type citationResponse struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type apiErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Exchange trades an authorization proof for a token grant.
func (c Client) Exchange(ctx context.Context, proof domain.AuthorizationProof) (domain.TokenGrant, error) {
	if proof.Code == "" {
		return domain.TokenGrant{}, errors.New("authorization code is required")
	}
	if proof.Verifier == "" {
		return domain.TokenGrant{}, errors.New("code verifier is required")
	}

	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", proof.Code)
	values.Set("code_verifier", proof.Verifier)
	values.Set("redirect_uri", proof.RedirectURI)
	values.Set("client_id", c.ClientID)

	return c.requestGrant(ctx, c.API.ExchangePath, values, "exchange authorization code")
}

// Refresh trades the rotation credential for a fresh grant. Any non-2xx
// response is a rejection.
func (c Client) Refresh(ctx context.Context, rotationToken string) (domain.TokenGrant, error) {
	if rotationToken == "" {
		return domain.TokenGrant{}, errors.New("rotation token is required")
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", rotationToken)
	values.Set("client_id", c.ClientID)

	return c.requestGrant(ctx, c.API.RefreshPath, values, "refresh credential")
}

func (c Client) requestGrant(ctx context.Context, path string, values url.Values, action string) (domain.TokenGrant, error) {
	endpoint, err := buildAPIURL(c.API.BaseURL, path)
	if err != nil {
		return domain.TokenGrant{}, err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setIdentity(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("%s: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.TokenGrant{}, fmt.Errorf("%s: %s", action, decodeAPIError(resp))
	}

	var payload grantResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return domain.TokenGrant{}, fmt.Errorf("decode %s response: %w", action, err)
	}
	if payload.AccessToken == "" {
		return domain.TokenGrant{}, fmt.Errorf("%s: response missing access token", action)
	}

	return domain.TokenGrant{
		AccessToken:   payload.AccessToken,
		RotationToken: payload.RefreshToken,
		TokenType:     payload.TokenType,
		ExpiresIn:     payload.ExpiresIn,
		User: domain.UserInfo{
			ID:    payload.User.ID,
			Email: payload.User.Email,
			Tier:  domain.Tier(payload.User.Tier),
		},
	}, nil
}

// Query issues one sub-query against a single content source.
func (c Client) Query(ctx context.Context, accessToken string, query domain.SourceQuery) (domain.SourceResult, error) {
	if accessToken == "" {
		return domain.SourceResult{}, errors.New("access token is required")
	}
	if query.Query == "" {
		return domain.SourceResult{}, errors.New("query text is required")
	}

	endpoint, err := buildAPIURL(c.API.BaseURL, c.API.QueryPath)
	if err != nil {
		return domain.SourceResult{}, err
	}

	body, err := json.Marshal(queryRequest{
		Query:      query.Query,
		Source:     string(query.Source),
		Context:    query.Context,
		MaxResults: query.MaxResults,
	})
	if err != nil {
		return domain.SourceResult{}, fmt.Errorf("encode query request: %w", err)
	}

	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.SourceResult{}, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	c.setIdentity(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return domain.SourceResult{}, fmt.Errorf("query source %s: %w", query.Source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.SourceResult{}, fmt.Errorf("query source %s: %s", query.Source, decodeAPIError(resp))
	}

	var payload queryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return domain.SourceResult{}, fmt.Errorf("decode query response: %w", err)
	}

	result := domain.SourceResult{
		QueryID:  payload.QueryID,
		Source:   query.Source,
		Duration: time.Since(started),
	}
	for _, item := range payload.Results {
		result.Items = append(result.Items, domain.ResultItem{
			Title:      item.Title,
			Content:    item.Content,
			URL:        item.URL,
			Confidence: item.Confidence,
			Source:     query.Source,
		})
	}
	for _, citation := range payload.Citations {
		result.Citations = append(result.Citations, domain.Citation{
			Title:  citation.Title,
			URL:    citation.URL,
			Source: query.Source,
		})
	}
	if payload.SafetyApplied {
		result.SafetyFlags = append(result.SafetyFlags, "safety_applied")
	}
	if payload.ContentFiltered {
		result.SafetyFlags = append(result.SafetyFlags, "content_filtered")
	}

	return result, nil
}

func (c Client) setIdentity(req *http.Request) {
	userAgent := c.UserAgent
	if userAgent == "" {
		userAgent = "medverus-cli/1.0 (terminal)"
	}
	req.Header.Set("User-Agent", userAgent)
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func decodeAPIError(resp *http.Response) string {
	var payload apiErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	if payload.Error == "" {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	if payload.Detail != "" {
		return payload.Error + ": " + payload.Detail
	}
	return payload.Error
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
