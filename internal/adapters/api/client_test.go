package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/medverus-cli/internal/domain"
)

func newTestClient(serverURL string) Client {
	return Client{
		API:      DefaultAPI(serverURL),
		ClientID: "cli_test",
	}
}

func grantJSON() map[string]any {
	return map[string]any{
		"access_token":  "access-1",
		"refresh_token": "rotate-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"user": map[string]any{
			"id":    "user-1",
			"email": "clinician@example.org",
			"tier":  "pro",
		},
	}
}

func TestRefreshSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/refresh", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rotate-old", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(grantJSON()))
	}))
	defer server.Close()

	grant, err := newTestClient(server.URL).Refresh(context.Background(), "rotate-old")
	require.NoError(t, err)

	assert.Equal(t, "access-1", grant.AccessToken)
	assert.Equal(t, "rotate-1", grant.RotationToken)
	assert.Equal(t, int64(3600), grant.ExpiresIn)
	assert.Equal(t, domain.TierPro, grant.User.Tier)
}

func TestRefreshNon2xxIsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","detail":"rotation token revoked"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Refresh(context.Background(), "rotate-old")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Contains(t, err.Error(), "rotation token revoked")
}

func TestRefreshRequiresRotationToken(t *testing.T) {
	_, err := newTestClient("http://localhost:1").Refresh(context.Background(), "")
	assert.EqualError(t, err, "rotation token is required")
}

func TestExchangeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		assert.Equal(t, "verifier-1", r.PostForm.Get("code_verifier"))
		assert.Equal(t, "cli_test", r.PostForm.Get("client_id"))

		require.NoError(t, json.NewEncoder(w).Encode(grantJSON()))
	}))
	defer server.Close()

	grant, err := newTestClient(server.URL).Exchange(context.Background(), domain.AuthorizationProof{
		Code:        "code-1",
		Verifier:    "verifier-1",
		RedirectURI: "http://localhost:7777/auth/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-1", grant.AccessToken)
}

func TestExchangeRejectsGrantMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Exchange(context.Background(), domain.AuthorizationProof{
		Code:     "code-1",
		Verifier: "verifier-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access token")
}

func TestQuerySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "pubmed", payload["source"])
		assert.Equal(t, float64(10), payload["max_results"])

		_, _ = w.Write([]byte(`{
			"query_id": "q-1",
			"response": "summary",
			"results": [
				{"title": "Trial A", "content": "...", "url": "https://pubmed.example/a", "confidence_score": 0.95},
				{"title": "Trial B", "content": "...", "url": "https://pubmed.example/b", "confidence_score": 0.3}
			],
			"citations": [{"title": "Trial A", "url": "https://pubmed.example/a"}],
			"safety_applied": true,
			"content_filtered": false
		}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Query(context.Background(), "access-1", domain.SourceQuery{
		Query:      "anticoagulation outcomes",
		Source:     domain.SourcePubmed,
		MaxResults: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "q-1", result.QueryID)
	assert.Equal(t, domain.SourcePubmed, result.Source)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 0.95, result.Items[0].Confidence)
	assert.Equal(t, domain.SourcePubmed, result.Items[0].Source)
	require.Len(t, result.Citations, 1)
	assert.Contains(t, result.SafetyFlags, "safety_applied")
	assert.NotContains(t, result.SafetyFlags, "content_filtered")
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestQueryHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).Query(ctx, "access-1", domain.SourceQuery{
		Query:  "anything",
		Source: domain.SourceMedverusAI,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueryServerErrorSurfacesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"source_unavailable"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Query(context.Background(), "access-1", domain.SourceQuery{
		Query:  "anything",
		Source: domain.SourceWebSearch,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_unavailable")
	assert.Contains(t, err.Error(), "web_search")
}

func TestBuildAPIURLValidation(t *testing.T) {
	_, err := buildAPIURL("", "/api/v1/query")
	assert.EqualError(t, err, "api base url is required")

	_, err = buildAPIURL("ftp://host", "/api/v1/query")
	assert.EqualError(t, err, "api base url must use http or https")

	_, err = buildAPIURL("https://", "/api/v1/query")
	assert.EqualError(t, err, "api base url host is required")
}
