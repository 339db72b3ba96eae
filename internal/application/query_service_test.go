package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/medverus-cli/internal/domain"
)

type fakeGate struct {
	verdict   domain.ComplianceVerdict
	scanTypes []string
	evaluated []domain.RequestContext
}

func (g *fakeGate) Evaluate(req domain.RequestContext) domain.ComplianceVerdict {
	g.evaluated = append(g.evaluated, req)
	return g.verdict
}

func (g *fakeGate) ScanTypes(string) []string {
	return g.scanTypes
}

func compliantVerdict() domain.ComplianceVerdict {
	return domain.ComplianceVerdict{Compliant: true, Risk: domain.RiskLow}
}

type fakeCredentialProvider struct {
	mu     sync.Mutex
	record domain.CredentialRecord
	err    error
	calls  int
}

func (p *fakeCredentialProvider) GetValidCredential(context.Context) (domain.CredentialRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return domain.CredentialRecord{}, p.err
	}
	return p.record, nil
}

type sourceBehavior struct {
	items []domain.ResultItem
	err   error
	delay time.Duration
}

type fakeSourceClient struct {
	mu        sync.Mutex
	behaviors map[domain.SourceID]sourceBehavior
	calls     []domain.SourceID
}

func (c *fakeSourceClient) Query(ctx context.Context, _ string, query domain.SourceQuery) (domain.SourceResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, query.Source)
	behavior := c.behaviors[query.Source]
	c.mu.Unlock()

	if behavior.delay > 0 {
		select {
		case <-time.After(behavior.delay):
		case <-ctx.Done():
			return domain.SourceResult{}, ctx.Err()
		}
	}
	if behavior.err != nil {
		return domain.SourceResult{}, behavior.err
	}

	return domain.SourceResult{
		Source: query.Source,
		Items:  behavior.items,
	}, nil
}

type fakeSessionRepository struct {
	mu       sync.Mutex
	appended []domain.SearchSession
	err      error
}

func (r *fakeSessionRepository) Append(_ context.Context, session domain.SearchSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.appended = append(r.appended, session)
	return nil
}

func (r *fakeSessionRepository) Recent(_ context.Context, limit int) ([]domain.SearchSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.appended) {
		limit = len(r.appended)
	}
	recent := make([]domain.SearchSession, 0, limit)
	for i := len(r.appended) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, r.appended[i])
	}
	return recent, nil
}

func items(source domain.SourceID, confidences ...float64) []domain.ResultItem {
	result := make([]domain.ResultItem, 0, len(confidences))
	for _, confidence := range confidences {
		result = append(result, domain.ResultItem{
			Title:      "result",
			Source:     source,
			Confidence: confidence,
		})
	}
	return result
}

func newTestQueryService(gate *fakeGate, creds *fakeCredentialProvider, client *fakeSourceClient, sessions *fakeSessionRepository) *QueryService {
	return NewQueryService(gate, creds, client, sessions, &fakeClock{now: credTestNow})
}

func dispatchTo(sources ...domain.SourceID) DispatchRequest {
	return DispatchRequest{
		Query:   "treatment options for atrial fibrillation",
		Sources: sources,
		Client: ClientContext{
			Identity: "medverus-cli/1.0 (terminal)",
			Origin:   "203.0.113.10",
			Region:   "DE",
		},
	}
}

func TestExecuteRequiresAtLeastOneSource(t *testing.T) {
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, &fakeCredentialProvider{}, &fakeSourceClient{}, &fakeSessionRepository{})

	_, err := service.Execute(context.Background(), dispatchTo())
	assert.ErrorIs(t, err, domain.ErrNoSources)
}

func TestExecuteMergesAndRanksAcrossSources(t *testing.T) {
	gate := &fakeGate{verdict: compliantVerdict()}
	creds := &fakeCredentialProvider{record: domain.CredentialRecord{AccessToken: "access"}}
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {items: items(domain.SourceMedverusAI, 0.9, 0.4)},
		domain.SourcePubmed:     {items: items(domain.SourcePubmed, 0.95, 0.3, 0.2)},
	}}
	sessions := &fakeSessionRepository{}
	service := newTestQueryService(gate, creds, client, sessions)

	response, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI, domain.SourcePubmed))
	require.NoError(t, err)

	require.Len(t, response.Results, 5)
	confidences := make([]float64, 0, 5)
	for _, item := range response.Results {
		confidences = append(confidences, item.Confidence)
	}
	assert.Equal(t, []float64{0.95, 0.9, 0.4, 0.3, 0.2}, confidences)

	assert.Equal(t, domain.SourceMedverusAI, response.Source, "primary source is the first requested")
	assert.Equal(t, []domain.SourceID{domain.SourceMedverusAI, domain.SourcePubmed}, response.Sources)
	assert.NotEmpty(t, response.QueryID)
}

func TestExecuteSharesOneCredentialAcrossBranches(t *testing.T) {
	creds := &fakeCredentialProvider{record: domain.CredentialRecord{AccessToken: "access"}}
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {items: items(domain.SourceMedverusAI, 0.5)},
		domain.SourcePubmed:     {items: items(domain.SourcePubmed, 0.6)},
		domain.SourceWebSearch:  {items: items(domain.SourceWebSearch, 0.7)},
	}}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, creds, client, &fakeSessionRepository{})

	_, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI, domain.SourcePubmed, domain.SourceWebSearch))
	require.NoError(t, err)

	assert.Equal(t, 1, creds.calls, "one shared credential fetch per dispatch")
	assert.Len(t, client.calls, 3)
}

func TestExecuteToleratesPartialFailure(t *testing.T) {
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {err: errors.New("upstream 502")},
		domain.SourcePubmed:     {items: items(domain.SourcePubmed, 0.8, 0.1)},
	}}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, &fakeCredentialProvider{}, client, &fakeSessionRepository{})

	response, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI, domain.SourcePubmed))
	require.NoError(t, err)

	require.Len(t, response.Results, 2)
	for _, item := range response.Results {
		assert.Equal(t, domain.SourcePubmed, item.Source)
	}
}

func TestExecuteFailsWhenAllSourcesFail(t *testing.T) {
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {err: errors.New("upstream 502")},
		domain.SourcePubmed:     {err: errors.New("connection refused")},
	}}
	sessions := &fakeSessionRepository{}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, &fakeCredentialProvider{}, client, sessions)

	_, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI, domain.SourcePubmed))
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrAllSourcesFailed)
	assert.Empty(t, sessions.appended, "failed dispatches are not recorded")
}

func TestExecuteTimeoutFailsOnlyThatBranch(t *testing.T) {
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {delay: time.Second},
		domain.SourcePubmed:     {items: items(domain.SourcePubmed, 0.8)},
	}}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, &fakeCredentialProvider{}, client, &fakeSessionRepository{})
	service.perSourceTimeout = 50 * time.Millisecond

	response, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI, domain.SourcePubmed))
	require.NoError(t, err)

	require.Len(t, response.Results, 1)
	assert.Equal(t, domain.SourcePubmed, response.Results[0].Source)
}

func TestExecuteTruncatesMergedResultsToCap(t *testing.T) {
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {items: items(domain.SourceMedverusAI, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3)},
		domain.SourcePubmed:     {items: items(domain.SourcePubmed, 0.95, 0.85, 0.75, 0.65, 0.55, 0.45)},
	}}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, &fakeCredentialProvider{}, client, &fakeSessionRepository{})

	response, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI, domain.SourcePubmed))
	require.NoError(t, err)

	require.Len(t, response.Results, MergeCap)
	for i := 1; i < len(response.Results); i++ {
		assert.LessOrEqual(t, response.Results[i].Confidence, response.Results[i-1].Confidence)
	}
}

func TestExecuteBreaksConfidenceTiesByRequestedSourceOrder(t *testing.T) {
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {items: items(domain.SourceMedverusAI, 0.5)},
		domain.SourcePubmed:     {items: items(domain.SourcePubmed, 0.5), delay: 10 * time.Millisecond},
	}}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, &fakeCredentialProvider{}, client, &fakeSessionRepository{})

	// pubmed requested first: its tie must win even though it answers last.
	response, err := service.Execute(context.Background(), dispatchTo(domain.SourcePubmed, domain.SourceMedverusAI))
	require.NoError(t, err)

	require.Len(t, response.Results, 2)
	assert.Equal(t, domain.SourcePubmed, response.Results[0].Source)
	assert.Equal(t, domain.SourceMedverusAI, response.Results[1].Source)
}

func TestExecuteShortCircuitsOnCriticalVerdict(t *testing.T) {
	gate := &fakeGate{verdict: domain.ComplianceVerdict{
		Compliant: false,
		Risk:      domain.RiskCritical,
		Violations: []domain.Violation{
			{Code: domain.ViolationSensitivePattern, Detail: "ssn match at offset 12"},
		},
	}}
	creds := &fakeCredentialProvider{}
	client := &fakeSourceClient{}
	service := newTestQueryService(gate, creds, client, &fakeSessionRepository{})

	_, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI))
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrComplianceRejected)
	assert.Contains(t, err.Error(), string(domain.ViolationSensitivePattern))
	assert.NotContains(t, err.Error(), "offset 12", "raw match details must not leak to the caller")
	assert.Zero(t, creds.calls)
	assert.Empty(t, client.calls)
}

func TestExecuteAllowsNonCriticalViolationsWithFlag(t *testing.T) {
	gate := &fakeGate{verdict: domain.ComplianceVerdict{
		Compliant:  false,
		Risk:       domain.RiskMedium,
		Violations: []domain.Violation{{Code: domain.ViolationSpoofableHeader}},
	}}
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {items: items(domain.SourceMedverusAI, 0.5)},
	}}
	service := newTestQueryService(gate, &fakeCredentialProvider{}, client, &fakeSessionRepository{})

	response, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI))
	require.NoError(t, err)

	assert.Contains(t, response.Flags, "compliance:medium")
}

func TestExecutePropagatesReauthRequired(t *testing.T) {
	creds := &fakeCredentialProvider{err: domain.ErrReauthRequired}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, creds, &fakeSourceClient{}, &fakeSessionRepository{})

	_, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI))
	assert.ErrorIs(t, err, domain.ErrReauthRequired)
}

func TestExecuteFlagsSensitiveResponsePayloads(t *testing.T) {
	gate := &fakeGate{verdict: compliantVerdict(), scanTypes: []string{"ssn", "phone"}}
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {items: items(domain.SourceMedverusAI, 0.5)},
	}}
	service := newTestQueryService(gate, &fakeCredentialProvider{}, client, &fakeSessionRepository{})

	response, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI))
	require.NoError(t, err)

	assert.Contains(t, response.Flags, "phi_pattern:ssn")
	assert.Contains(t, response.Flags, "phi_pattern:phone")
}

func TestExecuteRecordsSession(t *testing.T) {
	client := &fakeSourceClient{behaviors: map[domain.SourceID]sourceBehavior{
		domain.SourceMedverusAI: {items: items(domain.SourceMedverusAI, 0.5)},
	}}
	sessions := &fakeSessionRepository{}
	service := newTestQueryService(&fakeGate{verdict: compliantVerdict()}, &fakeCredentialProvider{}, client, sessions)

	response, err := service.Execute(context.Background(), dispatchTo(domain.SourceMedverusAI))
	require.NoError(t, err)

	require.Len(t, sessions.appended, 1)
	session := sessions.appended[0]
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, response.QueryID, session.Response.QueryID)
	assert.Equal(t, []domain.SourceID{domain.SourceMedverusAI}, session.Sources)
	assert.Equal(t, response.Timestamp, session.Timestamp)
}
