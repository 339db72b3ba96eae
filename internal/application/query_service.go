package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/medverus-cli/internal/domain"
	"github.com/bnema/medverus-cli/internal/ports"
)

const (
	// PerSourceTimeout bounds each fan-out branch independently; an
	// overrun fails that branch only and never cancels its siblings.
	PerSourceTimeout = 5 * time.Second

	// MergeCap is the maximum number of results on a merged response.
	MergeCap = 10
)

// CredentialProvider is the slice of the lifecycle manager the dispatcher
// needs: one shared credential fetch per dispatch.
type CredentialProvider interface {
	GetValidCredential(ctx context.Context) (domain.CredentialRecord, error)
}

// DispatchRequest is one multi-source query as submitted by the caller.
type DispatchRequest struct {
	Query      string
	Sources    []domain.SourceID
	Context    string
	MaxResults int
	Client     ClientContext
}

// ClientContext identifies the caller for the compliance gate's audit and
// plausibility checks.
type ClientContext struct {
	Identity     string
	Origin       string
	Region       string
	ForwardedFor string
}

// QueryService fans one query out to multiple content sources, gated by
// compliance validation and authenticated by the credential provider.
type QueryService struct {
	gate     ports.Gate
	creds    CredentialProvider
	client   ports.SourceClient
	sessions ports.SessionRepository
	clock    ports.Clock

	perSourceTimeout time.Duration
}

func NewQueryService(gate ports.Gate, creds CredentialProvider, client ports.SourceClient, sessions ports.SessionRepository, clock ports.Clock) *QueryService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &QueryService{
		gate:             gate,
		creds:            creds,
		client:           client,
		sessions:         sessions,
		clock:            clock,
		perSourceTimeout: PerSourceTimeout,
	}
}

// Execute runs one dispatch: compliance pre-validation, a single shared
// credential fetch, one concurrent call per source with independent
// timeouts, then a deterministic merge. Partial failures are tolerated;
// the dispatch fails only when every branch fails.
func (s *QueryService) Execute(ctx context.Context, req DispatchRequest) (domain.MergedQueryResponse, error) {
	if len(req.Sources) == 0 {
		return domain.MergedQueryResponse{}, domain.ErrNoSources
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = MergeCap
	}

	started := s.clock.Now()

	verdict := s.gate.Evaluate(domain.RequestContext{
		Method:         "POST",
		Path:           "/api/v1/query",
		Body:           req.Query + " " + req.Context,
		ClientIdentity: req.Client.Identity,
		Origin:         req.Client.Origin,
		Region:         req.Client.Region,
		ForwardedFor:   req.Client.ForwardedFor,
		MaxResults:     maxResults,
	})
	if verdict.Risk == domain.RiskCritical {
		return domain.MergedQueryResponse{}, fmt.Errorf("%w: %v", domain.ErrComplianceRejected, verdict.Categories())
	}

	// One credential fetch shared by every branch of this dispatch.
	record, err := s.creds.GetValidCredential(ctx)
	if err != nil {
		return domain.MergedQueryResponse{}, fmt.Errorf("acquire credential: %w", err)
	}

	queryID := uuid.NewString()
	results, branchErrs := s.fanOut(ctx, record.AccessToken, queryID, req, maxResults)

	response, err := s.merge(queryID, req, verdict, results, branchErrs, started)
	if err != nil {
		return domain.MergedQueryResponse{}, err
	}

	session := domain.SearchSession{
		ID:        uuid.NewString(),
		Query:     req.Query,
		Sources:   req.Sources,
		Response:  response,
		Timestamp: response.Timestamp,
	}
	if err := s.sessions.Append(ctx, session); err != nil {
		return domain.MergedQueryResponse{}, fmt.Errorf("append search session: %w", err)
	}

	return response, nil
}

func (s *QueryService) fanOut(ctx context.Context, accessToken, queryID string, req DispatchRequest, maxResults int) ([]*domain.SourceResult, []error) {
	results := make([]*domain.SourceResult, len(req.Sources))
	branchErrs := make([]error, len(req.Sources))

	var wg sync.WaitGroup
	for i, source := range req.Sources {
		wg.Add(1)
		go func(i int, source domain.SourceID) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, s.perSourceTimeout)
			defer cancel()

			result, err := s.client.Query(callCtx, accessToken, domain.SourceQuery{
				Query:      req.Query,
				Source:     source,
				Context:    req.Context,
				MaxResults: maxResults,
			})
			if err != nil {
				branchErrs[i] = fmt.Errorf("source %s: %w", source, err)
				return
			}

			result.QueryID = queryID
			result.Source = source
			s.inspectResult(&result)
			results[i] = &result
		}(i, source)
	}
	wg.Wait()

	return results, branchErrs
}

// inspectResult runs the gate's sensitive-pattern scan over the branch's
// returned text and records detections as safety flags.
func (s *QueryService) inspectResult(result *domain.SourceResult) {
	var text string
	for _, item := range result.Items {
		text += item.Title + " " + item.Content + " "
	}
	for _, patternType := range s.gate.ScanTypes(text) {
		result.SafetyFlags = append(result.SafetyFlags, "phi_pattern:"+patternType)
	}
}

func (s *QueryService) merge(queryID string, req DispatchRequest, verdict domain.ComplianceVerdict, results []*domain.SourceResult, branchErrs []error, started time.Time) (domain.MergedQueryResponse, error) {
	var (
		items     []domain.ResultItem
		citations []domain.Citation
		flags     []string
		succeeded int
	)

	// Collect in requested-source order so the stable sort below breaks
	// confidence ties deterministically.
	for _, result := range results {
		if result == nil {
			continue
		}
		succeeded++
		items = append(items, result.Items...)
		citations = append(citations, result.Citations...)
		flags = appendUnique(flags, result.SafetyFlags)
	}

	if succeeded == 0 {
		return domain.MergedQueryResponse{}, fmt.Errorf("%w: %w", domain.ErrAllSourcesFailed, errors.Join(branchErrs...))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Confidence > items[j].Confidence
	})
	if len(items) > MergeCap {
		items = items[:MergeCap]
	}

	if !verdict.Compliant {
		flags = appendUnique(flags, []string{"compliance:" + verdict.Risk.String()})
	}

	now := s.clock.Now()
	return domain.MergedQueryResponse{
		QueryID:   queryID,
		Query:     req.Query,
		Source:    req.Sources[0],
		Sources:   req.Sources,
		Results:   items,
		Citations: citations,
		Flags:     flags,
		Duration:  now.Sub(started),
		Timestamp: now,
	}, nil
}

func appendUnique(flags []string, additions []string) []string {
	for _, addition := range additions {
		exists := false
		for _, flag := range flags {
			if flag == addition {
				exists = true
				break
			}
		}
		if !exists {
			flags = append(flags, addition)
		}
	}
	return flags
}
