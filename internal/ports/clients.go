package ports

import (
	"context"

	"github.com/bnema/medverus-cli/internal/domain"
)

// AuthClient talks to the platform's credential exchange and refresh
// endpoints.
type AuthClient interface {
	Exchange(ctx context.Context, proof domain.AuthorizationProof) (domain.TokenGrant, error)
	Refresh(ctx context.Context, rotationToken string) (domain.TokenGrant, error)
}

// SourceClient issues one sub-query against a single content source.
type SourceClient interface {
	Query(ctx context.Context, accessToken string, query domain.SourceQuery) (domain.SourceResult, error)
}

// Gate pre-validates outbound requests and scans inbound payload text for
// sensitive patterns.
type Gate interface {
	Evaluate(req domain.RequestContext) domain.ComplianceVerdict
	ScanTypes(text string) []string
}
