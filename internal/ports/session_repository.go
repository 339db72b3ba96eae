package ports

import (
	"context"

	"github.com/bnema/medverus-cli/internal/domain"
)

// SessionRepository is the bounded, most-recent-first dispatch history.
// Append evicts the oldest entries beyond the store's capacity.
type SessionRepository interface {
	Append(ctx context.Context, session domain.SearchSession) error
	Recent(ctx context.Context, limit int) ([]domain.SearchSession, error)
}
