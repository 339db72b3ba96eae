package ports

import (
	"context"

	"github.com/bnema/medverus-cli/internal/domain"
)

// CredentialStore persists the current credential record across process
// restarts. Load returns domain.ErrNoCredential when nothing is stored;
// Clear removes every slot atomically.
type CredentialStore interface {
	Load(ctx context.Context) (domain.CredentialRecord, error)
	Save(ctx context.Context, record domain.CredentialRecord) error
	Clear(ctx context.Context) error
}
