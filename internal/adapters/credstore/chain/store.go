// Package chain composes two credential stores so the client keeps
// working when the preferred backend is unavailable. Clear runs against
// both backends: a logout must leave no slot behind anywhere.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/medverus-cli/internal/domain"
	"github.com/bnema/medverus-cli/internal/ports"
)

type Store struct {
	primary  ports.CredentialStore
	fallback ports.CredentialStore
}

var _ ports.CredentialStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credential store is nil")
	errNilFallbackStore = errors.New("fallback credential store is nil")
)

func NewStore(primary ports.CredentialStore, fallback ports.CredentialStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func (s *Store) Load(ctx context.Context) (domain.CredentialRecord, error) {
	record, err := s.primary.Load(ctx)
	if err == nil {
		return record, nil
	}
	if shouldSkipFallback(err) {
		return domain.CredentialRecord{}, err
	}

	fallbackRecord, fallbackErr := s.fallback.Load(ctx)
	if fallbackErr == nil {
		return fallbackRecord, nil
	}
	if errors.Is(err, domain.ErrNoCredential) && errors.Is(fallbackErr, domain.ErrNoCredential) {
		return domain.CredentialRecord{}, domain.ErrNoCredential
	}

	return domain.CredentialRecord{}, fmt.Errorf("primary backend load failed: %w; fallback backend load failed: %w", err, fallbackErr)
}

func (s *Store) Save(ctx context.Context, record domain.CredentialRecord) error {
	err := s.primary.Save(ctx, record)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Save(ctx, record)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend save failed: %w; fallback backend save failed: %w", err, fallbackErr)
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.primary.Clear(ctx)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Clear(ctx)
	if err == nil && fallbackErr == nil {
		return nil
	}
	if err != nil && fallbackErr != nil {
		return fmt.Errorf("primary backend clear failed: %w; fallback backend clear failed: %w", err, fallbackErr)
	}
	if err != nil {
		return fmt.Errorf("primary backend clear failed: %w", err)
	}
	return fmt.Errorf("fallback backend clear failed: %w", fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
