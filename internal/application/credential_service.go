package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bnema/medverus-cli/internal/domain"
	"github.com/bnema/medverus-cli/internal/ports"
)

// RefreshMargin is how close to expiry a cached credential may get before
// GetValidCredential refreshes it transparently.
const RefreshMargin = 60 * time.Second

const refreshFlightKey = "refresh"

// CredentialService owns the credential lifecycle: the cached current
// credential, the durable storage mirror, and the single in-flight refresh
// that concurrent callers coalesce onto.
type CredentialService struct {
	store ports.CredentialStore
	auth  ports.AuthClient
	clock ports.Clock

	mu     sync.Mutex
	cached *domain.CredentialRecord
	loaded bool

	flight singleflight.Group
}

func NewCredentialService(store ports.CredentialStore, auth ports.AuthClient, clock ports.Clock) *CredentialService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &CredentialService{
		store: store,
		auth:  auth,
		clock: clock,
	}
}

// GetValidCredential returns the cached credential unless it is absent or
// within RefreshMargin of expiry, in which case it refreshes first. Any
// refresh failure invalidates local state and surfaces as
// domain.ErrReauthRequired.
func (s *CredentialService) GetValidCredential(ctx context.Context) (domain.CredentialRecord, error) {
	record, ok, err := s.current(ctx)
	if err != nil {
		return domain.CredentialRecord{}, err
	}
	if ok && s.clock.Now().Add(RefreshMargin).Before(record.ExpiresAt) {
		return record, nil
	}

	refreshed, err := s.Refresh(ctx)
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("%w: %w", domain.ErrReauthRequired, err)
	}
	return refreshed, nil
}

// Refresh exchanges the rotation token for a fresh credential. Concurrent
// calls coalesce onto one in-flight operation; every waiter receives the
// identical result or the identical error. On failure all local credential
// state is invalidated.
func (s *CredentialService) Refresh(ctx context.Context) (domain.CredentialRecord, error) {
	result, err, _ := s.flight.Do(refreshFlightKey, func() (any, error) {
		record, err := s.refreshOnce(ctx)
		if err != nil {
			if invalidateErr := s.Invalidate(ctx); invalidateErr != nil {
				return nil, fmt.Errorf("invalidate after failed refresh: %w", invalidateErr)
			}
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		return domain.CredentialRecord{}, err
	}
	return result.(domain.CredentialRecord), nil
}

func (s *CredentialService) refreshOnce(ctx context.Context) (domain.CredentialRecord, error) {
	record, ok, err := s.current(ctx)
	if err != nil {
		return domain.CredentialRecord{}, err
	}
	if ok && s.clock.Now().Add(RefreshMargin).Before(record.ExpiresAt) {
		// A coalesced refresh that finished between the caller's staleness
		// check and this flight already produced a fresh credential.
		return record, nil
	}
	if !ok || record.RotationToken == "" {
		return domain.CredentialRecord{}, domain.ErrNoRotationToken
	}

	grant, err := s.auth.Refresh(ctx, record.RotationToken)
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("%w: %w", domain.ErrRefreshRejected, err)
	}

	return s.StoreGrant(ctx, grant)
}

// StoreGrant converts a token grant to a credential record (expires_in
// becomes an absolute expiry at receipt time), persists it, and makes it
// the current credential. Used by both refresh and the initial exchange.
func (s *CredentialService) StoreGrant(ctx context.Context, grant domain.TokenGrant) (domain.CredentialRecord, error) {
	record := domain.CredentialRecord{
		AccessToken:   grant.AccessToken,
		RotationToken: grant.RotationToken,
		ExpiresAt:     s.clock.Now().Add(time.Duration(grant.ExpiresIn) * time.Second),
		User:          grant.User,
	}

	if err := s.store.Save(ctx, record); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("persist credential record: %w", err)
	}

	s.mu.Lock()
	s.cached = &record
	s.loaded = true
	s.mu.Unlock()

	return record, nil
}

// Invalidate drops the cached credential and clears durable storage.
func (s *CredentialService) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential storage: %w", err)
	}
	return nil
}

// current returns the cached record, loading the storage mirror on first
// use after process start.
func (s *CredentialService) current(ctx context.Context) (domain.CredentialRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		if s.cached == nil {
			return domain.CredentialRecord{}, false, nil
		}
		return *s.cached, true, nil
	}

	record, err := s.store.Load(ctx)
	s.loaded = true
	if err != nil {
		if errors.Is(err, domain.ErrNoCredential) {
			s.cached = nil
			return domain.CredentialRecord{}, false, nil
		}
		return domain.CredentialRecord{}, false, fmt.Errorf("load credential record: %w", err)
	}

	s.cached = &record
	return record, true, nil
}
