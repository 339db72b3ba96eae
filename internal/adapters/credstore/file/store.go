// Package file persists the credential record as a single mode-0600 TOML
// file. The four slots (access token, rotation token, absolute expiry,
// user info) live in one record so they are saved and cleared together.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bnema/medverus-cli/internal/domain"
	"github.com/bnema/medverus-cli/internal/ports"
)

const (
	storeDirMode    = 0o700
	credentialMode  = 0o600
	tempFilePattern = ".credentials-*.toml.tmp"
)

type record struct {
	AccessToken   string     `toml:"access_token"`
	RotationToken string     `toml:"rotation_token,omitempty"`
	ExpiresAt     time.Time  `toml:"expires_at"`
	User          userRecord `toml:"user"`
}

type userRecord struct {
	ID    string `toml:"id"`
	Email string `toml:"email"`
	Tier  string `toml:"tier"`
}

type Store struct {
	path string
	mu   sync.RWMutex
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

func (s *Store) Load(ctx context.Context) (domain.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.CredentialRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.CredentialRecord{}, domain.ErrNoCredential
		}
		return domain.CredentialRecord{}, fmt.Errorf("read credential file: %w", err)
	}

	var stored record
	if err := toml.Unmarshal(data, &stored); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("decode credential file: %w", err)
	}
	if stored.AccessToken == "" {
		return domain.CredentialRecord{}, domain.ErrNoCredential
	}

	return domain.CredentialRecord{
		AccessToken:   stored.AccessToken,
		RotationToken: stored.RotationToken,
		ExpiresAt:     stored.ExpiresAt,
		User: domain.UserInfo{
			ID:    stored.User.ID,
			Email: stored.User.Email,
			Tier:  domain.Tier(stored.User.Tier),
		},
	}, nil
}

func (s *Store) Save(ctx context.Context, credential domain.CredentialRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := toml.Marshal(record{
		AccessToken:   credential.AccessToken,
		RotationToken: credential.RotationToken,
		ExpiresAt:     credential.ExpiresAt,
		User: userRecord{
			ID:    credential.User.ID,
			Email: credential.User.Email,
			Tier:  string(credential.User.Tier),
		},
	})
	if err != nil {
		return fmt.Errorf("encode credential record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}

	// Write-then-rename so a crash mid-save never leaves a partial record.
	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tempPath := tempFile.Name()

	if err := tempFile.Chmod(credentialMode); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("chmod temp credential file: %w", err)
	}
	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp credential file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace credential file: %w", err)
	}

	return nil
}

// Clear removes the whole record; every slot disappears together.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}
