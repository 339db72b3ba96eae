// Package gormstore keeps the bounded, most-recent-first session history
// in a client-local SQLite database.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bnema/medverus-cli/internal/domain"
	"github.com/bnema/medverus-cli/internal/ports"
)

// DefaultCapacity bounds the history; the oldest sessions are evicted
// beyond it.
const DefaultCapacity = 50

type Store struct {
	db       *gorm.DB
	capacity int
}

var _ ports.SessionRepository = (*Store)(nil)

// Open connects to the history database at path and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: connect to %s: %w", path, err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("history: auto-migrate: %w", err)
	}
	return db, nil
}

func NewStore(db *gorm.DB, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{db: db, capacity: capacity}
}

// Append inserts the session and evicts the oldest rows beyond capacity
// in the same transaction, so concurrent appends cannot exceed the bound
// or lose entries.
func (s *Store) Append(ctx context.Context, session domain.SearchSession) error {
	row, err := toModel(session)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("history: insert session %s: %w", session.ID, err)
		}

		var surplus []string
		err := tx.Model(&SessionModel{}).
			Order("created_at DESC, id").
			Offset(s.capacity).
			Pluck("id", &surplus).Error
		if err != nil {
			return fmt.Errorf("history: find evictable sessions: %w", err)
		}
		if len(surplus) == 0 {
			return nil
		}
		if err := tx.Delete(&SessionModel{}, "id IN ?", surplus).Error; err != nil {
			return fmt.Errorf("history: evict %d sessions: %w", len(surplus), err)
		}
		return nil
	})
	return err
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.SearchSession, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	var rows []SessionModel
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history: list sessions: %w", err)
	}

	sessions := make([]domain.SearchSession, 0, len(rows))
	for _, row := range rows {
		session, err := fromModel(row)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func toModel(session domain.SearchSession) (SessionModel, error) {
	sources, err := json.Marshal(session.Sources)
	if err != nil {
		return SessionModel{}, fmt.Errorf("history: encode sources for session %s: %w", session.ID, err)
	}
	response, err := json.Marshal(session.Response)
	if err != nil {
		return SessionModel{}, fmt.Errorf("history: encode response for session %s: %w", session.ID, err)
	}

	return SessionModel{
		ID:        session.ID,
		Query:     session.Query,
		Sources:   string(sources),
		Response:  response,
		CreatedAt: session.Timestamp,
	}, nil
}

func fromModel(row SessionModel) (domain.SearchSession, error) {
	session := domain.SearchSession{
		ID:        row.ID,
		Query:     row.Query,
		Timestamp: row.CreatedAt,
	}

	if err := json.Unmarshal([]byte(row.Sources), &session.Sources); err != nil {
		return domain.SearchSession{}, fmt.Errorf("history: decode sources for session %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Response, &session.Response); err != nil {
		return domain.SearchSession{}, fmt.Errorf("history: decode response for session %s: %w", row.ID, err)
	}
	return session, nil
}
