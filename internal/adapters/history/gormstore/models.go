package gormstore

import "time"

// SessionModel is the GORM row for one recorded dispatch. Sources and the
// merged response are stored JSON-encoded; the bounded-history invariant
// is enforced at write time, not by the schema.
type SessionModel struct {
	ID        string `gorm:"primaryKey"`
	Query     string
	Sources   string
	Response  []byte
	CreatedAt time.Time `gorm:"index"`
}

func (SessionModel) TableName() string {
	return "search_sessions"
}

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&SessionModel{},
	}
}
