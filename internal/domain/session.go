package domain

import "time"

// SearchSession is one completed dispatch as recorded in the bounded,
// most-recent-first history.
type SearchSession struct {
	ID        string
	Query     string
	Sources   []SourceID
	Response  MergedQueryResponse
	Timestamp time.Time
}
