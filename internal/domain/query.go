package domain

import "time"

type SourceID string

const (
	SourceMedverusAI SourceID = "medverus_ai"
	SourcePubmed     SourceID = "pubmed"
	SourceWebSearch  SourceID = "web_search"
	SourceFileUpload SourceID = "file_upload"
)

// SourceQuery is one fan-out branch of a dispatch.
type SourceQuery struct {
	Query      string
	Source     SourceID
	Context    string
	MaxResults int
}

type ResultItem struct {
	Title      string
	Content    string
	URL        string
	Confidence float64
	Source     SourceID
}

type Citation struct {
	Title  string
	URL    string
	Source SourceID
}

// SourceResult is the outcome of one successful branch. A failed or
// timed-out branch produces no SourceResult at all.
type SourceResult struct {
	QueryID     string
	Source      SourceID
	Items       []ResultItem
	Citations   []Citation
	SafetyFlags []string
	Duration    time.Duration
}

// MergedQueryResponse combines the surviving branches of one dispatch.
// Results are sorted by descending confidence and capped.
type MergedQueryResponse struct {
	QueryID   string
	Query     string
	Source    SourceID // primary (first requested) source, for attribution
	Sources   []SourceID
	Results   []ResultItem
	Citations []Citation
	Flags     []string
	Duration  time.Duration
	Timestamp time.Time
}
