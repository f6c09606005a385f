package db

import "time"

// Source is a provenance record for where a sentence was found.
type Source struct {
	ID         int64
	SourceType string
	Title      string
	Author     string
	Website    string
	URL        string
	Meta       string
	AddedAt    time.Time
}

// Sentence origins stored with each cloze sentence.
const (
	OriginCorpus    = "corpus"
	OriginGenerated = "generated"
	OriginManual    = "manual"
)

// SessionRecord is a persisted session summary.
type SessionRecord struct {
	SessionID string
	LearnerID int64
	StartedAt time.Time
	EndedAt   time.Time
	// Summary is the JSON-encoded session.Summary.
	Summary []byte
}
