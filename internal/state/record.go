// Package state implements the annotation state machine for documents
// moving through the pipeline. Each document under annotation has exactly
// one record whose version field is the sole concurrency-control primitive:
// every write is a conditional update on (document_id, version), and a
// failed condition means another worker claimed the record.
package state

import "time"

// Status is the lifecycle state of a document under annotation.
type Status string

// Lifecycle states. New and Retry are picked up by the launch pass,
// Processing by the finalize pass. Annotated and Failed are terminal.
const (
	StatusNew        Status = "New"
	StatusProcessing Status = "Processing"
	StatusRetry      Status = "Retry"
	StatusAnnotated  Status = "Annotated"
	StatusFailed     Status = "Failed"
)

// Terminal reports whether no further automatic processing applies.
func (s Status) Terminal() bool {
	return s == StatusAnnotated || s == StatusFailed
}

var legalTransitions = map[Status][]Status{
	StatusNew:   {StatusProcessing},
	StatusRetry: {StatusProcessing},
	// Processing → Processing releases a finalize claim without advancing.
	StatusProcessing: {StatusProcessing, StatusAnnotated, StatusRetry, StatusFailed},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Record is the persisted state of one document under annotation.
// Version increments on every successful write and guards all transitions.
type Record struct {
	DocumentID     string    `json:"document_id"`
	ScopeKey       string    `json:"scope_key"`
	SecondaryKey   *string   `json:"secondary_key,omitempty"`
	Status         Status    `json:"status"`
	DetectionJobID *string   `json:"detection_job_id,omitempty"`
	PatternJobID   *string   `json:"pattern_job_id,omitempty"`
	PageOffset     int       `json:"page_offset"`
	PageCount      *int      `json:"page_count,omitempty"`
	RetryCount     int       `json:"retry_count"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupKey returns the scope grouping key for batch formation, combining
// the primary and optional secondary scope.
func (r *Record) GroupKey() string {
	if r.SecondaryKey != nil && *r.SecondaryKey != "" {
		return r.ScopeKey + "/" + *r.SecondaryKey
	}
	return r.ScopeKey
}

// JobHandle returns the handle that identifies the record's submitted
// batch: the detection job when present, otherwise the pattern job.
func (r *Record) JobHandle() string {
	if r.DetectionJobID != nil {
		return *r.DetectionJobID
	}
	if r.PatternJobID != nil {
		return *r.PatternJobID
	}
	return ""
}

// FirstPass reports whether this record has not yet produced annotations,
// which controls clean-before-write semantics during finalize.
func (r *Record) FirstPass() bool {
	return r.PageOffset == 0
}

// CreateCommand carries the data needed to register a document for annotation.
type CreateCommand struct {
	DocumentID   string  `json:"document_id"`
	ScopeKey     string  `json:"scope_key"`
	SecondaryKey *string `json:"secondary_key,omitempty"`
	PageCount    *int    `json:"page_count,omitempty"`
}
