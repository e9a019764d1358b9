// Package edges implements the annotation-edge domain: candidate matches
// between a document region and a target entity. Entity-mode matches carry
// a resolved target; pattern-mode matches are written provisionally against
// a placeholder sink and resolved later by promotion.
package edges

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the review state of an annotation edge.
type Status string

// Review states. Suggested edges await promotion or manual review.
const (
	StatusSuggested Status = "Suggested"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
)

// Process marker tags applied by the promotion pass.
const (
	TagPromoteAttempted = "PromoteAttempted"
	TagPromotedAuto     = "PromotedAuto"
	TagAmbiguousMatch   = "AmbiguousMatch"
)

// Region locates a match within a document page.
type Region struct {
	Page int     `json:"page"`
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Key returns a stable identity for deduplication across detection modes:
// two matches reporting the same page and bounding box describe the same
// text occurrence.
func (r Region) Key() string {
	return fmt.Sprintf("%d:%.4f:%.4f:%.4f:%.4f", r.Page, r.XMin, r.YMin, r.XMax, r.YMax)
}

// Edge is one candidate match. TargetEntity is nil for provisional
// pattern-mode edges awaiting promotion.
type Edge struct {
	ID             uuid.UUID `json:"id"`
	SourceDocument string    `json:"source_document"`
	TargetEntity   *string   `json:"target_entity,omitempty"`
	Text           string    `json:"text"`
	Confidence     float64   `json:"confidence"`
	Region         Region    `json:"region"`
	Status         Status    `json:"status"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Provisional reports whether this edge still points at the placeholder sink.
func (e *Edge) Provisional() bool {
	return e.TargetEntity == nil
}

// HasTag reports whether the edge carries the given process marker.
func (e *Edge) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}
