package state

import (
	"github.com/cognitedata/annotator/pkg/query"
	"github.com/cognitedata/annotator/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "annotation_states", "s").
	Project("document_id", "DocumentID").
	Project("scope_key", "ScopeKey").
	Project("secondary_key", "SecondaryKey").
	Project("status", "Status").
	Project("detection_job_id", "DetectionJobID").
	Project("pattern_job_id", "PatternJobID").
	Project("page_offset", "PageOffset").
	Project("page_count", "PageCount").
	Project("retry_count", "RetryCount").
	Project("error_message", "ErrorMessage").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "UpdatedAt",
	Descending: false,
}

func scanRecord(s repository.Scanner) (Record, error) {
	var r Record
	err := s.Scan(
		&r.DocumentID,
		&r.ScopeKey,
		&r.SecondaryKey,
		&r.Status,
		&r.DetectionJobID,
		&r.PatternJobID,
		&r.PageOffset,
		&r.PageCount,
		&r.RetryCount,
		&r.ErrorMessage,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}
