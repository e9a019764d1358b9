package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cognitedata/annotator/pkg/query"
	"github.com/cognitedata/annotator/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a state record repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "state"),
	}
}

func (r *repo) Find(ctx context.Context, documentID string) (*Record, error) {
	q, args := query.NewBuilder(projection).BuildSingle("DocumentID", documentID)

	rec, err := repository.QueryOne(ctx, r.db, q, args, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rec, nil
}

func (r *repo) ListReady(ctx context.Context, limit int) ([]Record, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereIn("Status", []any{StatusNew, StatusRetry}).
		BuildLimit(limit)

	recs, err := repository.QueryMany(ctx, r.db, q, args, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query ready records: %w", err)
	}
	return recs, nil
}

func (r *repo) ListProcessing(ctx context.Context, limit int) ([]Record, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("Status", StatusProcessing).
		BuildLimit(limit)

	recs, err := repository.QueryMany(ctx, r.db, q, args, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query processing records: %w", err)
	}
	return recs, nil
}

func (r *repo) ListByJob(ctx context.Context, jobID string) ([]Record, error) {
	// A batch submitted without candidate entities carries only a pattern
	// job, so the handle may live in either column.
	q := `
		SELECT s.document_id, s.scope_key, s.secondary_key, s.status, s.detection_job_id,
		       s.pattern_job_id, s.page_offset, s.page_count, s.retry_count, s.error_message,
		       s.version, s.created_at, s.updated_at
		FROM annotation_states s
		WHERE s.detection_job_id = $1 OR s.pattern_job_id = $1
		ORDER BY s.updated_at ASC`

	recs, err := repository.QueryMany(ctx, r.db, q, []any{jobID}, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query records by job %s: %w", jobID, err)
	}
	return recs, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Record, error) {
	q := `
		INSERT INTO annotation_states(document_id, scope_key, secondary_key, status, page_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING document_id, scope_key, secondary_key, status, detection_job_id,
		          pattern_job_id, page_offset, page_count, retry_count, error_message,
		          version, created_at, updated_at`

	insertArgs := []any{
		cmd.DocumentID,
		cmd.ScopeKey,
		cmd.SecondaryKey,
		StatusNew,
		cmd.PageCount,
	}

	rec, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Record, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanRecord)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("state record created", "document", rec.DocumentID, "scope", rec.ScopeKey)
	return &rec, nil
}

func (r *repo) Transition(ctx context.Context, rec *Record, to Status, mutate Mutation) (*Record, error) {
	if !CanTransition(rec.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, rec.Status, to)
	}

	next := *rec
	next.Status = to
	if mutate != nil {
		mutate(&next)
	}

	q := `
		UPDATE annotation_states
		SET status = $3, detection_job_id = $4, pattern_job_id = $5,
		    page_offset = $6, page_count = $7, retry_count = $8, error_message = $9,
		    version = version + 1, updated_at = NOW()
		WHERE document_id = $1 AND version = $2
		RETURNING document_id, scope_key, secondary_key, status, detection_job_id,
		          pattern_job_id, page_offset, page_count, retry_count, error_message,
		          version, created_at, updated_at`

	updateArgs := []any{
		rec.DocumentID,
		rec.Version,
		next.Status,
		next.DetectionJobID,
		next.PatternJobID,
		next.PageOffset,
		next.PageCount,
		next.RetryCount,
		next.ErrorMessage,
	}

	updated, err := repository.QueryOne(ctx, r.db, q, updateArgs, scanRecord)
	if err != nil {
		// Zero rows means the guard failed: another worker holds a newer
		// version, or the record was removed by external cleanup.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("transition %s: %w", rec.DocumentID, err)
	}

	r.logger.Debug(
		"state transition",
		"document", updated.DocumentID,
		"from", rec.Status,
		"to", updated.Status,
		"version", updated.Version,
	)

	return &updated, nil
}
