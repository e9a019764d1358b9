package edges

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cognitedata/annotator/pkg/query"
	"github.com/cognitedata/annotator/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates an annotation edge repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "edges"),
	}
}

func (r *repo) WriteBatch(ctx context.Context, batch []Edge) error {
	if len(batch) == 0 {
		return nil
	}

	q := `
		INSERT INTO annotation_edges(
			id, source_document, target_entity, text, confidence,
			page, x_min, y_min, x_max, y_max, status, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		for _, e := range batch {
			id := e.ID
			if id == uuid.Nil {
				id = uuid.New()
			}

			tagsJSON, err := json.Marshal(e.Tags)
			if err != nil {
				return struct{}{}, fmt.Errorf("marshal tags: %w", err)
			}

			if _, err := tx.ExecContext(ctx, q,
				id,
				e.SourceDocument,
				e.TargetEntity,
				e.Text,
				e.Confidence,
				e.Region.Page,
				e.Region.XMin,
				e.Region.YMin,
				e.Region.XMax,
				e.Region.YMax,
				e.Status,
				tagsJSON,
			); err != nil {
				return struct{}{}, fmt.Errorf("insert edge for %s: %w", e.SourceDocument, err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("edges written", "count", len(batch))
	return nil
}

func (r *repo) CleanDocument(ctx context.Context, documentID string) (int, error) {
	result, err := r.db.ExecContext(
		ctx,
		"DELETE FROM annotation_edges WHERE source_document = $1",
		documentID,
	)
	if err != nil {
		return 0, fmt.Errorf("clean edges for %s: %w", documentID, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.logger.Info("stale edges removed", "document", documentID, "count", removed)
	}
	return int(removed), nil
}

func (r *repo) ListByDocument(ctx context.Context, documentID string) ([]Edge, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("SourceDocument", documentID).
		Build()

	list, err := repository.QueryMany(ctx, r.db, q, args, scanEdge)
	if err != nil {
		return nil, fmt.Errorf("query edges for %s: %w", documentID, err)
	}
	return list, nil
}

func (r *repo) ListPromotableTexts(ctx context.Context, limit int) ([]string, error) {
	q := `
		SELECT DISTINCT g.text
		FROM annotation_edges g
		WHERE g.target_entity IS NULL
		  AND g.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(g.tags) t WHERE t = $2
		  )
		ORDER BY g.text ASC
		LIMIT $3`

	scan := func(s repository.Scanner) (string, error) {
		var text string
		err := s.Scan(&text)
		return text, err
	}

	texts, err := repository.QueryMany(ctx, r.db, q, []any{StatusSuggested, TagPromoteAttempted, limit}, scan)
	if err != nil {
		return nil, fmt.Errorf("query promotable texts: %w", err)
	}
	return texts, nil
}

func (r *repo) ListProvisionalByText(ctx context.Context, text string) ([]Edge, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("Text", text).
		WhereNullable("TargetEntity", nil).
		WhereEquals("Status", StatusSuggested).
		Build()

	list, err := repository.QueryMany(ctx, r.db, q, args, scanEdge)
	if err != nil {
		return nil, fmt.Errorf("query provisional edges for %q: %w", text, err)
	}
	return list, nil
}

func (r *repo) UpdateGroup(ctx context.Context, text string, update GroupUpdate) (int, error) {
	tagsJSON, err := json.Marshal(update.Tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}

	q := `
		UPDATE annotation_edges
		SET status = $2,
		    target_entity = COALESCE($3, target_entity),
		    tags = tags || $4::jsonb,
		    updated_at = NOW()
		WHERE text = $1
		  AND target_entity IS NULL
		  AND status = $5`

	result, err := r.db.ExecContext(ctx, q, text, update.Status, update.Target, tagsJSON, StatusSuggested)
	if err != nil {
		return 0, fmt.Errorf("update edge group %q: %w", text, err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	r.logger.Info(
		"edge group resolved",
		"text", text,
		"status", update.Status,
		"count", updated,
	)
	return int(updated), nil
}
