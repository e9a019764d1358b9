package promotion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognitedata/annotator/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates the persisted resolution store backed by Postgres.
func NewStore(db *sql.DB, logger *slog.Logger) Store {
	return &repo{
		db:     db,
		logger: logger.With("system", "promotion"),
	}
}

func (r *repo) Lookup(ctx context.Context, key string) (*Outcome, error) {
	q := `
		SELECT p.kind, p.entity_id
		FROM promotion_cache p
		WHERE p.key = $1`

	outcome, err := repository.QueryOne(ctx, r.db, q, []any{key}, scanOutcome)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("lookup promotion outcome %s: %w", key, err)
	}
	return &outcome, nil
}

func (r *repo) Save(ctx context.Context, key string, outcome Outcome) error {
	var entityID *string
	if outcome.EntityID != "" {
		entityID = &outcome.EntityID
	}

	q := `
		INSERT INTO promotion_cache(key, kind, entity_id, resolved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			kind = EXCLUDED.kind,
			entity_id = EXCLUDED.entity_id,
			resolved_at = EXCLUDED.resolved_at`

	if err := repository.ExecExpectOne(ctx, r.db, q, key, string(outcome.Kind), entityID, time.Now()); err != nil {
		return fmt.Errorf("save promotion outcome %s: %w", key, err)
	}
	return nil
}

func scanOutcome(s repository.Scanner) (Outcome, error) {
	var (
		o        Outcome
		entityID sql.NullString
	)

	if err := s.Scan(&o.Kind, &entityID); err != nil {
		return o, err
	}
	if entityID.Valid {
		o.EntityID = entityID.String
	}
	return o, nil
}
