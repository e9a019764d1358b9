package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cognitedata/annotator/pkg/repository"
)

var (
	errNotFound  = errors.New("record not found")
	errDuplicate = errors.New("record already exists")
)

func TestMapError(t *testing.T) {
	pgDuplicate := &pgconn.PgError{Code: "23505"}
	pgOther := &pgconn.PgError{Code: "23503"}
	passthrough := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"unique violation", pgDuplicate, errDuplicate},
		{"other pg error", pgOther, pgOther},
		{"passthrough", passthrough, passthrough},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := repository.MapError(tc.in, errNotFound, errDuplicate)
			if tc.want == nil {
				if got != nil {
					t.Errorf("MapError = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Errorf("MapError = %v, want %v", got, tc.want)
			}
		})
	}
}

// fakeExecutor scripts ExecContext outcomes for the exec helpers.
type fakeExecutor struct {
	affected int64
	err      error
}

func (f *fakeExecutor) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return driver.RowsAffected(f.affected), nil
}

func TestExecExpectOne(t *testing.T) {
	ctx := context.Background()

	if err := repository.ExecExpectOne(ctx, &fakeExecutor{affected: 1}, "DELETE FROM t"); err != nil {
		t.Errorf("ExecExpectOne with one row: %v", err)
	}

	if err := repository.ExecExpectOne(ctx, &fakeExecutor{affected: 0}, "DELETE FROM t"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ExecExpectOne with zero rows = %v, want ErrNoRows", err)
	}

	execErr := errors.New("connection closed")
	if err := repository.ExecExpectOne(ctx, &fakeExecutor{err: execErr}, "DELETE FROM t"); !errors.Is(err, execErr) {
		t.Errorf("exec error = %v, want %v", err, execErr)
	}
}
