package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// NewMockDB returns a sqlmock database that matches statements exactly
// (whitespace normalised) and fails the test on unmet expectations.
func NewMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet Snowflake expectations: %v", err)
		}
	})
	return db, mock
}

// ExpectExecs expects each statement in order, each succeeding.
func ExpectExecs(mock sqlmock.Sqlmock, statements ...string) {
	for _, stmt := range statements {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

// RowsLoaded returns a COPY INTO result set with one row per file.
func RowsLoaded(counts ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"file", "status", "rows_parsed", "rows_loaded"})
	for _, n := range counts {
		rows.AddRow("data.gz", "LOADED", n, n)
	}
	return rows
}
