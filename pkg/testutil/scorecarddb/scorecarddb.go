// Package scorecarddb seeds a small College Scorecard database for tests.
package scorecarddb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Years present in the fixture.
var Years = []string{"2013", "2014"}

// Tables created by Seed, for cleanup.
var Tables = []string{"College", "2013", "2014"}

var schema = []string{
	`CREATE TABLE "College" (
		"college_id" INTEGER PRIMARY KEY,
		"INSTNM" TEXT,
		"CITY" TEXT,
		"STABBR" TEXT,
		"CONTROL" INTEGER
	)`,
	`CREATE TABLE "2013" (
		"college_id" INTEGER PRIMARY KEY,
		"ADM_RATE" DOUBLE PRECISION,
		"UGDS" INTEGER
	)`,
	`CREATE TABLE "2014" (
		"college_id" INTEGER PRIMARY KEY,
		"ADM_RATE" DOUBLE PRECISION,
		"UGDS" INTEGER
	)`,
}

type row struct {
	table string
	cols  []string
	vals  []any
}

var rows = []row{
	{"College", []string{"college_id", "INSTNM", "CITY", "STABBR", "CONTROL"}, []any{1, "Acme College", "Springfield", "IL", 1}},
	{"College", []string{"college_id", "INSTNM", "CITY", "STABBR", "CONTROL"}, []any{2, "Beta University", "Boston", "MA", 2}},
	{"College", []string{"college_id", "INSTNM", "CITY", "STABBR", "CONTROL"}, []any{3, "Gamma Institute", nil, "CA", nil}},
	{"2013", []string{"college_id", "ADM_RATE", "UGDS"}, []any{1, 0.07, 1200}},
	{"2013", []string{"college_id", "ADM_RATE", "UGDS"}, []any{2, 0.35, 5000}},
	{"2014", []string{"college_id", "ADM_RATE", "UGDS"}, []any{1, 0.05, 1250}},
	{"2014", []string{"college_id", "ADM_RATE", "UGDS"}, []any{2, 0.3, 5100}},
	{"2014", []string{"college_id", "ADM_RATE", "UGDS"}, []any{3, nil, 800}},
}

// Seed creates and fills the fixture tables. driver selects the placeholder
// syntax: "postgres" uses $n, anything else uses ?.
func Seed(ctx context.Context, db *sql.DB, driver string) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create fixture table: %w", err)
		}
	}
	for _, r := range rows {
		quoted := make([]string, len(r.cols))
		marks := make([]string, len(r.cols))
		for i, c := range r.cols {
			quoted[i] = `"` + c + `"`
			if driver == "postgres" {
				marks[i] = fmt.Sprintf("$%d", i+1)
			} else {
				marks[i] = "?"
			}
		}
		q := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
			r.table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
		if _, err := db.ExecContext(ctx, q, r.vals...); err != nil {
			return fmt.Errorf("insert fixture row into %s: %w", r.table, err)
		}
	}
	return nil
}

// OpenSQLite returns a seeded in-memory SQLite database. A single connection
// keeps every query on the same in-memory database.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Seed(context.Background(), db, "sqlite"))
	return db
}
