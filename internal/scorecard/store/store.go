// Package store reads the College Scorecard database: one global table of
// per-college attributes and one table per year, all keyed by college_id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"cscexplorer/internal/domain"
	"cscexplorer/pkg/platform/sentinel"
)

// GlobalTable holds the per-college attributes that do not vary by year.
const GlobalTable = "College"

// Column is one column of a scorecard table.
type Column struct {
	Name string
	Type domain.ValueType
}

// College is one entry of the college listing.
type College struct {
	ID   any
	Name string
}

// Pair is one non-null value of a column.
type Pair struct {
	CollegeID any
	Value     any
}

// Store runs read-only queries against a scorecard database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects with driver "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: db, dialect: d}, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tables lists user tables in name order.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Columns lists the columns of table in declaration order.
func (s *Store) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		out = append(out, Column{Name: name, Type: s.dialect.mapType(declared)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, sentinel.ErrNotFound)
	}
	return out, nil
}

// Colleges lists every college ordered by name.
func (s *Store) Colleges(ctx context.Context) ([]College, error) {
	q := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		quoteIdent(domain.EntityIDField), quoteIdent("INSTNM"), quoteIdent(GlobalTable), quoteIdent("INSTNM"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	defer rows.Close()

	var out []College
	for rows.Next() {
		var id any
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan college: %w", err)
		}
		out = append(out, College{ID: normalize(id), Name: name.String})
	}
	return out, rows.Err()
}

// CollegeIDs lists every college id as a string.
func (s *Store) CollegeIDs(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", quoteIdent(domain.EntityIDField), quoteIdent(GlobalTable))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list college ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan college id: %w", err)
		}
		if str, ok := domain.EntityIDFromWire(normalize(id)); ok {
			out = append(out, str)
		}
	}
	return out, rows.Err()
}

// GlobalRow returns the non-null global attributes of one college.
func (s *Store) GlobalRow(ctx context.Context, collegeID string) (map[string]any, error) {
	return s.row(ctx, GlobalTable, collegeID)
}

// YearRow returns the non-null attributes of one college for one year.
// A missing row yields sentinel.ErrNotFound.
func (s *Store) YearRow(ctx context.Context, year, collegeID string) (map[string]any, error) {
	return s.row(ctx, year, collegeID)
}

func (s *Store) row(ctx context.Context, table, collegeID string) (map[string]any, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		quoteIdent(table), quoteIdent(domain.EntityIDField), s.dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, q, idArg(collegeID))
	if err != nil {
		return nil, fmt.Errorf("select %s row: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s row for %s: %w", table, collegeID, sentinel.ErrNotFound)
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan %s row: %w", table, err)
	}
	out := make(map[string]any, len(cols))
	for i, col := range cols {
		if v := normalize(vals[i]); v != nil {
			out[col] = v
		}
	}
	return out, rows.Err()
}

// ColumnValues returns every non-null value of column in table, ordered by college id.
func (s *Store) ColumnValues(ctx context.Context, table, column string) ([]Pair, error) {
	col := quoteIdent(column)
	id := quoteIdent(domain.EntityIDField)
	q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		id, col, quoteIdent(table), col, id)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var cid, v any
		if err := rows.Scan(&cid, &v); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
		}
		out = append(out, Pair{CollegeID: normalize(cid), Value: normalize(v)})
	}
	return out, rows.Err()
}

// normalize turns driver byte slices into strings so values encode as JSON text.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// idArg binds numeric college ids as integers so Postgres integer columns
// compare without a cast.
func idArg(collegeID string) any {
	if n, err := strconv.ParseInt(strings.TrimSpace(collegeID), 10, 64); err == nil {
		return n
	}
	return collegeID
}

// IsNotFound reports whether err means the requested row or table does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
