package store

import (
	"fmt"
	"strings"

	"cscexplorer/internal/domain"
)

// dialect isolates the catalog queries and placeholder syntax of each driver.
type dialect struct {
	driver       string
	tablesQuery  string
	columnsQuery string
	placeholder  func(n int) string
	mapType      func(declared string) domain.ValueType
}

var sqliteDialect = dialect{
	driver: "sqlite",
	tablesQuery: `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`,
	columnsQuery: `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`,
	placeholder:  func(int) string { return "?" },
	mapType:      sqliteAffinity,
}

var postgresDialect = dialect{
	driver: "pgx",
	tablesQuery: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columnsQuery: `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	mapType:     postgresType,
}

func dialectFor(name string) (dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver %q", name)
	}
}

// sqliteAffinity applies SQLite's column affinity rules to a declared type.
func sqliteAffinity(declared string) domain.ValueType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return domain.TypeInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return domain.TypeText
	case t == "", strings.Contains(t, "BLOB"):
		return domain.TypeText
	default:
		return domain.TypeReal
	}
}

func postgresType(declared string) domain.ValueType {
	switch strings.ToLower(declared) {
	case "smallint", "integer", "bigint":
		return domain.TypeInteger
	case "real", "double precision", "numeric", "decimal":
		return domain.TypeReal
	default:
		return domain.TypeText
	}
}

// quoteIdent quotes a table or column name. Names come from the database
// catalog, never from user input.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
