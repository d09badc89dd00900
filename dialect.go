package sqlasm

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Dialect represents supported database dialects
// This type is shared across all packages
type Dialect string

const (
	DialectMariaDB  Dialect = "mariadb"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect normalizes a dialect or driver name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mariadb":
		return DialectMariaDB, nil
	case "mysql":
		return DialectMySQL, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDialect, name)
	}
}

// IsMySQLFamily reports whether the dialect follows MySQL lexical rules
// (backtick identifiers, '#' comments, backslash escapes).
func (d Dialect) IsMySQLFamily() bool {
	return d == DialectMariaDB || d == DialectMySQL
}

// FoldName returns the case-folded form under which CTE names compare equal.
func FoldName(name string) string {
	return cases.Fold().String(name)
}
