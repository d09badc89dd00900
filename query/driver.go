package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shibukawa/sqlasm"
)

// NormalizeDriverName maps user-facing driver names to registered database/sql drivers.
func NormalizeDriverName(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return "pgx"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

// DialectFromDriver returns the SQL dialect spoken by a driver.
func DialectFromDriver(driver string) (sqlasm.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mariadb":
		return sqlasm.DialectMariaDB, nil
	case "mysql":
		return sqlasm.DialectMySQL, nil
	case "postgres", "postgresql", "pgx":
		return sqlasm.DialectPostgres, nil
	case "sqlite", "sqlite3":
		return sqlasm.DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: driver %q", sqlasm.ErrUnsupportedDialect, driver)
	}
}

// Open opens a database and checks the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(NormalizeDriverName(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	return db, nil
}
