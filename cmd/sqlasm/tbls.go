package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	tblsconfig "github.com/k1LoW/tbls/config"

	"github.com/shibukawa/sqlasm"
)

// resolveDatabaseFromTbls reads the dsn of a tbls configuration (.tbls.yml)
// placed next to the sqlasm configuration.
func resolveDatabaseFromTbls(ctx *Context) (*sqlasm.Database, error) {
	baseDir := resolveConfigBaseDir(ctx.Config)

	for _, candidate := range tblsconfig.DefaultConfigFilePaths {
		path := filepath.Join(baseDir, candidate)

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if info.IsDir() {
			continue
		}

		cfg, err := tblsconfig.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialise tbls config: %w", err)
		}

		if err := cfg.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load tbls config %s: %w", path, err)
		}

		dsn := strings.TrimSpace(cfg.DSN.URL)
		if dsn == "" {
			return nil, fmt.Errorf("%w: %s", ErrTblsDatabaseUnavailable, path)
		}

		ctx.Infof("Using database from %s", path)

		return databaseFromURL(dsn)
	}

	return nil, fmt.Errorf("%w in %s", ErrTblsDatabaseUnavailable, baseDir)
}

// databaseFromURL converts a URL style DSN (postgres://, mysql://,
// sqlite://) to a driver and a connection string the driver accepts.
// Strings without a scheme are taken as MariaDB DSNs or SQLite files.
func databaseFromURL(dsn string) (*sqlasm.Database, error) {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || !strings.Contains(dsn, "://") {
		if strings.HasSuffix(dsn, ".db") || dsn == ":memory:" {
			return &sqlasm.Database{Driver: "sqlite", Connection: dsn}, nil
		}

		return &sqlasm.Database{Driver: "mariadb", Connection: dsn}, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql", "pg":
		return &sqlasm.Database{Driver: "postgres", Connection: dsn}, nil
	case "mysql", "mariadb", "my":
		var b strings.Builder

		if u.User != nil {
			b.WriteString(u.User.Username())

			if password, ok := u.User.Password(); ok {
				b.WriteString(":" + password)
			}

			b.WriteString("@")
		}

		b.WriteString("tcp(" + u.Host + ")")
		b.WriteString(u.Path)

		if u.RawQuery != "" {
			b.WriteString("?" + u.RawQuery)
		}

		driver := strings.ToLower(u.Scheme)
		if driver == "my" {
			driver = "mysql"
		}

		return &sqlasm.Database{Driver: driver, Connection: b.String()}, nil
	case "sqlite", "sqlite3", "file":
		return &sqlasm.Database{Driver: "sqlite", Connection: u.Host + u.Path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", sqlasm.ErrUnsupportedDialect, u.Scheme)
	}
}
