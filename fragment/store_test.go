package fragment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/testhelper"
)

func TestLoad(t *testing.T) {
	root := t.TempDir()
	testhelper.WriteTree(t, root, map[string]string{
		"ctes/payment_details.sql": "PaymentDetailsBase AS (SELECT PayNum FROM payment)",
		"reports/ar_aging.sql":     "<<include:ctes/payment_details.sql>>\nSELECT * FROM PaymentDetailsBase",
		"Legacy.SQL":               "\xEF\xBB\xBFSELECT 1",
		"README.md":                "not sql",
		".git/hooks/x.sql":         "SELECT 'ignored'",
	})

	store, err := Load(root, sqlasm.DialectMariaDB)
	assert.NoError(t, err)

	assert.Equal(t, []string{"Legacy.SQL", "ctes/payment_details.sql", "reports/ar_aging.sql"}, store.Names())
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, root, store.Root())
	assert.Equal(t, sqlasm.DialectMariaDB, store.Dialect())

	legacy, err := store.Get("Legacy.SQL")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT 1", legacy.Text)

	report, err := store.Get("./reports/ar_aging.sql")
	assert.NoError(t, err)
	assert.Equal(t, []string{"ctes/payment_details.sql"}, report.Parsed.IncludeDirectives)

	base, err := store.Get("ctes/payment_details.sql")
	assert.NoError(t, err)
	assert.Equal(t, []string{"PaymentDetailsBase"}, base.Parsed.CTEDefinitions)

	assert.Equal(t, []string{"Legacy.SQL", "reports/ar_aging.sql"}, store.Documents())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		path     string
		expected error
	}{
		{
			name:     "invalid utf8",
			files:    map[string]string{"bad.sql": "SELECT '\xff'"},
			path:     "bad.sql",
			expected: sqlasm.ErrInvalidUTF8,
		},
		{
			name:     "unterminated comment",
			files:    map[string]string{"ctes/broken.sql": "SELECT 1 /* never closed"},
			path:     "ctes/broken.sql",
			expected: sqlasm.ErrUnterminatedComment,
		},
		{
			name:     "malformed directive",
			files:    map[string]string{"report.sql": "<<include:ctes/base.sql\nSELECT 1"},
			path:     "report.sql",
			expected: sqlasm.ErrMalformedDirective,
		},
		{
			name: "include marker in string literal",
			files: map[string]string{
				"base.sql":   "Base AS (SELECT 1 AS x)",
				"report.sql": "SELECT x, '<<include:base.sql>>' AS note FROM Base",
			},
			path:     "report.sql",
			expected: sqlasm.ErrMalformedDirective,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			testhelper.WriteTree(t, root, tt.files)

			_, err := Load(root, sqlasm.DialectMariaDB)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, sqlasm.ErrLoad))
			assert.True(t, errors.Is(err, tt.expected))

			var loadErr *sqlasm.LoadError
			assert.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.path, loadErr.Path)
		})
	}
}

func TestLoadRootErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), sqlasm.DialectMariaDB)
	assert.True(t, errors.Is(err, sqlasm.ErrLoad))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	file := filepath.Join(t.TempDir(), "file.sql")
	assert.NoError(t, os.WriteFile(file, []byte("SELECT 1"), 0o644))

	_, err = Load(file, sqlasm.DialectMariaDB)
	assert.True(t, errors.Is(err, sqlasm.ErrRootNotDirectory))
}

func TestStoreGetNotFound(t *testing.T) {
	store, err := NewStore(sqlasm.DialectMariaDB, map[string]string{"a.sql": "SELECT 1"})
	assert.NoError(t, err)

	_, err = store.Get("missing.sql")

	var notFound *sqlasm.NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing.sql", notFound.Name)
	assert.True(t, errors.Is(err, sqlasm.ErrFragmentNotFound))
}

func TestStoreLookup(t *testing.T) {
	store, err := NewStore(sqlasm.DialectMariaDB, map[string]string{
		"ctes/base.sql":        "Base AS (SELECT 1 AS x)",
		"ctes/metrics.sql":     "Metrics AS (SELECT x FROM Base)",
		"reports/local.sql":    "Local AS (SELECT 2 AS y)",
		"reports/ar_aging.sql": "SELECT 1",
	})
	assert.NoError(t, err)

	tests := []struct {
		ref      string
		from     string
		expected string
		found    bool
	}{
		{"ctes/base.sql", "reports/ar_aging.sql", "ctes/base.sql", true},
		{"./ctes/base.sql", "", "ctes/base.sql", true},
		{"local.sql", "reports/ar_aging.sql", "reports/local.sql", true},
		{"base.sql", "ctes/metrics.sql", "ctes/base.sql", true},
		{"../ctes/base.sql", "reports/ar_aging.sql", "ctes/base.sql", true},
		{"local.sql", "", "", false},
		{"nowhere.sql", "reports/ar_aging.sql", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref+" from "+tt.from, func(t *testing.T) {
			name, ok := store.Lookup(tt.ref, tt.from)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument("adhoc.sql", "SELECT {{START_DATE}}", sqlasm.DialectMariaDB)
	assert.NoError(t, err)
	assert.Equal(t, "adhoc.sql", doc.Name)
	assert.Equal(t, []string{"START_DATE"}, doc.Parsed.ParameterTokens.Placeholders)

	_, err = NewDocument("adhoc.sql", "SELECT 'x", sqlasm.DialectMariaDB)
	assert.True(t, errors.Is(err, sqlasm.ErrLoad))
	assert.True(t, errors.Is(err, sqlasm.ErrUnterminatedString))
}

func TestRegistryReload(t *testing.T) {
	root := t.TempDir()
	testhelper.WriteTree(t, root, map[string]string{"a.sql": "SELECT 1"})

	registry, err := NewRegistry(root, sqlasm.DialectMariaDB)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.sql"}, registry.Store().Names())

	testhelper.WriteTree(t, root, map[string]string{"b.sql": "SELECT 2"})

	store, err := registry.Reload()
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.sql", "b.sql"}, store.Names())
	assert.Equal(t, store, registry.Store())

	// a broken file keeps the previous store serving
	testhelper.WriteTree(t, root, map[string]string{"c.sql": "SELECT 'broken"})

	_, err = registry.Reload()
	assert.True(t, errors.Is(err, sqlasm.ErrUnterminatedString))
	assert.Equal(t, []string{"a.sql", "b.sql"}, registry.Store().Names())
}
