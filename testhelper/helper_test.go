package testhelper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestTrimIndent(t *testing.T) {
	got := TrimIndent(t, `
		WITH Base AS (
			SELECT 1 AS x
		)
		SELECT x FROM Base
	`)

	assert.Equal(t, "WITH Base AS (\n    SELECT 1 AS x\n)\nSELECT x FROM Base", got)
}

func TestWriteTree(t *testing.T) {
	root := t.TempDir()
	WriteTree(t, root, map[string]string{
		"ctes/base.sql": "Base AS (SELECT 1 AS x)",
		"report.sql":    "SELECT 1",
	})

	data, err := os.ReadFile(filepath.Join(root, "ctes", "base.sql"))
	assert.NoError(t, err)
	assert.Equal(t, "Base AS (SELECT 1 AS x)", string(data))

	_, err = os.Stat(filepath.Join(root, "report.sql"))
	assert.NoError(t, err)
}
