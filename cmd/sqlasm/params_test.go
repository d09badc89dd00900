package main

import (
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/substitute"
	"github.com/shibukawa/sqlasm/testhelper"
)

func TestBindingFlags_Bindings(t *testing.T) {
	config := &sqlasm.Config{
		Parameters: map[string]string{"START_DATE": "'2024-01-01'", "END_DATE": "'2024-12-31'"},
		BindParams: map[string]string{"limit": "10"},
	}

	flags := BindingFlags{
		Bind: []string{"START_DATE='2024-02-01'", "@limit=20", "{{PATIENT}}=42"},
		Keep: []string{"END_DATE", "@offset"},
	}

	bindings, err := flags.bindings(&Context{Quiet: true}, config, sqlasm.DialectMariaDB)
	assert.NoError(t, err)

	assert.Equal(t, substitute.Literal("'2024-02-01'"), bindings.Placeholders["START_DATE"])
	assert.Equal(t, substitute.Keep(), bindings.Placeholders["END_DATE"])
	assert.Equal(t, substitute.Literal("42"), bindings.Placeholders["PATIENT"])
	assert.Equal(t, substitute.Literal("20"), bindings.BindParams["limit"])
	assert.Equal(t, substitute.Keep(), bindings.BindParams["offset"])
}

func TestBindingFlags_Quote(t *testing.T) {
	flags := BindingFlags{Bind: []string{`NAME=O'Brien`}, Quote: true}

	bindings, err := flags.bindings(&Context{Quiet: true}, &sqlasm.Config{}, sqlasm.DialectPostgres)
	assert.NoError(t, err)
	assert.Equal(t, substitute.Literal(`'O''Brien'`), bindings.Placeholders["NAME"])
}

func TestBindingFlags_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		flags BindingFlags
	}{
		{name: "missing value", flags: BindingFlags{Bind: []string{"START_DATE"}}},
		{name: "bad name", flags: BindingFlags{Bind: []string{"1ST=1"}}},
		{name: "bad keep", flags: BindingFlags{Keep: []string{"@"}}},
		{name: "unsupported file", flags: BindingFlags{ParamsFile: "params.toml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.bindings(&Context{Quiet: true}, &sqlasm.Config{}, sqlasm.DialectMariaDB)
			assert.Error(t, err)
		})
	}

	_, err := (&BindingFlags{Bind: []string{"1ST=1"}}).bindings(&Context{Quiet: true}, &sqlasm.Config{}, sqlasm.DialectMariaDB)
	assert.IsError(t, err, ErrInvalidParams)
}

func TestLoadParamsFile(t *testing.T) {
	dir := t.TempDir()
	testhelper.WriteTree(t, dir, map[string]string{
		"params.yaml": testhelper.TrimIndent(t, `
			START_DATE: "'2024-01-01'"
			LIMIT: 10
			ENABLED: true
			MISSING: null
			"@clinic": 3
		`),
		"params.json":  `{"START_DATE": "'2024-01-01'", "RATE": 12.5}`,
		"nested.yaml":  "FILTER:\n  a: 1\n",
		"invalid.json": `{"START_DATE": `,
	})

	params, err := loadParamsFile(filepath.Join(dir, "params.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{
		"START_DATE": "'2024-01-01'",
		"LIMIT":      "10",
		"ENABLED":    "true",
		"MISSING":    "NULL",
		"@clinic":    "3",
	}, params)

	params, err = loadParamsFile(filepath.Join(dir, "params.json"))
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"START_DATE": "'2024-01-01'", "RATE": "12.5"}, params)

	_, err = loadParamsFile(filepath.Join(dir, "nested.yaml"))
	assert.IsError(t, err, ErrInvalidParams)

	_, err = loadParamsFile(filepath.Join(dir, "invalid.json"))
	assert.Error(t, err)

	_, err = loadParamsFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

func TestBindingFlags_ParamsFileThenBind(t *testing.T) {
	dir := t.TempDir()
	testhelper.WriteTree(t, dir, map[string]string{
		"params.yaml": "START_DATE: 2024-01-01\n\"@clinic\": 3\n",
	})

	flags := BindingFlags{
		ParamsFile: filepath.Join(dir, "params.yaml"),
		Bind:       []string{"START_DATE=2024-03-01"},
		Quote:      true,
	}

	bindings, err := flags.bindings(&Context{Quiet: true}, &sqlasm.Config{}, sqlasm.DialectSQLite)
	assert.NoError(t, err)
	assert.Equal(t, substitute.Literal("'2024-03-01'"), bindings.Placeholders["START_DATE"])
	assert.Equal(t, substitute.Literal("'3'"), bindings.BindParams["clinic"])
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, isIdentifier("START_DATE"))
	assert.True(t, isIdentifier("_x1"))
	assert.False(t, isIdentifier(""))
	assert.False(t, isIdentifier("1x"))
	assert.False(t, isIdentifier("a-b"))
}
