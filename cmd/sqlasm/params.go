package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/substitute"
)

// BindingFlags are the parameter options shared by assemble and query.
type BindingFlags struct {
	Bind         []string `short:"b" help:"Bind a parameter: NAME=VALUE for {{NAME}}, @name=VALUE for @name"`
	Keep         []string `help:"Keep {{NAME}} (or @name) in the output instead of substituting it"`
	ParamsFile   string   `short:"p" name:"params" help:"Parameters file (YAML or JSON); keys starting with '@' bind @name parameters" type:"path"`
	Quote        bool     `help:"Quote values from --bind and --params as SQL string literals"`
	KeepAtParams bool     `help:"Leave bound @name parameters for the database engine"`
}

// bindings merges config defaults, the parameters file and command line
// bindings, later sources winning.
func (f *BindingFlags) bindings(ctx *Context, config *sqlasm.Config, dialect sqlasm.Dialect) (substitute.Bindings, error) {
	result := substitute.Bindings{
		Placeholders: make(map[string]substitute.Value),
		BindParams:   make(map[string]substitute.Value),
	}

	for name, value := range config.Parameters {
		result.Placeholders[name] = substitute.Literal(value)
	}

	for name, value := range config.BindParams {
		result.BindParams[name] = substitute.Literal(value)
	}

	quote := func(value string) string {
		if f.Quote {
			return substitute.QuoteLiteral(dialect, value)
		}

		return value
	}

	if f.ParamsFile != "" {
		params, err := loadParamsFile(f.ParamsFile)
		if err != nil {
			return substitute.Bindings{}, err
		}

		for name, value := range params {
			if err := setBinding(result, name, substitute.Literal(quote(value))); err != nil {
				return substitute.Bindings{}, err
			}
		}

		ctx.Infof("Loaded parameters from %s", f.ParamsFile)
	}

	for _, param := range f.Bind {
		name, value, ok := strings.Cut(param, "=")
		if !ok {
			return substitute.Bindings{}, fmt.Errorf("%w: parameter must be in NAME=VALUE format: %s", ErrInvalidParams, param)
		}

		if err := setBinding(result, strings.TrimSpace(name), substitute.Literal(quote(value))); err != nil {
			return substitute.Bindings{}, err
		}
	}

	for _, name := range f.Keep {
		if err := setBinding(result, strings.TrimSpace(name), substitute.Keep()); err != nil {
			return substitute.Bindings{}, err
		}
	}

	return result, nil
}

func setBinding(bindings substitute.Bindings, name string, value substitute.Value) error {
	target := bindings.Placeholders

	if rest, ok := strings.CutPrefix(name, "@"); ok {
		name = rest
		target = bindings.BindParams
	} else if rest, ok := strings.CutPrefix(name, "{{"); ok {
		name = strings.TrimSuffix(rest, "}}")
	}

	if !isIdentifier(name) {
		return fmt.Errorf("%w: invalid parameter name %q", ErrInvalidParams, name)
	}

	target[name] = value

	return nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

// loadParamsFile reads a flat NAME: value map. Scalars are rendered as they
// would be written in SQL; strings are used verbatim.
func loadParamsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}

	var raw map[string]any

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON parameters: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML parameters: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported parameters file format: %s", ErrInvalidParams, ext)
	}

	params := make(map[string]string, len(raw))

	for name, value := range raw {
		switch v := value.(type) {
		case nil:
			params[name] = "NULL"
		case string:
			params[name] = v
		case time.Time:
			params[name] = v.Format(time.DateOnly)
		case map[string]any, []any:
			return nil, fmt.Errorf("%w: %s: value must be a scalar", ErrInvalidParams, name)
		default:
			params[name] = fmt.Sprint(v)
		}
	}

	return params, nil
}
