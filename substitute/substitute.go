package substitute

import (
	"maps"
	"slices"
	"strings"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/tokenizer"
)

// Value is a binding for one parameter: a literal to inline, or an explicit
// instruction to keep the token as written.
type Value struct {
	Literal string
	Keep    bool
}

// Literal returns a binding that inlines s verbatim. The caller quotes it.
func Literal(s string) Value {
	return Value{Literal: s}
}

// Keep returns a binding that leaves the token in place.
func Keep() Value {
	return Value{Keep: true}
}

// Bindings holds the two parameter classes separately: {{NAME}}
// placeholders and @name bind parameters.
type Bindings struct {
	Placeholders map[string]Value
	BindParams   map[string]Value
}

// Options controls substitution.
type Options struct {
	Dialect sqlasm.Dialect // defaults to MariaDB
	// InlineBindParams replaces @name tokens that have a literal binding.
	// By default they are left for the database engine.
	InlineBindParams bool
}

// Result is the substituted text and the parameter tokens left in it, in
// order of first appearance.
type Result struct {
	Text      string
	Remaining []string
}

// Substitute replaces parameter tokens in text. Tokens inside comments and
// string literals are never touched. A {{NAME}} placeholder without binding
// fails with *sqlasm.MissingParameterError.
func Substitute(text string, bindings Bindings, opts Options) (*Result, error) {
	dialect := opts.Dialect
	if dialect == "" {
		dialect = sqlasm.DialectMariaDB
	}

	tokens, err := tokenizer.Tokenize(text, dialect)
	if err != nil {
		return nil, err
	}

	var b strings.Builder

	b.Grow(len(text))

	var remaining []string

	seen := make(map[string]bool)
	keep := func(token tokenizer.Token) {
		b.WriteString(token.Value)

		if !seen[token.Value] {
			seen[token.Value] = true
			remaining = append(remaining, token.Value)
		}
	}

	assigned := assignedVariables(tokens)

	for _, token := range tokens {
		switch token.Type {
		case tokenizer.PLACEHOLDER:
			value, ok := bindings.Placeholders[token.Name]
			if !ok {
				return nil, &sqlasm.MissingParameterError{
					Token:  token.Value,
					Line:   token.Position.Line,
					Column: token.Position.Column,
				}
			}

			if value.Keep {
				keep(token)
			} else {
				b.WriteString(value.Literal)
			}
		case tokenizer.BIND_PARAM:
			value, ok := lookupBindParam(bindings.BindParams, token.Name)
			if opts.InlineBindParams && ok && !value.Keep && !assigned[strings.ToLower(token.Name)] {
				b.WriteString(value.Literal)
			} else {
				keep(token)
			}
		default:
			b.WriteString(token.Value)
		}
	}

	return &Result{Text: b.String(), Remaining: remaining}, nil
}

// assignedVariables returns the lower-cased names of user variables the text
// assigns itself, through "SET @x = ..." (including later items of the SET
// list) or "@x := ...". Such variables are never inlined.
func assignedVariables(tokens []tokenizer.Token) map[string]bool {
	result := make(map[string]bool)

	inSet := false
	statementStart := true
	depth := 0

	for i, token := range tokens {
		if token.IsTrivia() {
			continue
		}

		switch token.Type {
		case tokenizer.SEMICOLON:
			inSet = false
			statementStart = true
			depth = 0

			continue
		case tokenizer.OPENED_PARENS:
			depth++
		case tokenizer.CLOSED_PARENS:
			depth--
		case tokenizer.WORD:
			if statementStart && token.Upper() == "SET" {
				inSet = true
			}
		case tokenizer.BIND_PARAM:
			next := i + 1
			for next < len(tokens) && tokens[next].IsTrivia() {
				next++
			}

			if next < len(tokens) && tokens[next].Type == tokenizer.OPERATOR {
				switch tokens[next].Value {
				case ":=":
					result[strings.ToLower(token.Name)] = true
				case "=":
					if inSet && depth == 0 && setListItem(tokens, i) {
						result[strings.ToLower(token.Name)] = true
					}
				}
			}
		}

		statementStart = false
	}

	return result
}

// setListItem reports whether the token at idx directly follows SET or a comma.
func setListItem(tokens []tokenizer.Token, idx int) bool {
	for i := idx - 1; i >= 0; i-- {
		if tokens[i].IsTrivia() {
			continue
		}

		return tokens[i].Type == tokenizer.COMMA || (tokens[i].Type == tokenizer.WORD && tokens[i].Upper() == "SET")
	}

	return false
}

// lookupBindParam matches bind parameter names case-insensitively, as MySQL
// user variables are.
func lookupBindParam(params map[string]Value, name string) (Value, bool) {
	if value, ok := params[name]; ok {
		return value, true
	}

	for _, key := range slices.Sorted(maps.Keys(params)) {
		if strings.EqualFold(key, name) {
			return params[key], true
		}
	}

	return Value{}, false
}

// QuoteLiteral renders s as a SQL string literal for dialect.
func QuoteLiteral(dialect sqlasm.Dialect, s string) string {
	if dialect.Supports(sqlasm.FeatureBackslashEscape) {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}

	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
