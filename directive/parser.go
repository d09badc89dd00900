package directive

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/tokenizer"
)

var (
	dependentCTEsPattern = regexp.MustCompile(`(?i)dependent\s+ctes?\s*:\s*(.+)`)
	usesCTEPattern       = regexp.MustCompile(`(?i)\buses\s+([A-Za-z_][A-Za-z0-9_]*)\s+ctes?\s+from\s+([A-Za-z0-9_./-]+\.sql)`)
)

// Parse analyses SQL text for include directives, CTE definitions and
// parameter tokens. Errors come from the tokenizer (unterminated strings
// or comments, malformed directives). An include marker inside a string
// literal is malformed as well.
func Parse(text string, dialect sqlasm.Dialect) (*ParsedDocument, error) {
	tokens, err := tokenizer.Tokenize(text, dialect)
	if err != nil {
		return nil, err
	}

	// drop EOF
	tokens = tokens[:len(tokens)-1]

	for _, token := range tokens {
		if token.Type == tokenizer.STRING && strings.Contains(token.Value, "<<include:") {
			return nil, fmt.Errorf("%w: inside string literal at line %d, column %d", sqlasm.ErrMalformedDirective, token.Position.Line, token.Position.Column)
		}
	}

	doc := &ParsedDocument{}

	start := 0
	depth := 0

	for i, token := range tokens {
		switch token.Type {
		case tokenizer.OPENED_PARENS:
			depth++
		case tokenizer.CLOSED_PARENS:
			if depth > 0 {
				depth--
			}
		case tokenizer.SEMICOLON:
			if depth == 0 {
				doc.Statements = append(doc.Statements, analyze(tokens[start:i], token.Value))
				start = i + 1
			}
		}
	}

	if start < len(tokens) {
		doc.Statements = append(doc.Statements, analyze(tokens[start:], ""))
	}

	doc.Unit = analyze(withoutTerminator(tokens), "")

	collect(doc, tokens)

	return doc, nil
}

// Split returns the executable statements of text, trimmed and without
// their terminators. Comment-only statements are skipped.
func Split(text string, dialect sqlasm.Dialect) ([]string, error) {
	doc, err := Parse(text, dialect)
	if err != nil {
		return nil, err
	}

	var result []string

	for _, stmt := range doc.Statements {
		if stmt.HasCode() {
			result = append(result, strings.TrimSpace(stmt.Text))
		}
	}

	return result, nil
}

// withoutTerminator removes the final top-level semicolon, keeping the trivia after it.
func withoutTerminator(tokens []tokenizer.Token) []tokenizer.Token {
	last := len(tokens) - 1
	for last >= 0 && tokens[last].IsTrivia() {
		last--
	}

	if last < 0 || tokens[last].Type != tokenizer.SEMICOLON {
		return tokens
	}

	result := make([]tokenizer.Token, 0, len(tokens)-1)
	result = append(result, tokens[:last]...)

	return append(result, tokens[last+1:]...)
}

func collect(doc *ParsedDocument, tokens []tokenizer.Token) {
	seenDefinitions := map[string]bool{}
	seenIncludes := map[string]bool{}

	for _, stmt := range doc.Statements {
		for _, def := range stmt.Definitions {
			key := sqlasm.FoldName(def.Name)
			if !seenDefinitions[key] {
				seenDefinitions[key] = true
				doc.CTEDefinitions = append(doc.CTEDefinitions, def.Name)
			}
		}

		for _, include := range stmt.Includes() {
			if !seenIncludes[include.Path] {
				seenIncludes[include.Path] = true
				doc.IncludeDirectives = append(doc.IncludeDirectives, include.Path)
			}
		}
	}

	placeholders := map[string]bool{}
	bindParams := map[string]bool{}

	for _, token := range tokens {
		switch {
		case token.Type == tokenizer.PLACEHOLDER:
			placeholders[token.Name] = true
		case token.Type == tokenizer.BIND_PARAM:
			bindParams[token.Name] = true
		case token.IsComment():
			doc.DocumentedDependencies = append(doc.DocumentedDependencies, documentedDependencies(token)...)
		}
	}

	doc.ParameterTokens.Placeholders = sortedKeys(placeholders)
	doc.ParameterTokens.BindParams = sortedKeys(bindParams)
}

func documentedDependencies(comment tokenizer.Token) []DocumentedDependency {
	var result []DocumentedDependency

	for offset, line := range strings.Split(comment.Value, "\n") {
		lineNo := comment.Position.Line + offset

		if m := dependentCTEsPattern.FindStringSubmatch(line); m != nil {
			list := strings.TrimSuffix(strings.TrimSpace(m[1]), "*/")
			for _, name := range strings.Split(list, ",") {
				name = strings.TrimRight(strings.TrimSpace(name), ".")
				if name != "" {
					result = append(result, DocumentedDependency{Fragment: name, Line: lineNo})
				}
			}

			continue
		}

		for _, m := range usesCTEPattern.FindAllStringSubmatch(line, -1) {
			result = append(result, DocumentedDependency{Fragment: m[2], CTE: m[1], Line: lineNo})
		}
	}

	return result
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}

	result := make([]string, 0, len(m))
	for key := range m {
		result = append(result, key)
	}

	sort.Strings(result)

	return result
}
