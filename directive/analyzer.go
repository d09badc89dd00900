package directive

import (
	"strings"

	"github.com/shibukawa/sqlasm/tokenizer"
)

// analyze splits one statement into leading trivia, CTE definitions and body.
// A definition list is recognised with or without a leading WITH, and a
// trailing comma after the last definition is tolerated.
func analyze(tokens []tokenizer.Token, terminator string) *Statement {
	stmt := &Statement{Terminator: terminator}
	relations := relationPositions(tokens)

	var plain chunkBuilder
	for _, token := range tokens {
		plain.add(token, false)
	}

	stmt.Text = plain.chunk().Text()

	var leading chunkBuilder

	i := 0
	for i < len(tokens) && (tokens[i].IsTrivia() || tokens[i].Type == tokenizer.INCLUDE_DIRECTIVE) {
		leading.add(tokens[i], false)
		i++
	}

	if i < len(tokens) && tokens[i].Type == tokenizer.WITH {
		j := skipTrivia(tokens, i+1)

		recursive := j < len(tokens) && tokens[j].Type == tokenizer.RECURSIVE
		if recursive {
			j++
		}

		k := skipSeparators(tokens, j)
		if _, ok := definitionStart(tokens, k); ok || hasInclude(tokens[j:k]) {
			stmt.With = true
			stmt.Recursive = recursive
			i = j
		}
	}

	for {
		k := skipSeparators(tokens, i)

		open, ok := definitionStart(tokens, k)
		if !ok {
			break
		}

		end := matchParen(tokens, open)
		if end < 0 {
			break
		}

		var comments chunkBuilder

		for _, token := range tokens[i:k] {
			switch {
			case token.Type == tokenizer.INCLUDE_DIRECTIVE:
				leading.add(token, false)
			case token.IsTrivia():
				comments.add(token, false)
			}
		}

		var body chunkBuilder
		if prefix := strings.TrimSpace(comments.chunk().Text()); prefix != "" {
			body.prefix(prefix + "\n")
		}

		for idx := k; idx <= end; idx++ {
			body.add(tokens[idx], idx != k && relations[idx])
		}

		stmt.Definitions = append(stmt.Definitions, &Definition{
			Name:   tokens[k].Identifier(),
			Body:   body.chunk(),
			Line:   tokens[k].Position.Line,
			Column: tokens[k].Position.Column,
		})
		i = end + 1
	}

	stmt.Leading = leading.chunk()

	var body chunkBuilder

	if len(stmt.Definitions) > 0 {
		if k := skipTrivia(tokens, i); k < len(tokens) && tokens[k].Type == tokenizer.COMMA {
			for _, token := range tokens[i:k] {
				body.add(token, false)
			}

			i = k + 1
		}
	}

	if k := skipSeparators(tokens, i); k < len(tokens) {
		stmt.Verb = tokens[k].Upper()
	}

	for idx := i; idx < len(tokens); idx++ {
		body.add(tokens[idx], relations[idx])
	}

	stmt.Body = body.chunk()

	return stmt
}

// definitionStart reports whether tokens[k] begins "name [(cols)] AS [[NOT] MATERIALIZED] (".
// It returns the index of the opening parenthesis of the definition body.
func definitionStart(tokens []tokenizer.Token, k int) (int, bool) {
	if k >= len(tokens) || !tokens[k].IsIdentifier() {
		return 0, false
	}

	if tokens[k].Type == tokenizer.WORD && tokenizer.IsReserved(tokens[k].Value) {
		return 0, false
	}

	j := skipTrivia(tokens, k+1)
	if j < len(tokens) && tokens[j].Type == tokenizer.OPENED_PARENS {
		end := matchParen(tokens, j)
		if end < 0 {
			return 0, false
		}

		for _, token := range tokens[j+1 : end] {
			if !token.IsIdentifier() && !token.IsTrivia() && token.Type != tokenizer.COMMA {
				return 0, false
			}
		}

		j = skipTrivia(tokens, end+1)
	}

	if j >= len(tokens) || tokens[j].Type != tokenizer.AS {
		return 0, false
	}

	j = skipTrivia(tokens, j+1)
	if j < len(tokens) && tokens[j].Type == tokenizer.WORD && tokens[j].Upper() == "NOT" {
		j = skipTrivia(tokens, j+1)
	}

	if j < len(tokens) && tokens[j].Type == tokenizer.WORD && tokens[j].Upper() == "MATERIALIZED" {
		j = skipTrivia(tokens, j+1)
	}

	if j >= len(tokens) || tokens[j].Type != tokenizer.OPENED_PARENS {
		return 0, false
	}

	return j, true
}

// matchParen returns the index of the parenthesis closing tokens[open], or -1.
func matchParen(tokens []tokenizer.Token, open int) int {
	depth := 0

	for i := open; i < len(tokens); i++ {
		switch tokens[i].Type {
		case tokenizer.OPENED_PARENS:
			depth++
		case tokenizer.CLOSED_PARENS:
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// relationPositions marks the identifiers standing where a table name is
// expected: after FROM, JOIN, UPDATE or INTO, and after a comma of a FROM
// list. Column names, aliases, qualified names and function calls are not
// marked.
func relationPositions(tokens []tokenizer.Token) map[int]bool {
	result := make(map[int]bool)
	inFrom := []bool{false} // per parenthesis depth
	expect := false

	for i, token := range tokens {
		if token.IsTrivia() {
			continue
		}

		depth := len(inFrom) - 1

		switch token.Type {
		case tokenizer.OPENED_PARENS:
			inFrom = append(inFrom, false)
			expect = false
		case tokenizer.CLOSED_PARENS:
			if depth > 0 {
				inFrom = inFrom[:depth]
			}

			expect = false
		case tokenizer.FROM:
			inFrom[depth] = true
			expect = true
		case tokenizer.UPDATE:
			expect = true
		case tokenizer.COMMA:
			expect = inFrom[depth]
		case tokenizer.SELECT, tokenizer.WHERE:
			inFrom[depth] = false
			expect = false
		case tokenizer.WORD, tokenizer.QUOTED_IDENTIFIER:
			upper := token.Upper()

			switch {
			case token.Type == tokenizer.WORD && (upper == "JOIN" || upper == "INTO"):
				expect = true
			case token.Type == tokenizer.WORD && (upper == "LATERAL" || upper == "ONLY"):
			case token.Type == tokenizer.WORD && tokenizer.IsReserved(token.Value):
				if closesFromList[upper] {
					inFrom[depth] = false
				}

				expect = false
			default:
				if expect && !qualifiedOrCalled(tokens, i) {
					result[i] = true
				}

				expect = false
			}
		default:
			expect = false
		}
	}

	return result
}

var closesFromList = map[string]bool{
	"GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "WINDOW": true,
	"SET": true, "VALUES": true, "RETURNING": true, "FOR": true,
}

// qualifiedOrCalled reports whether the identifier at idx is followed by a
// dot (schema qualifier) or an opening parenthesis (table function).
func qualifiedOrCalled(tokens []tokenizer.Token, idx int) bool {
	next := skipTrivia(tokens, idx+1)
	if next >= len(tokens) {
		return false
	}

	return tokens[next].Type == tokenizer.DOT || tokens[next].Type == tokenizer.OPENED_PARENS
}

func hasInclude(tokens []tokenizer.Token) bool {
	for _, token := range tokens {
		if token.Type == tokenizer.INCLUDE_DIRECTIVE {
			return true
		}
	}

	return false
}

func skipTrivia(tokens []tokenizer.Token, i int) int {
	for i < len(tokens) && tokens[i].IsTrivia() {
		i++
	}

	return i
}

func skipSeparators(tokens []tokenizer.Token, i int) int {
	for i < len(tokens) && (tokens[i].IsTrivia() || tokens[i].Type == tokenizer.INCLUDE_DIRECTIVE || tokens[i].Type == tokenizer.COMMA) {
		i++
	}

	return i
}
