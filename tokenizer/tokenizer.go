package tokenizer

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shibukawa/sqlasm"
)

// TokenIterator uses Go 1.24 iterator pattern
type TokenIterator iter.Seq2[Token, error]

// SqlTokenizer is a tokenizer that returns an iterator
type SqlTokenizer struct {
	input   string
	dialect sqlasm.Dialect
	options TokenizerOptions
}

// TokenizerOptions are options for the tokenizer
type TokenizerOptions struct {
	SkipWhitespace bool
	SkipComments   bool
}

// NewSqlTokenizer creates a new SqlTokenizer
func NewSqlTokenizer(input string, dialect sqlasm.Dialect, options ...TokenizerOptions) *SqlTokenizer {
	var opts TokenizerOptions
	if len(options) > 0 {
		opts = options[0]
	}

	return &SqlTokenizer{
		input:   input,
		dialect: dialect,
		options: opts,
	}
}

// Tokens returns an iterator of tokens
func (t *SqlTokenizer) Tokens() TokenIterator {
	return func(yield func(Token, error) bool) {
		tokenizer := &tokenizer{
			input:   t.input,
			line:    1,
			column:  1,
			dialect: t.dialect,
		}

		tokenizer.load()

		for {
			token, err := tokenizer.nextToken()
			if err != nil {
				if !yield(Token{}, err) {
					return
				}

				continue
			}

			if token.Type == EOF {
				yield(token, nil)
				return
			}

			if t.options.SkipWhitespace && token.Type == WHITESPACE {
				continue
			}

			if t.options.SkipComments && token.IsComment() {
				continue
			}

			if !yield(token, nil) {
				return
			}
		}
	}
}

// AllTokens gets all tokens as a slice, stopping at the first error.
// The trailing EOF token is included.
func (t *SqlTokenizer) AllTokens() ([]Token, error) {
	tokens := make([]Token, 0, 64)

	for token, err := range t.Tokens() {
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, token)
		if token.Type == EOF {
			break
		}
	}

	return tokens, nil
}

// Tokenize is a shorthand for NewSqlTokenizer(input, dialect).AllTokens().
func Tokenize(input string, dialect sqlasm.Dialect) ([]Token, error) {
	return NewSqlTokenizer(input, dialect).AllTokens()
}

const includePrefix = "<<include:"

// Internal tokenizer implementation
type tokenizer struct {
	input   string
	pos     int // byte offset of current
	width   int // byte width of current
	current rune
	line    int
	column  int
	dialect sqlasm.Dialect
}

// nextToken gets the next token
func (t *tokenizer) nextToken() (Token, error) {
	start := t.mark()

	if t.eof() {
		return t.emit(EOF, start), nil
	}

	switch ch := t.current; {
	case unicode.IsSpace(ch):
		for !t.eof() && unicode.IsSpace(t.current) {
			t.readChar()
		}

		return t.emit(WHITESPACE, start), nil
	case ch == '(':
		return t.single(OPENED_PARENS, start), nil
	case ch == ')':
		return t.single(CLOSED_PARENS, start), nil
	case ch == ',':
		return t.single(COMMA, start), nil
	case ch == ';':
		return t.single(SEMICOLON, start), nil
	case ch == '.':
		if isDigit(t.peekChar()) {
			return t.readNumber(start), nil
		}

		return t.single(DOT, start), nil
	case ch == '\'':
		return t.readString(start, '\'', STRING)
	case ch == '"':
		if t.dialect.IsMySQLFamily() {
			return t.readString(start, '"', STRING)
		}

		return t.readString(start, '"', QUOTED_IDENTIFIER)
	case ch == '`' && t.dialect.Supports(sqlasm.FeatureBacktickQuote):
		return t.readString(start, '`', QUOTED_IDENTIFIER)
	case ch == '-' && t.peekChar() == '-':
		return t.readLineComment(start), nil
	case ch == '#' && t.dialect.Supports(sqlasm.FeatureHashComment):
		return t.readLineComment(start), nil
	case ch == '/' && t.peekChar() == '*':
		return t.readBlockComment(start)
	case ch == '{' && t.peekChar() == '{':
		if token, ok := t.readPlaceholder(start); ok {
			return token, nil
		}

		return t.single(OTHER, start), nil
	case ch == '@':
		return t.readAt(start), nil
	case ch == '<' && strings.HasPrefix(t.input[t.pos:], includePrefix):
		return t.readDirective(start)
	case isIdentStart(ch):
		return t.readWord(start), nil
	case isDigit(ch):
		return t.readNumber(start), nil
	case strings.ContainsRune("=<>!+-*/%|&^~:", ch):
		return t.readOperator(start), nil
	default:
		return t.single(OTHER, start), nil
	}
}

// load decodes the rune at the current offset
func (t *tokenizer) load() {
	if t.pos >= len(t.input) {
		t.current = 0
		t.width = 0

		return
	}

	t.current, t.width = utf8.DecodeRuneInString(t.input[t.pos:])
}

// readChar advances to the next character
func (t *tokenizer) readChar() {
	if t.eof() {
		return
	}

	if t.current == '\n' {
		t.line++
		t.column = 1
	} else {
		t.column++
	}

	t.pos += t.width
	t.load()
}

// peekChar looks ahead at the next character
func (t *tokenizer) peekChar() rune {
	next := t.pos + t.width
	if next >= len(t.input) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(t.input[next:])

	return r
}

func (t *tokenizer) eof() bool {
	return t.pos >= len(t.input)
}

func (t *tokenizer) mark() Position {
	return Position{Line: t.line, Column: t.column, Offset: t.pos}
}

func (t *tokenizer) emit(tokenType TokenType, start Position) Token {
	return Token{
		Type:     tokenType,
		Value:    t.input[start.Offset:t.pos],
		Position: start,
	}
}

func (t *tokenizer) single(tokenType TokenType, start Position) Token {
	t.readChar()
	return t.emit(tokenType, start)
}

// readWord reads words (identifiers and keywords)
func (t *tokenizer) readWord(start Position) Token {
	for !t.eof() && isIdentPart(t.current) {
		t.readChar()
	}

	token := t.emit(WORD, start)
	token.Type = getKeywordTokenType(token.Value)

	return token
}

// readString reads string literals and quoted identifiers.
// A doubled delimiter is an escaped delimiter; backslash escapes follow the dialect.
func (t *tokenizer) readString(start Position, delimiter rune, tokenType TokenType) (Token, error) {
	backslash := delimiter != '`' && t.dialect.Supports(sqlasm.FeatureBackslashEscape)

	var name strings.Builder

	t.readChar() // opening quote

	for {
		if t.eof() {
			return Token{}, fmt.Errorf("%w: %c at line %d, column %d", sqlasm.ErrUnterminatedString, delimiter, start.Line, start.Column)
		}

		ch := t.current
		switch {
		case backslash && ch == '\\':
			t.readChar()
			if !t.eof() {
				name.WriteRune(t.current)
				t.readChar()
			}
		case ch == delimiter:
			t.readChar()
			if !t.eof() && t.current == delimiter {
				name.WriteRune(delimiter)
				t.readChar()

				continue
			}

			token := t.emit(tokenType, start)
			if tokenType == QUOTED_IDENTIFIER {
				token.Name = name.String()
			}

			return token, nil
		default:
			name.WriteRune(ch)
			t.readChar()
		}
	}
}

// readNumber reads numeric literals. Digits followed by identifier
// characters form a word, as MySQL allows identifiers such as 1st_visit.
func (t *tokenizer) readNumber(start Position) Token {
	for !t.eof() && isDigit(t.current) {
		t.readChar()
	}

	if t.current == '.' && isDigit(t.peekChar()) {
		t.readChar()

		for !t.eof() && isDigit(t.current) {
			t.readChar()
		}
	}

	if t.current == 'e' || t.current == 'E' {
		next := t.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			save := *t

			t.readChar()
			if t.current == '+' || t.current == '-' {
				t.readChar()
			}

			if !isDigit(t.current) {
				*t = save
			}

			for !t.eof() && isDigit(t.current) {
				t.readChar()
			}
		}
	}

	if !t.eof() && isIdentPart(t.current) {
		for !t.eof() && isIdentPart(t.current) {
			t.readChar()
		}

		return t.emit(WORD, start)
	}

	return t.emit(NUMBER, start)
}

// readLineComment reads line comments up to (not including) the line break
func (t *tokenizer) readLineComment(start Position) Token {
	for !t.eof() && t.current != '\n' {
		t.readChar()
	}

	return t.emit(LINE_COMMENT, start)
}

// readBlockComment reads block comments
func (t *tokenizer) readBlockComment(start Position) (Token, error) {
	// '/*'
	t.readChar()
	t.readChar()

	for !t.eof() {
		if t.current == '*' && t.peekChar() == '/' {
			t.readChar()
			t.readChar()

			return t.emit(BLOCK_COMMENT, start), nil
		}

		t.readChar()
	}

	return Token{}, fmt.Errorf("%w at line %d, column %d", sqlasm.ErrUnterminatedComment, start.Line, start.Column)
}

// readPlaceholder reads {{NAME}}; it reports false and consumes nothing
// when the braces do not enclose an identifier.
func (t *tokenizer) readPlaceholder(start Position) (Token, bool) {
	rest := t.input[t.pos+2:]

	end := strings.Index(rest, "}}")
	if end <= 0 || !isIdentifier(rest[:end]) {
		return Token{}, false
	}

	target := t.pos + 2 + end + 2
	for t.pos < target {
		t.readChar()
	}

	token := t.emit(PLACEHOLDER, start)
	token.Name = rest[:end]

	return token, true
}

// readAt reads @name bind parameters. @@system_variable is not a parameter.
func (t *tokenizer) readAt(start Position) Token {
	t.readChar()

	if t.current == '@' {
		t.readChar()

		for !t.eof() && isIdentPart(t.current) {
			t.readChar()
		}

		return t.emit(OTHER, start)
	}

	if t.eof() || !isIdentStart(t.current) {
		return t.emit(OTHER, start)
	}

	for !t.eof() && isIdentPart(t.current) {
		t.readChar()
	}

	token := t.emit(BIND_PARAM, start)
	token.Name = token.Value[1:]

	return token
}

// readDirective reads <<include:path>>; the closing marker must be on the same line.
func (t *tokenizer) readDirective(start Position) (Token, error) {
	rest := t.input[t.pos+len(includePrefix):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}

	end := strings.Index(rest, ">>")
	if end < 0 {
		t.skipLine()
		return Token{}, fmt.Errorf("%w: missing '>>' at line %d, column %d", sqlasm.ErrMalformedDirective, start.Line, start.Column)
	}

	path := strings.TrimSpace(rest[:end])
	if path == "" {
		t.skipLine()
		return Token{}, fmt.Errorf("%w: empty path at line %d, column %d", sqlasm.ErrMalformedDirective, start.Line, start.Column)
	}

	target := t.pos + len(includePrefix) + end + 2
	for t.pos < target {
		t.readChar()
	}

	token := t.emit(INCLUDE_DIRECTIVE, start)
	token.Name = path

	return token, nil
}

func (t *tokenizer) skipLine() {
	for !t.eof() && t.current != '\n' {
		t.readChar()
	}
}

// readOperator reads one or two character operators
func (t *tokenizer) readOperator(start Position) Token {
	first := t.current
	t.readChar()

	switch first {
	case '<':
		if t.current == '=' || t.current == '>' {
			t.readChar()
		}
	case '>', '!':
		if t.current == '=' {
			t.readChar()
		}
	case '|', ':':
		if t.current == first {
			t.readChar()
		} else if first == ':' && t.current == '=' {
			t.readChar()
		}
	}

	return t.emit(OPERATOR, start)
}

// getKeywordTokenType returns the TokenType corresponding to a keyword
func getKeywordTokenType(word string) TokenType {
	switch strings.ToUpper(word) {
	case "WITH":
		return WITH
	case "RECURSIVE":
		return RECURSIVE
	case "AS":
		return AS
	case "SELECT":
		return SELECT
	case "INSERT":
		return INSERT
	case "UPDATE":
		return UPDATE
	case "DELETE":
		return DELETE
	case "FROM":
		return FROM
	case "WHERE":
		return WHERE
	default:
		return WORD
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentifier(s string) bool {
	for i, ch := range s {
		if ch > unicode.MaxASCII {
			return false
		}

		if i == 0 && !(ch == '_' || unicode.IsLetter(ch)) {
			return false
		}

		if !(ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)) {
			return false
		}
	}

	return s != ""
}
