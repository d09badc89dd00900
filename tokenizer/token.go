package tokenizer

import "strings"

// TokenType represents the type of a token
type TokenType int

const (
	// Basic tokens
	EOF TokenType = iota
	WHITESPACE
	WORD              // identifiers, non-structural keywords
	QUOTED_IDENTIFIER // "name" (ANSI dialects), `name` (MySQL, SQLite)
	STRING            // 'text', "text" in MySQL dialects
	NUMBER            // numeric literals
	OPENED_PARENS     // (
	CLOSED_PARENS     // )
	COMMA             // ,
	SEMICOLON         // ;
	DOT               // .
	OPERATOR          // = <> != < > <= >= + - * / || etc.

	// Structural keywords
	WITH      // WITH keyword
	RECURSIVE // RECURSIVE keyword
	AS        // AS keyword
	SELECT    // SELECT keyword
	INSERT    // INSERT keyword
	UPDATE    // UPDATE keyword
	DELETE    // DELETE keyword
	FROM      // FROM keyword
	WHERE     // WHERE keyword

	// Comments
	LINE_COMMENT  // -- line comment, # line comment in MySQL dialects
	BLOCK_COMMENT // /* block comment */

	// Template extensions
	PLACEHOLDER       // {{NAME}}
	BIND_PARAM        // @name
	INCLUDE_DIRECTIVE // <<include:path/to/fragment.sql>>

	// Others
	OTHER // database-specific syntax
)

var tokenTypeNames = map[TokenType]string{
	EOF:               "EOF",
	WHITESPACE:        "WHITESPACE",
	WORD:              "WORD",
	QUOTED_IDENTIFIER: "QUOTED_IDENTIFIER",
	STRING:            "STRING",
	NUMBER:            "NUMBER",
	OPENED_PARENS:     "OPENED_PARENS",
	CLOSED_PARENS:     "CLOSED_PARENS",
	COMMA:             "COMMA",
	SEMICOLON:         "SEMICOLON",
	DOT:               "DOT",
	OPERATOR:          "OPERATOR",
	WITH:              "WITH",
	RECURSIVE:         "RECURSIVE",
	AS:                "AS",
	SELECT:            "SELECT",
	INSERT:            "INSERT",
	UPDATE:            "UPDATE",
	DELETE:            "DELETE",
	FROM:              "FROM",
	WHERE:             "WHERE",
	LINE_COMMENT:      "LINE_COMMENT",
	BLOCK_COMMENT:     "BLOCK_COMMENT",
	PLACEHOLDER:       "PLACEHOLDER",
	BIND_PARAM:        "BIND_PARAM",
	INCLUDE_DIRECTIVE: "INCLUDE_DIRECTIVE",
	OTHER:             "OTHER",
}

// String returns the string representation of TokenType
func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}

	return "UNKNOWN"
}

// Position represents a position in the source code
type Position struct {
	Line   int
	Column int
	Offset int // byte offset
}

// Token represents a token. Value always holds the exact source text.
type Token struct {
	Type     TokenType
	Value    string
	Position Position

	// Name is the placeholder name, the bind parameter name (without '@'),
	// the include path, or the unquoted identifier.
	Name string
}

// String returns the string representation of Token
func (t Token) String() string {
	return t.Type.String() + ": " + t.Value
}

// IsComment reports whether the token is a line or block comment.
func (t Token) IsComment() bool {
	return t.Type == LINE_COMMENT || t.Type == BLOCK_COMMENT
}

// IsTrivia reports whether the token carries no SQL meaning.
func (t Token) IsTrivia() bool {
	return t.Type == WHITESPACE || t.IsComment()
}

// IsIdentifier reports whether the token can name a table or CTE.
func (t Token) IsIdentifier() bool {
	return t.Type == WORD || t.Type == QUOTED_IDENTIFIER
}

// Identifier returns the identifier text without quotes.
func (t Token) Identifier() string {
	if t.Type == QUOTED_IDENTIFIER {
		return t.Name
	}

	return t.Value
}

// Upper returns the upper-cased token text (for keyword comparisons).
func (t Token) Upper() string {
	return strings.ToUpper(t.Value)
}
