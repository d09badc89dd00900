package tokenizer

import "strings"

// reservedWords is the union of words that cannot start a CTE definition
// in any supported dialect. Structural keywords have their own token types.
var reservedWords = map[string]bool{
	"ALL": true, "AND": true, "ANY": true, "ASC": true, "BETWEEN": true, "BY": true,
	"CASE": true, "CAST": true, "CROSS": true, "DESC": true, "DISTINCT": true,
	"ELSE": true, "END": true, "EXCEPT": true, "EXISTS": true, "FOR": true,
	"FULL": true, "GROUP": true, "HAVING": true, "IN": true, "INNER": true,
	"INTERSECT": true, "INTO": true, "IS": true, "JOIN": true, "LATERAL": true,
	"LEFT": true, "LIKE": true, "LIMIT": true, "NATURAL": true, "NOT": true,
	"NULL": true, "OFFSET": true, "ON": true, "OR": true, "ORDER": true,
	"OUTER": true, "OVER": true, "PARTITION": true, "REPLACE": true,
	"RETURNING": true, "RIGHT": true, "SET": true, "TABLE": true, "THEN": true,
	"UNION": true, "USING": true, "VALUES": true, "WHEN": true, "WINDOW": true,
}

// IsReserved reports whether word is a reserved SQL keyword.
func IsReserved(word string) bool {
	upper := strings.ToUpper(word)
	if reservedWords[upper] {
		return true
	}

	return getKeywordTokenType(upper) != WORD
}
