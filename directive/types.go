package directive

import "strings"

// ParsedDocument is the directive-level view of one SQL file.
type ParsedDocument struct {
	// CTEDefinitions lists the CTE names the file defines, in textual order.
	CTEDefinitions []string
	// IncludeDirectives lists actionable include paths as written, in textual order.
	IncludeDirectives []string
	// ParameterTokens lists the placeholders and bind parameters outside comments and strings.
	ParameterTokens ParameterTokens
	// DocumentedDependencies are "Dependent CTEs:" style comments. They are
	// informational and never resolved.
	DocumentedDependencies []DocumentedDependency

	// Statements is the file split at top-level semicolons.
	Statements []*Statement
	// Unit is the whole file analysed as one statement, used when the file is included.
	Unit *Statement
}

// ParameterTokens holds the two parameter classes separately.
type ParameterTokens struct {
	Placeholders []string // {{NAME}} names
	BindParams   []string // @name names
}

// DocumentedDependency is a dependency named by a descriptive comment.
type DocumentedDependency struct {
	Fragment string
	CTE      string // empty for "Dependent CTEs:" lists
	Line     int
}

// Definition is one CTE definition: name [(columns)] AS ( ... ).
type Definition struct {
	Name string
	// Body covers the definition from its name to the closing parenthesis,
	// preceded by the comments written directly above it.
	Body   Chunk
	Line   int
	Column int
}

// Statement is the structural analysis of one SQL statement.
type Statement struct {
	// Leading holds the comments, whitespace and include markers before the
	// statement proper, plus markers found between CTE definitions.
	Leading     Chunk
	With        bool
	Recursive   bool
	Definitions []*Definition
	Body        Chunk

	// Text is the statement as written, minus include markers and inert comments.
	Text string
	// Terminator is ";" when the statement ended with a semicolon.
	Terminator string
	// Verb is the upper-cased first token of the statement proper
	// (SELECT, SET, CREATE, ...), empty for comment-only statements.
	Verb string
}

// Includes returns every include marker of the statement in textual order.
func (s *Statement) Includes() []*Include {
	result := s.Leading.Includes()
	for _, def := range s.Definitions {
		result = append(result, def.Body.Includes()...)
	}

	return append(result, s.Body.Includes()...)
}

// HasCode reports whether the statement contains SQL besides comments and markers.
func (s *Statement) HasCode() bool {
	return len(s.Definitions) > 0 || s.Leading.HasCode || s.Body.HasCode
}

// IsQuery reports whether the statement can carry a WITH clause.
func (s *Statement) IsQuery() bool {
	if s.With || len(s.Definitions) > 0 {
		return true
	}

	switch s.Verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "REPLACE", "VALUES", "TABLE", "(":
		return true
	default:
		// a placeholder may stand for the whole query
		return strings.HasPrefix(s.Verb, "{{")
	}
}

// IsSnippet reports whether the statement carries SQL text beyond CTE definitions.
// Included snippets are spliced at the marker position.
func (s *Statement) IsSnippet() bool {
	return s.Body.HasCode
}
