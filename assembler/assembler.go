package assembler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/directive"
	"github.com/shibukawa/sqlasm/fragment"
	"github.com/shibukawa/sqlasm/resolver"
	"github.com/shibukawa/sqlasm/substitute"
)

// Statement is an assembled document.
type Statement struct {
	// Text is the complete output, statements joined with their original terminators.
	Text string
	// Batch holds each executable statement without terminator.
	Batch []string
	// RemainingBindParameters lists the parameter tokens left in Text
	// (@name bind parameters and kept {{NAME}} placeholders).
	RemainingBindParameters []string
	// Fragments lists the fragments the output was built from, in emission order.
	Fragments []string
	// Overridden lists library definitions replaced by the document, as "fragment:CTE".
	Overridden []string
}

// Options controls assembly.
type Options struct {
	// InlineBindParams replaces @name tokens that have a literal binding.
	InlineBindParams bool
}

// Assemble produces the runnable statement for doc. Bind parameters are left in place.
func Assemble(doc *fragment.Fragment, store *fragment.Store, bindings substitute.Bindings, overrides []string) (*Statement, error) {
	return AssembleWithOptions(doc, store, bindings, overrides, Options{})
}

// AssembleWithOptions is Assemble with explicit options.
//
// Every statement of doc gets its own WITH clause holding the definitions
// reachable from it in dependency order. Included snippets are spliced where
// their marker stood. Parameters are substituted last. Any failure aborts
// the whole assembly; there is no partial output.
func AssembleWithOptions(doc *fragment.Fragment, store *fragment.Store, bindings substitute.Bindings, overrides []string, opts Options) (*Statement, error) {
	var b strings.Builder

	result := &Statement{}
	seen := make(map[string]bool)

	statements, err := attachIncludes(doc.Name, doc.Parsed.Statements, store)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble %s: %w", doc.Name, err)
	}

	for _, stmt := range statements {
		res, err := resolver.Resolve(doc.Name, stmt, store, overrides)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble %s: %w", doc.Name, err)
		}

		text, err := render(doc.Name, stmt, res, store)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble %s: %w", doc.Name, err)
		}

		b.WriteString(text)
		b.WriteString(stmt.Terminator)

		for _, name := range res.Fragments {
			if !seen[name] {
				seen[name] = true
				result.Fragments = append(result.Fragments, name)
			}
		}

		for _, entry := range res.Excluded {
			result.Overridden = append(result.Overridden, entry.Origin+":"+entry.Name)
		}
	}

	substituted, err := substitute.Substitute(b.String(), bindings, substitute.Options{
		Dialect:          store.Dialect(),
		InlineBindParams: opts.InlineBindParams,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble %s: %w", doc.Name, err)
	}

	batch, err := directive.Split(substituted.Text, store.Dialect())
	if err != nil {
		return nil, fmt.Errorf("failed to split assembled %s: %w", doc.Name, err)
	}

	result.Text = substituted.Text
	result.Batch = batch
	result.RemainingBindParameters = substituted.Remaining

	return result, nil
}

// attachIncludes moves CTE-only includes written before a statement that
// cannot take a WITH clause (SET, CREATE, ...) to the next query statement.
// Snippet includes stay where they are. Parsed statements are shared, so
// changed statements are copies.
func attachIncludes(origin string, statements []*directive.Statement, store *fragment.Store) ([]*directive.Statement, error) {
	result := slices.Clone(statements)

	var pending []directive.Piece

	for i, stmt := range statements {
		if stmt.IsQuery() {
			if len(pending) > 0 {
				host := *stmt
				host.Leading.Pieces = append(pending, stmt.Leading.Pieces...)
				result[i] = &host
				pending = nil
			}

			continue
		}

		if !stmt.HasCode() {
			continue
		}

		kept := make([]directive.Piece, 0, len(stmt.Leading.Pieces))

		for _, piece := range stmt.Leading.Pieces {
			if piece.Include != nil && definesOnly(store, piece.Include, origin) {
				pending = append(pending, piece)
				continue
			}

			kept = append(kept, piece)
		}

		if len(kept) != len(stmt.Leading.Pieces) {
			moved := *stmt
			moved.Leading.Pieces = kept
			result[i] = &moved
		}
	}

	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: %s", sqlasm.ErrNoQueryStatement, pending[0].Include.Path)
	}

	return result, nil
}

// definesOnly reports whether the included fragment only defines CTEs.
// Unknown names report false and fail later in the resolver.
func definesOnly(store *fragment.Store, include *directive.Include, from string) bool {
	name, ok := store.Lookup(include.Path, from)
	if !ok {
		return false
	}

	frag, err := store.Get(name)
	if err != nil {
		return false
	}

	return !frag.Parsed.Unit.IsSnippet()
}

// render emits one statement. A statement without include directives is
// returned as written.
func render(origin string, stmt *directive.Statement, res *resolver.Resolution, store *fragment.Store) (string, error) {
	if len(stmt.Includes()) == 0 {
		return stmt.Text, nil
	}

	r := &renderer{store: store}

	leading, err := stmt.Leading.Render(r.expander(origin))
	if err != nil {
		return "", err
	}

	body, err := stmt.Body.Render(r.expander(origin))
	if err != nil {
		return "", err
	}

	if len(res.Definitions) == 0 {
		return leading + body, nil
	}

	definitions := make([]string, 0, len(res.Definitions))

	for _, entry := range res.Definitions {
		text, err := entry.Definition.Body.Render(r.expander(entry.Origin))
		if err != nil {
			return "", err
		}

		definitions = append(definitions, text)
	}

	var b strings.Builder

	b.WriteString(leading)
	b.WriteString("WITH ")

	if res.Recursive && store.Dialect().Supports(sqlasm.FeatureRecursiveKeyword) {
		b.WriteString("RECURSIVE ")
	}

	b.WriteString(strings.Join(definitions, ", "))

	if body = strings.TrimLeft(body, " \t\r\n"); body != "" {
		b.WriteString(" ")
		b.WriteString(body)
	}

	return b.String(), nil
}

type renderer struct {
	store *fragment.Store
}

// expander returns the include expansion for markers written in fragment from.
// Fragments that only define CTEs expand to nothing (their definitions are
// hoisted into the WITH clause); snippets expand to their text.
func (r *renderer) expander(from string) func(*directive.Include) (string, error) {
	return func(include *directive.Include) (string, error) {
		name, ok := r.store.Lookup(include.Path, from)
		if !ok {
			return "", &sqlasm.NotFoundError{Name: include.Path, Chain: []string{from}}
		}

		frag, err := r.store.Get(name)
		if err != nil {
			return "", err
		}

		unit := frag.Parsed.Unit
		if !unit.IsSnippet() {
			return "", nil
		}

		leading, err := unit.Leading.Render(r.expander(name))
		if err != nil {
			return "", err
		}

		body, err := unit.Body.Render(r.expander(name))
		if err != nil {
			return "", err
		}

		text := strings.TrimSpace(leading + body)
		if include.Newline {
			text += "\n"
		}

		return text, nil
	}
}
