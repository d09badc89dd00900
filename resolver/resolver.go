package resolver

import (
	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/directive"
	"github.com/shibukawa/sqlasm/fragment"
)

// Entry is one CTE definition taking part in a resolution.
type Entry struct {
	Name       string
	Origin     string // fragment or document that defines it
	Local      bool   // defined by the statement being resolved
	Definition *directive.Definition
}

// Resolution is the linear emission plan for one statement.
type Resolution struct {
	// Fragments lists every fragment reached through include directives,
	// dependencies before their includers.
	Fragments []string
	// Definitions lists the CTE definitions to emit, each after every
	// definition it references.
	Definitions []*Entry
	// Excluded lists library definitions replaced by the statement's own
	// definitions through the override set.
	Excluded []*Entry
	// Recursive is true when the statement or any reached fragment uses WITH RECURSIVE.
	Recursive bool
}

type resolver struct {
	store     *fragment.Store
	visiting  map[string]bool
	done      map[string]bool
	stack     []string
	fragments []string
}

// Resolve expands the include directives of stmt (written in fragment origin)
// and orders all CTE definitions reachable from it.
//
// Errors: *sqlasm.NotFoundError for unknown include or override names,
// *sqlasm.CycleError for circular includes or circular CTE references, and
// *sqlasm.DuplicateDefinitionError for a name defined twice without an override.
func Resolve(origin string, stmt *directive.Statement, store *fragment.Store, overrides []string) (*Resolution, error) {
	overrideSet := make(map[string]bool, len(overrides))

	for _, ref := range overrides {
		name, ok := store.Lookup(ref, origin)
		if !ok {
			return nil, &sqlasm.NotFoundError{Name: ref, Chain: chainOf(origin)}
		}

		overrideSet[name] = true
	}

	r := &resolver{
		store:    store,
		visiting: make(map[string]bool),
		done:     make(map[string]bool),
	}

	if _, err := store.Get(origin); err == nil {
		r.visiting[origin] = true
	}

	r.stack = chainOf(origin)

	for _, include := range stmt.Includes() {
		if err := r.follow(include, origin); err != nil {
			return nil, err
		}
	}

	result := &Resolution{
		Fragments: r.fragments,
		Recursive: stmt.Recursive,
	}

	var entries []*Entry

	for _, name := range r.fragments {
		frag, _ := store.Get(name)

		unit := frag.Parsed.Unit
		if unit.Recursive {
			result.Recursive = true
		}

		for _, def := range unit.Definitions {
			entries = append(entries, &Entry{Name: def.Name, Origin: name, Definition: def})
		}
	}

	for _, def := range stmt.Definitions {
		entries = append(entries, &Entry{Name: def.Name, Origin: origin, Local: true, Definition: def})
	}

	entries, excluded, err := deduplicate(entries, overrideSet)
	if err != nil {
		return nil, err
	}

	result.Excluded = excluded

	ordered, err := order(entries)
	if err != nil {
		return nil, err
	}

	result.Definitions = ordered

	return result, nil
}

// follow resolves one include reference written in from and visits its target.
func (r *resolver) follow(include *directive.Include, from string) error {
	name, ok := r.store.Lookup(include.Path, from)
	if !ok {
		return &sqlasm.NotFoundError{Name: include.Path, Chain: append([]string(nil), r.stack...)}
	}

	return r.visit(name)
}

// visit walks the include graph depth-first. A node met again while still
// in progress closes a cycle.
func (r *resolver) visit(name string) error {
	if r.done[name] {
		return nil
	}

	if r.visiting[name] {
		start := 0

		for i, id := range r.stack {
			if id == name {
				start = i
				break
			}
		}

		path := append(append([]string(nil), r.stack[start:]...), name)

		return &sqlasm.CycleError{Path: path}
	}

	r.visiting[name] = true
	r.stack = append(r.stack, name)

	frag, err := r.store.Get(name)
	if err != nil {
		return err
	}

	for _, include := range frag.Parsed.Unit.Includes() {
		if err := r.follow(include, name); err != nil {
			return err
		}
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.visiting[name] = false
	r.done[name] = true
	r.fragments = append(r.fragments, name)

	return nil
}

// deduplicate enforces unique CTE names (case-insensitive). A statement's own
// definition replaces a library definition only when the library fragment is
// in the override set.
func deduplicate(entries []*Entry, overrideSet map[string]bool) ([]*Entry, []*Entry, error) {
	byName := make(map[string]*Entry, len(entries))
	removed := make(map[*Entry]bool)

	var excluded []*Entry

	for _, entry := range entries {
		key := sqlasm.FoldName(entry.Name)

		existing, ok := byName[key]
		if !ok {
			byName[key] = entry
			continue
		}

		if entry.Local && !existing.Local && overrideSet[existing.Origin] {
			removed[existing] = true
			excluded = append(excluded, existing)
			byName[key] = entry

			continue
		}

		return nil, nil, &sqlasm.DuplicateDefinitionError{
			Name:   entry.Name,
			First:  existing.Origin,
			Second: entry.Origin,
		}
	}

	result := make([]*Entry, 0, len(entries))

	for _, entry := range entries {
		if !removed[entry] {
			result = append(result, entry)
		}
	}

	return result, excluded, nil
}

func chainOf(origin string) []string {
	if origin == "" {
		return nil
	}

	return []string{origin}
}
