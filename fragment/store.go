package fragment

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/directive"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Fragment is one loaded SQL file. It is immutable once created.
type Fragment struct {
	Name   string // slash-separated path relative to the store root
	Text   string
	Parsed *directive.ParsedDocument
}

// NewDocument parses text as a fragment that does not belong to a store.
func NewDocument(name, text string, dialect sqlasm.Dialect) (*Fragment, error) {
	if !utf8.ValidString(text) {
		return nil, &sqlasm.LoadError{Path: name, Err: sqlasm.ErrInvalidUTF8}
	}

	text = strings.TrimPrefix(text, string(utf8BOM))

	parsed, err := directive.Parse(text, dialect)
	if err != nil {
		return nil, &sqlasm.LoadError{Path: name, Err: err}
	}

	return &Fragment{Name: name, Text: text, Parsed: parsed}, nil
}

// Store maps fragment names to fragments. It is read-only after construction
// and safe for concurrent use.
type Store struct {
	root      string
	dialect   sqlasm.Dialect
	fragments map[string]*Fragment
	names     []string
}

// Load walks rootDir and loads every .sql file below it.
// Hidden directories (".git" and the like) are skipped.
func Load(rootDir string, dialect sqlasm.Dialect) (*Store, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, &sqlasm.LoadError{Path: rootDir, Err: err}
	}

	if !info.IsDir() {
		return nil, &sqlasm.LoadError{Path: rootDir, Err: sqlasm.ErrRootNotDirectory}
	}

	store := newStore(rootDir, dialect)

	err = filepath.WalkDir(rootDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return &sqlasm.LoadError{Path: filePath, Err: err}
		}

		if d.IsDir() {
			if filePath != rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if !IsSQLFile(filePath) {
			return nil
		}

		rel, err := filepath.Rel(rootDir, filePath)
		if err != nil {
			return &sqlasm.LoadError{Path: filePath, Err: err}
		}

		name := filepath.ToSlash(rel)

		data, err := os.ReadFile(filePath)
		if err != nil {
			return &sqlasm.LoadError{Path: name, Err: err}
		}

		if !utf8.Valid(data) {
			return &sqlasm.LoadError{Path: name, Err: sqlasm.ErrInvalidUTF8}
		}

		fragment, err := NewDocument(name, string(bytes.TrimPrefix(data, utf8BOM)), dialect)
		if err != nil {
			return err
		}

		store.add(fragment)

		return nil
	})
	if err != nil {
		return nil, err
	}

	store.finish()

	return store, nil
}

// NewStore builds a store from in-memory files (name to SQL text).
func NewStore(dialect sqlasm.Dialect, files map[string]string) (*Store, error) {
	store := newStore("", dialect)

	for name, text := range files {
		fragment, err := NewDocument(cleanName(name), text, dialect)
		if err != nil {
			return nil, err
		}

		store.add(fragment)
	}

	store.finish()

	return store, nil
}

func newStore(root string, dialect sqlasm.Dialect) *Store {
	return &Store{
		root:      root,
		dialect:   dialect,
		fragments: make(map[string]*Fragment),
	}
}

func (s *Store) add(fragment *Fragment) {
	s.fragments[fragment.Name] = fragment
}

func (s *Store) finish() {
	s.names = make([]string, 0, len(s.fragments))
	for name := range s.fragments {
		s.names = append(s.names, name)
	}

	sort.Strings(s.names)
}

// Get returns the named fragment or a *sqlasm.NotFoundError.
func (s *Store) Get(name string) (*Fragment, error) {
	if fragment, ok := s.fragments[cleanName(name)]; ok {
		return fragment, nil
	}

	return nil, &sqlasm.NotFoundError{Name: name}
}

// Lookup resolves an include reference written in fragment from. The
// reference is tried relative to the root first, then relative to the
// directory of from.
func (s *Store) Lookup(ref, from string) (string, bool) {
	name := cleanName(ref)
	if _, ok := s.fragments[name]; ok {
		return name, true
	}

	if from != "" {
		name = cleanName(path.Join(path.Dir(from), ref))
		if _, ok := s.fragments[name]; ok {
			return name, true
		}
	}

	return "", false
}

// Names returns all fragment names in sorted order.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of fragments.
func (s *Store) Len() int {
	return len(s.fragments)
}

// Root returns the directory the store was loaded from (empty for in-memory stores).
func (s *Store) Root() string {
	return s.root
}

// Dialect returns the dialect fragments were parsed with.
func (s *Store) Dialect() sqlasm.Dialect {
	return s.dialect
}

// Documents returns the fragments no other fragment includes, in sorted order.
func (s *Store) Documents() []string {
	included := make(map[string]bool)

	for _, name := range s.names {
		for _, ref := range s.fragments[name].Parsed.IncludeDirectives {
			if target, ok := s.Lookup(ref, name); ok {
				included[target] = true
			}
		}
	}

	var result []string

	for _, name := range s.names {
		if !included[name] {
			result = append(result, name)
		}
	}

	return result
}

// IsSQLFile reports whether path has a .sql extension (any case).
func IsSQLFile(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), ".sql")
}

func cleanName(name string) string {
	name = strings.TrimPrefix(path.Clean(strings.TrimSpace(name)), "/")

	return strings.TrimPrefix(name, "./")
}
