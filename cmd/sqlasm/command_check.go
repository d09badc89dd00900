package main

import (
	"fmt"
	"strings"

	"github.com/shibukawa/sqlasm/assembler"
	"github.com/shibukawa/sqlasm/fragment"
	"github.com/shibukawa/sqlasm/substitute"
)

// CheckCmd represents the check command
type CheckCmd struct {
	Documents []string `arg:"" optional:"" help:"Documents to check (defaults to every document not included by another file)"`
	Root      string   `help:"Fragment root directory (overrides root_dir)" type:"path"`
}

// Run executes the check command
func (cmd *CheckCmd) Run(ctx *Context) error {
	ws, err := loadWorkspace(ctx, cmd.Root, "")
	if err != nil {
		return err
	}

	store, err := fragment.Load(ws.root, ws.dialect)
	if err != nil {
		return err
	}

	names := cmd.Documents
	if len(names) == 0 {
		names = store.Documents()
	}

	failed := 0

	for _, name := range names {
		doc, err := resolveDocument(store, name)
		if err != nil {
			ctx.Errorf("✗ %s: %v", name, err)
			failed++

			continue
		}

		for _, warning := range documentedDependencyWarnings(store, doc) {
			ctx.Warnf("! %s: %s", doc.Name, warning)
		}

		stmt, err := assembler.Assemble(doc, store, keepAll(store, doc), ws.config.OverridesFor(doc.Name))
		if err != nil {
			ctx.Errorf("✗ %s: %v", doc.Name, err)
			failed++

			continue
		}

		ctx.Successf("✓ %s (%d statements)", doc.Name, len(stmt.Batch))
		ctx.Infof("  fragments: %s", strings.Join(stmt.Fragments, ", "))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", ErrCheckFailed, failed, len(names))
	}

	ctx.Successf("All %d documents assembled", len(names))

	return nil
}

// keepAll binds every placeholder found in the store and in doc to Keep, so
// that a check covers structure without requiring values. doc may live
// outside the root.
func keepAll(store *fragment.Store, doc *fragment.Fragment) substitute.Bindings {
	bindings := substitute.Bindings{Placeholders: make(map[string]substitute.Value)}

	for _, placeholder := range doc.Parsed.ParameterTokens.Placeholders {
		bindings.Placeholders[placeholder] = substitute.Keep()
	}

	for _, name := range store.Names() {
		frag, _ := store.Get(name)
		for _, placeholder := range frag.Parsed.ParameterTokens.Placeholders {
			bindings.Placeholders[placeholder] = substitute.Keep()
		}
	}

	return bindings
}

// documentedDependencyWarnings reports "Dependent CTEs:" style comments that
// name .sql files the store does not contain. Such comments are never resolved.
func documentedDependencyWarnings(store *fragment.Store, doc *fragment.Fragment) []string {
	var warnings []string

	for _, dep := range doc.Parsed.DocumentedDependencies {
		if !strings.HasSuffix(strings.ToLower(dep.Fragment), ".sql") {
			continue
		}

		if _, ok := store.Lookup(dep.Fragment, doc.Name); !ok {
			warnings = append(warnings, fmt.Sprintf("line %d: documented dependency %s does not exist", dep.Line, dep.Fragment))
		}
	}

	return warnings
}
