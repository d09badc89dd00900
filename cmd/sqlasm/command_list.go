package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shibukawa/sqlasm/fragment"
)

// ListCmd represents the list command
type ListCmd struct {
	Root      string `help:"Fragment root directory (overrides root_dir)" type:"path"`
	Documents bool   `help:"List only documents not included by another file"`
}

// Run executes the list command
func (cmd *ListCmd) Run(ctx *Context) error {
	ws, err := loadWorkspace(ctx, cmd.Root, "")
	if err != nil {
		return err
	}

	store, err := fragment.Load(ws.root, ws.dialect)
	if err != nil {
		return err
	}

	names := store.Names()
	if cmd.Documents {
		names = store.Documents()
	}

	return listFragments(os.Stdout, store, names)
}

func listFragments(w io.Writer, store *fragment.Store, names []string) error {
	for _, name := range names {
		frag, err := store.Get(name)
		if err != nil {
			return err
		}

		parsed := frag.Parsed

		fmt.Fprintln(w, name)

		printList(w, "defines", parsed.CTEDefinitions)
		printList(w, "includes", parsed.IncludeDirectives)
		printList(w, "placeholders", wrap(parsed.ParameterTokens.Placeholders, "{{", "}}"))
		printList(w, "bind parameters", wrap(parsed.ParameterTokens.BindParams, "@", ""))
	}

	return nil
}

func printList(w io.Writer, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(items, ", "))
	}
}

func wrap(items []string, prefix, suffix string) []string {
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + item + suffix
	}

	return result
}
