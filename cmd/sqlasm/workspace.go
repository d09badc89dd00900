package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/fragment"
)

type workspace struct {
	config  *sqlasm.Config
	dialect sqlasm.Dialect
	root    string
}

// loadWorkspace loads the configuration and settles root directory and
// dialect. Empty arguments fall back to the configuration.
func loadWorkspace(ctx *Context, root string, dialect sqlasm.Dialect) (*workspace, error) {
	config, err := sqlasm.LoadConfig(ctx.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if root == "" {
		root = config.RootDir
		if !filepath.IsAbs(root) {
			root = filepath.Join(resolveConfigBaseDir(ctx.Config), root)
		}
	}

	if dialect == "" {
		dialect = config.SQLDialect()
	}

	ctx.Infof("Fragment root: %s (%s)", root, dialect)

	return &workspace{config: config, dialect: dialect, root: root}, nil
}

func resolveConfigBaseDir(configPath string) string {
	if configPath == "" || filepath.IsAbs(configPath) {
		return filepath.Dir(configPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	return filepath.Dir(filepath.Join(cwd, configPath))
}

// resolveDocument finds the document named by arg. arg is a fragment name
// relative to the root, or a file path. A file outside the root is loaded as
// an ad-hoc document whose includes resolve against the root.
func resolveDocument(store *fragment.Store, arg string) (*fragment.Fragment, error) {
	name := filepath.ToSlash(arg)
	if doc, err := store.Get(name); err == nil {
		return doc, nil
	}

	absArg, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, arg)
	}

	absRoot, err := filepath.Abs(store.Root())
	if err == nil {
		if rel, err := filepath.Rel(absRoot, absArg); err == nil && !strings.HasPrefix(rel, "..") {
			if doc, err := store.Get(filepath.ToSlash(rel)); err == nil {
				return doc, nil
			}
		}
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, arg)
	}

	return fragment.NewDocument(filepath.ToSlash(arg), string(data), store.Dialect())
}

func writeOutput(path, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	if path == "" {
		_, err := os.Stdout.WriteString(text)
		return err
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputFileCreation, err)
	}

	return nil
}
