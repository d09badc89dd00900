package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/shibukawa/sqlasm/assembler"
	"github.com/shibukawa/sqlasm/fragment"
)

// AssembleCmd represents the assemble command
type AssembleCmd struct {
	Document     string `arg:"" help:"Document to assemble (path, or name relative to the root)"`
	Root         string `help:"Fragment root directory (overrides root_dir)" type:"path"`
	BindingFlags `embed:""`
	Override     []string `help:"Fragment whose CTE definitions the document may replace"`
	Output       string   `short:"o" help:"Output file (defaults to stdout)" type:"path"`
	Watch        bool     `help:"Re-assemble whenever a fragment changes"`
}

// Run executes the assemble command
func (cmd *AssembleCmd) Run(ctx *Context) error {
	ws, err := loadWorkspace(ctx, cmd.Root, "")
	if err != nil {
		return err
	}

	registry, err := fragment.NewRegistry(ws.root, ws.dialect)
	if err != nil {
		return err
	}

	ctx.Infof("Loaded %d fragments", registry.Store().Len())

	if err := cmd.assemble(ctx, ws, registry.Store()); err != nil {
		if !cmd.Watch {
			return err
		}

		ctx.Errorf("Error: %v", err)
	}

	if !cmd.Watch {
		return nil
	}

	return cmd.watch(ctx, ws, registry)
}

func (cmd *AssembleCmd) assemble(ctx *Context, ws *workspace, store *fragment.Store) error {
	doc, err := resolveDocument(store, cmd.Document)
	if err != nil {
		return err
	}

	bindings, err := cmd.bindings(ctx, ws.config, ws.dialect)
	if err != nil {
		return err
	}

	overrides := slices.Concat(ws.config.OverridesFor(doc.Name), cmd.Override)

	stmt, err := assembler.AssembleWithOptions(doc, store, bindings, overrides, assembler.Options{
		InlineBindParams: ws.config.InlineAtParams() && !cmd.KeepAtParams,
	})
	if err != nil {
		return err
	}

	if len(stmt.Fragments) > 0 {
		ctx.Infof("Included: %s", strings.Join(stmt.Fragments, ", "))
	}

	for _, overridden := range stmt.Overridden {
		ctx.Infof("Overridden: %s", overridden)
	}

	if len(stmt.RemainingBindParameters) > 0 {
		ctx.Infof("Unbound parameters left in output: %s", strings.Join(stmt.RemainingBindParameters, ", "))
	}

	if err := writeOutput(cmd.Output, stmt.Text); err != nil {
		return err
	}

	if cmd.Output != "" {
		ctx.Successf("Assembled %s -> %s", doc.Name, cmd.Output)
	}

	return nil
}

func (cmd *AssembleCmd) watch(ctx *Context, ws *workspace, registry *fragment.Registry) error {
	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fragment.NewWatcher(registry, ws.config.Watch.Debounce, fragment.WatcherCallbacks{
		OnReload: func(store *fragment.Store, changed []string) {
			ctx.Infof("Changed: %s", strings.Join(changed, ", "))

			if err := cmd.assemble(ctx, ws, store); err != nil {
				ctx.Errorf("Error: %v", err)
			}
		},
		OnError: func(err error) {
			ctx.Errorf("Reload failed: %v", err)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	if err := watcher.Start(signalCtx); err != nil {
		_ = watcher.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	ctx.Warnf("Watching %s for changes (Ctrl+C to stop)", ws.root)

	<-signalCtx.Done()

	return watcher.Stop()
}
