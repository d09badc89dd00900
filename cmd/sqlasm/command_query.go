package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/assembler"
	"github.com/shibukawa/sqlasm/fragment"
	"github.com/shibukawa/sqlasm/query"
)

// QueryCmd represents the query command
type QueryCmd struct {
	Document              string `arg:"" help:"Document to assemble and execute"`
	Root                  string `help:"Fragment root directory (overrides root_dir)" type:"path"`
	BindingFlags          `embed:""`
	Override              []string `help:"Fragment whose CTE definitions the document may replace"`
	DBConnection          string   `name:"db" help:"Database connection string"`
	Driver                string   `help:"Driver for --db (mariadb, mysql, postgres, sqlite)"`
	Environment           string   `name:"env" help:"Environment name from config"`
	Format                string   `help:"Output format (table, json, csv, yaml, markdown)"`
	Output                string   `short:"o" help:"Output file (defaults to stdout)" type:"path"`
	Timeout               int      `help:"Query timeout in seconds"`
	MaxRows               int      `help:"Maximum number of rows to fetch"`
	ExecuteDangerousQuery bool     `help:"Execute DELETE/UPDATE queries without WHERE clause (dangerous!)"`
	DryRun                bool     `help:"Show the assembled SQL without executing"`
}

// Run executes the query command
func (q *QueryCmd) Run(ctx *Context) error {
	config, err := sqlasm.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	format := strings.ToLower(q.Format)
	if format == "" {
		format = config.Query.DefaultFormat
	}

	if !query.IsValidOutputFormat(format) {
		return fmt.Errorf("%w: %s", query.ErrInvalidOutputFormat, format)
	}

	db, dbErr := q.getDatabase(ctx, config)
	if dbErr != nil && !q.DryRun {
		return dbErr
	}

	var dialect sqlasm.Dialect
	if db != nil {
		if dialect, err = query.DialectFromDriver(db.Driver); err != nil {
			return err
		}
	}

	ws, err := loadWorkspace(ctx, q.Root, dialect)
	if err != nil {
		return err
	}

	stmt, err := q.assemble(ctx, ws)
	if err != nil {
		return err
	}

	if q.DryRun {
		q.printDryRun(ctx, stmt, ws.dialect)
		return nil
	}

	options := query.Options{
		Timeout:               time.Duration(firstPositive(q.Timeout, config.Query.Timeout)) * time.Second,
		MaxRows:               firstPositive(q.MaxRows, config.Query.MaxRows),
		ExecuteDangerousQuery: q.ExecuteDangerousQuery || config.Query.ExecuteDangerousQuery,
	}

	openTimeout := options.Timeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	openCtx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	conn, err := query.Open(openCtx, db.Driver, db.Connection)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx.Infof("Using database driver: %s", query.NormalizeDriverName(db.Driver))

	result, err := query.NewExecutor(conn, ws.dialect).Execute(context.Background(), stmt, options)
	if err != nil {
		if errors.Is(err, query.ErrDangerousQuery) {
			ctx.Errorf("This query contains DELETE or UPDATE without a WHERE clause, which could affect all rows in the table.")
			ctx.Errorf("To execute this query anyway, use the --execute-dangerous-query flag.")
		}

		return err
	}

	if result.Truncated {
		ctx.Warnf("Result truncated to %d rows", options.MaxRows)
	}

	output := os.Stdout

	if q.Output != "" {
		file, err := os.Create(q.Output)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOutputFileCreation, err)
		}
		defer file.Close()

		output = file
	}

	if err := query.NewFormatter(query.OutputFormat(format)).Write(result, output); err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	return nil
}

func (q *QueryCmd) assemble(ctx *Context, ws *workspace) (*assembler.Statement, error) {
	store, err := fragment.Load(ws.root, ws.dialect)
	if err != nil {
		return nil, err
	}

	doc, err := resolveDocument(store, q.Document)
	if err != nil {
		return nil, err
	}

	bindings, err := q.bindings(ctx, ws.config, ws.dialect)
	if err != nil {
		return nil, err
	}

	return assembler.AssembleWithOptions(doc, store, bindings,
		slices.Concat(ws.config.OverridesFor(doc.Name), q.Override),
		assembler.Options{InlineBindParams: ws.config.InlineAtParams() && !q.KeepAtParams})
}

func (q *QueryCmd) printDryRun(ctx *Context, stmt *assembler.Statement, dialect sqlasm.Dialect) {
	for i, statement := range stmt.Batch {
		ctx.Infof("-- statement %d", i+1)
		fmt.Println(statement + ";")

		if query.IsDangerousQuery(statement, dialect) {
			ctx.Warnf("WARNING: statement %d is a DELETE/UPDATE without WHERE clause", i+1)
		}
	}

	if len(stmt.RemainingBindParameters) > 0 {
		ctx.Warnf("Unbound parameters: %s", strings.Join(stmt.RemainingBindParameters, ", "))
	}
}

// getDatabase picks the connection from --env, --db, the default environment
// or a tbls configuration next to the config file, in that order.
func (q *QueryCmd) getDatabase(ctx *Context, config *sqlasm.Config) (*sqlasm.Database, error) {
	if q.Environment != "" {
		db, ok := config.Databases[q.Environment]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrEnvironmentNotFound, q.Environment)
		}

		return &db, nil
	}

	if q.DBConnection != "" {
		if q.Driver != "" {
			return &sqlasm.Database{Driver: q.Driver, Connection: q.DBConnection}, nil
		}

		return databaseFromURL(q.DBConnection)
	}

	if name := config.Query.DefaultEnvironment; name != "" {
		if db, ok := config.Databases[name]; ok {
			return &db, nil
		}
	}

	db, err := resolveDatabaseFromTbls(ctx)
	if err != nil {
		if errors.Is(err, ErrTblsDatabaseUnavailable) {
			return nil, ErrNoDatabaseConfigured
		}

		return nil, err
	}

	return db, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}

	return 0
}
