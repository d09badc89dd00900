package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/assembler"
	"github.com/shibukawa/sqlasm/tokenizer"
)

// Error definitions
var (
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrQueryExecution      = errors.New("query execution failed")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrDangerousQuery      = errors.New("dangerous query detected")
	ErrEmptyBatch          = errors.New("nothing to execute")
)

// Options controls execution of an assembled statement.
type Options struct {
	Timeout               time.Duration
	MaxRows               int // 0 means unlimited
	ExecuteDangerousQuery bool
}

// Result represents the rows returned by the last statement of a batch.
type Result struct {
	SQL       string        `json:"sql"`
	Duration  time.Duration `json:"duration"`
	Columns   []string      `json:"columns"`
	Rows      [][]any       `json:"rows"`
	Count     int           `json:"count"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Executor runs assembled statements.
type Executor struct {
	db      *sql.DB
	dialect sqlasm.Dialect
}

// NewExecutor creates a new executor. dialect drives the dangerous-query check.
func NewExecutor(db *sql.DB, dialect sqlasm.Dialect) *Executor {
	return &Executor{db: db, dialect: dialect}
}

// IsDangerousQuery reports whether statement is a DELETE or UPDATE without a WHERE
// clause at the top level. CTE bodies and subqueries are ignored.
func IsDangerousQuery(statement string, dialect sqlasm.Dialect) bool {
	tokens, err := tokenizer.NewSqlTokenizer(statement, dialect, tokenizer.TokenizerOptions{SkipWhitespace: true, SkipComments: true}).AllTokens()
	if err != nil {
		normalized := strings.ToUpper(strings.TrimSpace(statement))
		return (strings.HasPrefix(normalized, "DELETE") || strings.HasPrefix(normalized, "UPDATE")) &&
			!strings.Contains(normalized, "WHERE")
	}

	depth := 0
	verb := tokenizer.EOF

	for _, token := range tokens {
		switch token.Type {
		case tokenizer.OPENED_PARENS:
			depth++
		case tokenizer.CLOSED_PARENS:
			depth--
		case tokenizer.SELECT, tokenizer.INSERT, tokenizer.UPDATE, tokenizer.DELETE:
			if depth == 0 && verb == tokenizer.EOF {
				verb = token.Type
			}
		case tokenizer.WHERE:
			if depth == 0 && (verb == tokenizer.UPDATE || verb == tokenizer.DELETE) {
				return false
			}
		}
	}

	return verb == tokenizer.UPDATE || verb == tokenizer.DELETE
}

// Execute runs every statement of the batch in order on one connection, so
// session state such as SET @start_date survives between statements. Rows of
// the last statement are returned.
func (e *Executor) Execute(ctx context.Context, stmt *assembler.Statement, options Options) (*Result, error) {
	if len(stmt.Batch) == 0 {
		return nil, ErrEmptyBatch
	}

	if !options.ExecuteDangerousQuery {
		for _, statement := range stmt.Batch {
			if IsDangerousQuery(statement, e.dialect) {
				return nil, fmt.Errorf("%w: query contains DELETE/UPDATE without WHERE clause. Use --execute-dangerous-query flag to execute anyway", ErrDangerousQuery)
			}
		}
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}
	defer conn.Close()

	startTime := time.Now()

	last := len(stmt.Batch) - 1
	for i, statement := range stmt.Batch[:last] {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return nil, fmt.Errorf("%w: statement %d: %v", ErrQueryExecution, i+1, err)
		}
	}

	result, err := e.query(ctx, conn, stmt.Batch[last], options.MaxRows)
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)

	return result, nil
}

func (e *Executor) query(ctx context.Context, conn *sql.Conn, statement string, maxRows int) (*Result, error) {
	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}
	defer rows.Close()

	result := &Result{SQL: statement}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	for _, ct := range columnTypes {
		result.Columns = append(result.Columns, ct.Name())
	}

	values := make([]any, len(columnTypes))
	scanArgs := make([]any, len(columnTypes))

	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if maxRows > 0 && result.Count >= maxRows {
			result.Truncated = true
			break
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]any, len(values))
		for i, v := range values {
			row[i] = convertSQLValue(v, columnTypes[i].DatabaseTypeName())
		}

		result.Rows = append(result.Rows, row)
		result.Count++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	return result, nil
}

// convertSQLValue converts driver values to display-friendly Go types.
// DECIMAL and NUMERIC columns become decimal.Decimal.
func convertSQLValue(v any, databaseType string) any {
	if v == nil {
		return nil
	}

	if isDecimalType(databaseType) {
		switch value := v.(type) {
		case []byte:
			if d, err := decimal.NewFromString(string(value)); err == nil {
				return d
			}
		case string:
			if d, err := decimal.NewFromString(value); err == nil {
				return d
			}
		case float64:
			return decimal.NewFromFloat(value)
		case int64:
			return decimal.NewFromInt(value)
		}
	}

	switch value := v.(type) {
	case []byte:
		str := string(value)

		if len(str) > 1 && ((str[0] == '{' && str[len(str)-1] == '}') || (str[0] == '[' && str[len(str)-1] == ']')) {
			var jsonValue any
			if err := json.Unmarshal(value, &jsonValue); err == nil {
				return jsonValue
			}
		}

		return str
	default:
		return value
	}
}

func isDecimalType(databaseType string) bool {
	upper := strings.ToUpper(databaseType)
	return strings.HasPrefix(upper, "DECIMAL") || strings.HasPrefix(upper, "NUMERIC") || upper == "NEWDECIMAL"
}
