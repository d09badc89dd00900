package query

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported output formats
type OutputFormat string

const (
	FormatTable    OutputFormat = "table"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatYAML     OutputFormat = "yaml"
	FormatMarkdown OutputFormat = "markdown"
)

// Formatter formats query results
type Formatter struct {
	Format OutputFormat
}

// NewFormatter creates a new result formatter
func NewFormatter(format OutputFormat) *Formatter {
	return &Formatter{Format: format}
}

// Write formats result according to the configured format.
func (f *Formatter) Write(result *Result, output io.Writer) error {
	switch f.Format {
	case FormatTable:
		return f.formatAsTable(result, output, lipgloss.NormalBorder())
	case FormatMarkdown:
		return f.formatAsTable(result, output, lipgloss.MarkdownBorder())
	case FormatJSON:
		return f.formatAsJSON(result, output)
	case FormatCSV:
		return f.formatAsCSV(result, output)
	case FormatYAML:
		return f.formatAsYAML(result, output)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOutputFormat, f.Format)
	}
}

func (f *Formatter) formatAsTable(result *Result, output io.Writer, border lipgloss.Border) error {
	if len(result.Rows) == 0 {
		_, err := fmt.Fprintln(output, "No results")
		return err
	}

	t := table.New().Border(border).Headers(result.Columns...)

	if f.Format == FormatMarkdown {
		t = t.BorderTop(false).BorderBottom(false)
	}

	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, val := range row {
			cells[i] = formatValue(val)
		}

		t = t.Row(cells...)
	}

	if _, err := fmt.Fprintln(output, t.Render()); err != nil {
		return err
	}

	_, err := fmt.Fprintln(output, summary(result))

	return err
}

func summary(result *Result) string {
	text := fmt.Sprintf("%d rows (%v)", result.Count, result.Duration.Round(time.Millisecond))
	if result.Truncated {
		text += ", truncated"
	}

	return text
}

func (f *Formatter) formatAsJSON(result *Result, output io.Writer) error {
	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")

	return encoder.Encode(resultDocument(result, func(v any) any { return v }))
}

func (f *Formatter) formatAsYAML(result *Result, output io.Writer) error {
	data, err := yaml.Marshal(resultDocument(result, yamlValue))
	if err != nil {
		return fmt.Errorf("failed to marshal results to YAML: %w", err)
	}

	_, err = output.Write(data)

	return err
}

func (f *Formatter) formatAsCSV(result *Result, output io.Writer) error {
	writer := csv.NewWriter(output)

	if err := writer.Write(result.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range result.Rows {
		values := make([]string, len(row))
		for i, val := range row {
			values[i] = formatValue(val)
		}

		if err := writer.Write(values); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func resultDocument(result *Result, convert func(any) any) map[string]any {
	data := make([]map[string]any, 0, len(result.Rows))

	for _, row := range result.Rows {
		record := make(map[string]any, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(row) {
				record[col] = convert(row[i])
			}
		}

		data = append(data, record)
	}

	doc := map[string]any{
		"data":     data,
		"count":    result.Count,
		"duration": result.Duration.String(),
	}

	if result.Truncated {
		doc["truncated"] = true
	}

	return doc
}

func yamlValue(val any) any {
	switch v := val.(type) {
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return v
	}
}

// formatValue formats a value as a string
func formatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case []byte:
		return string(v)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsValidOutputFormat checks if the output format is valid
func IsValidOutputFormat(format string) bool {
	f := OutputFormat(strings.ToLower(format))
	return f == FormatTable || f == FormatJSON || f == FormatCSV || f == FormatYAML || f == FormatMarkdown
}
