package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func sampleResult() *Result {
	return &Result{
		Columns:  []string{"PatNum", "Balance"},
		Rows:     [][]any{{int64(10), decimal.RequireFromString("125.50")}, {int64(11), nil}},
		Count:    2,
		Duration: 1500 * time.Microsecond,
	}
}

func TestFormatterCSV(t *testing.T) {
	var buf bytes.Buffer

	assert.NoError(t, NewFormatter(FormatCSV).Write(sampleResult(), &buf))
	assert.Equal(t, "PatNum,Balance\n10,125.5\n11,NULL\n", buf.String())
}

func TestFormatterJSON(t *testing.T) {
	var buf bytes.Buffer

	assert.NoError(t, NewFormatter(FormatJSON).Write(sampleResult(), &buf))

	var doc struct {
		Data  []map[string]any `json:"data"`
		Count int              `json:"count"`
	}

	assert.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Count)
	assert.Equal(t, any("125.5"), doc.Data[0]["Balance"])
	assert.Zero(t, doc.Data[1]["Balance"])
}

func TestFormatterYAML(t *testing.T) {
	var buf bytes.Buffer

	assert.NoError(t, NewFormatter(FormatYAML).Write(sampleResult(), &buf))
	assert.Contains(t, buf.String(), "count: 2")
	assert.Contains(t, buf.String(), "PatNum: 10")
}

func TestFormatterTable(t *testing.T) {
	for _, format := range []OutputFormat{FormatTable, FormatMarkdown} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer

			assert.NoError(t, NewFormatter(format).Write(sampleResult(), &buf))

			out := buf.String()
			assert.Contains(t, out, "PatNum")
			assert.Contains(t, out, "125.5")
			assert.Contains(t, out, "NULL")
			assert.Contains(t, out, "2 rows")
		})
	}
}

func TestFormatterEmptyTable(t *testing.T) {
	var buf bytes.Buffer

	assert.NoError(t, NewFormatter(FormatTable).Write(&Result{Columns: []string{"x"}}, &buf))
	assert.Equal(t, "No results", strings.TrimSpace(buf.String()))
}

func TestFormatterInvalid(t *testing.T) {
	err := NewFormatter("xml").Write(sampleResult(), &bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrInvalidOutputFormat))

	assert.True(t, IsValidOutputFormat("Markdown"))
	assert.False(t, IsValidOutputFormat("xml"))
}
