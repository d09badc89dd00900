package resolver

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/sqlasm"
	"github.com/shibukawa/sqlasm/directive"
	"github.com/shibukawa/sqlasm/fragment"
)

func newStore(t *testing.T, files map[string]string) *fragment.Store {
	t.Helper()

	store, err := fragment.NewStore(sqlasm.DialectMariaDB, files)
	assert.NoError(t, err)

	return store
}

func statementOf(t *testing.T, store *fragment.Store, name string) *directive.Statement {
	t.Helper()

	doc, err := store.Get(name)
	assert.NoError(t, err)

	return doc.Parsed.Statements[0]
}

func names(entries []*Entry) []string {
	var result []string
	for _, entry := range entries {
		result = append(result, entry.Origin+":"+entry.Name)
	}

	return result
}

func TestResolveSimpleInclude(t *testing.T) {
	store := newStore(t, map[string]string{
		"base.sql":  "Base AS (SELECT 1 AS x)",
		"child.sql": "<<include:base.sql>>\nSELECT x FROM Base WHERE x = {{TARGET}}",
	})

	res, err := Resolve("child.sql", statementOf(t, store, "child.sql"), store, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"base.sql"}, res.Fragments)
	assert.Equal(t, []string{"base.sql:Base"}, names(res.Definitions))
	assert.False(t, res.Recursive)
	assert.Zero(t, res.Excluded)
}

func TestResolveOrdersByReference(t *testing.T) {
	store := newStore(t, map[string]string{
		"ctes/metrics.sql": "Metrics AS (SELECT SUM(x) AS total FROM Base)",
		"ctes/base.sql":    "Base AS (SELECT 1 AS x)",
		"report.sql": "<<include:ctes/metrics.sql>>\n<<include:ctes/base.sql>>\n" +
			"Summary AS (SELECT total FROM Metrics)\nSELECT * FROM Summary",
	})

	res, err := Resolve("report.sql", statementOf(t, store, "report.sql"), store, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"ctes/metrics.sql", "ctes/base.sql"}, res.Fragments)
	assert.Equal(t, []string{
		"ctes/base.sql:Base",
		"ctes/metrics.sql:Metrics",
		"report.sql:Summary",
	}, names(res.Definitions))
}

func TestResolveNestedAndDiamondIncludes(t *testing.T) {
	store := newStore(t, map[string]string{
		"ctes/base.sql":  "Base AS (SELECT 1 AS x)",
		"ctes/left.sql":  "<<include:base.sql>>\nLeftSide AS (SELECT x FROM Base)",
		"ctes/right.sql": "<<include:ctes/base.sql>>\nRightSide AS (SELECT x FROM Base)",
		"report.sql":     "<<include:ctes/left.sql>>\n<<include:ctes/right.sql>>\nSELECT * FROM LeftSide JOIN RightSide",
	})

	res, err := Resolve("report.sql", statementOf(t, store, "report.sql"), store, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"ctes/base.sql", "ctes/left.sql", "ctes/right.sql"}, res.Fragments)
	assert.Equal(t, []string{
		"ctes/base.sql:Base",
		"ctes/left.sql:LeftSide",
		"ctes/right.sql:RightSide",
	}, names(res.Definitions))
}

func TestResolveCycle(t *testing.T) {
	store := newStore(t, map[string]string{
		"a.sql": "<<include:b.sql>>\nSELECT 1",
		"b.sql": "<<include:a.sql>>\nX AS (SELECT 1)",
	})

	_, err := Resolve("a.sql", statementOf(t, store, "a.sql"), store, nil)
	assert.True(t, errors.Is(err, sqlasm.ErrCircularInclude))

	var cycle *sqlasm.CycleError
	assert.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a.sql", "b.sql", "a.sql"}, cycle.Path)
}

func TestResolveCycleNotThroughOrigin(t *testing.T) {
	store := newStore(t, map[string]string{
		"x.sql": "<<include:y.sql>>\nX AS (SELECT 1)",
		"y.sql": "<<include:x.sql>>\nY AS (SELECT 1)",
	})

	doc, err := fragment.NewDocument("adhoc.sql", "<<include:x.sql>>\nSELECT 1", sqlasm.DialectMariaDB)
	assert.NoError(t, err)

	_, err = Resolve(doc.Name, doc.Parsed.Statements[0], store, nil)

	var cycle *sqlasm.CycleError
	assert.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"x.sql", "y.sql", "x.sql"}, cycle.Path)
}

func TestResolveSelfInclude(t *testing.T) {
	store := newStore(t, map[string]string{
		"self.sql": "<<include:self.sql>>\nSELECT 1",
	})

	_, err := Resolve("self.sql", statementOf(t, store, "self.sql"), store, nil)

	var cycle *sqlasm.CycleError
	assert.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"self.sql", "self.sql"}, cycle.Path)
}

func TestResolveNotFound(t *testing.T) {
	store := newStore(t, map[string]string{
		"ctes/mid.sql": "<<include:missing.sql>>\nMid AS (SELECT 1)",
		"report.sql":   "<<include:ctes/mid.sql>>\nSELECT * FROM Mid",
	})

	_, err := Resolve("report.sql", statementOf(t, store, "report.sql"), store, nil)
	assert.True(t, errors.Is(err, sqlasm.ErrFragmentNotFound))

	var notFound *sqlasm.NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing.sql", notFound.Name)
	assert.Equal(t, []string{"report.sql", "ctes/mid.sql"}, notFound.Chain)
}

func TestResolveDuplicateDefinition(t *testing.T) {
	store := newStore(t, map[string]string{
		"ctes/payments.sql": "PaymentDetailsBase AS (SELECT * FROM payment WHERE PayDate >= '2024-01-01'),\n" +
			"PaymentDetailsMetrics AS (SELECT COUNT(*) AS n FROM PaymentDetailsBase)",
		"report.sql": "<<include:ctes/payments.sql>>\n" +
			"paymentdetailsbase AS (SELECT * FROM payment WHERE PayDate >= '2020-01-01')\n" +
			"SELECT * FROM PaymentDetailsMetrics",
	})

	stmt := statementOf(t, store, "report.sql")

	_, err := Resolve("report.sql", stmt, store, nil)
	assert.True(t, errors.Is(err, sqlasm.ErrDuplicateDefinition))

	var duplicate *sqlasm.DuplicateDefinitionError
	assert.True(t, errors.As(err, &duplicate))
	assert.Equal(t, "paymentdetailsbase", duplicate.Name)
	assert.Equal(t, "ctes/payments.sql", duplicate.First)
	assert.Equal(t, "report.sql", duplicate.Second)

	t.Run("override keeps the document definition", func(t *testing.T) {
		res, err := Resolve("report.sql", stmt, store, []string{"ctes/payments.sql"})
		assert.NoError(t, err)
		assert.Equal(t, []string{
			"report.sql:paymentdetailsbase",
			"ctes/payments.sql:PaymentDetailsMetrics",
		}, names(res.Definitions))
		assert.Equal(t, []string{"ctes/payments.sql:PaymentDetailsBase"}, names(res.Excluded))
	})

	t.Run("override of another fragment does not apply", func(t *testing.T) {
		_, err := Resolve("report.sql", stmt, store, []string{"report.sql"})
		assert.True(t, errors.Is(err, sqlasm.ErrDuplicateDefinition))
	})
}

func TestResolveDuplicateBetweenLibraries(t *testing.T) {
	store := newStore(t, map[string]string{
		"a.sql":      "Foo AS (SELECT 1)",
		"b.sql":      "Foo AS (SELECT 2)",
		"report.sql": "<<include:a.sql>>\n<<include:b.sql>>\nSELECT * FROM Foo",
	})

	_, err := Resolve("report.sql", statementOf(t, store, "report.sql"), store, []string{"a.sql"})

	var duplicate *sqlasm.DuplicateDefinitionError
	assert.True(t, errors.As(err, &duplicate))
	assert.Equal(t, "a.sql", duplicate.First)
	assert.Equal(t, "b.sql", duplicate.Second)
}

func TestResolveUnknownOverride(t *testing.T) {
	store := newStore(t, map[string]string{"report.sql": "SELECT 1"})

	_, err := Resolve("report.sql", statementOf(t, store, "report.sql"), store, []string{"ctes/nope.sql"})

	var notFound *sqlasm.NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "ctes/nope.sql", notFound.Name)
}

func TestResolveReferenceCycle(t *testing.T) {
	store := newStore(t, map[string]string{
		"ctes/loop.sql": "A AS (SELECT * FROM B),\nB AS (SELECT * FROM A)",
		"report.sql":    "<<include:ctes/loop.sql>>\nSELECT * FROM A",
	})

	_, err := Resolve("report.sql", statementOf(t, store, "report.sql"), store, nil)

	var cycle *sqlasm.CycleError
	assert.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"A", "B", "A"}, cycle.Path)
}

func TestResolveRecursiveFragment(t *testing.T) {
	store := newStore(t, map[string]string{
		"ctes/dates.sql": "WITH RECURSIVE Dates AS (SELECT {{START_DATE}} AS d UNION ALL SELECT d + INTERVAL 1 DAY FROM Dates WHERE d < {{END_DATE}})",
		"report.sql":     "<<include:ctes/dates.sql>>\nSELECT d FROM Dates",
	})

	res, err := Resolve("report.sql", statementOf(t, store, "report.sql"), store, nil)
	assert.NoError(t, err)
	assert.True(t, res.Recursive)
	assert.Equal(t, []string{"ctes/dates.sql:Dates"}, names(res.Definitions))
}
