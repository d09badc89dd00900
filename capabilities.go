package sqlasm

// Capabilities defines which lexical features are enabled for each dialect
var Capabilities = map[Dialect]map[Feature]bool{
	DialectMariaDB: {
		FeatureHashComment:      true,
		FeatureBacktickQuote:    true,
		FeatureBackslashEscape:  true,
		FeatureRecursiveKeyword: true,
	},
	DialectMySQL: {
		FeatureHashComment:      true,
		FeatureBacktickQuote:    true,
		FeatureBackslashEscape:  true,
		FeatureRecursiveKeyword: true,
	},
	DialectPostgres: {
		FeatureHashComment:      false,
		FeatureBacktickQuote:    false,
		FeatureBackslashEscape:  false,
		FeatureRecursiveKeyword: true,
	},
	DialectSQLite: {
		FeatureHashComment:      false,
		FeatureBacktickQuote:    true,
		FeatureBackslashEscape:  false,
		FeatureRecursiveKeyword: true,
	},
}

// Feature represents DB-specific feature flags
type Feature int

const (
	FeatureHashComment      Feature = iota + 1 // # line comment
	FeatureBacktickQuote                       // `identifier`
	FeatureBackslashEscape                     // 'it\'s'
	FeatureRecursiveKeyword                    // WITH RECURSIVE
)

// Supports reports whether the dialect enables the feature.
func (d Dialect) Supports(f Feature) bool {
	return Capabilities[d][f]
}
