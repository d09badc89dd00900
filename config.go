package sqlasm

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the sqlasm configuration
type Config struct {
	RootDir          string              `yaml:"root_dir"`
	Dialect          string              `yaml:"dialect"`
	Parameters       map[string]string   `yaml:"parameters"`
	BindParams       map[string]string   `yaml:"bind_params"`
	InlineBindParams *bool               `yaml:"inline_bind_params"`
	Overrides        map[string][]string `yaml:"overrides"`
	Watch            WatchConfig         `yaml:"watch"`
	Databases        map[string]Database `yaml:"databases"`
	Query            QueryConfig         `yaml:"query"`
}

// Database represents database connection configuration
type Database struct {
	Driver     string `yaml:"driver"`
	Connection string `yaml:"connection"`
}

// WatchConfig represents live reload settings
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// QueryConfig represents query execution settings
type QueryConfig struct {
	DefaultFormat         string `yaml:"default_format"`
	DefaultEnvironment    string `yaml:"default_environment"`
	Timeout               int    `yaml:"timeout"`
	MaxRows               int    `yaml:"max_rows"`
	ExecuteDangerousQuery bool   `yaml:"execute_dangerous_query"`
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Return default configuration if file doesn't exist
	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	return &config, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if config.Dialect != "" {
		if _, err := ParseDialect(config.Dialect); err != nil {
			return fmt.Errorf("%w: invalid dialect '%s': must be one of mariadb, mysql, postgres, sqlite", ErrConfigValidation, config.Dialect)
		}
	}

	for name := range config.Parameters {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: parameters.%s: invalid placeholder name", ErrConfigValidation, name)
		}
	}

	for name := range config.BindParams {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: bind_params.%s: invalid parameter name (omit the leading '@')", ErrConfigValidation, name)
		}
	}

	for doc, fragments := range config.Overrides {
		if len(fragments) == 0 {
			return fmt.Errorf("%w: overrides.%s: at least one fragment is required", ErrConfigValidation, doc)
		}
	}

	for name, db := range config.Databases {
		if db.Connection == "" {
			return fmt.Errorf("%w: databases.%s: connection is required", ErrConfigValidation, name)
		}
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must be >= 0, got %s", ErrConfigValidation, config.Watch.Debounce)
	}

	if config.Query.Timeout < 0 {
		return fmt.Errorf("%w: query.timeout must be non-negative, got %d", ErrConfigValidation, config.Query.Timeout)
	}

	if config.Query.MaxRows < 0 {
		return fmt.Errorf("%w: query.max_rows must be non-negative, got %d", ErrConfigValidation, config.Query.MaxRows)
	}

	if config.Query.DefaultFormat != "" {
		validFormats := map[string]bool{
			"table":    true,
			"json":     true,
			"csv":      true,
			"yaml":     true,
			"markdown": true,
		}
		if !validFormats[config.Query.DefaultFormat] {
			return fmt.Errorf("%w: query.default_format '%s' is invalid: must be one of table, json, csv, yaml, markdown", ErrConfigValidation, config.Query.DefaultFormat)
		}
	}

	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		RootDir:    "./queries",
		Dialect:    string(DialectMariaDB),
		Parameters: make(map[string]string),
		BindParams: make(map[string]string),
		Overrides:  make(map[string][]string),
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Databases: make(map[string]Database),
		Query: QueryConfig{
			DefaultFormat:      "table",
			DefaultEnvironment: "development",
			Timeout:            30,
			MaxRows:            1000,
		},
	}
}

// applyDefaults applies default values to missing configuration fields
func applyDefaults(config *Config) {
	if config.RootDir == "" {
		config.RootDir = "./queries"
	}

	if config.Dialect == "" {
		config.Dialect = string(DialectMariaDB)
	}

	if config.Parameters == nil {
		config.Parameters = make(map[string]string)
	}

	if config.BindParams == nil {
		config.BindParams = make(map[string]string)
	}

	if config.Overrides == nil {
		config.Overrides = make(map[string][]string)
	}

	if config.Databases == nil {
		config.Databases = make(map[string]Database)
	}

	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}

	if config.Query.DefaultFormat == "" {
		config.Query.DefaultFormat = "table"
	}

	if config.Query.Timeout == 0 {
		config.Query.Timeout = 30
	}

	if config.Query.MaxRows == 0 {
		config.Query.MaxRows = 1000
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareEnvVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	return bareEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in paths and connections.
// Parameter values are SQL literals and are left untouched.
func expandConfigEnvVars(config *Config) {
	for name, db := range config.Databases {
		db.Connection = expandEnvVars(db.Connection)
		db.Driver = expandEnvVars(db.Driver)
		config.Databases[name] = db
	}

	config.RootDir = expandEnvVars(config.RootDir)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// SQLDialect returns the parsed dialect, falling back to MariaDB.
func (c *Config) SQLDialect() Dialect {
	d, err := ParseDialect(c.Dialect)
	if err != nil {
		return DialectMariaDB
	}

	return d
}

// InlineAtParams reports whether bound @name parameters are inlined.
// Unset means true.
func (c *Config) InlineAtParams() bool {
	return c.InlineBindParams == nil || *c.InlineBindParams
}

// OverridesFor returns the configured override set for a document.
func (c *Config) OverridesFor(doc string) []string {
	return c.Overrides[doc]
}
