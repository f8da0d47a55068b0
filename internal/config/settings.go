package config

import "fmt"

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// DatasetsSchema holds one JSONB table per dataset
	DatasetsSchema string
	// MetadataSchema holds dataset_structure, user_datasets and the registry tables
	MetadataSchema string
	// Collation is the nondeterministic ICU collation used for grouping
	Collation string
	MaxConns  int
}

// DSN returns the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string
	Port int

	// APIKey, when set, is required in the X-API-Key header of API requests
	APIKey string
	// AllowedOrigin is the CORS origin, "*" when empty
	AllowedOrigin string
	// AnalyzeEnabled allows analyses to be triggered over HTTP
	AnalyzeEnabled bool
}

// Settings is the process-wide configuration
type Settings struct {
	Database DatabaseConfig
	Server   ServerConfig

	// RecordsToProcess caps the analysed population; <= 0 disables the cap
	RecordsToProcess int
	// Workers bounds per-field concurrency inside one dataset
	Workers int
	// JoinKeyField names the field linking records to the address registry
	JoinKeyField   string
	Locale         string
	DictionaryPath string
	ProgressFile   string
	LogLevel       string
}

// FromEnv builds settings from environment variables
func FromEnv() Settings {
	return Settings{
		Database: DatabaseConfig{
			Host:           GetEnv("PGHOST", "localhost"),
			Port:           GetEnv("PGPORT", "5432"),
			User:           GetEnv("PGUSER", "postgres"),
			Password:       GetEnv("PGPASSWORD", "postgres"),
			Name:           GetEnv("PGDATABASE", "rk"),
			SSLMode:        GetEnv("PGSSLMODE", "disable"),
			DatasetsSchema: GetEnv("DATASETS_SCHEMA", "rk_user_datasets"),
			MetadataSchema: GetEnv("METADATA_SCHEMA", "rk_metadata"),
			Collation:      GetEnv("PG_COLLATION", "analyzer_primary"),
			MaxConns:       GetEnvInt("PG_MAX_CONNS", 20),
		},
		Server: ServerConfig{
			Host:           GetEnv("HTTP_HOST", "0.0.0.0"),
			Port:           GetEnvInt("HTTP_PORT", 8080),
			APIKey:         GetEnv("API_KEY", ""),
			AllowedOrigin:  GetEnv("CORS_ORIGIN", "*"),
			AnalyzeEnabled: GetEnvBool("ANALYZE_ENABLED", true),
		},
		RecordsToProcess: GetEnvInt("RECORDS_TO_PROCESS", 50000),
		Workers:          GetEnvInt("ANALYZER_WORKERS", 4),
		JoinKeyField:     GetEnv("JOIN_KEY_FIELD", "oarObject"),
		Locale:           GetEnv("COLLATION_LOCALE", "ru"),
		DictionaryPath:   GetEnv("DICTIONARY_PATH", ""),
		ProgressFile:     GetEnv("PROGRESS_FILE", "info.json"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
	}
}
