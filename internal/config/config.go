package config

import "fmt"

// Config is the configuration shared by every function in this module.
// It is loaded once per instance and handed to service constructors.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	GCP        GCPConfig        `mapstructure:"gcp"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// GCPConfig holds project-level settings and resource names.
type GCPConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	VertexAIRegion     string `mapstructure:"vertex_ai_region"`
	DocumentsBucket    string `mapstructure:"documents_bucket"`
	FirestoreDatabase  string `mapstructure:"firestore_database"` // empty for (default)
	RequestsCollection string `mapstructure:"requests_collection"`
	StaffCollection    string `mapstructure:"staff_collection"`
	StudentsCollection string `mapstructure:"students_collection"`
}

// ExtractionConfig selects and configures the field extractor.
type ExtractionConfig struct {
	Provider    string `mapstructure:"provider"` // vertex | openai
	Model       string `mapstructure:"model"`
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // firestore | postgres
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
	LockTTL  int    `mapstructure:"lock_ttl"`  // seconds
}

// AuditConfig controls when the extraction-audit cycle runs for a submission.
type AuditConfig struct {
	Mode string `mapstructure:"mode"` // inline | deferred
}

// ApprovalConfig controls the reviewer chain topology.
type ApprovalConfig struct {
	ProgramCoordinatorStage bool `mapstructure:"program_coordinator_stage"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls how event-driven functions publish metrics. HTTP
// functions always serve them on /metrics.
type MetricsConfig struct {
	PushGatewayURL string `mapstructure:"pushgateway_url"` // empty disables pushing
}
