package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AuditModeInline   = "inline"
	AuditModeDeferred = "deferred"

	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"

	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"

	DefaultVertexModel = "gemini-1.5-pro"
	DefaultOpenAIModel = "llama-3.1-8b-instant"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml on
// top, and lets environment variables override any key (app.name -> APP_NAME).
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindEnvKeys registers every key viper should look up in the environment even
// when no config file mentions it. AutomaticEnv alone only covers known keys.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"app.name", "app.environment",
		"gcp.project_id", "gcp.vertex_ai_region", "gcp.documents_bucket",
		"gcp.firestore_database", "gcp.requests_collection", "gcp.staff_collection", "gcp.students_collection",
		"extraction.provider", "extraction.model", "extraction.base_url",
		"extraction.api_key", "extraction.timeout", "extraction.max_attempts",
		"database.driver",
		"database.postgres.host", "database.postgres.port", "database.postgres.database",
		"database.postgres.user", "database.postgres.password", "database.postgres.sslmode",
		"database.postgres.max_connections", "database.postgres.max_idle",
		"database.redis.address", "database.redis.password", "database.redis.db",
		"database.redis.cache_ttl", "database.redis.lock_ttl",
		"audit.mode", "approval.program_coordinator_stage",
		"logging.level", "logging.format", "metrics.pushgateway_url",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bonafideflow"
	}
	if cfg.GCP.VertexAIRegion == "" {
		cfg.GCP.VertexAIRegion = "us-central1"
	}
	if cfg.GCP.RequestsCollection == "" {
		cfg.GCP.RequestsCollection = "requests"
	}
	if cfg.GCP.StaffCollection == "" {
		cfg.GCP.StaffCollection = "staff"
	}
	if cfg.GCP.StudentsCollection == "" {
		cfg.GCP.StudentsCollection = "students"
	}
	if cfg.Extraction.Provider == "" {
		cfg.Extraction.Provider = ProviderVertex
	}
	if cfg.Extraction.Model == "" {
		switch cfg.Extraction.Provider {
		case ProviderOpenAI:
			cfg.Extraction.Model = DefaultOpenAIModel
		default:
			cfg.Extraction.Model = DefaultVertexModel
		}
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 60000
	}
	if cfg.Extraction.MaxAttempts == 0 {
		cfg.Extraction.MaxAttempts = 2
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverFirestore
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Redis.CacheTTL == 0 {
		cfg.Database.Redis.CacheTTL = 300
	}
	if cfg.Database.Redis.LockTTL == 0 {
		cfg.Database.Redis.LockTTL = 120
	}
	if cfg.Audit.Mode == "" {
		cfg.Audit.Mode = AuditModeInline
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.GCP.ProjectID == "" {
		return fmt.Errorf("gcp.project_id must be set; the user directory is read from Firestore")
	}
	switch c.Extraction.Provider {
	case ProviderVertex:
	case ProviderOpenAI:
		if c.Extraction.APIKey == "" {
			return fmt.Errorf("extraction.api_key must be set for the openai extraction provider")
		}
	default:
		return fmt.Errorf("unknown extraction.provider %q", c.Extraction.Provider)
	}
	if c.Extraction.MaxAttempts < 1 || c.Extraction.MaxAttempts > 2 {
		return fmt.Errorf("extraction.max_attempts must be 1 or 2, got %d", c.Extraction.MaxAttempts)
	}
	switch c.Database.Driver {
	case DriverFirestore:
	case DriverPostgres:
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Audit.Mode {
	case AuditModeInline, AuditModeDeferred:
	default:
		return fmt.Errorf("unknown audit.mode %q", c.Audit.Mode)
	}
	if c.Audit.Mode == AuditModeDeferred && c.GCP.DocumentsBucket == "" {
		return fmt.Errorf("gcp.documents_bucket must be set for deferred audits")
	}
	return nil
}
