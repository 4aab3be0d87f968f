package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		GCP: GCPConfig{ProjectID: "demo-project", DocumentsBucket: "docs"},
	}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "bonafideflow", cfg.App.Name)
	assert.Equal(t, "us-central1", cfg.GCP.VertexAIRegion)
	assert.Equal(t, "requests", cfg.GCP.RequestsCollection)
	assert.Equal(t, ProviderVertex, cfg.Extraction.Provider)
	assert.Equal(t, "gemini-1.5-pro", cfg.Extraction.Model)
	assert.Equal(t, 2, cfg.Extraction.MaxAttempts)
	assert.Equal(t, DriverFirestore, cfg.Database.Driver)
	assert.Equal(t, AuditModeInline, cfg.Audit.Mode)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyDefaults_OpenAIModel(t *testing.T) {
	cfg := &Config{Extraction: ExtractionConfig{Provider: ProviderOpenAI}}
	applyDefaults(cfg)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Extraction.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing project",
			mutate:  func(c *Config) { c.GCP.ProjectID = "" },
			wantErr: "gcp.project_id",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Extraction.Provider = "bard" },
			wantErr: "unknown extraction.provider",
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.Extraction.Provider = ProviderOpenAI
			},
			wantErr: "extraction.api_key",
		},
		{
			name:    "attempt cap above two",
			mutate:  func(c *Config) { c.Extraction.MaxAttempts = 3 },
			wantErr: "max_attempts",
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Database.Driver = DriverPostgres },
			wantErr: "database.postgres.host",
		},
		{
			name:    "unknown audit mode",
			mutate:  func(c *Config) { c.Audit.Mode = "later" },
			wantErr: "unknown audit.mode",
		},
		{
			name: "deferred without bucket",
			mutate: func(c *Config) {
				c.Audit.Mode = AuditModeDeferred
				c.GCP.DocumentsBucket = ""
			},
			wantErr: "documents_bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "env-project")
	t.Setenv("GCP_DOCUMENTS_BUCKET", "env-docs")
	t.Setenv("AUDIT_MODE", "deferred")
	t.Setenv("LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-project", cfg.GCP.ProjectID)
	assert.Equal(t, "env-docs", cfg.GCP.DocumentsBucket)
	assert.Equal(t, AuditModeDeferred, cfg.Audit.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "requests", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=requests sslmode=disable", p.GetDSN())
}
