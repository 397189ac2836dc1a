package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("backoffice")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "pharmflow", cfg.Database.Database)
	assert.Equal(t, "pharmflow", cfg.JWT.Issuer)
	assert.NotZero(t, cfg.JWT.AccessExpiry)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PHARMFLOW_SERVER_PORT", "9090")
	t.Setenv("PHARMFLOW_DATABASE_HOST", "db.internal")

	cfg, err := Load("backoffice")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoadDatabaseURLBackfill(t *testing.T) {
	t.Setenv("PHARMFLOW_DATABASE_URL", "postgres://svc:pw@db.internal:5433/backoffice?sslmode=require")

	cfg, err := Load("backoffice")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "svc", cfg.Database.User)
	assert.Equal(t, "backoffice", cfg.Database.Database)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
}

func TestLoadWithValidation_ProductionRejectsDevSecrets(t *testing.T) {
	t.Setenv("PHARMFLOW_SERVER_ENVIRONMENT", "production")
	t.Setenv("PHARMFLOW_DATABASE_HOST", "db.internal")

	_, err := LoadWithValidation("backoffice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PHARMFLOW_JWT_SECRET")
}

func TestLoadWithValidation_ProductionRejectsLocalhostDB(t *testing.T) {
	t.Setenv("PHARMFLOW_SERVER_ENVIRONMENT", "production")
	t.Setenv("PHARMFLOW_JWT_SECRET", "a-real-secret")
	t.Setenv("PHARMFLOW_RABBITMQ_URL", "amqp://svc:pw@mq.internal:5672/")

	_, err := LoadWithValidation("backoffice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "localhost database not allowed")
}

func TestDatabaseConfigValidate(t *testing.T) {
	cfg := &DatabaseConfig{Host: "localhost"}
	assert.Error(t, cfg.Validate(EnvProduction))
	assert.NoError(t, cfg.Validate(EnvDevelopment))

	cfg = &DatabaseConfig{Host: "db.internal"}
	assert.NoError(t, cfg.Validate(EnvProduction))
}
