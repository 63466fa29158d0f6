package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseConfiguration(t *testing.T) {
	t.Run("Reads configuration from environment", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "54321")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err)
		assert.Equal(t, "localhost", config.Host)
		assert.Equal(t, "54321", config.Port)
		assert.Equal(t, "database", config.Database)
		assert.Equal(t, "public", config.Schema)
		assert.Equal(t, "disable", config.SSLMode)
	})

	t.Run("Applies schema and sslmode defaults", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5432")
		t.Setenv("DB_SCHEMA", "")
		t.Setenv("DB_SSLMODE", "")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err)
		assert.Equal(t, "public", config.Schema)
		assert.Equal(t, "disable", config.SSLMode)
	})

	t.Run("Fails on missing variables", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "")
		t.Setenv("DB_HOST", "")

		_, err := NewDatabaseConfiguration()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_HOST")
		assert.Contains(t, err.Error(), "DB_PORT")
	})
}

func TestConnectionString(t *testing.T) {
	config := &DatabaseConfiguration{
		Host:     "db",
		Port:     "5432",
		Database: "facts",
		Username: "user",
		Password: "secret",
		Schema:   "public",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5432 dbname=facts user=user password=secret sslmode=disable search_path=public", config.ConnectionString())
}

func TestDatabaseClose(t *testing.T) {
	t.Run("Close handles nil database", func(t *testing.T) {
		var db *Database
		assert.NoError(t, db.Close())
	})
}
