package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMysqlConfig(t *testing.T) {
	cfg, err := mysqlConfig("user:password@tcp(localhost:3306)/threat_engine")
	require.NoError(t, err)

	// Affected rows must mean matched rows or Update misreports no-op
	// writes as missing records
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, "user", cfg.User)
	assert.Equal(t, "threat_engine", cfg.DBName)
	assert.Contains(t, cfg.FormatDSN(), "clientFoundRows=true")
}

func TestMysqlConfig_PreservesParams(t *testing.T) {
	cfg, err := mysqlConfig("user:password@tcp(db:3306)/threat_engine?parseTime=true&clientFoundRows=false")
	require.NoError(t, err)

	assert.True(t, cfg.ClientFoundRows)
	assert.True(t, cfg.ParseTime)
}

func TestMysqlConfig_InvalidDSN(t *testing.T) {
	_, err := mysqlConfig("not a dsn")
	assert.Error(t, err)
}
