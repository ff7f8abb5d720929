package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectFromEnvRequiresDSN(t *testing.T) {
	t.Setenv("MYSQL_DSN", "")
	_, err := ConnectFromEnv()
	assert.Error(t, err)
}

func TestEnsureParam(t *testing.T) {
	assert.Equal(t, "user@tcp(db)/vt?parseTime=true", ensureParam("user@tcp(db)/vt", "parseTime", "true"))
	assert.Equal(t, "user@tcp(db)/vt?a=1&parseTime=true", ensureParam("user@tcp(db)/vt?a=1", "parseTime", "true"))
	// Already present, left alone.
	assert.Equal(t, "user@tcp(db)/vt?parseTime=false", ensureParam("user@tcp(db)/vt?parseTime=false", "parseTime", "true"))
}
