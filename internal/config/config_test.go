package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashreq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.HTTP.TimeOut)
	assert.Equal(t, "any", cfg.Origin.GuardMode)
	assert.Equal(t, SessionNone, cfg.Session.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
http:
  timeout: 5
  compressed: true
origin:
  dev_path: /dev-api
  prod_path: /prod-api
  guard_mode: all
session:
  backend: redis
  redis_addr: 127.0.0.1:6379
script:
  cache_size: 16
  env:
    tenant: t1
log:
  level: debug
  format: console
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.HTTP.TimeOut)
	assert.True(t, cfg.HTTP.Compressed)
	assert.Equal(t, "/dev-api", cfg.Origin.DevPath)
	assert.Equal(t, "all", cfg.Origin.GuardMode)
	assert.Equal(t, SessionRedis, cfg.Session.Backend)
	assert.Equal(t, 16, cfg.Script.CacheSize)
	assert.Equal(t, "t1", cfg.Script.Env["tenant"])
	assert.Equal(t, "console", cfg.Log.Format)
	// untouched defaults survive
	assert.Equal(t, 7, cfg.Log.MaxAge)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "http: [1"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "session:\n  backend: jwt\n"))
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDevPath:   "/d",
		EnvProdPath:  "/p",
		EnvJWTSecret: "s",
		EnvTimeOut:   "12",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "/d", cfg.Origin.DevPath)
	assert.Equal(t, "/p", cfg.Origin.ProdPath)
	assert.Equal(t, "s", cfg.Session.JWTSecret)
	assert.Equal(t, 12, cfg.HTTP.TimeOut)

	env[EnvTimeOut] = "soon"
	assert.Error(t, Default().ApplyEnv(lookup))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.HTTP.TimeOut = -1
	cfg.Origin.GuardMode = "some"
	cfg.Session.Backend = "sqlite"
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	for _, part := range []string{"timeout", "guard_mode", "backend", "log.format"} {
		assert.ErrorContains(t, err, part)
	}

	cfg = Default()
	cfg.Session.Backend = SessionRedis
	assert.ErrorContains(t, cfg.Validate(), "redis_addr")
}
