package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv("AUTHKEEPER_CONFIG", "")

	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"endpoint_addr_http":              "0.0.0.0:8080",
		"store_backend":                   "memory",
		"access_token_secret":             "a-secret",
		"refresh_token_secret":            "r-secret",
		"access_token_validity_duration":  "2m",
		"refresh_token_validity_duration": 3600000000000,
		"cookie_secure":                   false,
		"s3_bucket":                       "avatars",
		"max_upload_bytes":                1024,
	})

	t.Run("overlays only mentioned fields", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", full}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "0.0.0.0:8080", cfg.EndpointAddrHTTP)
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, BackendMemory, cfg.StoreBackend)
		assert.Equal(t, "a-secret", cfg.AccessTokenSecret)
		assert.Equal(t, "r-secret", cfg.RefreshTokenSecret)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, time.Hour, cfg.RefreshTokenValidityDuration)
		assert.False(t, cfg.CookieSecure)
		assert.Equal(t, "avatars", cfg.S3Bucket)
		assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	})

	t.Run("env var names the file", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("AUTHKEEPER_CONFIG", full)

		cfg := &Config{}
		parseJson(cfg)
		assert.Equal(t, BackendMemory, cfg.StoreBackend)
	})

	t.Run("no file leaves config untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("AUTHKEEPER_CONFIG", "")

		cfg := &Config{StoreBackend: BackendRedis}
		parseJson(cfg)
		assert.Equal(t, BackendRedis, cfg.StoreBackend)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		os.Args = []string{"testbin", "-c", bad}

		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
