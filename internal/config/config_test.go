package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG", "")
	for _, k := range []string{"SERVER_ADDRESS", "DATABASE_DSN", "JWT_SECRET", "LOG_LEVEL", "BACKEND_URL", "TLS_CERT", "TLS_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func TestParseServer_EnvAndDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_DSN", "postgres://localhost/maint")
	t.Setenv("JWT_SECRET", testSecret)

	opts, err := ParseServer(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", opts.Port)
	assert.Equal(t, "postgres://localhost/maint", opts.DatabaseDSN)
	assert.Equal(t, time.Hour, opts.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, opts.RefreshTokenTTL)
	assert.Equal(t, "maintenanceapp://", opts.SiteURL)
	assert.Equal(t, "info", opts.LogLevel)
}

func TestParseServer_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_DSN", "postgres://env/db")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("SERVER_ADDRESS", ":9000")

	opts, err := ParseServer([]string{"-a", ":7000", "-d", "postgres://flag/db"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", opts.Port)
	assert.Equal(t, "postgres://flag/db", opts.DatabaseDSN)
}

func TestParseServer_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "server.json")
	body := `{"address": ":8443", "database_dsn": "postgres://file/db", "jwt_secret": "` + testSecret + `"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("SERVER_ADDRESS", ":9999")

	opts, err := ParseServer([]string{"-c", path})
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/db", opts.DatabaseDSN)
	// environment wins over the file
	assert.Equal(t, ":9999", opts.Port)
}

func TestParseServer_Validation(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "short")

	_, err := ParseServer(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database dsn is required")
	assert.Contains(t, err.Error(), "jwt secret must be at least 32 characters")
}

func TestParseServer_DotEnv(t *testing.T) {
	dir := isolate(t)
	env := "DATABASE_DSN=postgres://dotenv/db\nJWT_SECRET=" + testSecret + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_DSN")
		os.Unsetenv("JWT_SECRET")
	})

	opts, err := ParseServer(nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/db", opts.DatabaseDSN)
}

func TestParseClient(t *testing.T) {
	isolate(t)

	opts, err := ParseClient([]string{"-url", "https://backend.example", "maintenanceapp://#type=recovery"})
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example", opts.BaseURL)
	assert.Equal(t, "maintenanceapp://#type=recovery", opts.Link)
	assert.Equal(t, 2*time.Second, opts.SplashDelay)
	assert.Equal(t, "maintenanceapp://", opts.RedirectURL)
	assert.Equal(t, "warn", opts.LogLevel)
}
