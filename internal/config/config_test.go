package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// clearEnv blanks every key applyEnv reads so the host environment cannot
// leak into Load tests. Empty values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DB_PATH", "BASE_URL", "JWT_SECRET", "TOKEN_TTL", "PAGE_SIZE",
		"MAX_PAGE_SIZE", "RECIPES_LIMIT", "MEDIA_DIR", "MEDIA_URL", "S3_BUCKET",
		"S3_REGION", "S3_PUBLIC_URL", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "PDF_FONT_PATH", "GITHUB_CLIENT_ID",
		"GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL", "CORS_ORIGINS",
		"LOG_LEVEL", "AUTH_RATE_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.PageSize)
	assert.Equal(t, 3, cfg.RecipesLimit)
	assert.False(t, cfg.GitHub.Enabled())
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := applyEnv(&cfg, envMap(map[string]string{
		"PORT":          "9000",
		"BASE_URL":      "https://food.example.com/",
		"TOKEN_TTL":     "90m",
		"PAGE_SIZE":     "10",
		"CORS_ORIGINS":  "https://a.example.com, https://b.example.com,",
		"S3_BUCKET":     "recipes",
		"S3_REGION":     "eu-central-1",
		"LOG_LEVEL":     "debug",
		"RECIPES_LIMIT": "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "https://food.example.com", cfg.BaseURL)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 3, cfg.RecipesLimit, "empty value keeps the default")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "recipes", cfg.Media.S3Bucket)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestApplyEnv_BadValues(t *testing.T) {
	tests := map[string]string{
		"PORT":      "eighty",
		"TOKEN_TTL": "forever",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := Defaults()
			err := applyEnv(&cfg, envMap(map[string]string{key: val}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foodgram.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7000
page_size: 12
max_page_size: 50
media:
  dir: /srv/media
github:
  client_id: abc
  client_secret: def
`), 0o600))

	clearEnv(t)
	t.Setenv("PAGE_SIZE", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port, "from yaml")
	assert.Equal(t, 8, cfg.PageSize, "env beats yaml")
	assert.Equal(t, 50, cfg.MaxPageSize)
	assert.Equal(t, "/srv/media", cfg.Media.Dir)
	assert.Equal(t, "/media/", cfg.Media.URLPrefix, "untouched default")
	assert.True(t, cfg.GitHub.Enabled())
	assert.Equal(t, cfg.BaseURL+"/auth/github/callback", cfg.GitHub.CallbackURL)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "port 0 out of range"},
		{"short secret", func(c *Config) { c.JWTSecret = "tiny" }, "jwt_secret"},
		{"max below page", func(c *Config) { c.MaxPageSize = 2 }, "max_page_size"},
		{"bucket without region", func(c *Config) { c.Media.S3Bucket = "b" }, "s3_region"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
