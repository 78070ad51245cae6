// Package config loads server settings.
//
// SOURCES, lowest to highest precedence:
//  1. Defaults()
//  2. the YAML file passed to Load (optional; a missing file is fine)
//  3. environment variables, after a .env file in the working directory
//     has been merged into the environment by godotenv
//
// godotenv never overwrites variables that are already set, so a real
// environment always beats .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// BaseURL is the public origin used for absolute links (pagination,
	// short links, media URLs). No trailing slash.
	BaseURL string `yaml:"base_url"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	PageSize     int `yaml:"page_size"`
	MaxPageSize  int `yaml:"max_page_size"`
	RecipesLimit int `yaml:"recipes_limit"`

	Media MediaConfig `yaml:"media"`

	// PDFFontPath points at a TTF with Cyrillic glyphs. Empty means the
	// built-in Helvetica, which only covers Latin-1.
	PDFFontPath string `yaml:"pdf_font_path"`

	GitHub GitHubConfig `yaml:"github"`

	CORSOrigins       []string `yaml:"cors_origins"`
	LogLevel          string   `yaml:"log_level"`
	AuthRatePerMinute int      `yaml:"auth_rate_per_minute"`
}

// MediaConfig selects the image store. A non-empty S3Bucket switches from
// the local directory to S3.
type MediaConfig struct {
	Dir         string `yaml:"dir"`
	URLPrefix   string `yaml:"url_prefix"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3PublicURL string `yaml:"s3_public_url"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether GitHub sign-in routes should be mounted.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

func Defaults() Config {
	return Config{
		Port:         8080,
		DBPath:       "data/foodgram.db",
		BaseURL:      "http://localhost:8080",
		TokenTTL:     24 * time.Hour,
		PageSize:     6,
		MaxPageSize:  100,
		RecipesLimit: 3,
		Media: MediaConfig{
			Dir:       "data/media",
			URLPrefix: "/media/",
		},
		CORSOrigins:       []string{"*"},
		LogLevel:          "info",
		AuthRatePerMinute: 20,
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config: reading .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// optional
		default:
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = cfg.BaseURL + "/auth/github/callback"
	}

	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail later in confusing
// ways.
func (c Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path is empty")
	}
	if c.PageSize <= 0 {
		problems = append(problems, "page_size must be positive")
	}
	if c.MaxPageSize < c.PageSize {
		problems = append(problems, "max_page_size must be >= page_size")
	}
	if c.RecipesLimit < 0 {
		problems = append(problems, "recipes_limit must not be negative")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		problems = append(problems, "jwt_secret must be at least 16 characters")
	}
	if c.Media.S3Bucket != "" && c.Media.S3Region == "" {
		problems = append(problems, "s3_region is required with s3_bucket")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer", key, v)
		}
		*dst = n
		return nil
	}

	str("DB_PATH", &cfg.DBPath)
	str("BASE_URL", &cfg.BaseURL)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("MEDIA_DIR", &cfg.Media.Dir)
	str("MEDIA_URL", &cfg.Media.URLPrefix)
	str("S3_BUCKET", &cfg.Media.S3Bucket)
	str("S3_REGION", &cfg.Media.S3Region)
	str("S3_PUBLIC_URL", &cfg.Media.S3PublicURL)
	str("S3_ENDPOINT", &cfg.Media.S3Endpoint)
	str("S3_ACCESS_KEY", &cfg.Media.S3AccessKey)
	str("S3_SECRET_KEY", &cfg.Media.S3SecretKey)
	str("PDF_FONT_PATH", &cfg.PDFFontPath)
	str("GITHUB_CLIENT_ID", &cfg.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &cfg.GitHub.ClientSecret)
	str("GITHUB_CALLBACK_URL", &cfg.GitHub.CallbackURL)
	str("LOG_LEVEL", &cfg.LogLevel)

	for key, dst := range map[string]*int{
		"PORT":                 &cfg.Port,
		"PAGE_SIZE":            &cfg.PageSize,
		"MAX_PAGE_SIZE":        &cfg.MaxPageSize,
		"RECIPES_LIMIT":        &cfg.RecipesLimit,
		"AUTH_RATE_PER_MINUTE": &cfg.AuthRatePerMinute,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TOKEN_TTL=%q: %w", v, err)
		}
		cfg.TokenTTL = d
	}

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return nil
}
