package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DBDriver string `yaml:"db_driver"`
	DBPath   string `yaml:"db_path"`
	DBDSN    string `yaml:"db_dsn"`

	CategoriesDump string `yaml:"categories_dump"`
	ProductsDump   string `yaml:"products_dump"`
	RulesFile      string `yaml:"rules_file"`

	ImageDir         string `yaml:"image_dir"`
	ImageS3Bucket    string `yaml:"image_s3_bucket"`
	ImageS3Prefix    string `yaml:"image_s3_prefix"`
	ImageS3Region    string `yaml:"image_s3_region"`
	ImageS3Endpoint  string `yaml:"image_s3_endpoint"`
	ImageURLPrefix   string `yaml:"image_url_prefix"`
	PlaceholderImage string `yaml:"placeholder_image"`

	Workers     int    `yaml:"workers"`
	LogLevel    string `yaml:"log_level"`
	MetricsFile string `yaml:"metrics_file"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/catmig/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		DBDriver:         "sqlite3",
		ImageURLPrefix:   "/images/products",
		PlaceholderImage: "/images/placeholder.jpg",
		Workers:          1,
		LogLevel:         "info",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// The YAML file is optional; a malformed one is not
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	strs := []struct {
		env  string
		file string
		dst  *string
	}{
		{"CATMIG_DB_DRIVER", "", &cfg.DBDriver},
		{"CATMIG_DB_PATH", "CATMIG_DB_PATH_FILE", &cfg.DBPath},
		{"CATMIG_DB_DSN", "CATMIG_DB_DSN_FILE", &cfg.DBDSN},
		{"CATMIG_CATEGORIES_DUMP", "", &cfg.CategoriesDump},
		{"CATMIG_PRODUCTS_DUMP", "", &cfg.ProductsDump},
		{"CATMIG_RULES_FILE", "", &cfg.RulesFile},
		{"CATMIG_IMAGE_DIR", "", &cfg.ImageDir},
		{"CATMIG_IMAGE_S3_BUCKET", "", &cfg.ImageS3Bucket},
		{"CATMIG_IMAGE_S3_PREFIX", "", &cfg.ImageS3Prefix},
		{"CATMIG_IMAGE_S3_REGION", "", &cfg.ImageS3Region},
		{"CATMIG_IMAGE_S3_ENDPOINT", "", &cfg.ImageS3Endpoint},
		{"CATMIG_IMAGE_URL_PREFIX", "", &cfg.ImageURLPrefix},
		{"CATMIG_PLACEHOLDER_IMAGE", "", &cfg.PlaceholderImage},
		{"CATMIG_LOG_LEVEL", "", &cfg.LogLevel},
		{"CATMIG_METRICS_FILE", "", &cfg.MetricsFile},
	}
	for _, s := range strs {
		if v := getEnvOrFile(s.env, s.file); v != "" {
			*s.dst = v
		}
	}

	if workers := os.Getenv("CATMIG_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid CATMIG_WORKERS %q: must be a positive integer", workers)
		}
		cfg.Workers = n
	}

	if cfg.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(homeDir, ".local", "share", "catmig", "catalog.db")
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver: the DSN for
// Postgres, the database file otherwise.
func (c *Config) DSN() string {
	if c.DBDriver == "pgx" {
		return c.DBDSN
	}
	return c.DBPath
}

// loadYAMLConfig loads configuration from ~/.config/catmig/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "catmig", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return nil
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if fileVar == "" {
		return ""
	}
	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
