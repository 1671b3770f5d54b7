// Package config provides configuration loading and persistence for pdfocr.
// Supports YAML files, environment variable overrides, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all user-facing settings.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	OCR     OCRConfig     `yaml:"ocr"`
	Async   AsyncConfig   `yaml:"async"`
	Google  GoogleConfig  `yaml:"google_cloud"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig holds output placement settings.
type OutputConfig struct {
	// DefaultDir receives <input-stem>.txt when no output path is given.
	// Empty means "next to the input document".
	DefaultDir string `yaml:"default_dir"`
}

// OCRConfig holds extraction settings shared by both modes.
type OCRConfig struct {
	DPI           int      `yaml:"dpi"`
	PreviewDPI    int      `yaml:"preview_dpi"`
	LanguageHints []string `yaml:"language_hints"`
	Workers       int      `yaml:"workers"`
}

// AsyncConfig holds batch-mode settings.
type AsyncConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Bucket              string `yaml:"bucket"`
	ResultPrefix        string `yaml:"result_prefix"`
	PollTimeoutSeconds  int    `yaml:"poll_timeout_seconds"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	CleanupInput        bool   `yaml:"cleanup_input"`
}

// GoogleConfig holds Google Cloud credential settings.
type GoogleConfig struct {
	CredentialsPath string `yaml:"credentials_path"`
	APIKey          string `yaml:"api_key"`
	VisionEndpoint  string `yaml:"vision_endpoint"`
}

// APIConfig holds HTTP server settings for the serve command.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{},
		OCR: OCRConfig{
			DPI:           300,
			PreviewDPI:    100,
			LanguageHints: []string{"ja"},
			Workers:       1,
		},
		Async: AsyncConfig{
			ResultPrefix:        "ocr-results/",
			PollTimeoutSeconds:  300,
			PollIntervalSeconds: 5,
		},
		API: APIConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pdfocr.yaml"
	}
	return filepath.Join(dir, "pdfocr", "config.yaml")
}

// Load reads configuration from path, falling back to defaults when path is
// empty and no file exists at the default location. Environment overrides are
// applied after the file is read.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No user config yet, defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PDFOCR_OUTPUT_DIR"); v != "" {
		c.Output.DefaultDir = v
	}
	if v := os.Getenv("PDFOCR_BUCKET"); v != "" {
		c.Async.Bucket = v
	}
	if v := os.Getenv("PDFOCR_RESULT_PREFIX"); v != "" {
		c.Async.ResultPrefix = v
	}
	if v := os.Getenv("PDFOCR_POLL_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Async.PollTimeoutSeconds = n
		}
	}
	if v := os.Getenv("PDFOCR_DPI"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.OCR.DPI = n
		}
	}
	if v := os.Getenv("PDFOCR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.OCR.Workers = n
		}
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.Google.CredentialsPath = v
	}
	if v := os.Getenv("GOOGLE_VISION_API_KEY"); v != "" {
		c.Google.APIKey = v
	}
	if v := os.Getenv("PDFOCR_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("PDFOCR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PDFOCR_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return fmt.Errorf("ocr.dpi must be between 72 and 1200, got %d", c.OCR.DPI)
	}
	if c.OCR.PreviewDPI < 36 || c.OCR.PreviewDPI > c.OCR.DPI {
		return fmt.Errorf("ocr.preview_dpi must be between 36 and ocr.dpi, got %d", c.OCR.PreviewDPI)
	}
	if c.OCR.Workers < 1 {
		return fmt.Errorf("ocr.workers must be at least 1, got %d", c.OCR.Workers)
	}
	if len(c.OCR.LanguageHints) == 0 {
		return fmt.Errorf("ocr.language_hints must not be empty")
	}
	if c.Async.PollTimeoutSeconds <= 0 {
		return fmt.Errorf("async.poll_timeout_seconds must be positive, got %d", c.Async.PollTimeoutSeconds)
	}
	if c.Async.PollIntervalSeconds <= 0 {
		return fmt.Errorf("async.poll_interval_seconds must be positive, got %d", c.Async.PollIntervalSeconds)
	}
	if strings.HasPrefix(c.Async.ResultPrefix, "/") {
		return fmt.Errorf("async.result_prefix must not start with /")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
