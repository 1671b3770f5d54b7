// Package main provides the pdfocr CLI entrypoint.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yomitext/pdfocr/internal/config"
	"github.com/yomitext/pdfocr/internal/extract"
	"github.com/yomitext/pdfocr/internal/observability"
	"github.com/yomitext/pdfocr/internal/vision"
)

// Build information, set via -ldflags at release time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	// Configuration and logger
	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "pdfocr",
	Short: "Japanese PDF text extraction via the Google Cloud Vision API",
	Long: `pdfocr extracts text from scanned Japanese PDF documents using the
Google Cloud Vision API and writes it as plain UTF-8 text with one
"--- Page N ---" section per page.

Two extraction modes are available:
- sync:  rasterize pages locally and annotate them one request per page
- async: upload the PDF to Cloud Storage and run a single batch operation

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load() // Ignore error if .env doesn't exist

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := cfg.Logging.Format
		if outputJSON {
			logFormat = "json"
		}
		logLevel := cfg.Logging.Level
		if verbose {
			logLevel = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      logFormat,
			ServiceName: "pdfocr",
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: user config dir)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add subcommands
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.Encode(map[string]string{
					"version": version,
					"commit":  commit,
					"built":   buildDate,
				})
				return
			}
			fmt.Printf("pdfocr %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}

// newVisionClient builds the OCR client from configuration. At least one of
// an API key or an OAuth access token must be available.
func newVisionClient(cfg *config.Config) (*vision.Client, error) {
	apiKey := cfg.Google.APIKey
	token := os.Getenv("GOOGLE_VISION_ACCESS_TOKEN")
	if apiKey == "" && token == "" {
		return nil, fmt.Errorf("no Vision API credentials: set google_cloud.api_key in the config file, " +
			"GOOGLE_VISION_API_KEY, or GOOGLE_VISION_ACCESS_TOKEN")
	}

	opts := []vision.Option{vision.WithLogger(logger)}
	if cfg.Google.VisionEndpoint != "" {
		opts = append(opts, vision.WithEndpoint(cfg.Google.VisionEndpoint))
	}
	if token != "" {
		opts = append(opts, vision.WithBearerToken(token))
	}
	return vision.NewClient(apiKey, opts...), nil
}

// orchestratorOptions maps configuration onto orchestrator defaults.
func orchestratorOptions(cfg *config.Config) extract.Options {
	return extract.Options{
		DPI:           cfg.OCR.DPI,
		Workers:       cfg.OCR.Workers,
		LanguageHints: cfg.OCR.LanguageHints,
		PollInterval:  time.Duration(cfg.Async.PollIntervalSeconds) * time.Second,
		PollTimeout:   time.Duration(cfg.Async.PollTimeoutSeconds) * time.Second,
		ResultPrefix:  cfg.Async.ResultPrefix,
	}
}
