package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yomitext/pdfocr/internal/config"
	"github.com/yomitext/pdfocr/internal/domain"
	"github.com/yomitext/pdfocr/internal/extract"
	"github.com/yomitext/pdfocr/internal/gcs"
	"github.com/yomitext/pdfocr/internal/pdf"
)

// newExtractCmd creates the extract subcommand.
func newExtractCmd() *cobra.Command {
	var (
		outputPath    string
		modeFlag      string
		bucket        string
		resultPrefix  string
		dpi           int
		workers       int
		languageHints []string
		pollTimeout   int
		cleanupInput  bool
	)

	cmd := &cobra.Command{
		Use:   "extract [flags] <pdf-file>",
		Short: "Extract text from a PDF document",
		Long: `Extract runs OCR over every page of a PDF and writes the recognized text
to a UTF-8 file with one "--- Page N ---" section per page.

Sync mode rasterizes pages locally and sends one annotate request per page.
Async mode uploads the whole document to a Cloud Storage bucket, submits a
single batch operation, and downloads the sharded JSON results. Async needs
a bucket (--bucket or config) and Cloud Storage credentials.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docPath := args[0]

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mode, err := resolveMode(modeFlag, cfg)
			if err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = defaultOutputPath(docPath, cfg.Output.DefaultDir)
			}
			if bucket == "" {
				bucket = cfg.Async.Bucket
			}
			if resultPrefix == "" {
				resultPrefix = cfg.Async.ResultPrefix
			}
			if pollTimeout <= 0 {
				pollTimeout = cfg.Async.PollTimeoutSeconds
			}
			if !cmd.Flags().Changed("cleanup-input") {
				cleanupInput = cfg.Async.CleanupInput
			}

			ocrClient, err := newVisionClient(cfg)
			if err != nil {
				return err
			}

			var blobs domain.BlobStore
			if mode == domain.ModeAsync {
				store, err := gcs.NewStore(ctx, cfg.Google.CredentialsPath, logger)
				if err != nil {
					return fmt.Errorf("create storage client: %w", err)
				}
				defer store.Close()
				blobs = store
			}

			orch := extract.NewOrchestrator(pdf.NewRasterizer(logger), ocrClient, blobs, logger, orchestratorOptions(cfg))

			req := domain.RunRequest{
				DocumentPath:  docPath,
				OutputPath:    outputPath,
				Mode:          mode,
				Bucket:        bucket,
				ResultPrefix:  resultPrefix,
				PollTimeout:   time.Duration(pollTimeout) * time.Second,
				CleanupInput:  cleanupInput,
				DPI:           dpi,
				Workers:       workers,
				LanguageHints: languageHints,
			}

			u := NewUI(outputJSON, noColor)
			u.Section("OCR Extraction")
			u.KeyValue("Document", docPath)
			u.KeyValue("Output", outputPath)
			u.KeyValue("Mode", string(mode))
			if mode == domain.ModeAsync {
				u.KeyValue("Bucket", bucket)
			}
			u.Newline()

			started := time.Now()
			handle, err := orch.Start(ctx, req)
			if err != nil {
				return err
			}

			// The run owns its pipeline; this loop only renders progress.
			switch mode {
			case domain.ModeSync:
				bar := u.ProgressBar("starting")
				for ev := range handle.Events() {
					bar.Update(ev.Percent, ev.Message)
				}
				bar.Finish()
			case domain.ModeAsync:
				spin := u.Spinner("starting")
				spin.Start()
				for ev := range handle.Events() {
					spin.UpdateMessage(fmt.Sprintf("%s (%d%%)", ev.Message, ev.Percent))
				}
				spin.Stop()
			}

			// The event stream closes only after the terminal event, so the
			// run is already settled here.
			snap, runErr := handle.Wait(context.Background())

			if outputJSON {
				return printRunJSON(snap, time.Since(started))
			}

			switch snap.Status {
			case domain.StatusCompleted:
				u.Success("Extraction completed in %s", FormatDuration(time.Since(started)))
				u.KeyValue("Pages", snap.TotalPages)
				u.KeyValue("Output", snap.OutputPath)
				return nil
			case domain.StatusCancelled:
				u.Warning("Run cancelled, no output written")
				return fmt.Errorf("run cancelled")
			default:
				if domain.IsTimeoutError(runErr) {
					u.Warning("The batch operation did not finish in time, retry with a larger --poll-timeout")
				}
				return fmt.Errorf("extraction failed: %w", runErr)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output text file (default: <input-stem>.txt)")
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "extraction mode: sync or async (default from config)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Cloud Storage bucket for async mode")
	cmd.Flags().StringVar(&resultPrefix, "result-prefix", "", "object prefix for async results")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "rasterization DPI for sync mode (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent page requests in sync mode (default from config)")
	cmd.Flags().StringSliceVar(&languageHints, "lang", nil, "language hints for OCR (default from config)")
	cmd.Flags().IntVar(&pollTimeout, "poll-timeout", 0, "async poll timeout in seconds (default from config)")
	cmd.Flags().BoolVar(&cleanupInput, "cleanup-input", false, "delete the uploaded input object after a successful async run")

	return cmd
}

// resolveMode picks the extraction mode from the flag, falling back to the
// configured default.
func resolveMode(flag string, cfg *config.Config) (domain.Mode, error) {
	if flag != "" {
		return domain.ParseMode(flag)
	}
	if cfg.Async.Enabled {
		return domain.ModeAsync, nil
	}
	return domain.ModeSync, nil
}

// defaultOutputPath places <input-stem>.txt in the configured output
// directory, or next to the input document when none is configured.
func defaultOutputPath(docPath, defaultDir string) string {
	stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	dir := defaultDir
	if dir == "" {
		dir = filepath.Dir(docPath)
	}
	return filepath.Join(dir, stem+".txt")
}

// printRunJSON writes the terminal run state to stdout for automation.
func printRunJSON(snap domain.RunSnapshot, elapsed time.Duration) error {
	out := map[string]interface{}{
		"id":       snap.ID,
		"document": snap.DocumentPath,
		"output":   snap.OutputPath,
		"mode":     string(snap.Mode),
		"status":   string(snap.Status),
		"percent":  snap.Percent,
		"pages":    snap.TotalPages,
		"duration": elapsed.String(),
	}
	if snap.Err != nil {
		out["error"] = snap.Err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if snap.Status != domain.StatusCompleted {
		return fmt.Errorf("run %s: %s", snap.Status, snap.Message)
	}
	return nil
}
