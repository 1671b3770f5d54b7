package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yomitext/pdfocr/internal/pdf"
)

// newInfoCmd creates the info subcommand.
func newInfoCmd() *cobra.Command {
	var (
		previewPage int
		previewOut  string
	)

	cmd := &cobra.Command{
		Use:   "info <pdf-file>",
		Short: "Show document information without running OCR",
		Long: `Info validates a PDF and reports its page count and size. With --preview
it also renders one page as a PNG at preview resolution, which is useful for
checking scan quality before spending API quota on a full extraction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docPath := args[0]

			validator := pdf.NewValidator(logger)
			doc, err := validator.Describe(docPath)
			if err != nil {
				return err
			}
			stat, err := os.Stat(docPath)
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"path":      doc.FilePath,
					"pages":     doc.TotalPages,
					"sizeBytes": stat.Size(),
				})
			}

			u := NewUI(outputJSON, noColor)
			u.KeyValue("Document", doc.FilePath)
			u.KeyValue("Pages", doc.TotalPages)
			u.KeyValue("Size", FormatBytes(stat.Size()))

			if previewPage > 0 {
				rasterizer := pdf.NewRasterizer(logger)
				img, err := rasterizer.RenderPreview(cmd.Context(), docPath, previewPage)
				if err != nil {
					return err
				}

				out := previewOut
				if out == "" {
					stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
					out = filepath.Join(filepath.Dir(docPath), fmt.Sprintf("%s-page%d.png", stem, previewPage))
				}
				if err := os.WriteFile(out, img.PNG, 0o644); err != nil {
					return fmt.Errorf("write preview: %w", err)
				}
				u.Success("Preview of page %d (%dx%d px at %d DPI) written to %s",
					previewPage, img.Width, img.Height, img.DPI, out)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&previewPage, "preview", 0, "render the given page at preview resolution")
	cmd.Flags().StringVar(&previewOut, "preview-output", "", "path for the preview PNG (default: <input-stem>-pageN.png)")

	return cmd
}
