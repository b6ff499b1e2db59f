package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Ingest PDFs into the vector index",
	Long: `Ingest every PDF under a folder, or a single file with --file.

Documents are identified by the SHA-256 of their bytes. A document that is
already recorded as ingested is skipped unless --force is given, so re-running
over the same folder only processes new or previously failed files.

Without a folder argument the configured storage.input_dir is used.
A failing document never stops the run; the command exits non-zero when
any document failed.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: modelAnnotations,
	RunE:        runIngest,
}

func init() {
	ingestCmd.Flags().StringP("file", "f", "", "Ingest a single PDF instead of a folder")
	ingestCmd.Flags().Bool("force", false, "Re-ingest documents that were already ingested")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return fmt.Errorf("getting file flag: %w", err)
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("getting force flag: %w", err)
	}
	if file != "" && len(args) > 0 {
		return errors.New("use either a folder argument or --file, not both")
	}

	ctx := cmd.Context()
	var report *domain.IngestReport
	if file != "" {
		cmd.Printf("Ingesting %s...\n", file)
		report, err = ingestor.IngestFile(ctx, file, force)
	} else {
		folder, ferr := ingestFolder(args)
		if ferr != nil {
			return ferr
		}
		cmd.Printf("Ingesting PDFs in %s...\n", folder)
		report, err = ingestor.IngestFolder(ctx, folder, force)
	}

	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if report.HasFailures() {
		return fmt.Errorf("%d of %d documents failed", report.Stats.FilesFailed, len(report.Documents))
	}
	return nil
}

// ingestFolder returns the folder argument, or the configured input folder.
func ingestFolder(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if settingsService == nil {
		return "", errors.New("no folder given and settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return "", fmt.Errorf("failed to get settings: %w", err)
	}
	if settings.Storage.InputDir == "" {
		return "", errors.New("no folder given and storage.input_dir is not set")
	}
	return settings.Storage.InputDir, nil
}

func printReport(cmd *cobra.Command, report *domain.IngestReport) {
	p := newPrinter(cmd.OutOrStdout())
	s := report.Stats

	cmd.Println()
	for _, d := range report.Documents {
		name := filepath.Base(d.Path)
		switch d.Status {
		case domain.DocumentIngested:
			cmd.Printf("  %s %s: %d chunks stored; extracted %d (%d text, %d table, %d figure, %d summary), %d rejected\n",
				p.Success("ingested"), name, d.Stats.Stored, d.Stats.Extracted(),
				d.Stats.TextChunks, d.Stats.TableChunks, d.Stats.FigureChunks, d.Stats.SummaryChunks,
				d.Stats.Rejected)
		case domain.DocumentSkipped:
			cmd.Printf("  %s %s\n", p.Muted("skipped "), name)
		case domain.DocumentFailed:
			cmd.Printf("  %s %s: %v\n", p.Failure("failed  "), name, d.Err)
		}
	}

	cmd.Println()
	cmd.Println(p.Title("Summary"))
	cmd.Printf("  Ingested: %d\n", s.FilesProcessed)
	cmd.Printf("  Skipped:  %d\n", s.FilesSkipped)
	cmd.Printf("  Failed:   %d\n", s.FilesFailed)
	cmd.Printf("  Pages:    %d (%d OCR)\n", s.Pages, s.OCRPages)
	cmd.Printf("  Chunks:   %d stored, %d rejected, %d duplicates\n", s.Stored, s.Rejected, s.Duplicates)
	cmd.Printf("  Elapsed:  %s\n", s.Elapsed.Round(10*time.Millisecond))
	cmd.Printf("  Run ID:   %s\n", p.Muted(report.RunID))
}
