package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/watch"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch [folder]",
	Short: "Ingest PDFs as they appear in a folder",
	Long: `Watch a folder and ingest every PDF that is created or modified in it.

A file is ingested once it has been quiet for the debounce period, so large
copies are not read half-written. New subfolders are watched automatically.
Deleted files are not removed from the index.

Without a folder argument the configured storage.input_dir is used.
Press Ctrl+C to stop.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: modelAnnotations,
	RunE:        runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a changed file is ingested")
	watchCmd.Flags().Bool("initial", true, "Ingest the folder once before watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("getting debounce flag: %w", err)
	}
	initial, err := cmd.Flags().GetBool("initial")
	if err != nil {
		return fmt.Errorf("getting initial flag: %w", err)
	}

	folder, err := ingestFolder(args)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	opts := []watch.Option{
		watch.WithDebounce(debounce),
		watch.WithReporter(func(path string, report *domain.IngestReport, err error) {
			stamp := p.Muted(time.Now().Format("15:04:05"))
			switch {
			case err != nil:
				cmd.Printf("%s %s %s: %v\n", stamp, p.Failure("failed"), filepath.Base(path), err)
			case report == nil:
			case report.HasFailures():
				for _, d := range report.Failed() {
					cmd.Printf("%s %s %v\n", stamp, p.Failure("failed"), d.Err)
				}
			case report.Stats.FilesProcessed > 0:
				cmd.Printf("%s %s %s: %d documents, %d chunks\n",
					stamp, p.Success("ingested"), filepath.Base(path), report.Stats.FilesProcessed, report.Stats.Stored)
			default:
				cmd.Printf("%s %s %s: already ingested\n", stamp, p.Muted("skipped"), filepath.Base(path))
			}
		}),
	}
	if initial {
		opts = append(opts, watch.WithInitialScan())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", folder)
	return watch.New(folder, ingestor, opts...).Run(ctx)
}
