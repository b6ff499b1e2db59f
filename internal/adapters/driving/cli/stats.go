package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var statsCmd = &cobra.Command{
	Use:         "stats",
	Short:       "Show index statistics",
	Long:        `Show chunk counts per collection and document counts per registry status.`,
	Args:        cobra.NoArgs,
	Annotations: storeAnnotations,
	RunE:        runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	stats, err := queryService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())

	cmd.Println(p.Title("Chunks"))
	total := 0
	for _, c := range domain.AllCollections() {
		cmd.Printf("  %-16s %d\n", c, stats.Chunks[c])
		total += stats.Chunks[c]
	}
	cmd.Printf("  %-16s %d\n", "total", total)
	cmd.Println()

	cmd.Println(p.Title("Documents"))
	cmd.Printf("  %-16s %s\n", domain.FileStatusIngested, p.Success(fmt.Sprint(stats.Files[domain.FileStatusIngested])))
	failed := fmt.Sprint(stats.Files[domain.FileStatusFailed])
	if stats.Files[domain.FileStatusFailed] > 0 {
		failed = p.Failure(failed)
	}
	cmd.Printf("  %-16s %s\n", domain.FileStatusFailed, failed)
	return nil
}
