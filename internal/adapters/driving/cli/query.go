package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query the vector index",
	Long: `Embed the given text and print the nearest chunks with their citations.

Results come from every collection unless --collection restricts them.
Collections are text, tables and figures.`,
	Args:        cobra.ExactArgs(1),
	Annotations: modelAnnotations,
	RunE:        runQuery,
}

func init() {
	queryCmd.Flags().IntP("k", "k", domain.DefaultQueryK, "Number of results")
	queryCmd.Flags().StringSliceP("collection", "c", nil, "Restrict to collections (text, tables, figures)")
	queryCmd.Flags().Bool("json", false, "Print results as JSON")
	rootCmd.AddCommand(queryCmd)
}

// queryHitJSON is the --json output for one hit.
type queryHitJSON struct {
	Score      float64              `json:"score"`
	Collection domain.Collection    `json:"collection"`
	Citation   string               `json:"citation"`
	Text       string               `json:"text"`
	Metadata   domain.ChunkMetadata `json:"metadata"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	k, err := cmd.Flags().GetInt("k")
	if err != nil {
		return fmt.Errorf("getting k flag: %w", err)
	}
	names, err := cmd.Flags().GetStringSlice("collection")
	if err != nil {
		return fmt.Errorf("getting collection flag: %w", err)
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("getting json flag: %w", err)
	}

	opts := domain.QueryOptions{K: k}
	for _, name := range names {
		c, err := domain.ParseCollection(name)
		if err != nil {
			return err
		}
		opts.Collections = append(opts.Collections, c)
	}

	hits, err := queryService.Query(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if asJSON {
		out := make([]queryHitJSON, len(hits))
		for i, h := range hits {
			out[i] = queryHitJSON{
				Score:      h.Score,
				Collection: h.Record.Collection,
				Citation:   h.Record.Citation,
				Text:       h.Record.Text,
				Metadata:   h.Record.Metadata,
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	p := newPrinter(cmd.OutOrStdout())
	cmd.Printf("Found %d results:\n\n", len(hits))
	for i, h := range hits {
		cmd.Printf("%d. %s %s\n", i+1, p.Heading(h.Record.Citation), p.Muted(fmt.Sprintf("(%s, score %.3f)", h.Record.Collection, h.Score)))
		if h.Record.Metadata.ImagePath != "" {
			cmd.Printf("   Image: %s\n", h.Record.Metadata.ImagePath)
		}
		cmd.Printf("   %s\n\n", snippet(h.Record.Text, 240))
	}
	return nil
}

// snippet flattens whitespace and truncates text to n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
