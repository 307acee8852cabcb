// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/source"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search external sources for candidate records",
	Long: `Search queries the enabled external sources (arXiv, Semantic Scholar,
Open Library, Google Books) and prints the merged, deduplicated candidate
batch without touching the library.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "per-source result cap (0 = config default)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	cfg := loadConfig()
	if maxResults > 0 {
		cfg.Sources.MaxResults = maxResults
	}

	query := strings.Join(args, " ")
	out, err := source.SearchAll(context.Background(), query, buildSources(cfg), cfg.Sources, os.Stderr)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Records)
	}

	for i, r := range out.Records {
		year := ""
		if r.Year > 0 {
			year = fmt.Sprintf(" (%d)", r.Year)
		}
		fmt.Printf("%3d. %s%s\n", i+1, r.Title, year)
		if len(r.Authors) > 0 {
			fmt.Printf("     %s\n", strings.Join(r.Authors, "; "))
		}
		if r.DOI != "" {
			fmt.Printf("     doi:%s\n", r.DOI)
		}
		fmt.Printf("     sources: %s\n", strings.Join(r.SourceTags, ","))
	}
	fmt.Printf("\n%d candidates", len(out.Records))
	if out.DupsRemoved > 0 {
		fmt.Printf(" (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Println()
	return nil
}
