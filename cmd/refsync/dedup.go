// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/backend"
	"github.com/pdiddy/refsync/internal/match"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Scan the library for duplicate records",
	Long: `Dedup reads the library through the first reachable read backend and
groups records that describe the same work (by DOI, ISBN, or corroborated
title match). The scan only reports; it never deletes.`,
	RunE: runDedup,
}

func init() {
	dedupCmd.Flags().Int("limit", 0, "cap the number of records scanned (0 = all)")
	dedupCmd.Flags().Bool("json", false, "output groups as JSON")

	rootCmd.AddCommand(dedupCmd)
}

func runDedup(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig()
	router, _ := buildStack(cfg, os.Stderr)
	ctx := context.Background()

	records, dec, err := router.ReadLibrary(ctx, backend.ItemQuery{Limit: limit})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "scanned %d records via %s\n", len(records), dec.Chosen)

	groups := match.FindGroups(records)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return nil
	}
	for _, g := range groups {
		fmt.Printf("group %s (%d records)\n", g.CanonicalKey, len(g.Members))
		for _, m := range g.Members {
			year := ""
			if m.Year > 0 {
				year = fmt.Sprintf(" (%d)", m.Year)
			}
			fmt.Printf("  %-10s %s%s\n", m.Key, m.Title, year)
			if len(m.Authors) > 0 {
				fmt.Printf("             %s\n", strings.Join(m.Authors, "; "))
			}
		}
	}
	fmt.Printf("\n%d duplicate group(s)\n", len(groups))
	return nil
}
