// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/source"
	"github.com/pdiddy/refsync/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync [query]",
	Short: "Search external sources and reconcile candidates into the library",
	Long: `Sync queries the enabled external sources, deduplicates the candidate
batch, and reconciles it against the library: already-present records are
skipped or linked into the target collection, new ones are created through
the first available write backend.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("collection", "", "target collection name (created if missing)")
	syncCmd.Flags().Int("max-results", 0, "per-source result cap (0 = config default)")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	collectionName, _ := cmd.Flags().GetString("collection")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	cfg := loadConfig()
	if maxResults > 0 {
		cfg.Sources.MaxResults = maxResults
	}
	ctx := context.Background()

	router, _ := buildStack(cfg, os.Stderr)

	query := strings.Join(args, " ")
	out, err := source.SearchAll(ctx, query, buildSources(cfg), cfg.Sources, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d candidates from sources (%d duplicates removed)\n",
		len(out.Records), out.DupsRemoved)

	collectionKey := ""
	if collectionName != "" {
		collectionKey, err = router.EnsureCollection(ctx, collectionName)
		if err != nil {
			return fmt.Errorf("resolving collection %q: %w", collectionName, err)
		}
	}

	result, err := buildOrchestrator(cfg, router, os.Stderr).Reconcile(ctx, out.Records, collectionKey)
	if err != nil {
		return err
	}

	printSyncResult(result)
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d candidate(s) failed", len(result.Errors))
	}
	return nil
}

func printSyncResult(result *types.SyncResult) {
	for _, oc := range result.Outcomes {
		switch oc.Action {
		case types.ActionCreated:
			key := oc.CreatedKey
			if key == "" {
				key = "pending"
			}
			fmt.Printf("created  %-10s %s\n", key, oc.Candidate.Title)
		case types.ActionLinked:
			fmt.Printf("linked   %-10s %s\n", oc.Matched.Key, oc.Candidate.Title)
		case types.ActionSkipped:
			fmt.Printf("present  %-10s %s\n", matchedKey(oc), oc.Candidate.Title)
		case types.ActionFailed:
			fmt.Printf("failed              %s\n", oc.Candidate.Title)
		}
	}
	fmt.Printf("\ncreated: %d, already present: %d, linked: %d, failed: %d\n",
		result.Created, result.AlreadyPresent, result.Linked, len(result.Errors))
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", e)
	}
}

func matchedKey(oc types.CandidateOutcome) string {
	if oc.Matched != nil {
		return oc.Matched.Key
	}
	return ""
}
