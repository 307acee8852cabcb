// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/stream"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Manage standing research streams",
	Long: `Stream manages standing queries bound to library collections. Each
stream re-runs its query against the external sources and reconciles new
results into its collection.`,
}

var streamCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register a new stream and bind it to a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runStreamCreate,
}

var streamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered streams",
	RunE:  runStreamList,
}

var streamUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Run one stream now, or all due streams when no ID is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStreamUpdate,
}

var streamShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one stream's query, collection and last run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStreamShow,
}

var streamDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Unregister a stream (its collection stays in the library)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStreamDelete,
}

func init() {
	streamCreateCmd.Flags().String("query", "", "search text sent to sources on each run (required)")
	streamCreateCmd.MarkFlagRequired("query")
	streamUpdateCmd.Flags().Bool("force", false, "run even if the stream's cadence has not elapsed")

	streamCmd.AddCommand(streamCreateCmd, streamListCmd, streamShowCmd, streamUpdateCmd, streamDeleteCmd)
	rootCmd.AddCommand(streamCmd)
}

// openManager wires a stream manager over the configured stack.
func openManager() (*stream.Manager, *stream.Store, error) {
	cfg := loadConfig()
	store, err := stream.NewStore(cfg.Streams.DataDir)
	if err != nil {
		return nil, nil, err
	}
	router, _ := buildStack(cfg, os.Stderr)
	orch := buildOrchestrator(cfg, router, os.Stderr)
	m := stream.NewManager(store, buildSources(cfg), cfg.Sources, router, orch, cfg.Streams, os.Stderr)
	return m, store, nil
}

func runStreamCreate(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")

	m, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := m.Create(context.Background(), args[0], query)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", st.ID)
	return nil
}

func runStreamList(cmd *cobra.Command, args []string) error {
	m, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	streams, err := m.List(context.Background())
	if err != nil {
		return err
	}
	if len(streams) == 0 {
		fmt.Println("No streams registered.")
		return nil
	}

	fmt.Printf("%-36s  %-24s  %-19s  %s\n", "ID", "Name", "Last run", "Last result")
	fmt.Println(strings.Repeat("-", 100))
	for _, st := range streams {
		lastRun := "never"
		if !st.LastRunAt.IsZero() {
			lastRun = st.LastRunAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-36s  %-24s  %-19s  +%d =%d ~%d\n",
			st.ID, st.Name, lastRun, st.LastCreated, st.LastPresent, st.LastLinked)
	}
	return nil
}

func runStreamUpdate(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	m, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if len(args) == 1 {
		result, err := m.Update(ctx, args[0])
		if err != nil {
			return err
		}
		printSyncResult(result)
		return nil
	}
	return m.UpdateDue(ctx, force)
}

func runStreamShow(cmd *cobra.Command, args []string) error {
	m, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := m.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", st.ID)
	fmt.Printf("Name:        %s\n", st.Name)
	fmt.Printf("Query:       %s\n", st.Query)
	fmt.Printf("Collection:  %s\n", st.CollectionKey)
	fmt.Printf("Max results: %d\n", st.MaxResults)
	fmt.Printf("Interval:    %s\n", st.Interval)
	fmt.Printf("Created:     %s\n", st.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if st.LastRunAt.IsZero() {
		fmt.Println("Last run:    never")
		return nil
	}
	fmt.Printf("Last run:    %s (+%d created, =%d present, ~%d linked)\n",
		st.LastRunAt.Local().Format("2006-01-02 15:04:05"),
		st.LastCreated, st.LastPresent, st.LastLinked)
	return nil
}

func runStreamDelete(cmd *cobra.Command, args []string) error {
	m, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()
	return m.Delete(context.Background(), args[0])
}
