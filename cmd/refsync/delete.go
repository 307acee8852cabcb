// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [key]",
	Short: "Delete an item from the library",
	Long: `Delete removes an item by its backend key, through the first reachable
backend that can address it. An item already gone counts as success.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	router, _ := buildStack(cfg, os.Stderr)

	dec, err := router.Delete(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("deleted %s via %s\n", args[0], dec.Chosen)
	return nil
}
