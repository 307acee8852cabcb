// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refsync/internal/backend"
	"github.com/pdiddy/refsync/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe connectivity and report backend reachability",
	Long: `Status runs a fresh connectivity probe and pings each configured
backend, reporting which channels are currently able to serve reads and
writes.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "output status as JSON")

	rootCmd.AddCommand(statusCmd)
}

type backendStatus struct {
	Backend    types.BackendKind `json:"backend"`
	Capability types.Capability  `json:"capability"`
	Reachable  bool              `json:"reachable"`
	Detail     string            `json:"detail,omitempty"`
}

type statusReport struct {
	Connectivity types.ConnectivityState `json:"connectivity"`
	Backends     []backendStatus         `json:"backends"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig()
	ctx := context.Background()

	local := backend.NewLocal(cfg.Backends.Local)
	remote := backend.NewRemote(cfg.Backends.Remote)
	connector := backend.NewConnector(cfg.Backends.Connector)

	_, prober := buildStack(cfg, os.Stderr)
	report := statusReport{Connectivity: prober.Probe(ctx, true)}

	pings := []struct {
		kind types.BackendKind
		ping func(context.Context) error
	}{
		{types.BackendLocal, local.Ping},
		{types.BackendRemote, remote.Ping},
		{types.BackendConnector, connector.Ping},
	}
	for _, p := range pings {
		st := backendStatus{Backend: p.kind, Capability: backend.Capabilities(p.kind)}
		if err := p.ping(ctx); err != nil {
			st.Detail = err.Error()
		} else {
			st.Reachable = true
		}
		report.Backends = append(report.Backends, st)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("internet:   %v\n", report.Connectivity.InternetReachable)
	fmt.Printf("remote API: %v\n", report.Connectivity.RemoteAPIReachable)
	fmt.Println()
	for _, st := range report.Backends {
		mark := "unreachable"
		if st.Reachable {
			mark = "ok"
		}
		fmt.Printf("%-10s %-12s", st.Backend, mark)
		if st.Detail != "" {
			fmt.Printf("  (%s)", st.Detail)
		}
		fmt.Println()
	}
	return nil
}
