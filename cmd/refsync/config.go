// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/refsync/internal/backend"
	"github.com/pdiddy/refsync/internal/probe"
	"github.com/pdiddy/refsync/internal/route"
	"github.com/pdiddy/refsync/internal/source"
	syncpkg "github.com/pdiddy/refsync/internal/sync"
	"github.com/pdiddy/refsync/pkg/types"
)

func init() {
	viper.SetDefault("backends.local.base_url", "http://127.0.0.1:23119")
	viper.SetDefault("backends.local.user_id", "0")
	viper.SetDefault("backends.remote.base_url", "https://api.zotero.org")
	viper.SetDefault("backends.remote.library_type", "user")
	viper.SetDefault("backends.connector.base_url", "http://127.0.0.1:23119")
	viper.SetDefault("backends.connector.enabled", true)
	viper.SetDefault("probe.ttl", "30s")
	viper.SetDefault("probe.timeout", "5s")
	viper.SetDefault("sources.max_results", 20)
	viper.SetDefault("sources.enable_arxiv", true)
	viper.SetDefault("sources.enable_semantic_scholar", true)
	viper.SetDefault("sources.enable_openlibrary", false)
	viper.SetDefault("sources.enable_googlebooks", false)
	viper.SetDefault("sources.inter_source_delay", "1s")
	viper.SetDefault("sync.concurrency", 1)
	viper.SetDefault("streams.data_dir", "streams")
	viper.SetDefault("streams.default_max_results", 20)
	viper.SetDefault("streams.default_interval", "24h")
}

const userAgent = "refsync/0.1"

// loadConfig assembles the runtime configuration from viper (config file
// plus REFSYNC_* environment) and the secrets directory.
func loadConfig() types.Config {
	http := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: userAgent,
	}
	if http.Timeout <= 0 {
		http.Timeout = 30 * time.Second
	}

	return types.Config{
		Backends: types.BackendsConfig{
			Local: types.LocalConfig{
				HTTPConfig: http,
				BaseURL:    viper.GetString("backends.local.base_url"),
				UserID:     viper.GetString("backends.local.user_id"),
			},
			Remote: types.RemoteConfig{
				HTTPConfig:  http,
				BaseURL:     viper.GetString("backends.remote.base_url"),
				LibraryID:   viper.GetString("backends.remote.library_id"),
				LibraryType: viper.GetString("backends.remote.library_type"),
				APIKey:      secretDefault("library-api-key", viper.GetString("backends.remote.api_key")),
			},
			Connector: types.ConnectorConfig{
				HTTPConfig: http,
				BaseURL:    viper.GetString("backends.connector.base_url"),
				Enabled:    viper.GetBool("backends.connector.enabled"),
			},
		},
		Probe: types.ProbeConfig{
			TTL:       viper.GetDuration("probe.ttl"),
			Timeout:   viper.GetDuration("probe.timeout"),
			Endpoints: viper.GetStringSlice("probe.endpoints"),
		},
		Sources: types.SourcesConfig{
			HTTPConfig:            http,
			MaxResults:            viper.GetInt("sources.max_results"),
			EnableArxiv:           viper.GetBool("sources.enable_arxiv"),
			EnableSemanticScholar: viper.GetBool("sources.enable_semantic_scholar"),
			EnableOpenLibrary:     viper.GetBool("sources.enable_openlibrary"),
			EnableGoogleBooks:     viper.GetBool("sources.enable_googlebooks"),
			SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", viper.GetString("sources.semantic_scholar_api_key")),
			InterSourceDelay:      viper.GetDuration("sources.inter_source_delay"),
		},
		Sync: types.SyncConfig{
			Concurrency:      viper.GetInt("sync.concurrency"),
			LibraryScanLimit: viper.GetInt("sync.library_scan_limit"),
		},
		Streams: types.StreamsConfig{
			DataDir:           viper.GetString("streams.data_dir"),
			DefaultMaxResults: viper.GetInt("streams.default_max_results"),
			DefaultInterval:   viper.GetDuration("streams.default_interval"),
		},
	}
}

// buildStack wires the prober, adapters, and router from config. The
// remote adapter doubles as the prober's authenticated ping target when
// a library is configured.
func buildStack(cfg types.Config, w io.Writer) (*route.Router, *probe.Prober) {
	local := backend.NewLocal(cfg.Backends.Local)
	remote := backend.NewRemote(cfg.Backends.Remote)

	var pinger probe.RemotePinger
	if cfg.Backends.Remote.LibraryID != "" {
		pinger = remote
	}
	prober := probe.New(cfg.Probe, pinger)

	adapters := []backend.Adapter{local, remote}
	if cfg.Backends.Connector.Enabled {
		adapters = append(adapters, backend.NewConnector(cfg.Backends.Connector))
	}
	return route.New(prober, w, adapters...), prober
}

// buildOrchestrator wires a reconcile orchestrator over the router.
func buildOrchestrator(cfg types.Config, router *route.Router, w io.Writer) *syncpkg.Orchestrator {
	return syncpkg.New(router, cfg.Sync, w)
}

// buildSources returns the enabled external candidate sources.
func buildSources(cfg types.Config) []source.Source {
	return source.Enabled(cfg.Sources)
}
