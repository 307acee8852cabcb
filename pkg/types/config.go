package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "refsync/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LocalConfig holds settings for the same-machine HTTP connector backend.
type LocalConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the local HTTP server root (default "http://127.0.0.1:23119").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// UserID selects the library on the local server (default "0").
	UserID string `json:"user_id" yaml:"user_id"`
}

// RemoteConfig holds settings for the vendor cloud REST API backend.
type RemoteConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the cloud API root. The remote backend is disabled when empty.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// LibraryID identifies the library on the cloud host.
	LibraryID string `json:"library_id" yaml:"library_id"`

	// LibraryType is "user" or "group" (default "user").
	LibraryType string `json:"library_type" yaml:"library_type"`

	// APIKey is the bearer token for authenticated calls.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// ConnectorConfig holds settings for the desktop-socket save endpoint.
type ConnectorConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the connector server root. Usually the same host as the
	// local backend (default "http://127.0.0.1:23119").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Enabled controls whether connector saves are attempted (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// BackendsConfig groups the three backend channel configurations.
type BackendsConfig struct {
	Local     LocalConfig     `json:"local" yaml:"local"`
	Remote    RemoteConfig    `json:"remote" yaml:"remote"`
	Connector ConnectorConfig `json:"connector" yaml:"connector"`
}

// ProbeConfig holds settings for the connectivity prober.
type ProbeConfig struct {
	// TTL is how long a probe result stays trusted (default 30s).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Timeout bounds each individual reachability check (default 5s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Endpoints overrides the well-known internet endpoints tried in
	// order. Empty uses the built-in list.
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// SourcesConfig holds settings for the external candidate sources.
type SourcesConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the per-source result cap (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// EnableArxiv controls whether the arXiv source is queried.
	EnableArxiv bool `json:"enable_arxiv" yaml:"enable_arxiv"`

	// EnableSemanticScholar controls whether the Semantic Scholar source is queried.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// EnableOpenLibrary controls whether the OpenLibrary book source is queried.
	EnableOpenLibrary bool `json:"enable_openlibrary" yaml:"enable_openlibrary"`

	// EnableGoogleBooks controls whether the Google Books source is queried.
	EnableGoogleBooks bool `json:"enable_googlebooks" yaml:"enable_googlebooks"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// InterSourceDelay is the delay between launches of different source
	// queries (default 1s).
	InterSourceDelay time.Duration `json:"inter_source_delay" yaml:"inter_source_delay"`
}

// SyncConfig holds settings for the reconcile orchestrator.
type SyncConfig struct {
	// Concurrency bounds parallel candidate processing within one batch.
	// Values below 2 process candidates sequentially.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// LibraryScanLimit caps the existing-records index read (0 = no cap).
	LibraryScanLimit int `json:"library_scan_limit" yaml:"library_scan_limit"`
}

// StreamsConfig holds settings for the research stream registry.
type StreamsConfig struct {
	// DataDir is the base directory for stream state (contains streams.db
	// and streams.yaml exports), default "streams".
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DefaultMaxResults caps per-update source results (default 20).
	DefaultMaxResults int `json:"default_max_results" yaml:"default_max_results"`

	// DefaultInterval is the update cadence for new streams (default 24h).
	DefaultInterval time.Duration `json:"default_interval" yaml:"default_interval"`
}

// Config groups all component configurations.
type Config struct {
	Backends BackendsConfig `json:"backends" yaml:"backends"`
	Probe    ProbeConfig    `json:"probe" yaml:"probe"`
	Sources  SourcesConfig  `json:"sources" yaml:"sources"`
	Sync     SyncConfig     `json:"sync" yaml:"sync"`
	Streams  StreamsConfig  `json:"streams" yaml:"streams"`
}
