// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for tabmesh-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Session     SessionSection     `koanf:"session"`
	Ingestion   IngestionSection   `koanf:"ingestion"`
	Persistence PersistenceSection `koanf:"persistence"`
	Audit       AuditSection       `koanf:"audit"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP      HTTPConfig      `koanf:"http"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// RateLimitConfig bounds per-client request rates. RPS zero disables
// limiting.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// SessionSection configures session lifecycle and quotas.
type SessionSection struct {
	// TTL evicts sessions idle for longer than this. Zero disables
	// eviction.
	TTL time.Duration `koanf:"ttl"`

	// SweepInterval is how often the eviction sweeper scans.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// MaxSizeBytes bounds the retained snapshot bytes of one session.
	// Zero means unbounded.
	MaxSizeBytes int64 `koanf:"max_size_bytes"`

	// MaxHistory bounds each table's version history. Zero means
	// unbounded.
	MaxHistory int `koanf:"max_history"`
}

// IngestionSection configures the upstream table source.
type IngestionSection struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	// TLSCAFile adds a private CA to the trust pool for the
	// ingestion connection.
	TLSCAFile string `koanf:"tls_ca_file"`
}

// PersistenceSection configures the snapshot store.
type PersistenceSection struct {
	Enabled    bool          `koanf:"enabled"`
	Dir        string        `koanf:"dir"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`

	// EncryptionSecret, when set, encrypts persisted snapshots at
	// rest.
	EncryptionSecret string `koanf:"encryption_secret"`
}

// AuditSection configures the operation audit stream.
type AuditSection struct {
	Enabled bool          `koanf:"enabled"`
	Brokers []string      `koanf:"brokers"`
	Topic   string        `koanf:"topic"`
	Timeout time.Duration `koanf:"timeout"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
