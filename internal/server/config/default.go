// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr = "127.0.0.1:5090"

	DefaultSessionTTL       = 30 * time.Minute
	DefaultSweepInterval    = time.Minute
	DefaultMaxSessionBytes  = 100 << 20
	DefaultMaxHistory       = 0
	DefaultIngestionTimeout = 30 * time.Second

	DefaultPersistenceDir = "/var/lib/tabmesh-server/data"
	DefaultGCInterval     = 5 * time.Minute

	DefaultAuditTopic   = "tabmesh.operations"
	DefaultAuditTimeout = 2 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
		},
		Session: SessionSection{
			TTL:           DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
			MaxSizeBytes:  DefaultMaxSessionBytes,
			MaxHistory:    DefaultMaxHistory,
		},
		Ingestion: IngestionSection{
			Timeout: DefaultIngestionTimeout,
		},
		Persistence: PersistenceSection{
			Enabled:    false,
			Dir:        DefaultPersistenceDir,
			GCInterval: DefaultGCInterval,
		},
		Audit: AuditSection{
			Enabled: false,
			Topic:   DefaultAuditTopic,
			Timeout: DefaultAuditTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
