// Package config defines the server configuration structure.
package config

import (
	"errors"
	"net/url"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if err := verifyIngestion(&cfg.Ingestion); err != nil {
		return err
	}
	if err := verifyPersistence(&cfg.Persistence); err != nil {
		return err
	}
	return verifyAudit(&cfg.Audit)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http: tls_cert_file and tls_key_file must be set together")
	}
	if cfg.RateLimit.RPS < 0 {
		return errors.New("server.rate_limit.rps must not be negative")
	}
	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst < 1 {
		return errors.New("server.rate_limit.burst must be at least 1 when rps is set")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.TTL < 0 {
		return errors.New("session.ttl must not be negative")
	}
	if cfg.TTL > 0 && cfg.SweepInterval <= 0 {
		return errors.New("session.sweep_interval must be positive when ttl is set")
	}
	if cfg.MaxSizeBytes < 0 {
		return errors.New("session.max_size_bytes must not be negative")
	}
	if cfg.MaxHistory < 0 {
		return errors.New("session.max_history must not be negative")
	}
	return nil
}

func verifyIngestion(cfg *IngestionSection) error {
	if cfg.BaseURL == "" {
		return errors.New("ingestion.base_url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("ingestion.base_url must be an absolute URL")
	}
	if cfg.Timeout <= 0 {
		return errors.New("ingestion.timeout must be positive")
	}
	return nil
}

func verifyPersistence(cfg *PersistenceSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return errors.New("persistence.dir is required when persistence is enabled")
	}

	// Check if the data directory exists or can be created.
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create persistence directory: " + err.Error())
	}
	if cfg.GCInterval <= 0 {
		return errors.New("persistence.gc_interval must be positive")
	}
	return nil
}

func verifyAudit(cfg *AuditSection) error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Brokers) == 0 {
		return errors.New("audit.brokers is required when audit is enabled")
	}
	if cfg.Topic == "" {
		return errors.New("audit.topic is required when audit is enabled")
	}
	return nil
}
