// Package main provides the entry point for tabmesh-server.
//
// The server is the core TabMesh service that provides:
//
//   - HTTP/HTTPS API for table state, transforms, and history
//   - Session lifecycle with idle eviction and byte quotas
//   - Optional snapshot persistence via Badger
//   - Optional Kafka audit stream of committed operations
//
// Usage:
//
//	tabmesh-server [flags]
//	tabmesh-server --config /path/to/config.yaml
//
// The server loads configuration, initializes infrastructure components,
// and starts the HTTP listener.
package main
