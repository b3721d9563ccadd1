// Package tlsroots provides TLS certificate management for TabMesh.
//
// This package handles trust pool construction:
//
//   - System certificate pool integration
//   - Custom CA certificate support (files, directories, raw PEM)
//
// It is used by the ingestion client when the upstream serves a
// certificate from a private CA.
package tlsroots
