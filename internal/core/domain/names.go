// Package domain defines the core domain models for TabMesh.
package domain

import "strings"

// Identifier constraints. Session ids are opaque strings supplied by
// the caller; table names are user-chosen labels unique per session.
const (
	MaxSessionIDLength = 128
	MaxTableNameLength = 128

	// DefaultTableName is the table operated on when a tool call names none.
	DefaultTableName = "current"
)

// ValidateSessionID checks that a session id is usable as a map key and
// a storage key segment.
func ValidateSessionID(id string) error {
	if id == "" {
		return ErrMissingArgument.WithDetails("session_id is required")
	}
	if len(id) > MaxSessionIDLength {
		return ErrInvalidArgument.WithDetails("session_id exceeds 128 characters")
	}
	if strings.ContainsAny(id, "/\x00") {
		return ErrInvalidArgument.WithDetails("session_id contains reserved characters")
	}
	return nil
}

// ValidateTableName checks a table name. An empty name is replaced by
// DefaultTableName at the service boundary, so empty is rejected here.
func ValidateTableName(name string) error {
	if name == "" {
		return ErrMissingArgument.WithDetails("table_name is required")
	}
	if len(name) > MaxTableNameLength {
		return ErrInvalidArgument.WithDetails("table_name exceeds 128 characters")
	}
	if strings.ContainsAny(name, "/\x00") {
		return ErrInvalidArgument.WithDetails("table_name contains reserved characters")
	}
	return nil
}
