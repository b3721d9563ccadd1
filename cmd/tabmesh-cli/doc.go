// Package main provides the entry point for tabmesh-cli.
//
// The CLI tool provides command-line access to a TabMesh server for:
//
//   - Table lifecycle (init, summary, list, drop)
//   - History navigation (undo, redo, operation trail)
//   - Applying operations (filter, sort, fill, and the rest)
//
// Usage:
//
//	tabmesh-cli --session SESSION [command] [flags]
//	tabmesh-cli -S alice table get
//	tabmesh-cli -S alice table apply filter_rows -p '{"conditions":[...]}'
//
// The server address comes from --server or TABMESH_SERVER.
package main
