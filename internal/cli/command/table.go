// Package command provides CLI command definitions for tabmesh-cli.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tabmesh-go/internal/cli/connection"
	"github.com/yndnr/tabmesh-go/internal/cli/output"
)

const requestTimeout = 30 * time.Second

// tableSummary mirrors the server's table summary payload.
type tableSummary struct {
	SessionID string `json:"session_id"`
	TableName string `json:"table_name"`
	Rows      int    `json:"rows"`
	Columns   []struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Missing int    `json:"missing"`
	} `json:"columns"`
	Version   int   `json:"version"`
	History   int   `json:"history"`
	CanUndo   bool  `json:"can_undo"`
	CanRedo   bool  `json:"can_redo"`
	SizeBytes int64 `json:"size_bytes"`
}

// TableCommand returns the table subcommand group.
func TableCommand() *cli.Command {
	return &cli.Command{
		Name:    "table",
		Aliases: []string{"tbl"},
		Usage:   "Manage session tables",
		Subcommands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Initialize a table from the ingestion source",
				ArgsUsage: "[TABLE]",
				Action:    tableInit,
			},
			{
				Name:      "get",
				Aliases:   []string{"summary"},
				Usage:     "Show a table's current state",
				ArgsUsage: "[TABLE]",
				Action:    tableGet,
			},
			{
				Name:   "list",
				Usage:  "List the session's tables",
				Action: tableList,
			},
			{
				Name:      "undo",
				Usage:     "Step a table back one version",
				ArgsUsage: "[TABLE]",
				Action:    tableUndo,
			},
			{
				Name:      "redo",
				Usage:     "Step a table forward one version",
				ArgsUsage: "[TABLE]",
				Action:    tableRedo,
			},
			{
				Name:      "drop",
				Usage:     "Remove a table from the session",
				ArgsUsage: "[TABLE]",
				Action:    tableDrop,
			},
			{
				Name:      "ops",
				Aliases:   []string{"history"},
				Usage:     "Show a table's operation trail",
				ArgsUsage: "[TABLE]",
				Action:    tableOperations,
			},
			{
				Name:      "apply",
				Usage:     "Apply an operation to a table",
				ArgsUsage: "KIND",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "params",
						Aliases: []string{"p"},
						Usage:   "Operation parameters as a JSON object",
						Value:   "{}",
					},
					&cli.StringFlag{
						Name:    "table",
						Aliases: []string{"t"},
						Usage:   "Target table name",
					},
				},
				Action: tableApply,
			},
		},
	}
}

// tablePath builds the API path for one table.
func tablePath(flags *GlobalFlags, table string) string {
	if table == "" {
		table = "current"
	}
	return "/v1/sessions/" + url.PathEscape(flags.Session) + "/tables/" + url.PathEscape(table)
}

func tableArg(c *cli.Context) string {
	return c.Args().First()
}

func tableInit(c *cli.Context) error {
	client, flags, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, tablePath(flags, tableArg(c))+"/init", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var sum tableSummary
	if err := connection.ParseResponse(resp, &sum); err != nil {
		return err
	}
	return outputSummary(flags, &sum)
}

func tableGet(c *cli.Context) error {
	client, flags, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, tablePath(flags, tableArg(c))+"/summary")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var sum tableSummary
	if err := connection.ParseResponse(resp, &sum); err != nil {
		return err
	}
	return outputSummary(flags, &sum)
}

func tableList(c *cli.Context) error {
	client, flags, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/sessions/"+url.PathEscape(flags.Session)+"/tables")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Tables []struct {
			Name      string `json:"name"`
			Rows      int    `json:"rows"`
			Columns   int    `json:"columns"`
			SizeBytes int64  `json:"size_bytes"`
		} `json:"tables"`
		SizeBytes int64 `json:"size_bytes"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if output.Format(flags.Output) == output.FormatJSON {
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	}

	table := &output.Table{
		Headers: []string{"TABLE", "ROWS", "COLUMNS", "SIZE"},
	}
	for _, t := range result.Tables {
		table.AddRow(t.Name, strconv.Itoa(t.Rows), strconv.Itoa(t.Columns), formatBytes(t.SizeBytes))
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d tables, %s retained\n", len(result.Tables), formatBytes(result.SizeBytes))
	return nil
}

func tableUndo(c *cli.Context) error {
	return historyStep(c, "/undo")
}

func tableRedo(c *cli.Context) error {
	return historyStep(c, "/redo")
}

func historyStep(c *cli.Context, suffix string) error {
	client, flags, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, tablePath(flags, tableArg(c))+suffix, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var sum tableSummary
	if err := connection.ParseResponse(resp, &sum); err != nil {
		return err
	}
	return outputSummary(flags, &sum)
}

func tableDrop(c *cli.Context) error {
	client, flags, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Delete(ctx, tablePath(flags, tableArg(c)))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		FreedBytes int64 `json:"freed_bytes"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Dropped, freed %s\n", formatBytes(result.FreedBytes))
	return nil
}

func tableOperations(c *cli.Context) error {
	client, flags, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Get(ctx, tablePath(flags, tableArg(c))+"/operations")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Operations []struct {
			ID     string            `json:"id"`
			Kind   string            `json:"kind"`
			Params map[string]string `json:"params"`
			Counts struct {
				RowsAffected   int `json:"rows_affected"`
				ValuesAffected int `json:"values_affected"`
			} `json:"counts"`
			Timestamp int64 `json:"timestamp"`
		} `json:"operations"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if output.Format(flags.Output) == output.FormatJSON {
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	}

	table := &output.Table{
		Headers: []string{"ID", "KIND", "ROWS", "VALUES", "WHEN"},
	}
	for _, op := range result.Operations {
		when := time.UnixMilli(op.Timestamp).Format("2006-01-02 15:04:05")
		table.AddRow(truncateID(op.ID), op.Kind,
			strconv.Itoa(op.Counts.RowsAffected),
			strconv.Itoa(op.Counts.ValuesAffected), when)
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d operations\n", len(result.Operations))
	return nil
}

func tableApply(c *cli.Context) error {
	client, flags, err := newClient(c)
	if err != nil {
		return err
	}

	kind := c.Args().First()
	if kind == "" {
		return fmt.Errorf("operation KIND is required (e.g., filter_rows)")
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(c.String("params")), &params); err != nil {
		return fmt.Errorf("--params must be a JSON object: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	path := tablePath(flags, c.String("table")) + "/ops/" + url.PathEscape(kind)
	resp, err := client.Post(ctx, path, params)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Record struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"record"`
		Summary tableSummary `json:"summary"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if output.Format(flags.Output) == output.FormatJSON {
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	}
	fmt.Printf("Applied %s (%s)\n\n", result.Record.Kind, truncateID(result.Record.ID))
	return outputSummary(flags, &result.Summary)
}

func outputSummary(flags *GlobalFlags, sum *tableSummary) error {
	if output.Format(flags.Output) == output.FormatJSON {
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, sum)
	}

	table := &output.Table{
		Headers: []string{"COLUMN", "TYPE", "MISSING"},
	}
	for _, col := range sum.Columns {
		table.AddRow(col.Name, col.Type, strconv.Itoa(col.Missing))
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTable %s: %d rows, version %d/%d, undo=%v redo=%v, %s retained\n",
		sum.TableName, sum.Rows, sum.Version, sum.History,
		sum.CanUndo, sum.CanRedo, formatBytes(sum.SizeBytes))
	return nil
}

// truncateID shortens long identifiers for table output.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "…"
}

// formatBytes renders a byte count human readable.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMG"[exp])
}
