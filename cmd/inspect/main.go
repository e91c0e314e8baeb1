// Command inspect prints the records of a bizlink store, or serves them in
// the badger debug inspector with --serve.
package main

import (
	"bizlink/internal"
	"bizlink/repositories"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

var kindColors = map[string]color.Color{
	"CONVERSATION": color.FgCyan,
	"MESSAGE":      color.FgGreen,
	"USER":         color.FgYellow,
	"BUSINESS":     color.FgMagenta,
	"INDEX":        color.FgGray,
	"CORRUPT":      color.FgRed,
}

func main() {
	_ = godotenv.Load()
	defaultPath := os.Getenv("BADGER_FILEPATH")
	if defaultPath == "" {
		defaultPath = database.DefaultPath
	}

	dbPath := pflag.String("db", defaultPath, "Path to badger DB")
	prefix := pflag.StringP("prefix", "p", "", "Key prefix to scan (conv:, msg:, user:, business:)")
	limit := pflag.IntP("limit", "n", 0, "Maximum number of records, 0 for all")
	serve := pflag.Bool("serve", false, "Serve the records over HTTP instead of printing them")
	port := pflag.Int("port", 8081, "Debug inspector port, with --serve")
	noColor := pflag.Bool("no-color", false, "Disable colored output")
	pflag.Parse()

	if err := run(*dbPath, *prefix, *limit, *serve, *port, *noColor); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, prefix string, limit int, serve bool, port int, noColor bool) error {
	db, err := badger.Open(badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil))
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		database.StartDebugServer(db, port, "/inspect", internal.RecordMapper)
		fmt.Printf("Inspector started at http://localhost:%d/inspect?prefix=%s\n", port, prefix)
		<-ctx.Done()
		return nil
	}

	records, err := repositories.Scan(ctx, db, prefix, limit)
	if err != nil {
		return err
	}
	color.Enable = !noColor
	render(records)
	return nil
}

func render(records []repositories.Record) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "At", "ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, r := range records {
		at := "--"
		if !r.At.IsZero() {
			at = r.At.Format("2006-01-02 15:04:05")
		}
		kind := r.Kind
		if c, ok := kindColors[kind]; ok {
			kind = c.Render(kind)
		}
		table.Append([]string{r.Key, kind, at, r.ID, r.Detail})
	}
	table.Render()
	fmt.Printf("%d records\n", len(records))
}
