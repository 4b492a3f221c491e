// Command checkdb verifies that DATABASE_URL is reachable and that the
// configured inventory table and view exist.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"doradori/backend/internal/config"
	pgstore "doradori/backend/internal/store/postgres"
)

func main() {
	applySchema := flag.Bool("apply-schema", false, "create inventory_data and inventory_view before checking")
	flag.Parse()

	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg := config.Load()
	if err := run(cfg, *applySchema, os.Stdout); err != nil {
		zlog.Error().Err(err).Msg("database check failed")
		os.Exit(1)
	}
}

func run(cfg config.Config, applySchema bool, out io.Writer) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pg, err := pgstore.New(ctx, pgstore.Options{
		DatabaseURL: cfg.DatabaseURL,
		Table:       cfg.TableName,
		View:        cfg.ViewName,
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = pg.Close() }()
	fmt.Fprintln(out, "connection: ok")

	if applySchema {
		if err := pg.ApplySchema(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "schema: applied (%s, %s)\n", pgstore.SchemaTable, pgstore.SchemaView)
	}

	info, err := pg.Inspect(ctx, cfg.TableName, cfg.ViewName)
	if err != nil {
		return err
	}
	return report(out, cfg, info)
}

func report(out io.Writer, cfg config.Config, info pgstore.Inspection) error {
	fmt.Fprintf(out, "\nrelations (%d):\n", len(info.Relations))
	for _, rel := range info.Relations {
		fmt.Fprintf(out, "  %-12s %s.%s\n", rel.Kind, rel.Schema, rel.Name)
	}

	printColumns(out, "table", cfg.TableName, info.TableExists, info.TableColumns)
	if cfg.ViewName != cfg.TableName {
		printColumns(out, "view", cfg.ViewName, info.ViewExists, info.ViewColumns)
	}

	if !info.TableExists {
		return fmt.Errorf("table %s not found", cfg.TableName)
	}
	if !info.ViewExists {
		return fmt.Errorf("view %s not found", cfg.ViewName)
	}
	fmt.Fprintf(out, "\n%s rows: %d\n", cfg.TableName, info.TableRowCount)
	return nil
}

func printColumns(out io.Writer, kind string, name string, exists bool, cols []pgstore.ColumnInfo) {
	if !exists {
		fmt.Fprintf(out, "\n%s %s: MISSING\n", kind, name)
		return
	}
	fmt.Fprintf(out, "\n%s %s (%d columns):\n", kind, name, len(cols))
	for _, col := range cols {
		nullable := ""
		if col.Nullable {
			nullable = " null"
		}
		fmt.Fprintf(out, "  %-32s %s%s\n", col.Name, col.DataType, nullable)
	}
}
