package main

import (
	"bytes"
	"strings"
	"testing"

	"doradori/backend/internal/config"
	pgstore "doradori/backend/internal/store/postgres"
)

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run(config.Config{}, false, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestReportFailsOnMissingView(t *testing.T) {
	cfg := config.Config{TableName: "inventory_data", ViewName: "inventory_view"}
	info := pgstore.Inspection{
		Relations:     []pgstore.Relation{{Schema: "public", Name: "inventory_data", Kind: "BASE TABLE"}},
		TableExists:   true,
		TableColumns:  []pgstore.ColumnInfo{{Name: "style_id", DataType: "text"}},
		TableRowCount: 12,
	}

	var out bytes.Buffer
	err := report(&out, cfg, info)
	if err == nil || !strings.Contains(err.Error(), "inventory_view") {
		t.Fatalf("expected missing view error, got %v", err)
	}
	if !strings.Contains(out.String(), "view inventory_view: MISSING") {
		t.Fatalf("expected missing view in output:\n%s", out.String())
	}
}

func TestReportPrintsColumnsAndCount(t *testing.T) {
	cfg := config.Config{TableName: "inventory_data", ViewName: "inventory_data"}
	info := pgstore.Inspection{
		TableExists:   true,
		ViewExists:    true,
		TableColumns:  []pgstore.ColumnInfo{{Name: "style_id", DataType: "text"}, {Name: "mrp", DataType: "numeric", Nullable: true}},
		TableRowCount: 42,
	}

	var out bytes.Buffer
	if err := report(&out, cfg, info); err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{"table inventory_data (2 columns)", "numeric null", "inventory_data rows: 42"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}
