package postgres

import (
	"context"
	"strings"
	"testing"
)

func TestQuoteIdent(t *testing.T) {
	cases := map[string]string{
		"inventory_data":        `"inventory_data"`,
		"public.inventory_view": `"public"."inventory_view"`,
	}
	for in, want := range cases {
		got, err := quoteIdent(in)
		if err != nil {
			t.Fatalf("quote %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("quote %q: expected %s, got %s", in, want, got)
		}
	}

	for _, bad := range []string{"", "a.b.c", "a."} {
		if _, err := quoteIdent(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestBuildQueriesReadFromViewWriteToTable(t *testing.T) {
	q := buildQueries(`"inventory_data"`, `"inventory_view"`)
	for name, query := range map[string]string{
		"kpis":        q.kpis,
		"topSKUs":     q.topSKUs,
		"channels":    q.channels,
		"listSearch":  q.listSearch,
		"getStyle":    q.getStyle,
		"fabricUsage": q.fabricUsage,
	} {
		if !strings.Contains(query, `"inventory_view"`) || strings.Contains(query, `"inventory_data"`) {
			t.Fatalf("%s should read only from the view: %s", name, query)
		}
	}
	if !strings.Contains(q.countTableRows, `"inventory_data"`) {
		t.Fatalf("row count should target the table: %s", q.countTableRows)
	}
}

func TestNewRejectsBadIdentifierBeforeConnecting(t *testing.T) {
	_, err := New(context.Background(), Options{DatabaseURL: "postgres://unused", Table: "a.b.c"})
	if err == nil || !strings.Contains(err.Error(), "table name") {
		t.Fatalf("expected table name error, got %v", err)
	}
}
