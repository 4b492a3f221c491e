package postgres

import (
	"context"
	"strings"
)

// Relation is a table or view visible to the connected role.
type Relation struct {
	Schema string
	Name   string
	Kind   string
}

type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
}

// Inspection is what cmd/checkdb reports about the configured relations.
type Inspection struct {
	Relations     []Relation
	TableExists   bool
	ViewExists    bool
	TableColumns  []ColumnInfo
	ViewColumns   []ColumnInfo
	TableRowCount int64
}

func (s *Store) Inspect(ctx context.Context, table string, view string) (Inspection, error) {
	var out Inspection

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name
	`)
	if err != nil {
		return out, wrap(ctx, "list relations", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rel Relation
		if err := rows.Scan(&rel.Schema, &rel.Name, &rel.Kind); err != nil {
			return out, wrap(ctx, "list relations", err)
		}
		out.Relations = append(out.Relations, rel)
	}
	if err := rows.Err(); err != nil {
		return out, wrap(ctx, "list relations", err)
	}

	if out.TableColumns, err = s.columns(ctx, table); err != nil {
		return out, err
	}
	out.TableExists = len(out.TableColumns) > 0
	if out.ViewColumns, err = s.columns(ctx, view); err != nil {
		return out, err
	}
	out.ViewExists = len(out.ViewColumns) > 0

	if out.TableExists {
		if err := s.db.QueryRowContext(ctx, s.q.countTableRows).Scan(&out.TableRowCount); err != nil {
			return out, wrap(ctx, "count rows", err)
		}
	}
	return out, nil
}

func (s *Store) columns(ctx context.Context, name string) ([]ColumnInfo, error) {
	schema, relation := splitName(name)
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_name::text = $1::text AND ($2::text = '' OR table_schema::text = $2::text)
			AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY ordinal_position
	`, relation, schema)
	if err != nil {
		return nil, wrap(ctx, "list columns", err)
	}
	defer rows.Close()

	var out []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable); err != nil {
			return nil, wrap(ctx, "list columns", err)
		}
		out = append(out, col)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, "list columns", err)
	}
	return out, nil
}

func splitName(name string) (schema string, relation string) {
	name = strings.TrimSpace(name)
	if before, after, ok := strings.Cut(name, "."); ok {
		return before, after
	}
	return "", name
}
