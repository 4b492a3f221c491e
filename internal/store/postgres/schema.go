package postgres

import (
	"context"
	_ "embed"
)

// SchemaSQL creates inventory_data and the inventory_view projection.
//
//go:embed schema.sql
var SchemaSQL string

const (
	SchemaTable = "inventory_data"
	SchemaView  = "inventory_view"
)

// ApplySchema runs SchemaSQL. It is idempotent.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SchemaSQL); err != nil {
		return wrap(ctx, "apply schema", err)
	}
	return nil
}
