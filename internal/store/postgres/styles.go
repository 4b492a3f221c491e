package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"doradori/backend/internal/domain"
	"doradori/backend/internal/store"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) ListStyles(ctx context.Context, search string, limit int) ([]domain.Row, error) {
	search = strings.TrimSpace(search)

	var (
		rows *sql.Rows
		err  error
	)
	if search == "" {
		rows, err = s.db.QueryContext(ctx, s.q.listAll, limitArg(limit))
	} else {
		rows, err = s.db.QueryContext(ctx, s.q.listSearch, "%"+likeEscaper.Replace(search)+"%", limitArg(limit))
	}
	if err != nil {
		return nil, wrap(ctx, "list styles", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, wrap(ctx, "list styles", err)
	}
	return out, nil
}

func (s *Store) GetStyle(ctx context.Context, styleID string) (domain.Row, error) {
	rows, err := s.db.QueryContext(ctx, s.q.getStyle, styleID)
	if err != nil {
		return nil, wrap(ctx, "get style", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, wrap(ctx, "get style", err)
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out[0], nil
}

// UpdateStyle writes fields to the table in one statement and returns the
// canonical style_id of the matched row.
func (s *Store) UpdateStyle(ctx context.Context, styleID string, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: no fields to update", store.ErrInvalidInput)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !domain.IsEditable(name) {
			return "", fmt.Errorf("%w: column %s is not writable", store.ErrInvalidInput, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{name}.Sanitize(), i+1))
		args = append(args, fields[name])
	}
	args = append(args, styleID)

	// The UPDATE only runs when exactly one row matches, so ids differing
	// only by case or padding are never written together.
	query := fmt.Sprintf(`
		WITH matched AS (
			SELECT style_id FROM %[1]s
			WHERE lower(trim(style_id)) = lower(trim($%[3]d))
		),
		updated AS (
			UPDATE %[1]s
			SET %[2]s
			WHERE style_id IN (SELECT style_id FROM matched)
				AND (SELECT COUNT(*) FROM matched) = 1
			RETURNING style_id
		)
		SELECT (SELECT COUNT(*) FROM matched), (SELECT style_id FROM updated)
	`, s.table, strings.Join(sets, ", "), len(args))

	var (
		count   int64
		matched sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count, &matched); err != nil {
		return "", wrap(ctx, "update style", err)
	}
	switch {
	case count == 0:
		return "", store.ErrNotFound
	case count > 1:
		return "", fmt.Errorf("%w: %d rows match style id %q", store.ErrConflict, count, styleID)
	case !matched.Valid:
		return "", store.ErrNotFound
	}
	return matched.String, nil
}

func scanRows(rows *sql.Rows) ([]domain.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Row, 0, 64)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(domain.Row, len(cols))
		for i, name := range cols {
			row[name] = domain.NormalizeStored(name, values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
