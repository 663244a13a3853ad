package database

import (
	"context"
	"fmt"
	"strings"
)

// Schema returns the CREATE statements of the registry tables and indexes,
// tables first, each group ordered by name. SQLite internals and the
// migration bookkeeping table are left out.
func (s *SQLiteStore) Schema(ctx context.Context) (string, error) {
	const query = `
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		  END,
		  name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return "", unavailable("reading schema", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", unavailable("reading schema", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", unavailable("reading schema", err)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("reading schema: database has no registry tables")
	}
	return b.String(), nil
}
