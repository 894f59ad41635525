package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leapcheck/internal/compile"
	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

func saveCatalog(ctx context.Context, tx *sql.Tx, runID string, res *compile.Result) error {
	for _, node := range sortedKeys(res.Catalog) {
		for i, col := range res.Catalog[node] {
			null, _ := col.Nullability.MarshalText()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO catalog_columns (run_id, node, position, name, sql_type, nullability, description, classification)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, node, i, col.Name, col.Type.String(), string(null), col.Description, string(col.Classification),
			); err != nil {
				return fmt.Errorf("failed to insert column %s.%s: %w", node, col.Name, err)
			}
		}
	}
	for _, node := range sortedKeys(res.Lineage) {
		for _, e := range res.Lineage[node] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lineage_edges (run_id, node, output_column, source_node, source_column, kind)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				runID, node, e.Output, e.Node, e.Column, string(e.Kind),
			); err != nil {
				return fmt.Errorf("failed to insert lineage of %s: %w", node, err)
			}
		}
	}
	return nil
}

// RunCatalog returns the published schemas of a run. Types are read back
// from their SQL spelling.
func (s *Store) RunCatalog(ctx context.Context, runID string) (map[string][]core.TypedColumn, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT node, name, sql_type, nullability, description, classification
		 FROM catalog_columns WHERE run_id = ? ORDER BY node, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]core.TypedColumn)
	for rows.Next() {
		var node, typ, null, class string
		var col core.TypedColumn
		if err := rows.Scan(&node, &col.Name, &typ, &null, &col.Description, &class); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Type = core.ParseSQLType(typ)
		if err := col.Nullability.UnmarshalText([]byte(null)); err != nil {
			return nil, err
		}
		col.Classification = core.Classification(class)
		out[node] = append(out[node], col)
	}
	return out, rows.Err()
}

// RunLineage returns the lineage edges of one node in a run.
func (s *Store) RunLineage(ctx context.Context, runID, node string) ([]planner.Edge, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT output_column, source_node, source_column, kind
		 FROM lineage_edges WHERE run_id = ? AND node = ? ORDER BY rowid`, runID, node)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []planner.Edge{}
	for rows.Next() {
		var e planner.Edge
		var kind string
		if err := rows.Scan(&e.Output, &e.Node, &e.Column, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		e.Kind = planner.EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
