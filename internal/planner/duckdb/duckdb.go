// Package duckdb plans nodes with the built-in planner and then binds the
// same SQL in an in-memory DuckDB, whose column types win where the two
// disagree. Upstream relations are created as empty tables from their
// published schemas, inside a transaction that is always rolled back.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/leapcheck/internal/planner"
	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Planner implements planner.Planner on top of DuckDB's binder.
type Planner struct {
	db     *sql.DB
	static *planner.Static
	logger *slog.Logger

	mu sync.Mutex // one bind at a time; each uses its own transaction
}

// Open starts an in-memory DuckDB. If logger is nil, a discard logger is used.
func Open(ctx context.Context, logger *slog.Logger) (*Planner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Planner{db: db, static: planner.NewStatic(), logger: logger}, nil
}

// Close releases the database.
func (p *Planner) Close() error {
	return p.db.Close()
}

// stub is an upstream relation recreated for binding.
type stub struct {
	ref  string
	cols []planner.Column
}

// Plan plans req statically and, when every input can be expressed as a
// DuckDB table, replaces the inferred column types with DuckDB's.
func (p *Planner) Plan(ctx context.Context, req planner.Request) (*planner.Plan, error) {
	plan, err := p.static.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	stubs, reason := stubsFor(plan.Root)
	if reason != "" {
		p.logger.Debug("duckdb check skipped", slog.String("node", req.Node), slog.String("reason", reason))
		return plan, nil
	}

	described, err := p.describe(ctx, req.SQL, stubs)
	if err != nil {
		return nil, fmt.Errorf("duckdb: %w", err)
	}
	p.merge(req.Node, plan, described)
	return plan, nil
}

// stubsFor lists the catalog relations a plan scans. A non-empty reason
// means the plan cannot be bound faithfully.
func stubsFor(root planner.Op) ([]stub, string) {
	var (
		stubs  []stub
		seen   = map[string]bool{}
		reason string
	)
	planner.WalkAll(root, func(op planner.Op) bool {
		if reason != "" {
			return false
		}
		switch op := op.(type) {
		case *planner.Scan:
			switch {
			case op.Open:
				reason = "external relation " + op.Ref
			case len(op.Args) > 0:
				reason = "table function " + op.Ref
			case op.Input != nil:
				return true
			case strings.Count(op.Ref, ".") > 1:
				reason = "database-qualified relation " + op.Ref
			case !seen[strings.ToLower(op.Ref)]:
				seen[strings.ToLower(op.Ref)] = true
				for _, c := range op.Schema() {
					if c.Type.IsUnknown() {
						reason = fmt.Sprintf("column %s.%s has no known type", op.Ref, c.Name)
					}
				}
				stubs = append(stubs, stub{ref: op.Ref, cols: op.Schema()})
			}
		}
		for _, e := range planner.Exprs(op) {
			planner.WalkExpr(e, func(x planner.Expr) bool {
				if c, ok := x.(*planner.Call); ok && !c.Builtin && reason == "" {
					reason = "function " + c.Name
				}
				return true
			})
		}
		return true
	})
	return stubs, reason
}

func (p *Planner) describe(ctx context.Context, query string, stubs []stub) ([]core.TypedColumn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, st := range stubs {
		parts := strings.Split(st.ref, ".")
		if len(parts) == 2 {
			if _, err := tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quote(parts[0])); err != nil {
				return nil, fmt.Errorf("create schema %s: %w", parts[0], err)
			}
		}
		if _, err := tx.ExecContext(ctx, createTable(parts, st.cols)); err != nil {
			return nil, fmt.Errorf("create table %s: %w", st.ref, err)
		}
	}

	rows, err := tx.QueryContext(ctx, "DESCRIBE "+strings.TrimRight(strings.TrimSpace(query), ";"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []core.TypedColumn
	for rows.Next() {
		var name, typ string
		var null, key, def, extra sql.NullString
		if err := rows.Scan(&name, &typ, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column description: %w", err)
		}
		cols = append(cols, core.TypedColumn{Name: name, Type: core.ParseSQLType(typ)})
	}
	return cols, rows.Err()
}

// merge adopts DuckDB's types positionally. Nullability stays with the
// static plan: DESCRIBE reports every query column as nullable.
func (p *Planner) merge(node string, plan *planner.Plan, described []core.TypedColumn) {
	if len(described) != len(plan.Columns) {
		p.logger.Warn("duckdb column count differs",
			slog.String("node", node), slog.Int("static", len(plan.Columns)), slog.Int("duckdb", len(described)))
		return
	}
	for i, d := range described {
		c := &plan.Columns[i]
		if d.Type.IsUnknown() || c.Type.SameAs(d.Type) && !c.Type.IsUnknown() {
			continue
		}
		p.logger.Debug("duckdb type differs",
			slog.String("node", node),
			slog.String("column", c.Name),
			slog.String("static", c.Type.String()),
			slog.String("duckdb", d.Type.String()))
		c.Type = d.Type
	}
}

func createTable(parts []string, cols []planner.Column) string {
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quote(part)
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quote(c.Name) + " " + c.Type.String()
		if c.Nullability == core.NotNull {
			defs[i] += " NOT NULL"
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", strings.Join(quoted, "."), strings.Join(defs, ", "))
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
