// Package introspect reads the schemas of external relations from a live
// PostgreSQL database so they can be seeded into the catalog.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// DefaultSchema is used for single-part relation names.
const DefaultSchema = "public"

// columnsQuery lists the columns of one relation in ordinal order.
const columnsQuery = `
	SELECT
		column_name,
		data_type,
		is_nullable,
		numeric_precision,
		numeric_scale,
		character_maximum_length
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position
`

// Introspector queries information_schema.columns.
type Introspector struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

// Open connects to PostgreSQL with the pgx driver.
// If logger is nil, a discard logger is used.
func Open(ctx context.Context, dsn, schema string, logger *slog.Logger) (*Introspector, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return New(db, schema, logger), nil
}

// New wraps an open database handle.
func New(db *sql.DB, schema string, logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if schema == "" {
		schema = DefaultSchema
	}
	return &Introspector{db: db, schema: schema, logger: logger}
}

// Close closes the connection.
func (i *Introspector) Close() error {
	return i.db.Close()
}

// Columns returns the columns of relation, which may be written as table,
// schema.table or database.schema.table. ok is false when the relation does
// not exist.
func (i *Introspector) Columns(ctx context.Context, relation string) ([]core.TypedColumn, bool, error) {
	schema, table := i.split(relation)

	rows, err := i.db.QueryContext(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []core.TypedColumn
	for rows.Next() {
		var (
			name, dataType, nullable string
			precision, scale, length sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &nullable, &precision, &scale, &length); err != nil {
			return nil, false, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col := core.TypedColumn{
			Name:        name,
			Type:        pgType(dataType, precision, scale, length),
			Nullability: core.NotNull,
		}
		if nullable == "YES" {
			col.Nullability = core.Nullable
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return cols, len(cols) > 0, nil
}

// Seed introspects every relation and returns the ones that exist, keyed by
// the name as given. Missing relations are logged and skipped.
func (i *Introspector) Seed(ctx context.Context, relations []string) (map[string][]core.TypedColumn, error) {
	names := append([]string(nil), relations...)
	sort.Strings(names)

	out := make(map[string][]core.TypedColumn, len(names))
	for _, name := range names {
		cols, ok, err := i.Columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("introspect %s: %w", name, err)
		}
		if !ok {
			i.logger.Debug("external relation not found", slog.String("node", name))
			continue
		}
		i.logger.Debug("introspected external relation", slog.String("node", name), slog.Int("columns", len(cols)))
		out[name] = cols
	}
	return out, nil
}

func (i *Introspector) split(relation string) (schema, table string) {
	parts := strings.Split(relation, ".")
	if len(parts) == 1 {
		return i.schema, parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// pgType maps an information_schema data_type to a SQLType, applying the
// numeric and character parameters Postgres reports separately.
func pgType(dataType string, precision, scale, length sql.NullInt64) core.SQLType {
	switch strings.ToLower(dataType) {
	case "numeric", "decimal":
		p, s := 0, 0
		if precision.Valid {
			p = int(precision.Int64)
		}
		if scale.Valid {
			s = int(scale.Int64)
		}
		return core.Decimal(p, s)
	case "character varying", "character", "text":
		if length.Valid {
			return core.Varchar(int(length.Int64))
		}
		return core.Varchar(0)
	case "array", "user-defined":
		return core.Unknown("postgres " + strings.ToLower(dataType) + " column")
	}
	return core.ParseSQLType(dataType)
}
