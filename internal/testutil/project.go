package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteProject creates a temporary project tree. Keys are slash-separated
// paths relative to the project root.
func WriteProject(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

// ShopProject is a small raw -> staging -> fact project used across tests.
func ShopProject() map[string]string {
	return map[string]string{
		"sources/raw.yml": `sources:
  - name: raw
    tables:
      - name: raw_orders
        description: Orders as loaded
        columns:
          - {name: id, type: INTEGER, not_null: true, description: Order id}
          - {name: amt, type: INTEGER, not_null: true}
          - {name: customer_id, type: INTEGER, nullable: true}
`,
		"models/staging/stg_orders.sql": `/*---
description: Orders in dollars
columns:
  - name: id
    type: INTEGER
    not_null: true
    description: Order id
  - name: dollars
    type: DECIMAL
    not_null: true
---*/
SELECT id, amt / 100.0 AS dollars FROM raw_orders
`,
		"models/marts/fct_revenue.sql": `SELECT id, sum(dollars) AS revenue FROM stg_orders GROUP BY id
`,
	}
}
