// Package core defines the shared language of leapcheck.
//
// This package contains:
//   - The SQL AST (SelectStmt and friends) behind marker interfaces
//   - The type system used for schema inference (SQLType, Nullability)
//   - Project entities (Model, TypedColumn, Kind, Classification)
//   - Diagnostic severities
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
// All other packages depend on core, not the reverse.
package core
