package core

// ---------- Table Reference Types ----------

// TableName represents a relation reference such as orders, sales.orders or
// warehouse.sales.orders.
type TableName struct {
	NodeInfo
	Parts []Ident
	Alias Ident
}

func (*TableName) tableRefNode() {}

// Name returns the last identifier part.
func (t *TableName) Name() string {
	if len(t.Parts) == 0 {
		return ""
	}
	return t.Parts[len(t.Parts)-1].Value
}

// Qualified returns the dotted form of the reference, without quoting.
func (t *TableName) Qualified() string { return JoinIdents(t.Parts) }

// IsQualified reports whether the reference has more than one part.
func (t *TableName) IsQualified() bool { return len(t.Parts) > 1 }

// EffectiveName returns the alias if present, else the last name part.
func (t *TableName) EffectiveName() string {
	if !t.Alias.IsZero() {
		return t.Alias.Value
	}
	return t.Name()
}

// DerivedTable represents a subquery in FROM clause.
type DerivedTable struct {
	NodeInfo
	Lateral bool
	Select  *SelectStmt
	Alias   Ident
}

func (*DerivedTable) tableRefNode() {}

// TableFunc represents a table-valued function call in FROM, e.g. FROM calendar(2024).
type TableFunc struct {
	NodeInfo
	Name  []Ident
	Args  []Expr
	Alias Ident
}

func (*TableFunc) tableRefNode() {}

// Qualified returns the dotted function name, without quoting.
func (t *TableFunc) Qualified() string { return JoinIdents(t.Name) }

// EffectiveName returns the alias if present, else the last name part.
func (t *TableFunc) EffectiveName() string {
	if !t.Alias.IsZero() {
		return t.Alias.Value
	}
	if len(t.Name) == 0 {
		return ""
	}
	return t.Name[len(t.Name)-1].Value
}
