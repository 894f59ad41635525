package analysis

import (
	"sort"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Diagnostic codes.
const (
	// Structural
	CodeCTE          = "S001"
	CodeDerivedTable = "S002"
	CodeParse        = "S003"

	// Graph and categorization
	CodeCycle         = "E003"
	CodeDuplicateNode = "E004"
	CodeBlocked       = "E005"
	CodeExternal      = "W003"

	// Planning and reconciliation
	CodePlanFailed     = "A001"
	CodeMissingColumn  = "SA01"
	CodeSchemaMismatch = "SA02"

	// type_inference
	CodeUnionTypeMismatch   = "A002"
	CodeUnionColumnCount    = "A003"
	CodeNonNumericAggregate = "A004"
	CodeLossyCast           = "A005"

	// nullability
	CodeUnguardedNullable  = "A010"
	CodeNotNullAfterJoin   = "A011"
	CodeRedundantNullCheck = "A012"

	// unused_columns
	CodeUnusedColumn = "A020"

	// join_keys
	CodeJoinKeyType     = "A030"
	CodeJoinNoCondition = "A032"
	CodeNonEquiJoin     = "A033"

	// cross_model
	CodeCrossModelType     = "A040"
	CodeCrossModelNullable = "A041"

	// description_drift
	CodeDescriptionMissing      = "A050"
	CodeDescriptionDiffers      = "A051"
	CodeDescriptionUndocumented = "A052"

	// classification
	CodeClassificationDowngrade = "A060"
)

// CodeInfo describes a diagnostic code.
type CodeInfo struct {
	Code     string        `json:"code"`
	Severity core.Severity `json:"default_severity"`
	Group    string        `json:"group"`
	Summary  string        `json:"summary"`
}

var codes = map[string]CodeInfo{
	CodeCTE:          {CodeCTE, core.SeverityError, "structural", "WITH clause is not allowed"},
	CodeDerivedTable: {CodeDerivedTable, core.SeverityError, "structural", "derived table in FROM is not allowed"},
	CodeParse:        {CodeParse, core.SeverityError, "structural", "SQL could not be parsed"},

	CodeCycle:         {CodeCycle, core.SeverityError, "graph", "circular dependency"},
	CodeDuplicateNode: {CodeDuplicateNode, core.SeverityError, "graph", "two nodes share a name"},
	CodeBlocked:       {CodeBlocked, core.SeverityError, "graph", "blocked by upstream failure"},
	CodeExternal:      {CodeExternal, core.SeverityWarning, "graph", "relation is not declared in the project"},

	CodePlanFailed:     {CodePlanFailed, core.SeverityError, "planning", "SQL could not be planned"},
	CodeMissingColumn:  {CodeMissingColumn, core.SeverityError, "reconciliation", "declared column missing from SQL output"},
	CodeSchemaMismatch: {CodeSchemaMismatch, core.SeverityWarning, "reconciliation", "declared and inferred schema differ"},

	CodeUnionTypeMismatch:   {CodeUnionTypeMismatch, core.SeverityWarning, PassTypeInference, "set operation column types differ"},
	CodeUnionColumnCount:    {CodeUnionColumnCount, core.SeverityWarning, PassTypeInference, "set operation column counts differ"},
	CodeNonNumericAggregate: {CodeNonNumericAggregate, core.SeverityWarning, PassTypeInference, "SUM or AVG over a non-numeric column"},
	CodeLossyCast:           {CodeLossyCast, core.SeverityInfo, PassTypeInference, "potentially lossy CAST"},

	CodeUnguardedNullable:  {CodeUnguardedNullable, core.SeverityWarning, PassNullability, "outer-joined column used without a null guard"},
	CodeNotNullAfterJoin:   {CodeNotNullAfterJoin, core.SeverityWarning, PassNullability, "declared NOT NULL column is nullable after a join"},
	CodeRedundantNullCheck: {CodeRedundantNullCheck, core.SeverityInfo, PassNullability, "IS NULL check on a NOT NULL column"},

	CodeUnusedColumn: {CodeUnusedColumn, core.SeverityInfo, PassUnusedColumns, "column is never consumed downstream"},

	CodeJoinKeyType:     {CodeJoinKeyType, core.SeverityWarning, PassJoinKeys, "join key types differ"},
	CodeJoinNoCondition: {CodeJoinNoCondition, core.SeverityInfo, PassJoinKeys, "join without a condition"},
	CodeNonEquiJoin:     {CodeNonEquiJoin, core.SeverityInfo, PassJoinKeys, "non-equi join condition"},

	CodeCrossModelType:     {CodeCrossModelType, core.SeverityWarning, PassCrossModel, "column type differs across nodes"},
	CodeCrossModelNullable: {CodeCrossModelNullable, core.SeverityWarning, PassCrossModel, "column nullability differs across nodes"},

	CodeDescriptionMissing:      {CodeDescriptionMissing, core.SeverityWarning, PassDescriptionDrift, "copied column lost its description"},
	CodeDescriptionDiffers:      {CodeDescriptionDiffers, core.SeverityInfo, PassDescriptionDrift, "copied column has a different description"},
	CodeDescriptionUndocumented: {CodeDescriptionUndocumented, core.SeverityWarning, PassDescriptionDrift, "transformed column has no description"},

	CodeClassificationDowngrade: {CodeClassificationDowngrade, core.SeverityWarning, PassClassification, "column is classified below its source"},
}

// DefaultSeverity returns the built-in severity of code. Unknown codes are
// warnings.
func DefaultSeverity(code string) core.Severity {
	if info, ok := codes[code]; ok {
		return info.Severity
	}
	return core.SeverityWarning
}

// Lookup returns the description of code.
func Lookup(code string) (CodeInfo, bool) {
	info, ok := codes[code]
	return info, ok
}

// ValidCodes returns every known code, sorted.
func ValidCodes() []string {
	out := make([]string, 0, len(codes))
	for code := range codes {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Codes returns the description of every known code, sorted by code.
func Codes() []CodeInfo {
	out := make([]CodeInfo, 0, len(codes))
	for _, code := range ValidCodes() {
		out = append(out, codes[code])
	}
	return out
}
