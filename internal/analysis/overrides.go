package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// ErrUnknownCode is returned for an override naming a code that does not exist.
var ErrUnknownCode = errors.New("unknown diagnostic code")

// ErrFatalOverride is returned for an override that lowers a code which
// always blocks execution.
var ErrFatalOverride = errors.New("diagnostic code is always fatal")

// alwaysFatal are the structural, graph and planning codes. Their severity
// can be restated as error but never lowered.
var alwaysFatal = map[string]bool{
	CodeCTE:           true,
	CodeDerivedTable:  true,
	CodeParse:         true,
	CodeCycle:         true,
	CodeDuplicateNode: true,
	CodeBlocked:       true,
	CodePlanFailed:    true,
}

// IsAlwaysFatal reports whether code ignores severity overrides.
func IsAlwaysFatal(code string) bool { return alwaysFatal[code] }

// Overrides replaces the default severity of diagnostic codes. SeverityOff
// drops the diagnostic.
type Overrides map[string]core.Severity

// ParseOverrides validates an override table read from configuration.
func ParseOverrides(raw map[string]string) (Overrides, error) {
	out := make(Overrides, len(raw))
	for code, sev := range raw {
		code = strings.ToUpper(strings.TrimSpace(code))
		s, ok := core.ParseSeverity(sev)
		if !ok {
			return nil, fmt.Errorf("invalid severity %q for %s (want error, warning, info, hint or off)", sev, code)
		}
		if err := checkOverride(code, s); err != nil {
			return nil, err
		}
		out[code] = s
	}
	return out, nil
}

// Validate checks every entry in the table: the code must exist and
// always-fatal codes must stay at error.
func (o Overrides) Validate() error {
	for _, code := range sortedKeys(o) {
		if err := checkOverride(code, o[code]); err != nil {
			return err
		}
	}
	return nil
}

func checkOverride(code string, s core.Severity) error {
	if _, ok := codes[code]; !ok {
		return fmt.Errorf("%w %q (valid codes: %s)", ErrUnknownCode, code, strings.Join(ValidCodes(), ", "))
	}
	if alwaysFatal[code] && s != core.SeverityError {
		return fmt.Errorf("%w: %s cannot be set to %s", ErrFatalOverride, code, s)
	}
	return nil
}

func sortedKeys(o Overrides) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Severity returns the effective severity of code.
func (o Overrides) Severity(code string) core.Severity {
	if s, ok := o[code]; ok {
		return s
	}
	return DefaultSeverity(code)
}

// Apply rewrites severities in place and drops diagnostics switched off.
func (o Overrides) Apply(ds []Diagnostic) []Diagnostic {
	if len(o) == 0 {
		return ds
	}
	out := ds[:0]
	for _, d := range ds {
		if s, ok := o[d.Code]; ok {
			if s == core.SeverityOff {
				continue
			}
			d.Severity = s
		}
		out = append(out, d)
	}
	return out
}

// Strict returns a copy of o in which every warning-level reconciliation
// code is fatal unless o already overrides it.
func (o Overrides) Strict() Overrides {
	out := make(Overrides, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	if _, ok := out[CodeSchemaMismatch]; !ok {
		out[CodeSchemaMismatch] = core.SeverityError
	}
	return out
}
