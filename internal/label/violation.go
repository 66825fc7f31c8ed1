package label

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vasilvv/decor/internal/graph"
)

// Diagnostic codes (L100-L199 errors, W200-W299 warnings).
const (
	// CodeLabelViolation: a value required to be Public carries private
	// sources (explicit index, controlled signature, length invariant).
	CodeLabelViolation = "L101"

	// CodeNonPrivatizableParameter: a call site passed a Private argument
	// into a length- or offset-role parameter.
	CodeNonPrivatizableParameter = "L102"

	// CodeIncompleteDeclassification: an export directive names fewer
	// sources than the value actually depends on.
	CodeIncompleteDeclassification = "L103"

	// CodeUnboundedLoop: a loop ranges over a value with no compile-time
	// length.
	CodeUnboundedLoop = "L104"

	// CodeRecursiveCall: the call graph contains a cycle, which per-tuple
	// specialization cannot terminate on.
	CodeRecursiveCall = "L105"

	// CodeSpecializationExplosion: one function accumulated more distinct
	// label-tuple specializations than the configured threshold.
	CodeSpecializationExplosion = "W201"
)

// Severity separates fatal errors from advisory warnings.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one analysis finding, attached to a value and its source
// position. Diagnostics are collected per function, never raised one at a
// time: a single run reports every violation.
type Diagnostic struct {
	Code     string
	Severity Severity
	Func     string
	Value    graph.ValueID
	Pos      graph.Pos
	Message  string

	// Sources is the offending source set where one exists (sorted).
	Sources []string
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Code, d.Func)
	if d.Pos.IsValid() {
		fmt.Fprintf(&b, " (%s)", d.Pos)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	if len(d.Sources) > 0 {
		fmt.Fprintf(&b, " (sources: %s)", strings.Join(d.Sources, ", "))
	}
	return b.String()
}

// Fatal reports whether the diagnostic blocks lowering and emission.
func (d Diagnostic) Fatal() bool { return d.Severity == SeverityError }

// AnyFatal reports whether any diagnostic in the list is fatal.
func AnyFatal(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Fatal() {
			return true
		}
	}
	return false
}

// HasCode reports whether any diagnostic in the list carries the code.
func HasCode(diags []Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

// IsLabelViolation reports whether err is (or wraps) an L101.
func IsLabelViolation(err error) bool { return hasDiagCode(err, CodeLabelViolation) }

// IsNonPrivatizableParameter reports whether err is (or wraps) an L102.
func IsNonPrivatizableParameter(err error) bool {
	return hasDiagCode(err, CodeNonPrivatizableParameter)
}

// IsIncompleteDeclassification reports whether err is (or wraps) an L103.
func IsIncompleteDeclassification(err error) bool {
	return hasDiagCode(err, CodeIncompleteDeclassification)
}

// IsUnboundedLoop reports whether err is (or wraps) an L104.
func IsUnboundedLoop(err error) bool { return hasDiagCode(err, CodeUnboundedLoop) }

// IsRecursiveCall reports whether err is (or wraps) an L105.
func IsRecursiveCall(err error) bool { return hasDiagCode(err, CodeRecursiveCall) }

func hasDiagCode(err error, code string) bool {
	var d Diagnostic
	if errors.As(err, &d) {
		return d.Code == code
	}
	return false
}

// NewLabelViolation builds the L101 diagnostic for a value that must be
// public but carries the given sources.
func NewLabelViolation(fn *graph.Func, v graph.ValueID, what string, sources SourceSet) Diagnostic {
	return Diagnostic{
		Code:     CodeLabelViolation,
		Severity: SeverityError,
		Func:     fn.Name,
		Value:    v,
		Pos:      fn.PosOf(v),
		Message:  fmt.Sprintf("%s must be public but depends on private sources", what),
		Sources:  sources.Names(),
	}
}

// NewNonPrivatizableParameter builds the L102 diagnostic for a call site.
func NewNonPrivatizableParameter(fn *graph.Func, call graph.ValueID, callee, param string, role graph.ParamRole, sources SourceSet) Diagnostic {
	return Diagnostic{
		Code:     CodeNonPrivatizableParameter,
		Severity: SeverityError,
		Func:     fn.Name,
		Value:    call,
		Pos:      fn.PosOf(call),
		Message:  fmt.Sprintf("cannot pass private argument to %s parameter %q of %s", role, param, callee),
		Sources:  sources.Names(),
	}
}

// NewIncompleteDeclassification builds the L103 diagnostic listing the
// sources an export directive failed to account for.
func NewIncompleteDeclassification(fn *graph.Func, export graph.ValueID, missing []string) Diagnostic {
	return Diagnostic{
		Code:     CodeIncompleteDeclassification,
		Severity: SeverityError,
		Func:     fn.Name,
		Value:    export,
		Pos:      fn.PosOf(export),
		Message:  "export does not account for every private source of the value",
		Sources:  missing,
	}
}

// NewUnboundedLoop builds the L104 diagnostic for an iteration domain with
// no compile-time length. what names the construct ("loop", "sort").
func NewUnboundedLoop(fn *graph.Func, v graph.ValueID, what string, containerType graph.Type) Diagnostic {
	return Diagnostic{
		Code:     CodeUnboundedLoop,
		Severity: SeverityError,
		Func:     fn.Name,
		Value:    v,
		Pos:      fn.PosOf(v),
		Message:  fmt.Sprintf("%s ranges over %s, which has no compile-time length", what, containerType),
	}
}

// NewRecursiveCall builds the L105 diagnostic for a function on a call
// cycle.
func NewRecursiveCall(fn string, cycle []string) Diagnostic {
	return Diagnostic{
		Code:     CodeRecursiveCall,
		Severity: SeverityError,
		Func:     fn,
		Value:    graph.NoValue,
		Message:  fmt.Sprintf("recursive call cycle: %s", strings.Join(cycle, " -> ")),
	}
}

// NewSpecializationExplosion builds the W201 warning.
func NewSpecializationExplosion(fn string, count, threshold int) Diagnostic {
	return Diagnostic{
		Code:     CodeSpecializationExplosion,
		Severity: SeverityWarning,
		Func:     fn,
		Value:    graph.NoValue,
		Message:  fmt.Sprintf("%d label-tuple specializations exceed threshold %d; possible code-size blowup", count, threshold),
	}
}
