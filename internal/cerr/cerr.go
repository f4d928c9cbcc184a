// Package cerr implements position-aware diagnostics for the compiler.
//
// It reuses go/scanner's Error and ErrorList rather than inventing a
// parallel position/error model.
package cerr

import (
	"fmt"
	"go/scanner"
	"go/token"
)

// Kind distinguishes user-code errors from broken compiler invariants.
type Kind int

const (
	// Code errors are well-formed ASTs that violate language rules.
	Code Kind = iota
	// Internal errors mean a compiler invariant was broken.
	Internal
)

func (k Kind) String() string {
	if k == Internal {
		return "internal error"
	}
	return "error"
}

// ExitCode maps a Kind to its process exit code.
func (k Kind) ExitCode() int {
	if k == Internal {
		return 3
	}
	return 2
}

// Diagnostic is a single reported problem, tagged with its source position
// and severity. It satisfies the error interface.
type Diagnostic struct {
	Err  scanner.Error
	Kind Kind
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Err.Pos, d.Kind, d.Err.Msg)
}

// NewCodeError builds a Code-kind Diagnostic at pos.
func NewCodeError(pos token.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Err:  scanner.Error{Pos: pos, Msg: fmt.Sprintf(format, args...)},
		Kind: Code,
	}
}

// NewInternalError builds an Internal-kind Diagnostic at pos. Callers should
// prefer this over panic for invariant violations that carry a source
// position; internal errors without a meaningful position may pass the zero
// token.Position.
func NewInternalError(pos token.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Err:  scanner.Error{Pos: pos, Msg: fmt.Sprintf(format, args...)},
		Kind: Internal,
	}
}

// Diagnostics accumulates Diagnostic values produced while processing a
// single function or translation unit, so that one error does not abort
// the analysis of its siblings. Nothing is ever recovered at the process
// level, but collecting within a pass reports every problem in one run.
type Diagnostics struct {
	list        scanner.ErrorList
	hasInternal bool
}

// Add appends d to the collector.
func (d *Diagnostics) Add(diag *Diagnostic) {
	d.list.Add(diag.Err.Pos, diag.Kind.String()+": "+diag.Err.Msg)
	if diag.Kind == Internal {
		d.hasInternal = true
	}
}

// HasErrors reports whether any diagnostic was collected.
func (d *Diagnostics) HasErrors() bool {
	return len(d.list) > 0
}

// HasInternal reports whether any accumulated diagnostic was Internal-kind,
// the distinction cmd/subc's exit-code mapping needs: exit 3 wins whenever
// an internal error is present, regardless of accumulated code errors.
func (d *Diagnostics) HasInternal() bool {
	return d.hasInternal
}

// Sorted returns the accumulated diagnostics sorted by position with
// duplicate (same position and message) entries collapsed.
func (d *Diagnostics) Sorted() scanner.ErrorList {
	d.list.Sort()
	d.list.RemoveMultiples()
	return d.list
}

// Err returns the sorted list as an error, or nil if empty.
func (d *Diagnostics) Err() error {
	if !d.HasErrors() {
		return nil
	}
	return d.Sorted()
}
