// Package context bundles the handful of cross-component resources the
// compiler shares: the type dictionary, the string-literal intern table,
// and the verbosity configuration, plus the per-function temp counter type
// (label numbers come from symtab.FunctionEntry). It is constructed once by
// the driver and threaded explicitly through the pipeline, rather than
// exposed as package-level globals.
package context

import (
	"strconv"

	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// Stage identifies one of the four pipeline stages the CLI's -v flag can
// set independently.
type Stage int

const (
	StageParse Stage = iota
	StageLinearize
	StageRegalloc
	StageCodegen
	numStages
)

// Verbosity holds one 0..2 level per stage.
type Verbosity [numStages]int

// Uniform builds a Verbosity with the same level for every stage, for the
// CLI's single-digit form.
func Uniform(level int) Verbosity {
	var v Verbosity
	for i := range v {
		v[i] = level
	}
	return v
}

// Level returns the configured verbosity for stage.
func (v Verbosity) Level(stage Stage) int { return v[stage] }

// Context is the compiler's explicit, threaded, mutable-but-not-global
// state for a single compilation.
type Context struct {
	Dictionary *types.Dictionary
	Verbosity  Verbosity

	// StringLiterals interns source string literals to their backing
	// global variable name, so identical literals anywhere in the program
	// resolve to the same entry.
	StringLiterals map[string]string
}

// New builds a fresh Context with an empty dictionary and the given
// verbosity.
func New(v Verbosity) *Context {
	return &Context{
		Dictionary:     types.NewDictionary(0),
		Verbosity:      v,
		StringLiterals: make(map[string]string),
	}
}

// TempCounter is a per-function monotonic counter for ".tN" temp names.
type TempCounter struct{ next int }

// Next returns the next temp name and advances the counter. Basic-block
// label numbers are allocated per function by symtab.FunctionEntry.NextLabel
// instead of here, since label generation is tightly coupled to the
// function's BasicBlockList.
func (c *TempCounter) Next() string {
	n := c.next
	c.next++
	return ".t" + strconv.Itoa(n)
}
