// Package pipeline wires internal/frontend, internal/linearize, and
// internal/codegen into the same frontend-through-emitter sequence
// cmd/subc's driver runs, so end-to-end tests can exercise the whole
// compiler without going through the CLI.
package pipeline

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/cerr"
	"github.com/Mitch-Siegel/substratum-sub000/internal/codegen"
	"github.com/Mitch-Siegel/substratum-sub000/internal/context"
	"github.com/Mitch-Siegel/substratum-sub000/internal/frontend"
	"github.com/Mitch-Siegel/substratum-sub000/internal/linearize"
)

// Compile runs source through the full pipeline and returns the assembled
// RISC-V text, or the first error encountered at whichever stage it
// occurred.
func Compile(source string) (string, error) {
	_, text, err := CompileProgram(source)
	return text, err
}

// CompileProgram is Compile plus the linearized/register-allocated
// *linearize.Program, for tests that need to assert on IR-level structure
// (lifetimes, frame sizes, basic-block shape) rather than just the
// rendered text.
func CompileProgram(source string) (*linearize.Program, string, error) {
	root, err := frontend.Parse(source, "test.sub")
	if err != nil {
		return nil, "", fmt.Errorf("parse: %w", err)
	}

	ctx := context.New(context.Uniform(0))
	diags := &cerr.Diagnostics{}
	l := linearize.New(ctx, diags)
	prog, err := l.WalkProgram(root)
	if err != nil {
		return nil, "", fmt.Errorf("linearize: %w", err)
	}

	e := codegen.New("test.sub")
	text, err := e.Emit(prog)
	if err != nil {
		return nil, "", fmt.Errorf("codegen: %w", err)
	}
	return prog, text, nil
}
