// Command subc is the driver: it wires internal/frontend's parser into
// internal/linearize and internal/codegen (which itself runs
// internal/lifetime and internal/regalloc per function), and writes the
// resulting RISC-V assembly file with stdlib flag parsing, explicit
// os.ReadFile/os.WriteFile, and explicit exit codes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Mitch-Siegel/substratum-sub000/internal/cerr"
	"github.com/Mitch-Siegel/substratum-sub000/internal/codegen"
	"github.com/Mitch-Siegel/substratum-sub000/internal/context"
	"github.com/Mitch-Siegel/substratum-sub000/internal/frontend"
	"github.com/Mitch-Siegel/substratum-sub000/internal/linearize"
)

// includePaths collects repeated `-I` flags via flag.Value.
type includePaths []string

func (p *includePaths) String() string { return strings.Join(*p, ":") }

func (p *includePaths) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("subc", flag.ContinueOnError)
	inPath := fs.String("i", "", "input source file path")
	outPath := fs.String("o", "", "output assembly file path")
	var includes includePaths
	fs.Var(&includes, "I", "include search path (repeatable)")
	verbosity := fs.String("v", "0", "verbosity: one digit sets all stages, four digits set parse/linearize/regalloc/codegen independently")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "subc: -i and -o are required")
		return 1
	}

	v, err := parseVerbosity(*verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "subc: %v\n", err)
		return 1
	}

	source, err := os.ReadFile(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "subc: cannot read %q: %v\n", *inPath, err)
		return 1
	}

	ctx := context.New(v)
	_ = includes // the stand-in parser has no #include directive of its own; the
	// real PEG parser and preprocessor subprocess are what would consume
	// -I. Kept for CLI-surface parity.

	asmText, err := compile(ctx, string(source), *inPath)
	if err != nil {
		if diag, ok := err.(*diagError); ok {
			fmt.Fprintln(os.Stderr, diag.err)
			return diag.exitCode
		}
		fmt.Fprintf(os.Stderr, "subc: %v\n", err)
		return 1
	}

	if err := os.WriteFile(*outPath, []byte(asmText), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "subc: cannot write %q: %v\n", *outPath, err)
		return 1
	}
	if v.Level(context.StageCodegen) > 0 {
		log.Printf("subc: wrote %s (%d bytes)", *outPath, len(asmText))
	}
	return 0
}

// diagError carries a pre-formatted diagnostic report and its exit code
// (2 for accumulated code errors, 3 if any internal error is present,
// regardless of accumulated code errors).
type diagError struct {
	err      error
	exitCode int
}

func (d *diagError) Error() string { return d.err.Error() }

// compile runs the full pipeline: parse -> linearize -> codegen (which
// internally runs lifetime analysis and register allocation per
// function).
func compile(ctx *context.Context, source, path string) (string, error) {
	root, err := frontend.Parse(source, path)
	if err != nil {
		return "", &diagError{err: fmt.Errorf("subc: parse error: %v", err), exitCode: 1}
	}
	if ctx.Verbosity.Level(context.StageParse) > 1 {
		log.Printf("subc: parsed %s", path)
	}

	diags := &cerr.Diagnostics{}
	l := linearize.New(ctx, diags)
	prog, lerr := l.WalkProgram(root)
	if lerr != nil {
		exitCode := 2
		if diags.HasInternal() {
			exitCode = 3
		}
		return "", &diagError{err: fmt.Errorf("subc: %v", lerr), exitCode: exitCode}
	}
	if ctx.Verbosity.Level(context.StageLinearize) > 1 {
		log.Printf("subc: linearized %d function(s)", len(prog.DefinedFunctions()))
	}

	e := codegen.New(filepath.Base(path))
	text, emitErr := e.Emit(prog)
	if emitErr != nil {
		return "", &diagError{err: fmt.Errorf("subc: codegen error: %v", emitErr), exitCode: 3}
	}
	return text, nil
}

// parseVerbosity accepts either one digit (applied to all four stages) or
// four digits (parse, linearize, regalloc, codegen independently), each
// in 0..2.
func parseVerbosity(s string) (context.Verbosity, error) {
	switch len(s) {
	case 1:
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 2 {
			return context.Verbosity{}, fmt.Errorf("-v: %q is not a single digit 0..2", s)
		}
		return context.Uniform(n), nil
	case 4:
		var v context.Verbosity
		for i, c := range s {
			n, err := strconv.Atoi(string(c))
			if err != nil || n < 0 || n > 2 {
				return context.Verbosity{}, fmt.Errorf("-v: digit %d (%q) is not 0..2", i, string(c))
			}
			v[i] = n
		}
		return v, nil
	default:
		return context.Verbosity{}, fmt.Errorf("-v: expected 1 or 4 digits, got %q", s)
	}
}
