package symtab

import (
	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// FunctionEntry is a function declaration or definition.
type FunctionEntry struct {
	Name             string
	ReturnType       *types.Type
	ArgStackSize     int
	Arguments        []*VariableEntry // ordered, matches source declaration order
	MainScope        *Scope
	BasicBlockList   []*tac.BasicBlock // insertion-ordered, flat per function
	IsDefined        bool
	IsAsmFun         bool
	CallsOtherFunction bool
	CorrespondingTree *ast.Node

	// LocalStackSize, CalleeSaveStackSize, CalleeSavedRegisters,
	// SavesReturnAddress, and FrameSize are internal/regalloc's output
	//, consumed by internal/codegen's
	// prologue/epilogue emission.
	LocalStackSize       int
	CalleeSaveStackSize  int
	CalleeSavedRegisters []string
	SavesReturnAddress   bool
	FrameSize            int

	// collapsed guards CollapseScopes against being run twice on the same
	// function; the pass is destructive and must run exactly once.
	collapsed bool

	nextLabel int
}

// NewFunctionEntry constructs a function with a fresh main scope parented
// to enclosing, normally the global scope, so identifiers not declared in
// the function resolve outward to globals, other functions, and structs.
// Label 0 is reserved for the function's entry block by convention; the
// first call to NextLabel returns 1.
func NewFunctionEntry(enclosing *Scope, name string, returnType *types.Type) *FunctionEntry {
	fn := &FunctionEntry{Name: name, ReturnType: returnType, nextLabel: 1}
	fn.MainScope = NewScope(enclosing, fn)
	return fn
}

// NextLabel allocates the next basic-block label number for this function.
func (fn *FunctionEntry) NextLabel() int {
	l := fn.nextLabel
	fn.nextLabel++
	return l
}
