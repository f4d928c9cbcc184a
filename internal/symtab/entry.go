// Package symtab implements the symbol table: a scope tree holding
// variables, arguments, functions, structs/classes, sub-scopes, and basic
// blocks, plus the post-lowering scope-collapse pass.
package symtab

import "github.com/Mitch-Siegel/substratum-sub000/internal/tac"

// EntryKind tags which concrete kind a ScopeEntry holds: the scope entry
// is a sum type with a variant per entry kind rather than a union plus
// casts.
type EntryKind int

const (
	EntryVariable EntryKind = iota
	EntryArgument
	EntryFunction
	EntryStruct
	EntrySubScope
	EntryBasicBlock
)

func (k EntryKind) String() string {
	switch k {
	case EntryVariable:
		return "variable"
	case EntryArgument:
		return "argument"
	case EntryFunction:
		return "function"
	case EntryStruct:
		return "struct"
	case EntrySubScope:
		return "subscope"
	case EntryBasicBlock:
		return "basicblock"
	default:
		return "unknown"
	}
}

// ScopeEntry is the tagged union of everything a Scope can hold by name.
// Exactly one of the typed fields is non-nil, selected by Kind.
type ScopeEntry struct {
	Kind EntryKind

	Variable *VariableEntry
	Function *FunctionEntry
	Struct   *StructEntry
	SubScope *Scope
	Block    *BasicBlockEntry
}

// BasicBlockEntry is the scope-visible handle to a tac.BasicBlock, inserted
// under the synthesized name "BlockN".
type BasicBlockEntry struct {
	Name  string
	Block *tac.BasicBlock
}
