package symtab

import "github.com/Mitch-Siegel/substratum-sub000/internal/types"

// Residency is the place the register allocator decides a value lives.
type Residency int

const (
	// Unknown is the seed residency for any candidate the allocator has not
	// yet decided about.
	Unknown Residency = iota
	Register
	Stack
	Global
)

func (r Residency) String() string {
	switch r {
	case Register:
		return "register"
	case Stack:
		return "stack"
	case Global:
		return "global"
	default:
		return "unknown"
	}
}

// VariableEntry is a named, typed storage location: a local, an argument,
// or a global. mustSpill is set by the linearizer whenever address-of is
// applied to this variable.
type VariableEntry struct {
	Name           string
	Type           *types.Type
	StackOffset    int
	MustSpill      bool
	IsGlobal       bool
	IsExtern       bool
	IsStringLiteral bool

	// Residency starts Unknown and is set once by the register allocator.
	// RegisterName is meaningful only when Residency == Register.
	Residency    Residency
	RegisterName string

	// InitializeTo / InitializeArrayTo carry compile-time data for globals
	// and string literals.
	InitializeTo      *int64
	InitializeArrayTo []byte
}

// SeedResidency applies the register allocator's seed rule: mustSpill,
// struct values, and arrays are pinned to the stack; globals are pinned to
// Global; everything else starts as a register candidate (Unknown).
func (v *VariableEntry) SeedResidency() {
	switch {
	case v.IsGlobal:
		v.Residency = Global
	case v.MustSpill, v.Type.Basic == types.Struct, v.Type.IsArray():
		v.Residency = Stack
	default:
		v.Residency = Unknown
	}
}
