// Package tac implements the three-address-code model: typed operands,
// instructions with up to four operand slots, and basic blocks. The two
// shapes an operand's payload can take (a name or an integer) are modeled
// as a tagged value rather than a union plus auxiliary flags.
package tac

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// OperandKind distinguishes how an Operand's Payload should be
// interpreted.
type OperandKind int

const (
	// Standard is a named variable/argument/global reference.
	Standard OperandKind = iota
	// Temp is a compiler-generated temporary, named ".tN".
	Temp
	// Literal is a compile-time constant (integer immediate or label number,
	// per the instruction that uses it).
	Literal
	// ObjPtr is an object-pointer operand, used for lea_*-family
	// instructions that compute an address rather than load a value.
	ObjPtr
)

func (k OperandKind) String() string {
	switch k {
	case Standard:
		return "standard"
	case Temp:
		return "temp"
	case Literal:
		return "literal"
	case ObjPtr:
		return "objptr"
	default:
		return fmt.Sprintf("OperandKind(%d)", int(k))
	}
}

// Payload is the sum type backing an Operand: exactly one of Name (an
// identifier/temp name or raw literal text) or Val (a label number or
// literal immediate) is meaningful, selected by the owning Operand's Kind
// and the owning Instruction's Op.
type Payload struct {
	Name   string
	Val    int64
	IsName bool // true: Name is meaningful; false: Val is meaningful
}

// NamePayload builds a name-shaped Payload.
func NamePayload(name string) Payload { return Payload{Name: name, IsName: true} }

// ValPayload builds an integer-shaped Payload.
func ValPayload(v int64) Payload { return Payload{Val: v} }

func (p Payload) String() string {
	if p.IsName {
		return p.Name
	}
	return fmt.Sprintf("%d", p.Val)
}

// Operand is a single TAC operand: what it refers to (Payload, tagged by
// Kind), its declared type, and an optional cast-as type that overrides
// the declared type for this specific use.
type Operand struct {
	Kind         OperandKind
	Payload      Payload
	DeclaredType *types.Type
	CastAsType   *types.Type // nil means "no cast"
}

// EffectiveType returns CastAsType if set, else DeclaredType.
func (o *Operand) EffectiveType() *types.Type {
	if o.CastAsType != nil {
		return o.CastAsType
	}
	return o.DeclaredType
}

func (o *Operand) String() string {
	if o == nil {
		return "-"
	}
	return o.Payload.String()
}

// StandardOperand builds a Standard-kind operand naming an existing
// variable/argument/global.
func StandardOperand(name string, declared *types.Type) *Operand {
	return &Operand{Kind: Standard, Payload: NamePayload(name), DeclaredType: declared}
}

// TempOperand builds a Temp-kind operand for a compiler-generated name of
// the form ".tN".
func TempOperand(name string, declared *types.Type) *Operand {
	return &Operand{Kind: Temp, Payload: NamePayload(name), DeclaredType: declared}
}

// LiteralOperand builds a Literal-kind operand carrying a compile-time
// integer value with declared type t. It does not choose a type itself; the
// linearizer passes the narrowest fitting type for source literals.
func LiteralOperand(value int64, t *types.Type) *Operand {
	return &Operand{Kind: Literal, Payload: ValPayload(value), DeclaredType: t}
}

// LabelOperand builds an operand whose Payload.Val names a basic block's
// label number, used by branch/jump instructions.
func LabelOperand(labelNum int) *Operand {
	return &Operand{Kind: Literal, Payload: ValPayload(int64(labelNum))}
}
