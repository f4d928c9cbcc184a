// Package types implements the Substratum type system: canonical Type
// values, string interning, and the widening/compatibility rules that
// the linearizer, register allocator, and emitter all rely on.
package types

import (
	"fmt"
	"strings"
)

// Basic is the scalar kind a Type is built from.
type Basic int

const (
	// Null marks non-returning ("void") functions; it is never a legal
	// variable type.
	Null Basic = iota
	// Any is legal only with PointerDepth >= 1 (an opaque byte pointer).
	Any
	U8
	U16
	U32
	U64
	Struct
)

func (b Basic) String() string {
	switch b {
	case Null:
		return "null"
	case Any:
		return "any"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case Struct:
		return "struct"
	default:
		return fmt.Sprintf("Basic(%d)", int(b))
	}
}

// MachineWordSize is the pointer/register width of the RISC-V 64 target.
const MachineWordSize = 8

// Type is the canonical description of a Substratum type.
//
// ElementType is non-nil only when ArrayLen > 0 (the array's element type);
// it is itself a fully-formed Type (so arrays of pointers, arrays of
// structs, etc. are representable without a separate "kind" field).
type Type struct {
	Basic        Basic
	PointerDepth int
	ArrayLen     int // 0 means "not an array"
	ElementType  *Type
	StructName   string
}

// IsPointer reports whether t is (at least) a pointer.
func (t *Type) IsPointer() bool { return t.PointerDepth > 0 }

// IsArray reports whether t is an array type.
func (t *Type) IsArray() bool { return t.ArrayLen > 0 }

// Dereferenced returns the type one indirection level down: for a pointer,
// the same basic/struct name with PointerDepth-1; for an array, its
// ElementType. It is an internal error to call this on neither.
func (t *Type) Dereferenced() (*Type, error) {
	if t.PointerDepth > 0 {
		d := *t
		d.PointerDepth--
		return &d, nil
	}
	if t.IsArray() {
		return t.ElementType, nil
	}
	return nil, fmt.Errorf("cannot dereference non-pointer, non-array type %s", t.RenderName())
}

// Decayed returns the pointer type an array decays to under most operations
//, i.e. drops the outermost array dimension and gains one
// pointer level to the element type.
func (t *Type) Decayed() *Type {
	if !t.IsArray() {
		return t
	}
	d := *t.ElementType
	d.PointerDepth++
	return &d
}

// RenderName produces the canonical textual rendering used both as the
// dictionary key and in diagnostics, e.g. "u8**", "MyStruct*[4]". Pointer
// suffixes are always rendered before the array suffix, so "MyStruct*[4]"
// is an array of four MyStruct pointers; no rendering puts a "*" after
// "[N]".
func (t *Type) RenderName() string {
	var b strings.Builder
	if t.Basic == Struct {
		b.WriteString(t.StructName)
	} else {
		b.WriteString(t.Basic.String())
	}
	b.WriteString(strings.Repeat("*", t.PointerDepth))
	if t.IsArray() {
		fmt.Fprintf(&b, "[%d]", t.ArrayLen)
	}
	return b.String()
}

func (t *Type) String() string { return t.RenderName() }

// Compare returns 0 when a and b are identical types, non-zero otherwise.
func Compare(a, b *Type) int {
	if a == b {
		return 0
	}
	if a.Basic != b.Basic || a.PointerDepth != b.PointerDepth || a.ArrayLen != b.ArrayLen {
		return 1
	}
	if a.Basic == Struct && a.StructName != b.StructName {
		return 1
	}
	if a.IsArray() {
		return Compare(a.ElementType, b.ElementType)
	}
	return 0
}

// widenRank orders the unsigned integer family for widening purposes; -1
// means "not part of the chain".
func widenRank(b Basic) int {
	switch b {
	case U8:
		return 0
	case U16:
		return 1
	case U32:
		return 2
	case U64:
		return 3
	default:
		return -1
	}
}

// CompareAllowImplicitWidening returns 0 when src may be implicitly
// converted to dst: equal basics are always allowed; u8 -> u16 -> u32 -> u64
// widening is allowed (never narrowing); any pointer may widen to any*...*;
// array-to-pointer decay of a matching element type is allowed; struct
// types must match by name.
func CompareAllowImplicitWidening(src, dst *Type) int {
	if Compare(src, dst) == 0 {
		return 0
	}

	// Array-to-pointer decay.
	if src.IsArray() && !dst.IsArray() && dst.IsPointer() {
		return CompareAllowImplicitWidening(src.Decayed(), dst)
	}

	if src.PointerDepth > 0 || dst.PointerDepth > 0 {
		if src.PointerDepth != dst.PointerDepth {
			return 1
		}
		if dst.Basic == Any {
			return 0
		}
		if src.Basic == Any {
			return 1 // any* cannot implicitly narrow back to a concrete pointer
		}
		if src.Basic == Struct || dst.Basic == Struct {
			if src.Basic != dst.Basic || src.StructName != dst.StructName {
				return 1
			}
			return 0
		}
		if src.Basic != dst.Basic {
			return 1
		}
		return 0
	}

	if src.Basic == Struct || dst.Basic == Struct {
		if src.Basic != dst.Basic || src.StructName != dst.StructName {
			return 1
		}
		return 0
	}

	srcRank, dstRank := widenRank(src.Basic), widenRank(dst.Basic)
	if srcRank == -1 || dstRank == -1 {
		return 1
	}
	if srcRank <= dstRank {
		return 0
	}
	return 1
}

// PrimitiveSize returns the byte size of a non-struct, non-array type:
// pointers are a machine word regardless of basic; u8/u16/u32/u64 are
// 1/2/4/8. Calling this on a struct basic is an internal error; struct
// sizing requires the struct's field layout and is computed by the symbol
// table, not this package.
func PrimitiveSize(t *Type) (int, error) {
	if t.IsPointer() {
		return MachineWordSize, nil
	}
	switch t.Basic {
	case U8:
		return 1, nil
	case U16:
		return 2, nil
	case U32:
		return 4, nil
	case U64:
		return 8, nil
	default:
		return 0, fmt.Errorf("PrimitiveSize: not a primitive type: %s", t.RenderName())
	}
}

// PrimitiveAlignment mirrors PrimitiveSize: alignment equals size for every
// primitive and pointer.
func PrimitiveAlignment(t *Type) (int, error) { return PrimitiveSize(t) }

// WidthSuffix maps a byte size to the RISC-V load/store suffix character
// (1->b, 2->h, 4->w, 8->d).
func WidthSuffix(size int) (byte, error) {
	switch size {
	case 1:
		return 'b', nil
	case 2:
		return 'h', nil
	case 4:
		return 'w', nil
	case 8:
		return 'd', nil
	default:
		return 0, fmt.Errorf("WidthSuffix: unsupported size %d", size)
	}
}
