package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareAllowImplicitWideningChain(t *testing.T) {
	u8 := &Type{Basic: U8}
	u16 := &Type{Basic: U16}
	u32 := &Type{Basic: U32}
	u64 := &Type{Basic: U64}

	// Every constructible t widens to itself.
	for _, ty := range []*Type{u8, u16, u32, u64} {
		require.Equal(t, 0, CompareAllowImplicitWidening(ty, ty))
	}

	// u8 subseteq u16 subseteq u32 subseteq u64, transitively.
	require.Equal(t, 0, CompareAllowImplicitWidening(u8, u16))
	require.Equal(t, 0, CompareAllowImplicitWidening(u16, u32))
	require.Equal(t, 0, CompareAllowImplicitWidening(u32, u64))
	require.Equal(t, 0, CompareAllowImplicitWidening(u8, u64))

	// Narrowing is never implicit.
	require.NotEqual(t, 0, CompareAllowImplicitWidening(u64, u32))
	require.NotEqual(t, 0, CompareAllowImplicitWidening(u16, u8))
}

func TestCompareAllowImplicitWideningPointers(t *testing.T) {
	anyPtr := &Type{Basic: Any, PointerDepth: 1}
	u8Ptr := &Type{Basic: U8, PointerDepth: 1}
	u16Ptr := &Type{Basic: U16, PointerDepth: 1}

	require.Equal(t, 0, CompareAllowImplicitWidening(u8Ptr, anyPtr))
	require.NotEqual(t, 0, CompareAllowImplicitWidening(anyPtr, u8Ptr))
	require.NotEqual(t, 0, CompareAllowImplicitWidening(u8Ptr, u16Ptr), "pointer basics do not widen")
}

func TestCompareAllowImplicitWideningArrayDecay(t *testing.T) {
	arr := &Type{Basic: U32, ArrayLen: 4, ElementType: &Type{Basic: U32}}
	ptr := &Type{Basic: U32, PointerDepth: 1}
	require.Equal(t, 0, CompareAllowImplicitWidening(arr, ptr))
}

func TestCompareAllowImplicitWideningStructsMatchByName(t *testing.T) {
	a := &Type{Basic: Struct, StructName: "Pt"}
	b := &Type{Basic: Struct, StructName: "Pt"}
	c := &Type{Basic: Struct, StructName: "Line"}
	require.Equal(t, 0, CompareAllowImplicitWidening(a, b))
	require.NotEqual(t, 0, CompareAllowImplicitWidening(a, c))
}

func TestDictionaryInternsByPointerIdentity(t *testing.T) {
	d := NewDictionary(0)
	a := d.Intern(&Type{Basic: U8, PointerDepth: 2})
	b := d.Intern(&Type{Basic: U8, PointerDepth: 2})
	require.Same(t, a, b)
	require.Equal(t, "u8**", a.RenderName())
}

func TestDictionaryInternsArrayElementTypes(t *testing.T) {
	d := NewDictionary(0)
	elem := &Type{Basic: U32}
	a := d.Intern(&Type{Basic: U32, ArrayLen: 4, ElementType: elem})
	b := d.Intern(&Type{Basic: U32, ArrayLen: 4, ElementType: elem})
	require.Same(t, a, b)
	require.Same(t, a.ElementType, b.ElementType)
}

func TestRenderNamePointerThenArray(t *testing.T) {
	structArr := &Type{Basic: Struct, StructName: "MyStruct", PointerDepth: 1, ArrayLen: 4,
		ElementType: &Type{Basic: Struct, StructName: "MyStruct", PointerDepth: 1}}
	require.Equal(t, "MyStruct*[4]", structArr.RenderName())
}
