package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

func TestEncodeLittleEndian(t *testing.T) {
	assert.Equal(t, []byte{0x2a}, encodeLittleEndian(42, 1))
	assert.Equal(t, []byte{0x34, 0x12}, encodeLittleEndian(0x1234, 2))
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, encodeLittleEndian(0x12345678, 4))
}

func TestLog2(t *testing.T) {
	assert.Equal(t, 0, log2(1))
	assert.Equal(t, 1, log2(2))
	assert.Equal(t, 2, log2(4))
	assert.Equal(t, 3, log2(8))
}

func TestLoadMnemonicUsesUnsignedFormsBelowWordSize(t *testing.T) {
	for size, want := range map[int]string{1: "lbu", 2: "lhu", 4: "lwu", 8: "ld"} {
		mnem, err := loadMnemonic(size)
		require.NoError(t, err)
		assert.Equal(t, want, mnem)
	}
	_, err := loadMnemonic(3)
	require.Error(t, err)
}

func TestEmitGlobalVariablesClassifiesSections(t *testing.T) {
	global := symtab.NewScope(nil, nil)
	u32 := &types.Type{Basic: types.U32}
	u8 := &types.Type{Basic: types.U8}

	fortyTwo := int64(42)
	require.NoError(t, global.InsertVariable(&symtab.VariableEntry{
		Name: "initialized", Type: u32, IsGlobal: true, InitializeTo: &fortyTwo,
	}))
	require.NoError(t, global.InsertVariable(&symtab.VariableEntry{
		Name: "uninitialized", Type: u32, IsGlobal: true,
	}))
	require.NoError(t, global.InsertVariable(&symtab.VariableEntry{
		Name: "external", Type: u32, IsGlobal: true, IsExtern: true,
	}))
	require.NoError(t, global.InsertVariable(&symtab.VariableEntry{
		Name: ".str.hi", Type: &types.Type{Basic: types.U8, ArrayLen: 3, ElementType: u8},
		IsGlobal: true, IsStringLiteral: true, InitializeArrayTo: []byte("hi\x00"),
	}))

	e := New("t.sub")
	require.NoError(t, e.emitGlobalVariables(global))
	text := e.out.String()

	assert.Contains(t, text, ".section .rodata")
	assert.Contains(t, text, ".asciz \"hi\"")
	assert.Contains(t, text, ".data")
	assert.Contains(t, text, "initialized:")
	assert.Contains(t, text, "\t.byte 42", "u32 value 42 emits its low byte first")
	assert.Contains(t, text, ".bss")
	assert.Contains(t, text, "\t.zero 4")
	assert.NotContains(t, text, "external", "extern variables emit nothing")
	assert.NotContains(t, text, ".globl .str.hi", "string literals stay assembler-local")
}

func TestCopyStructUnrollsWordAndByteChunks(t *testing.T) {
	e := New("t.sub")
	fn := symtab.NewFunctionEntry(nil, "f", &types.Type{Basic: types.Null})
	g := newFuncEmitter(e, fn, nil)

	g.copyStruct("t0", "t1", 9)
	text := e.out.String()

	assert.Contains(t, text, "ld t2, 0(t1)")
	assert.Contains(t, text, "sd t2, 0(t0)")
	assert.Contains(t, text, "lb t2, 8(t1)")
	assert.Contains(t, text, "sb t2, 8(t0)")
	assert.Equal(t, 1, strings.Count(text, "ld t2"), "9 bytes is one word chunk plus one byte")
}

func TestPrologueSavesRaOnlyWhenCallingOut(t *testing.T) {
	u32 := &types.Type{Basic: types.U32}

	leaf := symtab.NewFunctionEntry(nil, "leaf", u32)
	leaf.FrameSize = 16
	e := New("t.sub")
	g := newFuncEmitter(e, leaf, nil)
	require.NoError(t, g.emitPrologue())
	assert.NotContains(t, e.out.String(), "sd ra")

	caller := symtab.NewFunctionEntry(nil, "caller", u32)
	caller.CallsOtherFunction = true
	caller.SavesReturnAddress = true
	caller.FrameSize = 16
	e2 := New("t.sub")
	g2 := newFuncEmitter(e2, caller, nil)
	require.NoError(t, g2.emitPrologue())
	text := e2.out.String()
	assert.Contains(t, text, "sd ra")
	assert.Contains(t, text, "sd fp")
	assert.Contains(t, text, "addi fp, sp, 16")
	assert.Contains(t, text, ".cfi_def_cfa_offset 16")
}

func TestEpilogueRestoresInReverseAndPopsArgArea(t *testing.T) {
	u32 := &types.Type{Basic: types.U32}
	fn := symtab.NewFunctionEntry(nil, "f", u32)
	fn.FrameSize = 32
	fn.ArgStackSize = 16
	fn.CalleeSavedRegisters = []string{"s1", "s2"}
	fn.CalleeSaveStackSize = 16

	e := New("t.sub")
	g := newFuncEmitter(e, fn, nil)
	g.emitEpilogue()
	text := e.out.String()

	assert.Contains(t, text, "f_done:")
	s2 := strings.Index(text, "ld s2")
	s1 := strings.Index(text, "ld s1")
	require.GreaterOrEqual(t, s2, 0)
	require.GreaterOrEqual(t, s1, 0)
	assert.Less(t, s2, s1, "callee-saved registers restore in reverse save order")
	assert.Contains(t, text, "addi sp, sp, 48", "frame plus argument area pop together")
	assert.Contains(t, text, "jalr zero, 0(ra)")
}
