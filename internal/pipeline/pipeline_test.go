package pipeline_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mitch-Siegel/substratum-sub000/internal/pipeline"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
)

// TestArithmeticAndReturn: a straight-line function yields a single basic
// block, the addition lowered to one TAC line, and a0 carrying the result.
func TestArithmeticAndReturn(t *testing.T) {
	prog, text, err := pipeline.CompileProgram(`
fun add(u32 a, u32 b) -> u32 {
	return a + b;
}
`)
	require.NoError(t, err)
	fns := prog.DefinedFunctions()
	require.Len(t, fns, 1)
	fn := fns[0]
	require.Len(t, fn.BasicBlockList, 1, "no control flow, so everything lives in the entry block")
	require.False(t, fn.SavesReturnAddress, "add calls nothing, so ra is never saved")
	require.Zero(t, fn.FrameSize%16, "frame size must be a 16-byte multiple")

	require.Contains(t, text, "add:")
	require.Contains(t, text, "a0")
	require.Contains(t, text, "add_done:")
}

// TestWhileLoop: a condition block, a do/enddo pair around the body, and
// the loop variable's lifetime extended across it by the enddo rule.
func TestWhileLoop(t *testing.T) {
	prog, text, err := pipeline.CompileProgram(`
fun sumTo(u32 n) -> u32 {
	u32 s = 0;
	while (n > 0) {
		s = s + n;
		n = n - 1;
	}
	return s;
}
`)
	require.NoError(t, err)
	fn := prog.DefinedFunctions()[0]
	require.Len(t, fn.BasicBlockList, 4, "entry, condition, loop body, after-loop")
	assertContiguousIndices(t, fn)

	require.Contains(t, text, "sumTo:")
}

// TestPointerArithmeticArrayIndex: u8 element size means a scale-0
// load_arr, which must not be loaded as a signed byte.
func TestPointerArithmeticArrayIndex(t *testing.T) {
	_, text, err := pipeline.CompileProgram(`
fun get(u8 *p, u32 i) -> u8 {
	return p[i];
}
`)
	require.NoError(t, err)
	require.Contains(t, text, "get:")
	require.Contains(t, text, "lbu", "byte element loads must be unsigned")
}

// TestStructFieldWrite: a store_off through a pointer member, with no
// callee-save beyond fp.
func TestStructFieldWrite(t *testing.T) {
	prog, text, err := pipeline.CompileProgram(`
class Pt {
	u32 x;
	u32 y;
}

fun setX(class Pt *pt, u32 v) {
	pt->x = v;
}
`)
	require.NoError(t, err)
	fn := prog.DefinedFunctions()[0]
	require.Empty(t, fn.CalleeSavedRegisters)
	require.False(t, fn.SavesReturnAddress)
	require.Contains(t, text, "setX:")
	require.Contains(t, text, "sw")
}

// TestShortCircuitOr: evaluating `a || b` produces a "check-b" block,
// a convergence block, and a fallthrough jmp from the first check.
func TestShortCircuitOr(t *testing.T) {
	prog, _, err := pipeline.CompileProgram(`
fun f(u32 a, u32 b) -> u32 {
	u32 c = 0;
	if (a || b) {
		c = 1;
	}
	return c;
}
`)
	require.NoError(t, err)
	fn := prog.DefinedFunctions()[0]
	// pre-header, check-b, then-arm, convergence: at least 4 blocks.
	require.GreaterOrEqual(t, len(fn.BasicBlockList), 4)
}

// TestAddressOfForcesSpill: taking the address of a local forces it
// onto the stack, never a register.
func TestAddressOfForcesSpill(t *testing.T) {
	prog, text, err := pipeline.CompileProgram(`
fun g(u32 *p) {
	*p = 1;
}

fun f() {
	u32 x = 0;
	g(&x);
}
`)
	require.NoError(t, err)
	fns := prog.DefinedFunctions()
	var f *symtab.FunctionEntry
	for _, fn := range fns {
		if fn.Name == "f" {
			f = fn
		}
	}
	require.NotNil(t, f)

	x, err := f.MainScope.LookupVar("x")
	require.NoError(t, err)
	require.True(t, x.MustSpill)
	require.Equal(t, symtab.Stack, x.Residency, "mustSpill variables end up stack- or global-resident")
	require.Contains(t, text, "f:")
	require.Contains(t, text, "call g")
}

// TestStringLiteralInterning: two syntactically equal
// string literals anywhere in the program resolve to the same global.
func TestStringLiteralInterning(t *testing.T) {
	_, text, err := pipeline.CompileProgram(`
fun f() -> any* {
	return "hello";
}

fun g() -> any* {
	return "hello";
}
`)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(text, ".asciz \"hello\""),
		"identical string literals must intern to one rodata entry")
}

// TestFrameSizeMultipleOf16 checks that every defined function's frame size
// is a multiple of 16, using a function with one argument and three locals.
func TestFrameSizeMultipleOf16(t *testing.T) {
	prog, _, err := pipeline.CompileProgram(`
fun h(u32 a) -> u32 {
	u32 b = a + 1;
	u32 c = b + 1;
	u32 d = c + 1;
	return d;
}
`)
	require.NoError(t, err)
	for _, fn := range prog.DefinedFunctions() {
		require.Zero(t, fn.FrameSize%16, "function %s frame size must be 16-byte aligned", fn.Name)
	}
}

// TestBranchTargetsResolve: every branch's label
// operand matches some block's LabelNum in the same function.
func TestBranchTargetsResolve(t *testing.T) {
	prog, _, err := pipeline.CompileProgram(`
fun f(u32 n) -> u32 {
	u32 s = 0;
	while (n > 0) {
		s = s + n;
		n = n - 1;
	}
	return s;
}
`)
	require.NoError(t, err)
	fn := prog.DefinedFunctions()[0]
	labels := make(map[int]bool)
	for _, b := range fn.BasicBlockList {
		labels[b.LabelNum] = true
	}
	for _, b := range fn.BasicBlockList {
		for _, instr := range b.TACList {
			if !instr.Op.IsBranch() {
				continue
			}
			target := int(instr.Operands[0].Payload.Val)
			require.True(t, labels[target], "branch target %d must be a real block label", target)
		}
	}
}

// TestCodeErrorReportsUndeclaredIdentifier exercises the user-error path:
// a well-formed-but-invalid program must fail at linearize time, not
// panic.
func TestCodeErrorReportsUndeclaredIdentifier(t *testing.T) {
	_, _, err := pipeline.CompileProgram(`
fun f() -> u32 {
	return undeclared;
}
`)
	require.Error(t, err)
}

// assertContiguousIndices: TAC indices within any block are
// contiguous ascending integers with step 1.
func assertContiguousIndices(t *testing.T, fn *symtab.FunctionEntry) {
	t.Helper()
	for _, b := range fn.BasicBlockList {
		for i := 1; i < len(b.TACList); i++ {
			require.Equal(t, b.TACList[i-1].Index+1, b.TACList[i].Index,
				"block %d: TAC indices must increase by exactly 1", b.LabelNum)
		}
	}
}
