package linearize_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mitch-Siegel/substratum-sub000/internal/cerr"
	"github.com/Mitch-Siegel/substratum-sub000/internal/context"
	"github.com/Mitch-Siegel/substratum-sub000/internal/frontend"
	"github.com/Mitch-Siegel/substratum-sub000/internal/linearize"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
)

func lower(t *testing.T, src string) *linearize.Program {
	t.Helper()
	root, err := frontend.Parse(src, "test.sub")
	require.NoError(t, err)
	prog, err := linearize.New(context.New(context.Uniform(0)), &cerr.Diagnostics{}).WalkProgram(root)
	require.NoError(t, err)
	return prog
}

func lowerExpectingError(t *testing.T, src string) error {
	t.Helper()
	root, err := frontend.Parse(src, "test.sub")
	require.NoError(t, err)
	_, err = linearize.New(context.New(context.Uniform(0)), &cerr.Diagnostics{}).WalkProgram(root)
	require.Error(t, err)
	return err
}

func singleFunction(t *testing.T, prog *linearize.Program, name string) *symtab.FunctionEntry {
	t.Helper()
	for _, fn := range prog.DefinedFunctions() {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no defined function %q", name)
	return nil
}

func allInstructions(fn *symtab.FunctionEntry) []*tac.Instruction {
	var out []*tac.Instruction
	for _, b := range fn.BasicBlockList {
		out = append(out, b.TACList...)
	}
	return out
}

func countOp(instrs []*tac.Instruction, op tac.Op) int {
	n := 0
	for _, in := range instrs {
		if in.Op == op {
			n++
		}
	}
	return n
}

func TestWhileWrapsBodyInDoEndDo(t *testing.T) {
	prog := lower(t, `
fun sumTo(u32 n) -> u32 {
	u32 s = 0;
	while (n > 0) {
		s = s + n;
		n = n - 1;
	}
	return s;
}
`)
	fn := singleFunction(t, prog, "sumTo")
	instrs := allInstructions(fn)
	require.Equal(t, 1, countOp(instrs, tac.OpDo))
	require.Equal(t, 1, countOp(instrs, tac.OpEndDo))

	// n > 0 lowers to the inverse branch to the after-loop label.
	require.Equal(t, 1, countOp(instrs, tac.OpBleu))
}

func TestTempsAreRegisteredInFunctionScope(t *testing.T) {
	prog := lower(t, `
fun add(u32 a, u32 b) -> u32 {
	return a + b;
}
`)
	fn := singleFunction(t, prog, "add")
	v, err := fn.MainScope.LookupVar(".t0")
	require.NoError(t, err)
	assert.Equal(t, ".t0", v.Name)
	assert.False(t, v.IsGlobal)
}

func TestTempNumbersRestartPerFunction(t *testing.T) {
	prog := lower(t, `
fun f(u32 a) -> u32 {
	return a + 1;
}

fun g(u32 a) -> u32 {
	return a + 2;
}
`)
	for _, name := range []string{"f", "g"} {
		fn := singleFunction(t, prog, name)
		_, err := fn.MainScope.LookupVar(".t0")
		require.NoError(t, err, "each function's temps start over at .t0")
	}
}

func TestGlobalConstantInitializerBecomesData(t *testing.T) {
	prog := lower(t, "u32 counter = 42;")
	v, err := prog.Global.LookupVar("counter")
	require.NoError(t, err)
	require.True(t, v.IsGlobal)
	require.NotNil(t, v.InitializeTo)
	assert.Equal(t, int64(42), *v.InitializeTo)
	assert.Empty(t, prog.InitBlock.TACList, "a constant needs no startup code")
}

func TestGlobalComputedInitializerLowersIntoInitBlock(t *testing.T) {
	prog := lower(t, `
u32 base = 2;
u32 derived = base + 3;
`)
	v, err := prog.Global.LookupVar("derived")
	require.NoError(t, err)
	require.Nil(t, v.InitializeTo)
	require.NotEmpty(t, prog.InitBlock.TACList)

	last := prog.InitBlock.TACList[len(prog.InitBlock.TACList)-1]
	assert.Equal(t, tac.OpAssign, last.Op)
	assert.Equal(t, "derived", last.Operands[0].Payload.Name)
}

func TestScopeCollapseManglesNestedLocalsIntoTAC(t *testing.T) {
	prog := lower(t, `
fun f(u32 n) -> u32 {
	u32 total = 0;
	if (n > 0) {
		u32 inner = n + 1;
		total = inner;
	}
	return total;
}
`)
	fn := singleFunction(t, prog, "f")

	// Nothing sub-scope shaped survives under the function, and
	// the nested local's mangled name is what the TAC now refers to. The if
	// arm opens one sub-scope and its compound statement another, so the
	// local two levels down mangles to "00.00.inner".
	for _, e := range fn.MainScope.Entries() {
		require.NotEqual(t, symtab.EntrySubScope, e.Kind)
	}
	v, err := fn.MainScope.LookupVar("00.00.inner")
	require.NoError(t, err)
	require.Contains(t, v.Name, ".")

	found := false
	for _, instr := range allInstructions(fn) {
		for _, op := range instr.Operands {
			if op != nil && op.Payload.IsName && op.Payload.Name == "00.00.inner" {
				found = true
			}
		}
	}
	require.True(t, found, "operands referencing the nested local must use its mangled name")
}

func TestCompoundAssignmentDesugarsToBinaryOp(t *testing.T) {
	prog := lower(t, `
fun f(u32 a) -> u32 {
	a += 5;
	return a;
}
`)
	fn := singleFunction(t, prog, "f")
	instrs := allInstructions(fn)
	require.Equal(t, 1, countOp(instrs, tac.OpAdd))
}

func TestSwitchLowersToBranchCascade(t *testing.T) {
	prog := lower(t, `
fun f(u32 x) -> u32 {
	u32 r = 0;
	switch (x) {
	case 1:
		r = 10;
	case 2:
		r = 20;
	default:
		r = 30;
	}
	return r;
}
`)
	fn := singleFunction(t, prog, "f")
	instrs := allInstructions(fn)
	require.Equal(t, 2, countOp(instrs, tac.OpBeq), "one equality branch per case arm")

	labels := make(map[int64]bool)
	for _, b := range fn.BasicBlockList {
		labels[int64(b.LabelNum)] = true
	}
	for _, instr := range instrs {
		if instr.Op.IsBranch() {
			require.True(t, labels[instr.Operands[0].Payload.Val],
				"branch target %d must resolve to a block", instr.Operands[0].Payload.Val)
		}
	}
}

func TestForLoopContinueTargetsPostBlock(t *testing.T) {
	prog := lower(t, `
fun f() -> u32 {
	u32 s = 0;
	for (u32 i = 0; i < 10; i += 1) {
		if (i == 5) {
			continue;
		}
		s = s + i;
	}
	return s;
}
`)
	fn := singleFunction(t, prog, "f")
	instrs := allInstructions(fn)

	// The post block carries the i += 1 add and the backward jump; continue
	// must land on it, not on the condition, or the increment is skipped.
	var postLabel int64 = -1
	for _, b := range fn.BasicBlockList {
		for _, instr := range b.TACList {
			if instr.Op == tac.OpAdd && instr.Operands[0].Payload.Name == "00.i" {
				postLabel = int64(b.LabelNum)
			}
		}
	}
	require.GreaterOrEqual(t, postLabel, int64(0), "the increment must live in its own block")

	jumpsToPost := 0
	for _, instr := range instrs {
		if instr.Op == tac.OpJmp && instr.Operands[0].Payload.Val == postLabel {
			jumpsToPost++
		}
	}
	// One jump from the body tail plus one from the continue arm.
	require.GreaterOrEqual(t, jumpsToPost, 2)

	require.Equal(t, 1, countOp(instrs, tac.OpDo))
	require.Equal(t, 1, countOp(instrs, tac.OpEndDo))
}

func TestFunctionWideTACIndicesAreDense(t *testing.T) {
	prog := lower(t, `
fun f(u32 n) -> u32 {
	u32 s = 0;
	while (n > 0) {
		s = s + n;
		n = n - 1;
	}
	return s;
}
`)
	fn := singleFunction(t, prog, "f")
	want := 0
	for _, instr := range allInstructions(fn) {
		require.Equal(t, want, instr.Index, "indices must be dense across the whole function")
		want++
	}
}

func TestStringLiteralsInternToOneGlobal(t *testing.T) {
	prog := lower(t, `
fun f() -> any* {
	return "shared";
}

fun g() -> any* {
	return "shared";
}
`)
	count := 0
	for _, e := range prog.Global.Entries() {
		if e.Kind == symtab.EntryVariable && e.Variable.IsStringLiteral {
			count++
			assert.Equal(t, []byte("shared\x00"), e.Variable.InitializeArrayTo)
		}
	}
	require.Equal(t, 1, count)
}

func TestArgumentAreaIsWordAligned(t *testing.T) {
	prog := lower(t, `
fun f(u8 *p, u32 i) -> u8 {
	return p[i];
}
`)
	fn := singleFunction(t, prog, "f")
	require.Zero(t, fn.ArgStackSize%8)
	require.Equal(t, 0, fn.Arguments[0].StackOffset)
	require.Equal(t, 8, fn.Arguments[1].StackOffset)
}

func TestPointerArithmeticScalesByElementSize(t *testing.T) {
	prog := lower(t, `
fun f(u32 *p) -> u32 {
	return *(p + 2);
}
`)
	fn := singleFunction(t, prog, "f")
	instrs := allInstructions(fn)
	// *(p + constant) folds to load_off with the offset pre-scaled.
	require.Equal(t, 1, countOp(instrs, tac.OpLoadOff))
	for _, instr := range instrs {
		if instr.Op == tac.OpLoadOff {
			assert.Equal(t, int64(8), instr.Operands[2].Payload.Val, "2 x sizeof(u32)")
		}
	}
}

func TestTwoPointerArithmeticIsRejected(t *testing.T) {
	lowerExpectingError(t, `
fun f(u32 *a, u32 *b) -> u32 {
	return *(a + b);
}
`)
}

func TestNarrowingCallArgumentIsRejected(t *testing.T) {
	err := lowerExpectingError(t, `
fun callee(u8 small) {
	small = small;
}

fun caller(u32 big) {
	callee(big);
}
`)
	require.Contains(t, err.Error(), "narrow")
}

func TestUsingVoidReturnValueIsRejected(t *testing.T) {
	lowerExpectingError(t, `
fun noResult() {
	return;
}

fun f() -> u32 {
	return noResult();
}
`)
}

func TestLocalArrayAssignmentIsRejected(t *testing.T) {
	lowerExpectingError(t, `
fun f(u8 *src) {
	u8 buf[4] = src;
}
`)
}

func TestAddressOfLocalArrayIsRejected(t *testing.T) {
	lowerExpectingError(t, `
fun f() -> u8* {
	u8 buf[4];
	return &buf;
}
`)
}

func TestStructByValueReturnIsRejected(t *testing.T) {
	lowerExpectingError(t, `
class Pt {
	u32 x;
	u32 y;
}

fun make() -> class Pt {
	return 0;
}
`)
}

func TestBreakOutsideLoopIsRejected(t *testing.T) {
	lowerExpectingError(t, `
fun f() {
	break;
}
`)
}

func TestSizeofYieldsLiteral(t *testing.T) {
	prog := lower(t, `
fun f() -> u32 {
	return sizeof(u64);
}
`)
	fn := singleFunction(t, prog, "f")
	var ret *tac.Instruction
	for _, instr := range allInstructions(fn) {
		if instr.Op == tac.OpReturn {
			ret = instr
		}
	}
	require.NotNil(t, ret)
	require.Equal(t, tac.Literal, ret.Operands[0].Kind)
	require.Equal(t, int64(8), ret.Operands[0].Payload.Val)
}

func TestMemberStoreCarriesMemberCast(t *testing.T) {
	prog := lower(t, `
class Pt {
	u32 x;
	u32 y;
}

fun setY(class Pt *pt, u32 v) {
	pt->y = v;
}
`)
	fn := singleFunction(t, prog, "setY")
	var store *tac.Instruction
	for _, instr := range allInstructions(fn) {
		if instr.Op == tac.OpStoreOff {
			store = instr
		}
	}
	require.NotNil(t, store)
	assert.Equal(t, int64(4), store.Operands[1].Payload.Val, "y sits 4 bytes into Pt")
	require.NotNil(t, store.Operands[0].CastAsType)
	assert.Equal(t, "u32", store.Operands[0].CastAsType.RenderName())
}

func TestStringsLiteralEscapesRoundTrip(t *testing.T) {
	prog := lower(t, `
fun f() -> any* {
	return "a b";
}
`)
	var lit *symtab.VariableEntry
	for _, e := range prog.Global.Entries() {
		if e.Kind == symtab.EntryVariable && e.Variable.IsStringLiteral {
			lit = e.Variable
		}
	}
	require.NotNil(t, lit)
	assert.True(t, strings.HasPrefix(lit.Name, ".str."))
	assert.NotContains(t, lit.Name, " ", "whitespace folds to '_' in the mangled name")
}
