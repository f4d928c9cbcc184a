package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mitch-Siegel/substratum-sub000/internal/lifetime"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

var u32 = &types.Type{Basic: types.U32}

func declareLocal(t *testing.T, fn *symtab.FunctionEntry, name string) *symtab.VariableEntry {
	t.Helper()
	v := &symtab.VariableEntry{Name: name, Type: u32}
	require.NoError(t, fn.MainScope.InsertVariable(v))
	return v
}

// x = 1; y = x + 1; z = y + 1; return z;
func buildChainFunction(t *testing.T) *symtab.FunctionEntry {
	t.Helper()
	fn := symtab.NewFunctionEntry(nil, "f", u32)
	declareLocal(t, fn, "x")
	declareLocal(t, fn, "y")
	declareLocal(t, fn, "z")

	block := tac.NewBasicBlock(0)
	fn.MainScope.AddBasicBlock(block)

	block.Append(&tac.Instruction{Op: tac.OpAssign, Operands: [4]*tac.Operand{
		tac.StandardOperand("x", u32), tac.LiteralOperand(1, u32),
	}})
	block.Append(&tac.Instruction{Op: tac.OpAdd, Operands: [4]*tac.Operand{
		tac.StandardOperand("y", u32), tac.StandardOperand("x", u32), tac.LiteralOperand(1, u32),
	}})
	block.Append(&tac.Instruction{Op: tac.OpAdd, Operands: [4]*tac.Operand{
		tac.StandardOperand("z", u32), tac.StandardOperand("y", u32), tac.LiteralOperand(1, u32),
	}})
	block.Append(&tac.Instruction{Op: tac.OpReturn, Operands: [4]*tac.Operand{
		tac.StandardOperand("z", u32),
	}})

	return fn
}

func runLifetime(t *testing.T, fn *symtab.FunctionEntry) (*lifetime.Result, *lifetime.Overlaps) {
	t.Helper()
	res, err := lifetime.FindLifetimes(fn)
	require.NoError(t, err)
	lifetime.SeedResidencies(res)
	return res, lifetime.GenerateLifetimeOverlaps(res)
}

func TestAllocateAssignsDistinctRegistersForOverlappingLifetimes(t *testing.T) {
	fn := buildChainFunction(t)
	res, ov := runLifetime(t, fn)

	require.NoError(t, Allocate(fn, res, ov))

	x, _ := fn.MainScope.LookupVar("x")
	y, _ := fn.MainScope.LookupVar("y")
	z, _ := fn.MainScope.LookupVar("z")

	assert.Equal(t, symtab.Register, x.Residency)
	assert.Equal(t, symtab.Register, y.Residency)
	assert.Equal(t, symtab.Register, z.Residency)

	assert.NotEmpty(t, x.RegisterName)
	assert.NotEmpty(t, y.RegisterName)
	assert.NotEqual(t, x.RegisterName, y.RegisterName, "x and y are simultaneously live at the add into y")
}

func TestAllocateReusesRegisterAfterLifetimeEnds(t *testing.T) {
	fn := buildChainFunction(t)
	res, ov := runLifetime(t, fn)
	require.NoError(t, Allocate(fn, res, ov))

	x, _ := fn.MainScope.LookupVar("x")
	z, _ := fn.MainScope.LookupVar("z")
	// x's lifetime ends at the add that produces y (index 1); z starts at
	// index 2, so it's free to reuse x's register.
	assert.Equal(t, x.RegisterName, z.RegisterName)
}

func TestAllocateSpillsBeyondBudget(t *testing.T) {
	fn := symtab.NewFunctionEntry(nil, "manyvars", u32)
	block := tac.NewBasicBlock(0)
	fn.MainScope.AddBasicBlock(block)

	names := make([]string, 0, Budget+5)
	for i := 0; i < Budget+5; i++ {
		name := "v" + string(rune('a'+i))
		declareLocal(t, fn, name)
		names = append(names, name)
	}

	// Declare every variable live simultaneously by writing them all in
	// one block, then reading every one of them in a single later
	// instruction's worth of assigns to an accumulator, so every lifetime
	// spans the whole function.
	for _, name := range names {
		block.Append(&tac.Instruction{Op: tac.OpAssign, Operands: [4]*tac.Operand{
			tac.StandardOperand(name, u32), tac.LiteralOperand(1, u32),
		}})
	}
	for _, name := range names {
		block.Append(&tac.Instruction{Op: tac.OpAdd, Operands: [4]*tac.Operand{
			tac.StandardOperand(name, u32), tac.StandardOperand(name, u32), tac.LiteralOperand(1, u32),
		}})
	}

	res, ov := runLifetime(t, fn)
	require.NoError(t, Allocate(fn, res, ov))

	registerCount, stackCount := 0, 0
	for _, name := range names {
		v, err := fn.MainScope.LookupVar(name)
		require.NoError(t, err)
		switch v.Residency {
		case symtab.Register:
			registerCount++
		case symtab.Stack:
			stackCount++
		default:
			t.Fatalf("variable %q left with residency %v", name, v.Residency)
		}
	}

	assert.LessOrEqual(t, registerCount, Budget)
	assert.Greater(t, stackCount, 0)
	assert.Equal(t, len(names), registerCount+stackCount)
}

func TestAllocateGivesArgumentsNegativeStackOffsetsOnlyWhenNonArgument(t *testing.T) {
	fn := symtab.NewFunctionEntry(nil, "f", u32)
	arg := &symtab.VariableEntry{Name: "arg0", Type: u32, StackOffset: 16}
	require.NoError(t, fn.MainScope.InsertArgument(arg))
	fn.Arguments = append(fn.Arguments, arg)
	arg.MustSpill = true // force stack residency regardless of contention

	local := &symtab.VariableEntry{Name: "local0", Type: u32, MustSpill: true}
	require.NoError(t, fn.MainScope.InsertVariable(local))

	block := tac.NewBasicBlock(0)
	fn.MainScope.AddBasicBlock(block)
	block.Append(&tac.Instruction{Op: tac.OpAssign, Operands: [4]*tac.Operand{
		tac.StandardOperand("local0", u32), tac.StandardOperand("arg0", u32),
	}})

	res, ov := runLifetime(t, fn)
	require.NoError(t, Allocate(fn, res, ov))

	assert.Equal(t, 16, arg.StackOffset, "argument keeps its declaration-time offset")
	assert.Less(t, local.StackOffset, 0, "non-argument stack slot is placed below fp")
}

func TestComputeFrameRoundsTo16AndTracksCalleeSaved(t *testing.T) {
	fn := buildChainFunction(t)
	res, ov := runLifetime(t, fn)
	require.NoError(t, Allocate(fn, res, ov))

	assert.Equal(t, 0, fn.FrameSize%16)
	assert.False(t, fn.SavesReturnAddress, "leaf, non-asm function never saves ra")
}

func TestComputeFrameSavesReturnAddressWhenCallingOut(t *testing.T) {
	fn := buildChainFunction(t)
	fn.CallsOtherFunction = true
	res, ov := runLifetime(t, fn)
	require.NoError(t, Allocate(fn, res, ov))

	assert.True(t, fn.SavesReturnAddress)
	assert.Equal(t, 0, fn.FrameSize%16)
}
