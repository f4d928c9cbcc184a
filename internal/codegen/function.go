package codegen

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/lifetime"
	"github.com/Mitch-Siegel/substratum-sub000/internal/regalloc"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// funcEmitter carries the per-function state needed to lower TAC into
// RISC-V text: which scope resolves operand names, and the running source
// line for .loc directives. The global initializer
// block runs through the same emitter against the linearizer's synthetic
// init entry.
//
// fp/ra/callee-save slot offsets are recomputed here from the same inputs
// internal/regalloc.Allocate used (fn.CalleeSaveStackSize,
// fn.SavesReturnAddress), rather than threading them through
// symtab.FunctionEntry, since they're a pure function of those two already-
// exported fields.
type funcEmitter struct {
	e      *Emitter
	fn     *symtab.FunctionEntry
	global *symtab.Scope

	lastLine int
	asmIndex int

	fpOffset      int
	raOffset      int
	calleeOffsets []int
}

func newFuncEmitter(e *Emitter, fn *symtab.FunctionEntry, global *symtab.Scope) *funcEmitter {
	g := &funcEmitter{e: e, fn: fn, global: global, lastLine: -1}
	g.computeFrameOffsets()
	return g
}

// computeFrameOffsets implements the fp-relative layout internal/regalloc's
// reservedHeader computation establishes: fp's own save slot is always the
// word closest to fp, ra's slot (if saved) is the next word down, and the
// touched callee-saved registers fill the words below that, in the order
// regalloc reports them.
func (g *funcEmitter) computeFrameOffsets() {
	word := types.MachineWordSize
	words := 1
	g.fpOffset = -word * words
	if g.fn.SavesReturnAddress {
		words++
		g.raOffset = -word * words
	}
	g.calleeOffsets = make([]int, len(g.fn.CalleeSavedRegisters))
	for i := range g.fn.CalleeSavedRegisters {
		words++
		g.calleeOffsets[i] = -word * words
	}
}

func (g *funcEmitter) labelName(labelNum int64) string {
	return fmt.Sprintf(".L%s_%d", g.fn.Name, labelNum)
}

func (g *funcEmitter) scope() *symtab.Scope {
	return g.fn.MainScope
}

func (g *funcEmitter) lookupVar(name string) (*symtab.VariableEntry, error) {
	return g.scope().LookupVar(name)
}

func (g *funcEmitter) sizeOf(t *types.Type) (int, error) {
	return g.scope().SizeOfType(t)
}

// emitFunction runs register allocation, then emits the
// label/`.loc`/`.cfi_startproc` header, the prologue, every basic block's
// TAC, the epilogue, and the closing directives.
func (e *Emitter) emitFunction(fn *symtab.FunctionEntry) error {
	res, err := lifetime.FindLifetimes(fn)
	if err != nil {
		return err
	}
	lifetime.SeedResidencies(res)
	ov := lifetime.GenerateLifetimeOverlaps(res)
	if err := regalloc.Allocate(fn, res, ov); err != nil {
		return err
	}

	e.writef(".align 2")
	e.writef(".globl %s", fn.Name)
	e.writef(".type %s, @function", fn.Name)
	e.raw(fn.Name + ":")
	if fn.CorrespondingTree != nil && fn.CorrespondingTree.SourceLine != 0 {
		e.writef(".loc 1 %d %d", fn.CorrespondingTree.SourceLine, fn.CorrespondingTree.SourceCol)
	}
	e.writef(".cfi_startproc")

	gen := newFuncEmitter(e, fn, e.globalScope)
	if err := gen.emitPrologue(); err != nil {
		return err
	}

	for _, block := range fn.BasicBlockList {
		if block.LabelNum != 0 {
			e.raw(gen.labelName(int64(block.LabelNum)) + ":")
		}
		for _, instr := range block.TACList {
			if err := gen.emitLine(instr); err != nil {
				return err
			}
		}
	}

	gen.emitEpilogue()
	e.writef(".cfi_endproc")
	e.writef(".size %s, . - %s", fn.Name, fn.Name)
	return nil
}

// emitPrologue reserves the frame, saves ra (if this function calls out
// or is hand-written asm) and fp, establishes fp at the caller's old sp,
// callee-saves every register the assignment sweep touched, and reloads
// any register-resident argument from its stack slot.
func (g *funcEmitter) emitPrologue() error {
	fn := g.fn
	e := g.e

	e.writef("\taddi sp, sp, -%d", fn.FrameSize)
	spRel := func(fpOffset int) int { return fn.FrameSize + fpOffset }

	if fn.SavesReturnAddress {
		e.writef("\tsd ra, %d(sp)", spRel(g.raOffset))
	}
	e.writef("\tsd fp, %d(sp)", spRel(g.fpOffset))
	e.writef("\taddi fp, sp, %d", fn.FrameSize)
	e.writef(".cfi_def_cfa_offset %d", fn.FrameSize)

	for i, reg := range fn.CalleeSavedRegisters {
		e.writef("\tsd %s, %d(fp)", reg, g.calleeOffsets[i])
	}

	for _, arg := range fn.Arguments {
		if arg.Residency != symtab.Register {
			continue
		}
		size, err := g.sizeOf(arg.Type)
		if err != nil {
			return err
		}
		mnem, err := loadMnemonic(size)
		if err != nil {
			return err
		}
		e.writef("\t%s %s, %d(fp)", mnem, arg.RegisterName, arg.StackOffset)
	}
	return nil
}

// emitEpilogue restores saved registers, pops the frame and argument
// area, and returns.
func (g *funcEmitter) emitEpilogue() {
	fn := g.fn
	e := g.e
	e.raw(fn.Name + "_done:")

	for i := len(fn.CalleeSavedRegisters) - 1; i >= 0; i-- {
		e.writef("\tld %s, %d(fp)", fn.CalleeSavedRegisters[i], g.calleeOffsets[i])
	}
	if fn.SavesReturnAddress {
		e.writef("\tld ra, %d(fp)", g.raOffset)
	}
	e.writef("\tld fp, %d(fp)", g.fpOffset)
	e.writef("\taddi sp, sp, %d", fn.FrameSize+fn.ArgStackSize)
	e.writef("\tjalr zero, 0(ra)")
}

// emitLine emits the per-instruction comment/`.loc` bookkeeping, then
// dispatches to emitInstruction. do/enddo are lifetime markers only and
// never reach asm.
func (g *funcEmitter) emitLine(instr *tac.Instruction) error {
	if instr.Op.IsLifetimeMarker() {
		return nil
	}
	if instr.SourceRef.Line != 0 && instr.SourceRef.Line != g.lastLine {
		g.e.writef(".loc 1 %d %d", instr.SourceRef.Line, instr.SourceRef.Column)
		g.lastLine = instr.SourceRef.Line
	}
	g.e.raw("\t# " + instr.String())
	instr.AsmIndex = g.asmIndex
	g.asmIndex++
	return g.emitInstruction(instr)
}

// isStructValue reports whether t is a non-pointer, non-array struct: the
// one case a plain load/store/assign must expand into a byte copy instead
// of a single scalar instruction.
func isStructValue(t *types.Type) bool {
	return t.Basic == types.Struct && t.PointerDepth == 0 && !t.IsArray()
}

// isAddressRole reports whether a reference to a variable of type t, used
// as an ordinary TAC operand, actually names an address rather than a
// loadable scalar: arrays decay to their base address under most
// operations, and a struct value is never moved through a
// single register, only addressed and then byte-copied.
func isAddressRole(t *types.Type) bool {
	return t.IsArray() || isStructValue(t)
}

// placeOrFind: if op is a register resident, its register is returned
// directly; a literal is loaded into scratch; an array- or struct-valued
// variable resolves to its address (computed into scratch) rather than a
// loaded value; anything else is loaded from its stack or global home
// into scratch.
func (g *funcEmitter) placeOrFind(op *tac.Operand, scratch string) (string, error) {
	if op.Kind == tac.Literal {
		g.e.writef("\tli %s, %d", scratch, op.Payload.Val)
		return scratch, nil
	}
	v, err := g.lookupVar(op.Payload.Name)
	if err != nil {
		return "", err
	}
	if isAddressRole(v.Type) {
		return g.addressOf(v, scratch)
	}
	switch v.Residency {
	case symtab.Register:
		return v.RegisterName, nil
	case symtab.Stack:
		if err := g.loadScalarInto(v, scratch, true); err != nil {
			return "", err
		}
		return scratch, nil
	case symtab.Global:
		if err := g.loadScalarInto(v, scratch, false); err != nil {
			return "", err
		}
		return scratch, nil
	default:
		return "", fmt.Errorf("internal error: variable %q has no assigned residency at codegen time", v.Name)
	}
}

// pickWriteRegister: a register-resident destination writes directly to
// its own register; anything else writes to scratch and must be written
// back by the caller (writeBack).
func (g *funcEmitter) pickWriteRegister(op *tac.Operand, scratch string) (string, error) {
	v, err := g.lookupVar(op.Payload.Name)
	if err != nil {
		return "", err
	}
	if v.Residency == symtab.Register {
		return v.RegisterName, nil
	}
	return scratch, nil
}

// writeBack: a register-resident destination is already in place;
// anything else is stored to its stack or global home.
func (g *funcEmitter) writeBack(op *tac.Operand, reg string) error {
	v, err := g.lookupVar(op.Payload.Name)
	if err != nil {
		return err
	}
	if v.Residency == symtab.Register {
		return nil
	}
	return g.storeScalarFrom(v, reg)
}

// addressOf computes v's address into reg: `addi reg, fp, offset` for a
// stack resident, `la reg, name` for a global. A register resident has no
// address to take; reaching this branch means mustSpill (or array/struct
// seeding) did not pin it to memory, an internal invariant violation.
func (g *funcEmitter) addressOf(v *symtab.VariableEntry, reg string) (string, error) {
	switch v.Residency {
	case symtab.Stack:
		g.e.writef("\taddi %s, fp, %d", reg, v.StackOffset)
		return reg, nil
	case symtab.Global:
		g.e.writef("\tla %s, %s", reg, v.Name)
		return reg, nil
	default:
		return "", fmt.Errorf("internal error: cannot take the address of register-resident variable %q", v.Name)
	}
}

// loadScalarInto loads v's current value into reg; onStack selects an
// fp-relative load, otherwise a global symbol is addressed first via `la`.
func (g *funcEmitter) loadScalarInto(v *symtab.VariableEntry, reg string, onStack bool) error {
	size, err := g.sizeOf(v.Type)
	if err != nil {
		return err
	}
	mnem, err := loadMnemonic(size)
	if err != nil {
		return err
	}
	if onStack {
		g.e.writef("\t%s %s, %d(fp)", mnem, reg, v.StackOffset)
		return nil
	}
	g.e.writef("\tla %s, %s", reg, v.Name)
	g.e.writef("\t%s %s, 0(%s)", mnem, reg, reg)
	return nil
}

// storeScalarFrom stores reg's value into v's home.
func (g *funcEmitter) storeScalarFrom(v *symtab.VariableEntry, reg string) error {
	size, err := g.sizeOf(v.Type)
	if err != nil {
		return err
	}
	suffix, err := types.WidthSuffix(size)
	if err != nil {
		return err
	}
	mnem := "s" + string(suffix)
	if v.Residency == symtab.Stack {
		g.e.writef("\t%s %s, %d(fp)", mnem, reg, v.StackOffset)
		return nil
	}
	addrReg := "t1"
	if reg == addrReg {
		addrReg = "t2"
	}
	g.e.writef("\tla %s, %s", addrReg, v.Name)
	g.e.writef("\t%s %s, 0(%s)", mnem, reg, addrReg)
	return nil
}

// copyStruct emits an unrolled copy: 8-byte chunks via ld/sd, then any
// remainder one byte at a time via lb/sb.
func (g *funcEmitter) copyStruct(dstReg, srcReg string, size int) {
	off := 0
	for ; off+types.MachineWordSize <= size; off += types.MachineWordSize {
		g.e.writef("\tld t2, %d(%s)", off, srcReg)
		g.e.writef("\tsd t2, %d(%s)", off, dstReg)
	}
	for ; off < size; off++ {
		g.e.writef("\tlb t2, %d(%s)", off, srcReg)
		g.e.writef("\tsb t2, %d(%s)", off, dstReg)
	}
}

func loadMnemonic(size int) (string, error) {
	switch size {
	case 1:
		return "lbu", nil
	case 2:
		return "lhu", nil
	case 4:
		return "lwu", nil
	case 8:
		return "ld", nil
	default:
		return "", fmt.Errorf("internal error: unsupported load size %d", size)
	}
}

func binMnemonic(op tac.Op) (string, error) {
	switch op {
	case tac.OpAdd:
		return "add", nil
	case tac.OpSub:
		return "sub", nil
	case tac.OpMul:
		return "mul", nil
	case tac.OpDiv:
		return "divu", nil
	case tac.OpMod:
		return "remu", nil
	case tac.OpLShift:
		return "sll", nil
	case tac.OpRShift:
		return "srl", nil
	case tac.OpBitwiseAnd:
		return "and", nil
	case tac.OpBitwiseOr:
		return "or", nil
	case tac.OpBitwiseXor:
		return "xor", nil
	default:
		return "", fmt.Errorf("internal error: %s is not a binary arithmetic op", op)
	}
}

func branchMnemonic(op tac.Op) (string, error) {
	switch op {
	case tac.OpBeq:
		return "beq", nil
	case tac.OpBne:
		return "bne", nil
	case tac.OpBgeu:
		return "bgeu", nil
	case tac.OpBltu:
		return "bltu", nil
	case tac.OpBgtu:
		return "bgtu", nil
	case tac.OpBleu:
		return "bleu", nil
	case tac.OpBeqz:
		return "beqz", nil
	case tac.OpBnez:
		return "bnez", nil
	default:
		return "", fmt.Errorf("internal error: %s is not a branch op", op)
	}
}

// emitInstruction selects and emits the RISC-V for a single TAC line.
func (g *funcEmitter) emitInstruction(instr *tac.Instruction) error {
	e := g.e
	switch instr.Op {
	case tac.OpAsm:
		e.raw("\t" + instr.Operands[0].Payload.Name)
		return nil

	case tac.OpAssign:
		return g.emitAssign(instr)

	case tac.OpAdd, tac.OpSub, tac.OpMul, tac.OpDiv, tac.OpMod,
		tac.OpLShift, tac.OpRShift, tac.OpBitwiseAnd, tac.OpBitwiseOr, tac.OpBitwiseXor:
		return g.emitBinary(instr)

	case tac.OpBitwiseNot:
		srcReg, err := g.placeOrFind(instr.Operands[1], "t0")
		if err != nil {
			return err
		}
		writeReg, err := g.pickWriteRegister(instr.Operands[0], "t2")
		if err != nil {
			return err
		}
		e.writef("\tnot %s, %s", writeReg, srcReg)
		return g.writeBack(instr.Operands[0], writeReg)

	case tac.OpLoad:
		return g.emitLoad(instr)
	case tac.OpLoadOff:
		return g.emitLoadOff(instr)
	case tac.OpLoadArr:
		return g.emitLoadArr(instr)
	case tac.OpStore:
		return g.emitStore(instr)
	case tac.OpStoreOff:
		return g.emitStoreOff(instr)
	case tac.OpStoreArr:
		return g.emitStoreArr(instr)

	case tac.OpAddrOf:
		v, err := g.lookupVar(instr.Operands[1].Payload.Name)
		if err != nil {
			return err
		}
		addrReg, err := g.addressOf(v, "t0")
		if err != nil {
			return err
		}
		writeReg, err := g.pickWriteRegister(instr.Operands[0], "t2")
		if err != nil {
			return err
		}
		if addrReg != writeReg {
			e.writef("\tmv %s, %s", writeReg, addrReg)
		}
		return g.writeBack(instr.Operands[0], writeReg)

	case tac.OpLeaOff:
		baseReg, err := g.placeOrFind(instr.Operands[1], "t0")
		if err != nil {
			return err
		}
		writeReg, err := g.pickWriteRegister(instr.Operands[0], "t2")
		if err != nil {
			return err
		}
		e.writef("\taddi %s, %s, %d", writeReg, baseReg, instr.Operands[2].Payload.Val)
		return g.writeBack(instr.Operands[0], writeReg)

	case tac.OpLeaArr:
		addrReg, err := g.emitArrayAddr(instr.Operands[1], instr.Operands[2], instr.Operands[3])
		if err != nil {
			return err
		}
		writeReg, err := g.pickWriteRegister(instr.Operands[0], "t2")
		if err != nil {
			return err
		}
		if addrReg != writeReg {
			e.writef("\tmv %s, %s", writeReg, addrReg)
		}
		return g.writeBack(instr.Operands[0], writeReg)

	case tac.OpBeq, tac.OpBne, tac.OpBgeu, tac.OpBltu, tac.OpBgtu, tac.OpBleu:
		lhsReg, err := g.placeOrFind(instr.Operands[1], "t0")
		if err != nil {
			return err
		}
		rhsReg, err := g.placeOrFind(instr.Operands[2], "t1")
		if err != nil {
			return err
		}
		mnem, err := branchMnemonic(instr.Op)
		if err != nil {
			return err
		}
		e.writef("\t%s %s, %s, %s", mnem, lhsReg, rhsReg, g.labelName(instr.Operands[0].Payload.Val))
		return nil

	case tac.OpBeqz, tac.OpBnez:
		valReg, err := g.placeOrFind(instr.Operands[1], "t0")
		if err != nil {
			return err
		}
		mnem, err := branchMnemonic(instr.Op)
		if err != nil {
			return err
		}
		e.writef("\t%s %s, %s", mnem, valReg, g.labelName(instr.Operands[0].Payload.Val))
		return nil

	case tac.OpJmp:
		e.writef("\tj %s", g.labelName(instr.Operands[0].Payload.Val))
		return nil

	case tac.OpStackReserve:
		e.writef("\taddi sp, sp, -%d", instr.Operands[0].Payload.Val)
		return nil

	case tac.OpStackStore:
		return g.emitStackStore(instr)

	case tac.OpCall:
		return g.emitCall(instr)

	case tac.OpLabel:
		e.raw(g.labelName(instr.Operands[0].Payload.Val) + ":")
		return nil

	case tac.OpReturn:
		if instr.Operands[0] != nil {
			reg, err := g.placeOrFind(instr.Operands[0], "t0")
			if err != nil {
				return err
			}
			if reg != regalloc.ReturnValueRegister {
				e.writef("\tmv %s, %s", regalloc.ReturnValueRegister, reg)
			}
		}
		e.writef("\tj %s_done", g.fn.Name)
		return nil

	default:
		return fmt.Errorf("internal error: codegen has no instruction selection for op %s", instr.Op)
	}
}

func (g *funcEmitter) emitAssign(instr *tac.Instruction) error {
	dest, src := instr.Operands[0], instr.Operands[1]
	dv, err := g.lookupVar(dest.Payload.Name)
	if err != nil {
		return err
	}
	if isStructValue(dv.Type) {
		dstAddr, err := g.addressOf(dv, "t0")
		if err != nil {
			return err
		}
		srcAddr, err := g.placeOrFind(src, "t1")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(dv.Type)
		if err != nil {
			return err
		}
		g.copyStruct(dstAddr, srcAddr, size)
		return nil
	}

	srcReg, err := g.placeOrFind(src, "t0")
	if err != nil {
		return err
	}
	writeReg, err := g.pickWriteRegister(dest, "t2")
	if err != nil {
		return err
	}
	if srcReg != writeReg {
		g.e.writef("\tmv %s, %s", writeReg, srcReg)
	}
	return g.writeBack(dest, writeReg)
}

func (g *funcEmitter) emitBinary(instr *tac.Instruction) error {
	lhsReg, err := g.placeOrFind(instr.Operands[1], "t0")
	if err != nil {
		return err
	}
	rhsReg, err := g.placeOrFind(instr.Operands[2], "t1")
	if err != nil {
		return err
	}
	writeReg, err := g.pickWriteRegister(instr.Operands[0], "t2")
	if err != nil {
		return err
	}
	mnem, err := binMnemonic(instr.Op)
	if err != nil {
		return err
	}
	g.e.writef("\t%s %s, %s, %s", mnem, writeReg, lhsReg, rhsReg)
	return g.writeBack(instr.Operands[0], writeReg)
}

func (g *funcEmitter) emitLoad(instr *tac.Instruction) error {
	dest, addr := instr.Operands[0], instr.Operands[1]
	dv, err := g.lookupVar(dest.Payload.Name)
	if err != nil {
		return err
	}
	ptrReg, err := g.placeOrFind(addr, "t0")
	if err != nil {
		return err
	}
	if isStructValue(dv.Type) {
		dstAddr, err := g.addressOf(dv, "t1")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(dv.Type)
		if err != nil {
			return err
		}
		g.copyStruct(dstAddr, ptrReg, size)
		return nil
	}
	size, err := g.sizeOf(dv.Type)
	if err != nil {
		return err
	}
	mnem, err := loadMnemonic(size)
	if err != nil {
		return err
	}
	writeReg, err := g.pickWriteRegister(dest, "t2")
	if err != nil {
		return err
	}
	g.e.writef("\t%s %s, 0(%s)", mnem, writeReg, ptrReg)
	return g.writeBack(dest, writeReg)
}

func (g *funcEmitter) emitLoadOff(instr *tac.Instruction) error {
	dest, base, offsetOp := instr.Operands[0], instr.Operands[1], instr.Operands[2]
	dv, err := g.lookupVar(dest.Payload.Name)
	if err != nil {
		return err
	}
	baseReg, err := g.placeOrFind(base, "t0")
	if err != nil {
		return err
	}
	offset := offsetOp.Payload.Val

	if isStructValue(dv.Type) {
		g.e.writef("\taddi t1, %s, %d", baseReg, offset)
		dstAddr, err := g.addressOf(dv, "t2")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(dv.Type)
		if err != nil {
			return err
		}
		g.copyStruct(dstAddr, "t1", size)
		return nil
	}

	size, err := g.sizeOf(dv.Type)
	if err != nil {
		return err
	}
	mnem, err := loadMnemonic(size)
	if err != nil {
		return err
	}
	writeReg, err := g.pickWriteRegister(dest, "t2")
	if err != nil {
		return err
	}
	g.e.writef("\t%s %s, %d(%s)", mnem, writeReg, offset, baseReg)
	return g.writeBack(dest, writeReg)
}

// emitArrayAddr expands an array index to `slli tmpOff, idx, scale`
// (omitted when scale is 0) then `add tmpAddr, base, tmpOff`. Returns the
// register holding the computed address.
func (g *funcEmitter) emitArrayAddr(base, index, scaleOp *tac.Operand) (string, error) {
	baseReg, err := g.placeOrFind(base, "t0")
	if err != nil {
		return "", err
	}
	idxReg, err := g.placeOrFind(index, "t1")
	if err != nil {
		return "", err
	}
	scale := scaleOp.Payload.Val
	if scale != 0 {
		g.e.writef("\tslli %s, %s, %d", idxReg, idxReg, scale)
	}
	g.e.writef("\tadd t0, %s, %s", baseReg, idxReg)
	return "t0", nil
}

func (g *funcEmitter) emitLoadArr(instr *tac.Instruction) error {
	dest := instr.Operands[0]
	dv, err := g.lookupVar(dest.Payload.Name)
	if err != nil {
		return err
	}
	addrReg, err := g.emitArrayAddr(instr.Operands[1], instr.Operands[2], instr.Operands[3])
	if err != nil {
		return err
	}

	if isStructValue(dv.Type) {
		dstAddr, err := g.addressOf(dv, "t1")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(dv.Type)
		if err != nil {
			return err
		}
		g.copyStruct(dstAddr, addrReg, size)
		return nil
	}

	size, err := g.sizeOf(dv.Type)
	if err != nil {
		return err
	}
	mnem, err := loadMnemonic(size)
	if err != nil {
		return err
	}
	writeReg, err := g.pickWriteRegister(dest, "t2")
	if err != nil {
		return err
	}
	g.e.writef("\t%s %s, 0(%s)", mnem, writeReg, addrReg)
	return g.writeBack(dest, writeReg)
}

func (g *funcEmitter) emitStore(instr *tac.Instruction) error {
	addr, value := instr.Operands[0], instr.Operands[1]
	ptrReg, err := g.placeOrFind(addr, "t0")
	if err != nil {
		return err
	}
	if isStructValue(value.EffectiveType()) {
		srcAddr, err := g.placeOrFind(value, "t1")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(value.EffectiveType())
		if err != nil {
			return err
		}
		g.copyStruct(ptrReg, srcAddr, size)
		return nil
	}
	valReg, err := g.placeOrFind(value, "t1")
	if err != nil {
		return err
	}
	size, err := g.sizeOf(value.EffectiveType())
	if err != nil {
		return err
	}
	suffix, err := types.WidthSuffix(size)
	if err != nil {
		return err
	}
	g.e.writef("\ts%c %s, 0(%s)", suffix, valReg, ptrReg)
	return nil
}

func (g *funcEmitter) emitStoreOff(instr *tac.Instruction) error {
	base, offsetOp, value := instr.Operands[0], instr.Operands[1], instr.Operands[2]
	baseReg, err := g.placeOrFind(base, "t0")
	if err != nil {
		return err
	}
	offset := offsetOp.Payload.Val

	if isStructValue(value.EffectiveType()) {
		srcAddr, err := g.placeOrFind(value, "t1")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(value.EffectiveType())
		if err != nil {
			return err
		}
		g.e.writef("\taddi t2, %s, %d", baseReg, offset)
		g.copyStruct("t2", srcAddr, size)
		return nil
	}

	valReg, err := g.placeOrFind(value, "t1")
	if err != nil {
		return err
	}
	size, err := g.sizeOf(value.EffectiveType())
	if err != nil {
		return err
	}
	suffix, err := types.WidthSuffix(size)
	if err != nil {
		return err
	}
	g.e.writef("\ts%c %s, %d(%s)", suffix, valReg, offset, baseReg)
	return nil
}

func (g *funcEmitter) emitStoreArr(instr *tac.Instruction) error {
	base, index, scaleOp, value := instr.Operands[0], instr.Operands[1], instr.Operands[2], instr.Operands[3]
	addrReg, err := g.emitArrayAddr(base, index, scaleOp)
	if err != nil {
		return err
	}

	if isStructValue(value.EffectiveType()) {
		srcAddr, err := g.placeOrFind(value, "t1")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(value.EffectiveType())
		if err != nil {
			return err
		}
		g.copyStruct(addrReg, srcAddr, size)
		return nil
	}

	valReg, err := g.placeOrFind(value, "t1")
	if err != nil {
		return err
	}
	size, err := g.sizeOf(value.EffectiveType())
	if err != nil {
		return err
	}
	suffix, err := types.WidthSuffix(size)
	if err != nil {
		return err
	}
	g.e.writef("\ts%c %s, 0(%s)", suffix, valReg, addrReg)
	return nil
}

func (g *funcEmitter) emitStackStore(instr *tac.Instruction) error {
	value, offsetOp := instr.Operands[0], instr.Operands[1]
	offset := offsetOp.Payload.Val

	if isStructValue(value.EffectiveType()) {
		srcAddr, err := g.placeOrFind(value, "t0")
		if err != nil {
			return err
		}
		size, err := g.sizeOf(value.EffectiveType())
		if err != nil {
			return err
		}
		g.e.writef("\taddi t1, sp, %d", offset)
		g.copyStruct("t1", srcAddr, size)
		return nil
	}

	valReg, err := g.placeOrFind(value, "t0")
	if err != nil {
		return err
	}
	size, err := g.sizeOf(value.EffectiveType())
	if err != nil {
		return err
	}
	suffix, err := types.WidthSuffix(size)
	if err != nil {
		return err
	}
	g.e.writef("\ts%c %s, %d(sp)", suffix, valReg, offset)
	return nil
}

func (g *funcEmitter) emitCall(instr *tac.Instruction) error {
	calleeName := instr.Operands[1].Payload.Name
	callee, err := g.global.LookupFun(calleeName)
	if err != nil {
		return err
	}
	if callee.IsDefined {
		g.e.writef("\tcall %s", calleeName)
	} else {
		g.e.writef("\tcall %s@plt", calleeName)
	}

	dest := instr.Operands[0]
	if dest == nil {
		return nil
	}
	writeReg, err := g.pickWriteRegister(dest, "t2")
	if err != nil {
		return err
	}
	if writeReg != regalloc.ReturnValueRegister {
		g.e.writef("\tmv %s, %s", writeReg, regalloc.ReturnValueRegister)
	}
	return g.writeBack(dest, writeReg)
}
