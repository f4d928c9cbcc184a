// Package codegen walks a linearized, register-allocated Program into a
// single freestanding RISC-V 64 assembly file.
package codegen

import (
	"fmt"
	"strings"

	"github.com/Mitch-Siegel/substratum-sub000/internal/lifetime"
	"github.com/Mitch-Siegel/substratum-sub000/internal/regalloc"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
)

// Program is the minimal surface codegen needs from internal/linearize's
// Program, expressed as an interface so this package doesn't import
// internal/linearize (which would create an import cycle the moment
// cmd/subc wires both into each other's tests).
type Program interface {
	GlobalScope() *symtab.Scope
	GlobalInitFunction() *symtab.FunctionEntry
	GlobalAsmBlock() *tac.BasicBlock
	DefinedFunctions() []*symtab.FunctionEntry
}

// Emitter accumulates assembly text for one translation unit.
type Emitter struct {
	out      strings.Builder
	fileName string

	// globalScope resolves variable names referenced from global block 0,
	// which has no owning function (internal/codegen/function.go's
	// funcEmitter falls back to this when fn is nil).
	globalScope *symtab.Scope
}

// New builds an Emitter; fileName is recorded in the leading `.file`
// directive.
func New(fileName string) *Emitter {
	return &Emitter{fileName: fileName}
}

func (e *Emitter) writef(format string, args ...any) {
	fmt.Fprintf(&e.out, format, args...)
	e.out.WriteByte('\n')
}

func (e *Emitter) raw(line string) {
	e.out.WriteString(line)
	e.out.WriteByte('\n')
}

// Emit runs the full emission pipeline and returns the assembled text.
func (e *Emitter) Emit(prog Program) (string, error) {
	e.globalScope = prog.GlobalScope()

	e.writef(".file %q", e.fileName)
	e.writef(".option nopic")

	if err := e.emitGlobalVariables(prog.GlobalScope()); err != nil {
		return "", err
	}

	e.writef(".text")

	if err := e.emitGlobalBlock0(prog.GlobalInitFunction()); err != nil {
		return "", err
	}
	if err := e.emitGlobalBlock1(prog.GlobalAsmBlock()); err != nil {
		return "", err
	}

	for _, fn := range prog.DefinedFunctions() {
		if fn.Name == "main" {
			e.emitStart()
		}
	}

	for _, fn := range prog.DefinedFunctions() {
		if err := e.emitFunction(fn); err != nil {
			return "", err
		}
	}

	return e.out.String(), nil
}

// emitStart emits the freestanding entry point whenever the program
// defines `main`: fix up the stack pointer, call main, and halt forever
// rather than falling off the end of .text.
func (e *Emitter) emitStart() {
	e.writef(".globl _start")
	e.writef(".type _start, @function")
	e.raw("_start:")
	e.writef("\tli sp, 0x80010000")
	e.writef("\tcall main")
	e.raw(".Lhalt:")
	e.writef("\twfi")
	e.writef("\tj .Lhalt")
	e.writef(".size _start, . - _start")
}

// emitGlobalVariables classifies every global-scope EntryVariable into
// .rodata/.data/.bss (or skips it entirely if extern) and emits its
// bytes.
func (e *Emitter) emitGlobalVariables(global *symtab.Scope) error {
	var rodata, data, bss []*symtab.VariableEntry

	for _, entry := range global.Entries() {
		if entry.Kind != symtab.EntryVariable {
			continue
		}
		v := entry.Variable
		switch {
		case v.IsExtern:
			continue
		case v.IsStringLiteral:
			rodata = append(rodata, v)
		case v.InitializeTo != nil || v.InitializeArrayTo != nil:
			data = append(data, v)
		default:
			bss = append(bss, v)
		}
	}

	if len(rodata) > 0 {
		e.writef(".section .rodata")
		for _, v := range rodata {
			if err := e.emitInitializedVariable(global, v); err != nil {
				return err
			}
		}
	}
	if len(data) > 0 {
		e.writef(".data")
		for _, v := range data {
			if err := e.emitInitializedVariable(global, v); err != nil {
				return err
			}
		}
	}
	if len(bss) > 0 {
		e.writef(".bss")
		for _, v := range bss {
			if err := e.emitBssVariable(global, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Emitter) emitInitializedVariable(scope *symtab.Scope, v *symtab.VariableEntry) error {
	size, err := scope.SizeOfType(v.Type)
	if err != nil {
		return err
	}
	align, err := scope.AlignmentOfType(v.Type)
	if err != nil {
		return err
	}
	e.writef(".align %d", log2(align))
	if !v.IsStringLiteral {
		// String-literal backing arrays stay assembler-local; everything
		// else is linkable by name.
		e.writef(".globl %s", v.Name)
	}
	e.writef(".type %s, @object", v.Name)
	e.writef(".size %s, %d", v.Name, size)
	e.raw(v.Name + ":")
	if v.IsStringLiteral {
		data := v.InitializeArrayTo
		// .asciz supplies the terminator itself.
		if len(data) > 0 && data[len(data)-1] == 0 {
			data = data[:len(data)-1]
		}
		e.writef("\t.asciz %q", string(data))
		return nil
	}
	if v.InitializeArrayTo != nil {
		for _, b := range v.InitializeArrayTo {
			e.writef("\t.byte %d", b)
		}
		return nil
	}
	bytes := encodeLittleEndian(*v.InitializeTo, size)
	for _, b := range bytes {
		e.writef("\t.byte %d", b)
	}
	return nil
}

func (e *Emitter) emitBssVariable(scope *symtab.Scope, v *symtab.VariableEntry) error {
	size, err := scope.SizeOfType(v.Type)
	if err != nil {
		return err
	}
	align, err := scope.AlignmentOfType(v.Type)
	if err != nil {
		return err
	}
	e.writef(".align %d", log2(align))
	e.writef(".globl %s", v.Name)
	e.writef(".type %s, @object", v.Name)
	e.writef(".size %s, %d", v.Name, size)
	e.raw(v.Name + ":")
	e.writef("\t.zero %d", size)
	return nil
}

func encodeLittleEndian(v int64, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

func log2(n int) int {
	r := 0
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

// emitGlobalBlock0 emits the label-0 initializer code. It has no
// source-level function, so it runs against the linearizer's synthetic
// owner: a fresh lifetime list for just this block, register assignment
// for its temporaries, and the same three reserved scratch registers
// every real function gets. Named operands here are all globals (Global
// residency), so only temporaries ever occupy allocated registers.
func (e *Emitter) emitGlobalBlock0(initFn *symtab.FunctionEntry) error {
	e.raw(".userstart:")
	res, err := lifetime.FindLifetimes(initFn)
	if err != nil {
		return err
	}
	lifetime.SeedResidencies(res)
	ov := lifetime.GenerateLifetimeOverlaps(res)
	if err := regalloc.Allocate(initFn, res, ov); err != nil {
		return err
	}

	gen := newFuncEmitter(e, initFn, e.globalScope)
	for _, block := range initFn.BasicBlockList {
		if block.LabelNum != 0 {
			e.raw(gen.labelName(int64(block.LabelNum)) + ":")
		}
		for _, instr := range block.TACList {
			if err := gen.emitLine(instr); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitGlobalBlock1 dumps raw top-level asm verbatim; anything else there
// is malformed input the linearizer should never have produced.
func (e *Emitter) emitGlobalBlock1(block *tac.BasicBlock) error {
	e.raw(".rawasm:")
	for _, instr := range block.TACList {
		if instr.Op != tac.OpAsm {
			return fmt.Errorf("internal error: non-asm op %s in global asm block", instr.Op)
		}
		e.raw("\t" + instr.Operands[0].Payload.Name)
	}
	return nil
}
