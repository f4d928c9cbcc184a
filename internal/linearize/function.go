package linearize

import (
	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/context"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// walkFunctionDecl declares a function: return type and argument types
// resolve against the global scope, arguments are inserted into the
// function's main scope with ascending positive stack offsets, and, when
// a body is present, its statements are walked directly into block 0 with
// no extra sub-scope layer. Errors accumulate via l.errorf/l.internalf; there is nothing
// useful to return to WalkProgram's dispatch loop.
func (l *Linearizer) walkFunctionDecl(n *ast.Node) {
	name := n.Value
	argsNode := n.ChildAt(0)
	returnTypeNode := n.ChildAt(1)
	body := n.ChildAt(2)

	if argsNode == nil || argsNode.Token != ast.FunArguments {
		l.internalf(n, "function %q missing argument list", name)
		return
	}
	if returnTypeNode == nil {
		l.internalf(n, "function %q missing return type", name)
		return
	}

	returnPointerDepth := 0
	for p := returnTypeNode.FirstChild; p != nil && p.Token == ast.Multiply; p = p.NextSibling {
		returnPointerDepth++
	}
	returnType, err := l.resolveTypeNode(l.prog.Global, returnTypeNode, returnPointerDepth, 0)
	if err != nil {
		l.errorf(returnTypeNode, "%s", err)
		return
	}
	if returnType.Basic == types.Struct && returnType.PointerDepth == 0 {
		l.errorf(returnTypeNode, "function %q cannot return a struct by value", name)
		return
	}

	fn := symtab.NewFunctionEntry(l.prog.Global, name, returnType)
	fn.CorrespondingTree = n

	offset := 0
	for argNode := argsNode.FirstChild; argNode != nil; argNode = argNode.NextSibling {
		argTypeNode := argNode.ChildAt(0)
		if argTypeNode == nil {
			l.internalf(argNode, "argument %q of %q missing type", argNode.Value, name)
			continue
		}
		pointerDepth := 0
		for p := argTypeNode.FirstChild; p != nil && p.Token == ast.Multiply; p = p.NextSibling {
			pointerDepth++
		}
		argType, err := l.resolveTypeNode(l.prog.Global, argTypeNode, pointerDepth, 0)
		if err != nil {
			l.errorf(argNode, "%s", err)
			continue
		}
		size, err := l.prog.Global.SizeOfType(argType)
		if err != nil {
			l.errorf(argNode, "%s", err)
			continue
		}
		align, err := l.prog.Global.AlignmentOfType(argType)
		if err != nil {
			l.errorf(argNode, "%s", err)
			continue
		}
		offset = alignTo(offset, align)
		v := &symtab.VariableEntry{Name: argNode.Value, Type: argType, StackOffset: offset}
		if err := fn.MainScope.InsertArgument(v); err != nil {
			l.errorf(argNode, "%s", err)
			continue
		}
		fn.Arguments = append(fn.Arguments, v)
		offset += size
	}
	// The argument area must stay a multiple of the machine register size:
	// callers reserve it with a single stack_reserve and the epilogue pops
	// it together with the frame.
	fn.ArgStackSize = alignTo(offset, types.MachineWordSize)

	if err := l.prog.Global.InsertFunction(fn); err != nil {
		l.errorf(n, "%s", err)
		return
	}

	if body == nil {
		fn.IsDefined = false
		return
	}
	fn.IsDefined = true

	block0 := tac.NewBasicBlock(0)
	fn.MainScope.AddBasicBlock(block0)

	fs := &funcState{fn: fn, temps: &context.TempCounter{}, block: block0, scope: fn.MainScope}
	fn.IsAsmFun = bodyIsAllAsm(body)

	for stmt := body.FirstChild; stmt != nil; stmt = stmt.NextSibling {
		if err := l.walkStatement(fs, stmt); err != nil {
			l.errorf(stmt, "%s", err)
			return
		}
	}

	if err := symtab.CollapseScopes(fn); err != nil {
		l.errorf(n, "%s", err)
		return
	}
	reindexTAC(fn)

	l.prog.Functions = append(l.prog.Functions, fn)
}

// reindexTAC assigns dense function-wide instruction indices across the
// basic block list in emission order. Blocks assign block-local indices
// as instructions are appended; this final pass makes them globally dense
// so a TAC index means the same thing to lifetime analysis and the
// register allocator that it means here.
func reindexTAC(fn *symtab.FunctionEntry) {
	index := 0
	for _, block := range fn.BasicBlockList {
		for _, instr := range block.TACList {
			instr.Index = index
			index++
		}
	}
}

// alignTo rounds offset up to the next multiple of alignment.
func alignTo(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + alignment - rem
}

// bodyIsAllAsm reports whether every top-level statement of a function body
// is an inline-asm block, the heuristic used to set FunctionEntry.IsAsmFun
// (no dedicated "asm function" keyword exists in the surface grammar).
func bodyIsAllAsm(body *ast.Node) bool {
	found := false
	for stmt := body.FirstChild; stmt != nil; stmt = stmt.NextSibling {
		if stmt.Token != ast.Asm {
			return false
		}
		found = true
	}
	return found
}
