// Package linearize implements the linearizer: the walk from the AST
// (internal/ast) into TAC (internal/tac) partitioned into basic blocks,
// creating scoped variables in the symbol table (internal/symtab) along
// the way. This is the heart of the compiler's middle end.
package linearize

import (
	"fmt"
	"go/token"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/cerr"
	"github.com/Mitch-Siegel/substratum-sub000/internal/context"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// Program is the linearizer's output: the global scope (holding top-level
// variables, functions, and structs), the two reserved global basic
// blocks, and the list of defined functions in declaration order for the
// emitter to walk.
//
// InitFn is a synthetic function entry owning InitBlock: the global
// initializer code has no source-level function, but lifetime analysis and
// register assignment still need a scope for its temporaries and a basic
// block list to walk, so the initializers run against this entry exactly
// the way a real function's body does. It is never inserted into the
// global scope and never appears in DefinedFunctions.
type Program struct {
	Global    *symtab.Scope
	InitBlock *tac.BasicBlock // label 0: global variable initializers
	AsmBlock  *tac.BasicBlock // label 1: top-level inline asm
	InitFn    *symtab.FunctionEntry
	Functions []*symtab.FunctionEntry
}

// GlobalScope returns the top-level scope, satisfying internal/codegen's
// Program interface.
func (p *Program) GlobalScope() *symtab.Scope { return p.Global }

// GlobalInitBlock returns the label-0 global initializer block.
func (p *Program) GlobalInitBlock() *tac.BasicBlock { return p.InitBlock }

// GlobalAsmBlock returns the label-1 top-level raw-asm block.
func (p *Program) GlobalAsmBlock() *tac.BasicBlock { return p.AsmBlock }

// GlobalInitFunction returns the synthetic function entry owning the
// label-0 initializer block, for the emitter to run lifetime analysis and
// register assignment against.
func (p *Program) GlobalInitFunction() *symtab.FunctionEntry { return p.InitFn }

// DefinedFunctions returns Functions filtered to definitions, excluding
// forward declarations that never produced a body.
func (p *Program) DefinedFunctions() []*symtab.FunctionEntry {
	var out []*symtab.FunctionEntry
	for _, fn := range p.Functions {
		if fn.IsDefined {
			out = append(out, fn)
		}
	}
	return out
}

// Linearizer walks a translation-unit AST and produces a Program.
type Linearizer struct {
	ctx   *context.Context
	diags *cerr.Diagnostics
	prog  *Program
}

// New builds a Linearizer against ctx, accumulating diagnostics into diags.
func New(ctx *context.Context, diags *cerr.Diagnostics) *Linearizer {
	return &Linearizer{ctx: ctx, diags: diags}
}

// funcState is the per-function walking state: the function being built,
// its temp-name counter (temp numbering is per-function in visible
// behaviour), the basic block / scope currently being appended to, and
// the stack of enclosing loop labels for break/continue.
type funcState struct {
	fn    *symtab.FunctionEntry
	temps *context.TempCounter
	block *tac.BasicBlock
	scope *symtab.Scope
	loops []loopLabels
}

// loopLabels is one entry of the break/continue target stack. A switch
// pushes a frame with isSwitch set so that continue looks straight through
// it to the nearest enclosing loop, while break always targets the
// nearest frame regardless of kind.
type loopLabels struct {
	continueLabel int
	breakLabel    int
	isSwitch      bool
}

func (fs *funcState) pushLoop(continueLabel, breakLabel int) {
	fs.loops = append(fs.loops, loopLabels{continueLabel: continueLabel, breakLabel: breakLabel})
}

func (fs *funcState) pushSwitch(breakLabel int) {
	fs.loops = append(fs.loops, loopLabels{breakLabel: breakLabel, isSwitch: true})
}

func (fs *funcState) popLoop() {
	fs.loops = fs.loops[:len(fs.loops)-1]
}

func (fs *funcState) continueTarget() (int, bool) {
	for i := len(fs.loops) - 1; i >= 0; i-- {
		if !fs.loops[i].isSwitch {
			return fs.loops[i].continueLabel, true
		}
	}
	return 0, false
}

func (fs *funcState) breakTarget() (int, bool) {
	if len(fs.loops) == 0 {
		return 0, false
	}
	return fs.loops[len(fs.loops)-1].breakLabel, true
}

// newTemp allocates the next ".tN" name, registers it as a variable in the
// owning function's main scope (temps must resolve through the ordinary
// Lookup machinery: lifetime analysis and the emitter both find a temp's
// type and residency the same way they find a named local's), and returns
// the operand referring to it. Temps land directly in MainScope, never in
// the current sub-scope, so scope collapse leaves their names unmangled.
func (fs *funcState) newTemp(t *types.Type) *tac.Operand {
	name := fs.temps.Next()
	// Collisions are impossible: the counter is monotonic per function.
	_ = fs.fn.MainScope.InsertVariable(&symtab.VariableEntry{Name: name, Type: t})
	return tac.TempOperand(name, t)
}

// newBlock allocates a fresh label, builds a basic block for it, registers
// it in scope, and returns it. It does not
// switch fs.block/fs.scope; callers do that explicitly so the pre-block
// instruction they are mid-building is unaffected.
func newBlock(fs *funcState, scope *symtab.Scope) *tac.BasicBlock {
	b := tac.NewBasicBlock(fs.fn.NextLabel())
	scope.AddBasicBlock(b)
	return b
}

func posOf(n *ast.Node) token.Position {
	if n == nil {
		return token.Position{}
	}
	return token.Position{Filename: n.SourceFile, Line: n.SourceLine, Column: n.SourceCol}
}

func (l *Linearizer) errorf(n *ast.Node, format string, args ...any) {
	l.diags.Add(cerr.NewCodeError(posOf(n), format, args...))
}

func (l *Linearizer) internalf(n *ast.Node, format string, args ...any) {
	l.diags.Add(cerr.NewInternalError(posOf(n), format, args...))
}

// WalkProgram is the linearizer's entry point: it constructs a fresh
// global scope, a BasicBlock 0 for top-level initializers, a separate
// BasicBlock 1 for top-level inline asm, and dispatches over the
// translation unit's siblings.
func (l *Linearizer) WalkProgram(root *ast.Node) (*Program, error) {
	if root.Token != ast.TranslationUnit {
		l.internalf(root, "WalkProgram expects a TranslationUnit root, got %s", root.Token)
		return nil, l.diags.Err()
	}

	global := symtab.NewScope(nil, nil)
	initBlock := tac.NewBasicBlock(0)
	asmBlock := tac.NewBasicBlock(1)
	global.AddBasicBlock(initBlock)
	global.AddBasicBlock(asmBlock)

	// The initializer block's synthetic owner: its MainScope (parented to
	// the global scope) holds the temporaries the initializer expressions
	// materialize, and its BasicBlockList starts with just initBlock. The
	// raw asm block is excluded; it is dumped verbatim, never analyzed.
	// The global scope adopts it afterward so any further blocks the
	// initializer expressions need (short-circuit lowering and the like)
	// land on its list; label 1 is burned because the asm block holds it.
	initFn := symtab.NewFunctionEntry(global, ".userstart", l.ctx.Dictionary.Intern(&types.Type{Basic: types.Null}))
	initFn.BasicBlockList = append(initFn.BasicBlockList, initBlock)
	global.AdoptFunction(initFn)
	initFn.NextLabel()

	l.prog = &Program{Global: global, InitBlock: initBlock, AsmBlock: asmBlock, InitFn: initFn}

	fs := &funcState{fn: initFn, scope: global, block: initBlock, temps: &context.TempCounter{}}

	for child := root.FirstChild; child != nil; child = child.NextSibling {
		switch child.Token {
		case ast.VariableDeclaration:
			l.walkGlobalVariableDecl(fs, child, false)
		case ast.Extern:
			decl := child.ChildAt(0)
			if decl == nil || decl.Token != ast.VariableDeclaration {
				l.errorf(child, "extern outside global scope must wrap a variable declaration")
				continue
			}
			l.walkGlobalVariableDecl(fs, decl, true)
		case ast.Class:
			l.walkClassDecl(global, child)
		case ast.Assign:
			fs.block = l.prog.InitBlock
			if _, err := l.walkAssignment(fs, child); err != nil {
				l.errorf(child, "%s", err)
			}
		case ast.Fun:
			l.walkFunctionDecl(child)
		case ast.Asm:
			fs.block = l.prog.AsmBlock
			l.walkAsmStatement(fs, child)
		default:
			l.errorf(child, "unexpected top-level construct %s", child.Token)
		}
	}

	reindexTAC(initFn)
	return l.prog, l.diags.Err()
}

// walkGlobalVariableDecl declares a top-level variable, auto-marked
// global, optionally extern (in which case nothing is emitted).
func (l *Linearizer) walkGlobalVariableDecl(fs *funcState, n *ast.Node, isExtern bool) {
	name, t, initExpr, err := l.declInfo(fs.scope, n)
	if err != nil {
		l.errorf(n, "%s", err)
		return
	}
	v := &symtab.VariableEntry{Name: name, Type: t, IsGlobal: true, IsExtern: isExtern}
	if err := fs.scope.InsertVariable(v); err != nil {
		l.errorf(n, "%s", err)
		return
	}
	if isExtern || initExpr == nil {
		return
	}

	// A constant initializer becomes compile-time data carried on the
	// variable itself, so the emitter places the
	// bytes in .data instead of synthesizing startup code for them. Only
	// genuinely computed initializers run through the label-0 block.
	if folded, ok := foldConstantLeaf(initExpr); ok {
		v.InitializeTo = &folded
		return
	}

	fs.block = l.prog.InitBlock
	rhs, err := l.walkSubExpression(fs, initExpr)
	if err != nil {
		l.errorf(n, "%s", err)
		return
	}
	instr := tac.New(tac.OpAssign, posOf(n))
	instr.Operands[0] = tac.StandardOperand(v.Name, v.Type)
	instr.Operands[1] = rhs
	fs.block.Append(instr)
}

// foldConstantLeaf resolves an initializer expression that is a bare
// integer or character literal to its value.
func foldConstantLeaf(n *ast.Node) (int64, bool) {
	switch n.Token {
	case ast.Constant:
		v, err := parseConstant(n.Value)
		return v, err == nil
	case ast.CharLiteral:
		v, err := canonicalizeChar(n.Value)
		return v, err == nil
	default:
		return 0, false
	}
}

// walkClassDecl defines a struct/class from its body's field declarations.
func (l *Linearizer) walkClassDecl(scope *symtab.Scope, n *ast.Node) {
	name := n.Value
	body := n.ChildAt(0)
	if body == nil || body.Token != ast.ClassBody {
		l.internalf(n, "class %q missing body", name)
		return
	}
	var fieldNames []string
	var fieldTypes []*types.Type
	for field := body.FirstChild; field != nil; field = field.NextSibling {
		fname, ftype, _, err := l.declInfo(scope, field)
		if err != nil {
			l.errorf(field, "%s", err)
			return
		}
		fieldNames = append(fieldNames, fname)
		fieldTypes = append(fieldTypes, ftype)
	}
	if _, err := scope.DefineStruct(name, fieldNames, fieldTypes); err != nil {
		l.errorf(n, "%s", err)
	}
}

// resolveTypeNode turns a type AST subtree (void/any/u8/u16/u32/u64/TypeName,
// plus any number of '*' pointer markers encoded as PointerDepth on the
// node itself, and an optional array-length child) into a *types.Type.
func (l *Linearizer) resolveTypeNode(scope *symtab.Scope, n *ast.Node, pointerDepth int, arrayLen int) (*types.Type, error) {
	var t types.Type
	t.PointerDepth = pointerDepth
	switch n.Token {
	case ast.TVoid:
		if pointerDepth != 0 || arrayLen != 0 {
			return nil, fmt.Errorf("'void' is not a legal pointer or array type")
		}
		return l.ctx.Dictionary.Intern(&types.Type{Basic: types.Null}), nil
	case ast.TAny:
		t.Basic = types.Any
		if pointerDepth == 0 {
			return nil, fmt.Errorf("'any' is only legal as a pointer type")
		}
	case ast.TU8:
		t.Basic = types.U8
	case ast.TU16:
		t.Basic = types.U16
	case ast.TU32:
		t.Basic = types.U32
	case ast.TU64:
		t.Basic = types.U64
	case ast.TypeName, ast.TClass:
		t.Basic = types.Struct
		t.StructName = n.Value
		if _, err := scope.LookupStruct(n.Value); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("not a type: %s", n.Token)
	}
	if arrayLen > 0 {
		elem := t
		t.ArrayLen = arrayLen
		t.ElementType = l.ctx.Dictionary.Intern(&elem)
	}
	return l.ctx.Dictionary.Intern(&t), nil
}

// declInfo extracts (name, type, initializer-or-nil) from a
// VariableDeclaration node. The node's children are, in order: the type
// node, [an array-length Constant child if IsArray], and [an initializer
// expression if present]; Value carries the declared name.
func (l *Linearizer) declInfo(scope *symtab.Scope, n *ast.Node) (string, *types.Type, *ast.Node, error) {
	if n.Token != ast.VariableDeclaration {
		return "", nil, nil, fmt.Errorf("internal error: declInfo called on non-declaration node %s", n.Token)
	}
	typeNode := n.ChildAt(0)
	if typeNode == nil {
		return "", nil, nil, fmt.Errorf("declaration of %q missing type", n.Value)
	}
	pointerDepth := 0
	for p := typeNode.FirstChild; p != nil && p.Token == ast.Multiply; p = p.NextSibling {
		pointerDepth++
	}

	rest := typeNode.NextSibling
	arrayLen := 0
	if rest != nil && rest.Token == ast.Constant {
		fmt.Sscanf(rest.Value, "%d", &arrayLen)
		rest = rest.NextSibling
	}

	t, err := l.resolveTypeNode(scope, typeNode, pointerDepth, arrayLen)
	if err != nil {
		return "", nil, nil, err
	}

	var init *ast.Node
	if rest != nil {
		init = rest
	}
	return n.Value, t, init, nil
}
