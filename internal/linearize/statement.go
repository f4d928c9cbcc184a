package linearize

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// walkStatement dispatches on the statement's top token.
func (l *Linearizer) walkStatement(fs *funcState, n *ast.Node) error {
	switch n.Token {
	case ast.VariableDeclaration:
		return l.walkVariableDeclarationStatement(fs, n)
	case ast.Assign:
		_, err := l.walkAssignment(fs, n)
		return err
	case ast.AddAssign, ast.SubAssign, ast.MulAssign, ast.DivAssign, ast.ModAssign,
		ast.AndAssign, ast.OrAssign, ast.XorAssign, ast.LShiftAssign, ast.RShiftAssign:
		_, err := l.walkArithmeticAssignment(fs, n)
		return err
	case ast.While:
		return l.walkWhile(fs, n)
	case ast.For:
		return l.walkFor(fs, n)
	case ast.If:
		return l.walkIf(fs, n)
	case ast.Switch:
		return l.walkSwitch(fs, n)
	case ast.Break:
		return l.walkBreak(fs, n)
	case ast.Continue:
		return l.walkContinue(fs, n)
	case ast.CompoundStatement:
		return l.walkCompoundStatement(fs, n)
	case ast.Return:
		return l.walkReturn(fs, n)
	case ast.Asm:
		l.walkAsmStatement(fs, n)
		return nil
	case ast.ExpressionStatement, ast.FunctionCall, ast.PostIncrement, ast.PostDecrement:
		return l.walkExpressionStatement(fs, n)
	default:
		return fmt.Errorf("unexpected statement %s", n.Token)
	}
}

// walkVariableDeclarationStatement declares a local variable and lowers its
// initializer, if any. It does not handle `extern`: walkStatement has no
// Extern case and reports one as an unexpected statement.
func (l *Linearizer) walkVariableDeclarationStatement(fs *funcState, n *ast.Node) error {
	_, err := l.walkAssignment(fs, wrapAsAssignTarget(n))
	return err
}

// wrapAsAssignTarget lets walkAssignment's VariableDeclaration branch serve
// both `u32 x = 3;` and a bare `u32 x;` declaration statement (the parser
// keeps any initializer as the declaration's own child), by wrapping the
// declaration in a one-child Assign. The declaration is copied with its
// NextSibling cleared, so the statement after it is not read as the RHS.
func wrapAsAssignTarget(decl *ast.Node) *ast.Node {
	synthetic := ast.New(ast.Assign, "", decl.SourceFile, decl.SourceLine, decl.SourceCol)
	detached := *decl
	detached.NextSibling = nil
	synthetic.AddChild(&detached)
	return synthetic
}

func (l *Linearizer) walkCompoundStatement(fs *funcState, n *ast.Node) error {
	inner := *fs
	inner.scope = fs.scope.CreateSubScope()
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := l.walkStatement(&inner, c); err != nil {
			return err
		}
	}
	fs.block = inner.block
	return nil
}

func (l *Linearizer) walkExpressionStatement(fs *funcState, n *ast.Node) error {
	target := n
	if n.Token == ast.ExpressionStatement {
		target = n.ChildAt(0)
	}
	if target.Token == ast.FunctionCall {
		_, err := l.walkFunctionCall(fs, target, false)
		return err
	}
	_, err := l.walkSubExpression(fs, target)
	return err
}

func (l *Linearizer) walkReturn(fs *funcState, n *ast.Node) error {
	instr := tac.New(tac.OpReturn, posOf(n))
	valueNode := n.ChildAt(0)
	if valueNode == nil {
		if fs.fn.ReturnType.Basic != types.Null {
			return fmt.Errorf("function %q must return a value of type %s", fs.fn.Name, fs.fn.ReturnType.RenderName())
		}
		fs.block.Append(instr)
		return nil
	}
	op, err := l.walkSubExpression(fs, valueNode)
	if err != nil {
		return err
	}
	if types.CompareAllowImplicitWidening(op.EffectiveType(), fs.fn.ReturnType) != 0 {
		return fmt.Errorf("cannot implicitly narrow %s to %s returning from %q",
			op.EffectiveType().RenderName(), fs.fn.ReturnType.RenderName(), fs.fn.Name)
	}
	instr.Operands[0] = op
	fs.block.Append(instr)
	return nil
}

func (l *Linearizer) walkBreak(fs *funcState, n *ast.Node) error {
	label, ok := fs.breakTarget()
	if !ok {
		return fmt.Errorf("break used outside a loop or switch")
	}
	instr := tac.New(tac.OpJmp, posOf(n))
	instr.Operands[0] = tac.LabelOperand(label)
	fs.block.Append(instr)
	return nil
}

func (l *Linearizer) walkContinue(fs *funcState, n *ast.Node) error {
	label, ok := fs.continueTarget()
	if !ok {
		return fmt.Errorf("continue used outside a loop")
	}
	instr := tac.New(tac.OpJmp, posOf(n))
	instr.Operands[0] = tac.LabelOperand(label)
	fs.block.Append(instr)
	return nil
}

func (l *Linearizer) walkAsmStatement(fs *funcState, n *ast.Node) {
	for line := n.FirstChild; line != nil; line = line.NextSibling {
		instr := tac.New(tac.OpAsm, posOf(line))
		instr.Operands[0] = &tac.Operand{Kind: tac.Literal, Payload: tac.NamePayload(line.Value)}
		fs.block.Append(instr)
	}
}

// walkIf lowers if/else into a pre-block condition check, one sub-scoped
// block per arm, and a shared convergence block.
func (l *Linearizer) walkIf(fs *funcState, n *ast.Node) error {
	cond := n.ChildAt(0)
	thenStmt := n.ChildAt(1)
	elseNode := n.ChildAt(2)

	preScope := fs.scope
	convergenceLabel := fs.fn.NextLabel()

	if elseNode == nil {
		if err := l.walkConditionCheck(fs, cond, convergenceLabel); err != nil {
			return err
		}
		thenScope := preScope.CreateSubScope()
		thenBlock := newBlock(fs, thenScope)
		fs.scope, fs.block = thenScope, thenBlock
		if err := l.walkStatement(fs, thenStmt); err != nil {
			return err
		}
		jmp := tac.New(tac.OpJmp, posOf(n))
		jmp.Operands[0] = tac.LabelOperand(convergenceLabel)
		fs.block.Append(jmp)

		convBlock := tac.NewBasicBlock(convergenceLabel)
		preScope.AddBasicBlock(convBlock)
		fs.scope, fs.block = preScope, convBlock
		return nil
	}

	elseLabel := fs.fn.NextLabel()
	if err := l.walkConditionCheck(fs, cond, elseLabel); err != nil {
		return err
	}

	thenScope := preScope.CreateSubScope()
	thenBlock := newBlock(fs, thenScope)
	fs.scope, fs.block = thenScope, thenBlock
	if err := l.walkStatement(fs, thenStmt); err != nil {
		return err
	}
	jmpThen := tac.New(tac.OpJmp, posOf(n))
	jmpThen.Operands[0] = tac.LabelOperand(convergenceLabel)
	fs.block.Append(jmpThen)

	elseScope := preScope.CreateSubScope()
	elseBlock := tac.NewBasicBlock(elseLabel)
	elseScope.AddBasicBlock(elseBlock)
	fs.scope, fs.block = elseScope, elseBlock
	if err := l.walkStatement(fs, elseNode.ChildAt(0)); err != nil {
		return err
	}
	jmpElse := tac.New(tac.OpJmp, posOf(n))
	jmpElse.Operands[0] = tac.LabelOperand(convergenceLabel)
	fs.block.Append(jmpElse)

	convBlock := tac.NewBasicBlock(convergenceLabel)
	preScope.AddBasicBlock(convBlock)
	fs.scope, fs.block = preScope, convBlock
	return nil
}

// walkWhile lowers a while loop: a jump into the condition block, the
// condition block itself, a sub-scoped body wrapped in do/enddo sentinels,
// a backward jump, and a convergence ("end") block.
func (l *Linearizer) walkWhile(fs *funcState, n *ast.Node) error {
	cond := n.ChildAt(0)
	body := n.ChildAt(1)

	preScope := fs.scope
	condLabel := fs.fn.NextLabel()
	bodyLabel := fs.fn.NextLabel()
	endLabel := fs.fn.NextLabel()

	enter := tac.New(tac.OpJmp, posOf(n))
	enter.Operands[0] = tac.LabelOperand(condLabel)
	fs.block.Append(enter)

	condBlock := tac.NewBasicBlock(condLabel)
	preScope.AddBasicBlock(condBlock)
	fs.scope, fs.block = preScope, condBlock
	if err := l.walkConditionCheck(fs, cond, endLabel); err != nil {
		return err
	}

	bodyScope := preScope.CreateSubScope()
	bodyBlock := tac.NewBasicBlock(bodyLabel)
	bodyScope.AddBasicBlock(bodyBlock)
	fs.scope, fs.block = bodyScope, bodyBlock

	fs.pushLoop(condLabel, endLabel)
	fs.block.Append(tac.New(tac.OpDo, posOf(n)))
	if err := l.walkStatement(fs, body); err != nil {
		return err
	}
	fs.block.Append(tac.New(tac.OpEndDo, posOf(n)))
	fs.popLoop()

	back := tac.New(tac.OpJmp, posOf(n))
	back.Operands[0] = tac.LabelOperand(condLabel)
	fs.block.Append(back)

	endBlock := tac.NewBasicBlock(endLabel)
	preScope.AddBasicBlock(endBlock)
	fs.scope, fs.block = preScope, endBlock
	return nil
}

// walkFor lowers `for (init; cond; post) body`. It is the while lowering
// plus a dedicated post block between the body and the backward jump:
// continue must still run the post statement, so its target is the post
// block's label, not the condition's.
func (l *Linearizer) walkFor(fs *funcState, n *ast.Node) error {
	initStmt := n.ChildAt(0)
	cond := n.ChildAt(1)
	post := n.ChildAt(2)
	body := n.ChildAt(3)

	// The init declaration's scope covers the whole loop and ends with it.
	outerScope := fs.scope
	forScope := outerScope.CreateSubScope()
	fs.scope = forScope

	if err := l.walkStatement(fs, initStmt); err != nil {
		fs.scope = outerScope
		return err
	}

	condLabel := fs.fn.NextLabel()
	bodyLabel := fs.fn.NextLabel()
	postLabel := fs.fn.NextLabel()
	endLabel := fs.fn.NextLabel()

	enter := tac.New(tac.OpJmp, posOf(n))
	enter.Operands[0] = tac.LabelOperand(condLabel)
	fs.block.Append(enter)

	condBlock := tac.NewBasicBlock(condLabel)
	forScope.AddBasicBlock(condBlock)
	fs.block = condBlock
	if err := l.walkConditionCheck(fs, cond, endLabel); err != nil {
		fs.scope = outerScope
		return err
	}

	bodyScope := forScope.CreateSubScope()
	bodyBlock := tac.NewBasicBlock(bodyLabel)
	bodyScope.AddBasicBlock(bodyBlock)
	fs.scope, fs.block = bodyScope, bodyBlock

	fs.pushLoop(postLabel, endLabel)
	fs.block.Append(tac.New(tac.OpDo, posOf(n)))
	if err := l.walkStatement(fs, body); err != nil {
		fs.popLoop()
		fs.scope = outerScope
		return err
	}
	fs.popLoop()

	intoPost := tac.New(tac.OpJmp, posOf(n))
	intoPost.Operands[0] = tac.LabelOperand(postLabel)
	fs.block.Append(intoPost)

	postBlock := tac.NewBasicBlock(postLabel)
	forScope.AddBasicBlock(postBlock)
	fs.scope, fs.block = forScope, postBlock
	if err := l.walkStatement(fs, post); err != nil {
		fs.scope = outerScope
		return err
	}
	fs.block.Append(tac.New(tac.OpEndDo, posOf(n)))

	back := tac.New(tac.OpJmp, posOf(n))
	back.Operands[0] = tac.LabelOperand(condLabel)
	fs.block.Append(back)

	endBlock := tac.NewBasicBlock(endLabel)
	forScope.AddBasicBlock(endBlock)
	fs.scope, fs.block = outerScope, endBlock
	return nil
}

// walkSwitch lowers to a cascade of equality branches against the subject,
// materialized once into a temp, each case its own sub-scoped block. There
// is no jump-table op and no fallthrough, so each arm is an independent
// branch target that jumps to the convergence block at its end.
func (l *Linearizer) walkSwitch(fs *funcState, n *ast.Node) error {
	subject := n.ChildAt(0)
	subjectOp, err := l.walkSubExpression(fs, subject)
	if err != nil {
		return err
	}
	subjectTemp := fs.newTemp(subjectOp.EffectiveType())
	materialize := tac.New(tac.OpAssign, posOf(n))
	materialize.Operands[0] = subjectTemp
	materialize.Operands[1] = subjectOp
	fs.block.Append(materialize)

	preScope := fs.scope
	checkBlock := fs.block
	convergenceLabel := fs.fn.NextLabel()
	fs.pushSwitch(convergenceLabel)

	type arm struct {
		label int
		body  *ast.Node
	}
	var arms []arm
	var defaultArm *arm

	for c := subject.NextSibling; c != nil; c = c.NextSibling {
		label := fs.fn.NextLabel()
		switch c.Token {
		case ast.Case:
			val, err := parseConstant(c.Value)
			if err != nil {
				fs.popLoop()
				return err
			}
			beq := tac.New(tac.OpBeq, posOf(c))
			beq.Operands[0] = tac.LabelOperand(label)
			beq.Operands[1] = subjectTemp
			beq.Operands[2] = tac.LiteralOperand(val, subjectTemp.DeclaredType)
			checkBlock.Append(beq)
			arms = append(arms, arm{label: label, body: c})
		case ast.Default:
			defaultArm = &arm{label: label, body: c}
		default:
			fs.popLoop()
			return fmt.Errorf("unexpected node %s inside switch", c.Token)
		}
	}

	fallthroughLabel := convergenceLabel
	if defaultArm != nil {
		fallthroughLabel = defaultArm.label
	}
	fallJmp := tac.New(tac.OpJmp, posOf(n))
	fallJmp.Operands[0] = tac.LabelOperand(fallthroughLabel)
	checkBlock.Append(fallJmp)

	walkArm := func(a arm) error {
		armScope := preScope.CreateSubScope()
		armBlock := tac.NewBasicBlock(a.label)
		armScope.AddBasicBlock(armBlock)
		fs.scope, fs.block = armScope, armBlock
		for stmt := a.body.FirstChild; stmt != nil; stmt = stmt.NextSibling {
			if err := l.walkStatement(fs, stmt); err != nil {
				return err
			}
		}
		jmp := tac.New(tac.OpJmp, posOf(a.body))
		jmp.Operands[0] = tac.LabelOperand(convergenceLabel)
		fs.block.Append(jmp)
		return nil
	}

	for _, a := range arms {
		if err := walkArm(a); err != nil {
			fs.popLoop()
			return err
		}
	}
	if defaultArm != nil {
		if err := walkArm(*defaultArm); err != nil {
			fs.popLoop()
			return err
		}
	}

	fs.popLoop()
	convBlock := tac.NewBasicBlock(convergenceLabel)
	preScope.AddBasicBlock(convBlock)
	fs.scope, fs.block = preScope, convBlock
	return nil
}
