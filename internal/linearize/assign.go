package linearize

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// walkAssignment lowers `lhs = rhs` for every supported LHS form,
// returning the assigned-to operand (so walkArithmeticAssignment and
// top-level assignment can share this path).
func (l *Linearizer) walkAssignment(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	lhs := n.ChildAt(0)
	rhsNode := n.ChildAt(1)

	if lhs.Token == ast.VariableDeclaration {
		name, t, initExpr, err := l.declInfo(fs.scope, lhs)
		if err != nil {
			return nil, err
		}
		if t.IsArray() && (rhsNode != nil || initExpr != nil) {
			return nil, fmt.Errorf("local arrays may not be assigned")
		}
		v := &symtab.VariableEntry{Name: name, Type: t}
		if err := fs.scope.InsertVariable(v); err != nil {
			return nil, err
		}
		rhs := rhsNode
		if rhs == nil {
			rhs = initExpr
		}
		if rhs == nil {
			return nil, nil
		}
		rhsOp, err := l.walkSubExpression(fs, rhs)
		if err != nil {
			return nil, err
		}
		if types.CompareAllowImplicitWidening(rhsOp.EffectiveType(), t) != 0 {
			return nil, fmt.Errorf("cannot implicitly narrow %s to %s in declaration of %q",
				rhsOp.EffectiveType().RenderName(), t.RenderName(), name)
		}
		destOp := tac.StandardOperand(v.Name, v.Type)
		instr := tac.New(tac.OpAssign, posOf(n))
		instr.Operands[0] = destOp
		instr.Operands[1] = rhsOp
		fs.block.Append(instr)
		return destOp, nil
	}

	rhsOp, err := l.walkSubExpression(fs, rhsNode)
	if err != nil {
		return nil, err
	}

	switch lhs.Token {
	case ast.Identifier:
		v, err := fs.scope.LookupVar(lhs.Value)
		if err != nil {
			return nil, err
		}
		if types.CompareAllowImplicitWidening(rhsOp.EffectiveType(), v.Type) != 0 {
			return nil, fmt.Errorf("cannot implicitly narrow %s to %s assigning %q",
				rhsOp.EffectiveType().RenderName(), v.Type.RenderName(), lhs.Value)
		}
		destOp := tac.StandardOperand(v.Name, v.Type)
		instr := tac.New(tac.OpAssign, posOf(n))
		instr.Operands[0] = destOp
		instr.Operands[1] = rhsOp
		fs.block.Append(instr)
		return destOp, nil

	case ast.Dereference:
		inner := lhs.ChildAt(0)
		ptrOp, err := l.walkSubExpression(fs, inner)
		if err != nil {
			return nil, err
		}
		instr := tac.New(tac.OpStore, posOf(n))
		instr.Operands[0] = ptrOp
		instr.Operands[1] = rhsOp
		fs.block.Append(instr)
		return rhsOp, nil

	case ast.ArrayIndex:
		if err := l.walkArrayStore(fs, lhs, rhsOp); err != nil {
			return nil, err
		}
		return rhsOp, nil

	case ast.Dot, ast.Arrow:
		if err := l.walkMemberAssign(fs, lhs, rhsOp); err != nil {
			return nil, err
		}
		return rhsOp, nil

	default:
		return nil, fmt.Errorf("unsupported assignment target %s", lhs.Token)
	}
}

// walkArithmeticAssignment lowers a compound-assign operator (`+=` etc.)
// by synthesizing `lhs = lhs <op> rhs` and delegating to walkAssignment.
func (l *Linearizer) walkArithmeticAssignment(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	lhs := n.ChildAt(0)
	rhs := n.ChildAt(1)
	op, ok := compoundOp(n.Token)
	if !ok {
		return nil, fmt.Errorf("internal error: %s is not a compound-assign operator", n.Token)
	}
	binary := ast.New(op, "", n.SourceFile, n.SourceLine, n.SourceCol)
	binary.AddChild(cloneTree(lhs))
	binary.AddChild(cloneTree(rhs))
	synthetic := ast.New(ast.Assign, "", n.SourceFile, n.SourceLine, n.SourceCol)
	synthetic.AddChild(cloneTree(lhs))
	synthetic.AddChild(binary)
	return l.walkAssignment(fs, synthetic)
}

func compoundOp(tok ast.TokenKind) (ast.TokenKind, bool) {
	switch tok {
	case ast.AddAssign:
		return ast.Add, true
	case ast.SubAssign:
		return ast.Sub, true
	case ast.MulAssign:
		return ast.Multiply, true
	case ast.DivAssign:
		return ast.Divide, true
	case ast.ModAssign:
		return ast.Modulo, true
	case ast.AndAssign:
		return ast.BitwiseAnd, true
	case ast.OrAssign:
		return ast.BitwiseOr, true
	case ast.XorAssign:
		return ast.BitwiseXor, true
	case ast.LShiftAssign:
		return ast.LShift, true
	case ast.RShiftAssign:
		return ast.RShift, true
	default:
		return 0, false
	}
}
