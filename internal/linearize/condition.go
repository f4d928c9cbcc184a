package linearize

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// walkConditionCheck emits exactly one branch that jumps to falseLabel when
// cond does not hold.
func (l *Linearizer) walkConditionCheck(fs *funcState, cond *ast.Node, falseLabel int) error {
	switch cond.Token {
	case ast.LogicalAnd, ast.LogicalOr, ast.LogicalNot:
		return l.walkLogicalOperator(fs, cond, falseLabel)

	case ast.Less, ast.Greater, ast.LessEq, ast.GreaterEq, ast.Equal, ast.NotEqual:
		lhsOp, err := l.walkSubExpression(fs, cond.ChildAt(0))
		if err != nil {
			return err
		}
		rhsOp, err := l.walkSubExpression(fs, cond.ChildAt(1))
		if err != nil {
			return err
		}
		op, _ := inverseBranch(cond.Token)
		instr := tac.New(op, posOf(cond))
		instr.Operands[0] = tac.LabelOperand(falseLabel)
		instr.Operands[1] = lhsOp
		instr.Operands[2] = rhsOp
		fs.block.Append(instr)
		return nil

	default:
		v, err := l.walkSubExpression(fs, cond)
		if err != nil {
			return err
		}
		instr := tac.New(tac.OpBeqz, posOf(cond))
		instr.Operands[0] = tac.LabelOperand(falseLabel)
		instr.Operands[1] = v
		fs.block.Append(instr)
		return nil
	}
}

// walkLogicalOperator lowers &&, ||, and ! to short-circuiting branch
// sequences.
func (l *Linearizer) walkLogicalOperator(fs *funcState, n *ast.Node, falseLabel int) error {
	switch n.Token {
	case ast.LogicalAnd:
		if err := l.walkConditionCheck(fs, n.ChildAt(0), falseLabel); err != nil {
			return err
		}
		return l.walkConditionCheck(fs, n.ChildAt(1), falseLabel)

	case ast.LogicalOr:
		checkSecondLabel := fs.fn.NextLabel()
		trueLabel := fs.fn.NextLabel()

		if err := l.walkConditionCheck(fs, n.ChildAt(0), checkSecondLabel); err != nil {
			return err
		}
		jmp := tac.New(tac.OpJmp, posOf(n))
		jmp.Operands[0] = tac.LabelOperand(trueLabel)
		fs.block.Append(jmp)

		checkSecondBlock := tac.NewBasicBlock(checkSecondLabel)
		fs.scope.AddBasicBlock(checkSecondBlock)
		fs.block = checkSecondBlock
		if err := l.walkConditionCheck(fs, n.ChildAt(1), falseLabel); err != nil {
			return err
		}

		trueBlock := tac.NewBasicBlock(trueLabel)
		fs.scope.AddBasicBlock(trueBlock)
		fs.block = trueBlock
		return nil

	case ast.LogicalNot:
		invLabel := fs.fn.NextLabel()
		if err := l.walkConditionCheck(fs, n.ChildAt(0), invLabel); err != nil {
			return err
		}
		jmp := tac.New(tac.OpJmp, posOf(n))
		jmp.Operands[0] = tac.LabelOperand(falseLabel)
		fs.block.Append(jmp)

		invBlock := tac.NewBasicBlock(invLabel)
		fs.scope.AddBasicBlock(invBlock)
		fs.block = invBlock
		return nil

	default:
		return fmt.Errorf("internal error: walkLogicalOperator called on %s", n.Token)
	}
}

// walkBooleanValue materializes the 0/1 result of a condition used as an
// ordinary value (e.g. `u8 b = a < c;`), since walkConditionCheck only
// knows how to branch, not to produce a value.
func (l *Linearizer) walkBooleanValue(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	destOp := fs.newTemp(l.primType(types.U8))

	setTrue := tac.New(tac.OpAssign, posOf(n))
	setTrue.Operands[0] = destOp
	setTrue.Operands[1] = tac.LiteralOperand(1, l.primType(types.U8))
	fs.block.Append(setTrue)

	falseLabel := fs.fn.NextLabel()
	endLabel := fs.fn.NextLabel()
	if err := l.walkConditionCheck(fs, n, falseLabel); err != nil {
		return nil, err
	}

	jmp := tac.New(tac.OpJmp, posOf(n))
	jmp.Operands[0] = tac.LabelOperand(endLabel)
	fs.block.Append(jmp)

	falseBlock := tac.NewBasicBlock(falseLabel)
	fs.scope.AddBasicBlock(falseBlock)
	fs.block = falseBlock
	setFalse := tac.New(tac.OpAssign, posOf(n))
	setFalse.Operands[0] = destOp
	setFalse.Operands[1] = tac.LiteralOperand(0, l.primType(types.U8))
	fs.block.Append(setFalse)

	endBlock := tac.NewBasicBlock(endLabel)
	fs.scope.AddBasicBlock(endBlock)
	fs.block = endBlock

	return destOp, nil
}
