package linearize

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// walkFunctionCall lowers a call: arguments are stored right-to-left into
// the callee's stack argument area after a single stack_reserve, then the
// call itself is emitted.
func (l *Linearizer) walkFunctionCall(fs *funcState, n *ast.Node, wantResult bool) (*tac.Operand, error) {
	callee, err := fs.scope.LookupFun(n.Value)
	if err != nil {
		return nil, err
	}
	fs.fn.CallsOtherFunction = true

	if wantResult && callee.ReturnType.Basic == types.Null {
		return nil, fmt.Errorf("function %q does not return a value", n.Value)
	}

	var args []*ast.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		args = append(args, c)
	}
	if len(args) != len(callee.Arguments) {
		return nil, fmt.Errorf("call to %q passes %d arguments, expected %d", n.Value, len(args), len(callee.Arguments))
	}

	reserve := tac.New(tac.OpStackReserve, posOf(n))
	reserve.Operands[0] = tac.LiteralOperand(int64(callee.ArgStackSize), nil)
	fs.block.Append(reserve)

	for i := len(args) - 1; i >= 0; i-- {
		argOp, err := l.walkSubExpression(fs, args[i])
		if err != nil {
			return nil, err
		}
		paramType := callee.Arguments[i].Type
		if types.CompareAllowImplicitWidening(argOp.EffectiveType(), paramType) != 0 {
			return nil, fmt.Errorf("argument %d to %q: cannot implicitly narrow %s to %s",
				i+1, n.Value, argOp.EffectiveType().RenderName(), paramType.RenderName())
		}
		argOp.CastAsType = paramType

		store := tac.New(tac.OpStackStore, posOf(args[i]))
		store.Operands[0] = argOp
		store.Operands[1] = tac.LiteralOperand(int64(callee.Arguments[i].StackOffset), nil)
		fs.block.Append(store)
	}

	call := tac.New(tac.OpCall, posOf(n))
	call.Operands[1] = tac.StandardOperand(callee.Name, callee.ReturnType)
	var destOp *tac.Operand
	if wantResult {
		destOp = fs.newTemp(callee.ReturnType)
		call.Operands[0] = destOp
	}
	fs.block.Append(call)
	return destOp, nil
}
