package linearize

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// walkDereference lowers *expr: the common
// path computes the pointer value and emits a load; `*(ptr + constant)`
// folds directly to load_off instead of materializing the scaled address.
func (l *Linearizer) walkDereference(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	inner := n.ChildAt(0)

	if inner.Token == ast.Add && isConstantLeaf(inner.ChildAt(1)) {
		baseOp, err := l.walkSubExpression(fs, inner.ChildAt(0))
		if err != nil {
			return nil, err
		}
		if baseOp.EffectiveType().IsPointer() {
			elemType, err := baseOp.EffectiveType().Dereferenced()
			if err != nil {
				return nil, err
			}
			elemSize, err := fs.scope.SizeOfType(elemType)
			if err != nil {
				return nil, err
			}
			litVal, err := parseConstant(inner.ChildAt(1).Value)
			if err != nil {
				return nil, err
			}
			destOp := fs.newTemp(elemType)
			instr := tac.New(tac.OpLoadOff, posOf(n))
			instr.Operands[0] = destOp
			instr.Operands[1] = baseOp
			instr.Operands[2] = tac.LiteralOperand(litVal*int64(elemSize), nil)
			fs.block.Append(instr)
			return destOp, nil
		}
	}

	ptrOp, err := l.walkSubExpression(fs, inner)
	if err != nil {
		return nil, err
	}
	t := ptrOp.EffectiveType()
	if !t.IsPointer() && !t.IsArray() {
		return nil, fmt.Errorf("cannot dereference non-pointer type %s", t.RenderName())
	}
	pointeeType, err := t.Dereferenced()
	if err != nil {
		return nil, err
	}
	destOp := fs.newTemp(pointeeType)
	instr := tac.New(tac.OpLoad, posOf(n))
	instr.Operands[0] = destOp
	instr.Operands[1] = ptrOp
	fs.block.Append(instr)
	return destOp, nil
}

// addrOfVar builds the addrof TAC for taking the address of an existing
// variable, marking it mustSpill.
func (l *Linearizer) addrOfVar(fs *funcState, n *ast.Node, v *symtab.VariableEntry) *tac.Operand {
	v.MustSpill = true
	destType := l.pointerTo(v.Type)
	destOp := fs.newTemp(destType)
	instr := tac.New(tac.OpAddrOf, posOf(n))
	instr.Operands[0] = destOp
	instr.Operands[1] = tac.StandardOperand(v.Name, v.Type)
	fs.block.Append(instr)
	return destOp
}

// walkAddrOf lowers &expr. Taking the address of a plain variable marks it
// mustSpill and emits addrof; taking the address of an array-index or
// member-access expression instead promotes the underlying access to its
// lea_* form.
func (l *Linearizer) walkAddrOf(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	inner := n.ChildAt(0)
	switch inner.Token {
	case ast.Identifier:
		v, err := fs.scope.LookupVar(inner.Value)
		if err != nil {
			return nil, err
		}
		if v.Type.IsArray() && !v.IsGlobal {
			return nil, fmt.Errorf("cannot take the address of local array %q", inner.Value)
		}
		return l.addrOfVar(fs, inner, v), nil
	case ast.ArrayIndex:
		op, _, err := l.walkArrayRef(fs, inner, true)
		return op, err
	case ast.Dot, ast.Arrow:
		return l.walkMemberAccess(fs, inner, true)
	default:
		return nil, fmt.Errorf("cannot take the address of this expression")
	}
}

// arrayBase resolves an ArrayIndex node's base to (address-or-value
// operand, element type): identifiers referring to arrays/pointers resolve
// directly (an array-typed Standard operand names its own storage, a
// pointer-typed one carries the pointer value); anything else is evaluated
// as a sub-expression.
func (l *Linearizer) arrayBase(fs *funcState, base *ast.Node) (*tac.Operand, *types.Type, error) {
	if base.Token == ast.Identifier {
		v, err := fs.scope.LookupVar(base.Value)
		if err != nil {
			return nil, nil, err
		}
		if v.Type.IsArray() {
			return tac.StandardOperand(v.Name, v.Type), v.Type.ElementType, nil
		}
		if v.Type.IsPointer() {
			elem, err := v.Type.Dereferenced()
			if err != nil {
				return nil, nil, err
			}
			return tac.StandardOperand(v.Name, v.Type), elem, nil
		}
		return nil, nil, fmt.Errorf("%q is neither an array nor a pointer", base.Value)
	}
	op, err := l.walkSubExpression(fs, base)
	if err != nil {
		return nil, nil, err
	}
	t := op.EffectiveType()
	var elem *types.Type
	if t.IsArray() {
		elem = t.ElementType
	} else if t.IsPointer() {
		elem, err = t.Dereferenced()
		if err != nil {
			return nil, nil, err
		}
	} else {
		return nil, nil, fmt.Errorf("indexing a non-array, non-pointer type %s", t.RenderName())
	}
	return op, elem, nil
}

// walkArrayRef lowers base[index]: a constant
// index folds to load_off; an array of structs (or an explicit address
// request) promotes to the lea_* family so the caller gets an address
// rather than a copy.
func (l *Linearizer) walkArrayRef(fs *funcState, n *ast.Node, wantAddress bool) (*tac.Operand, *types.Type, error) {
	baseOp, elemType, err := l.arrayBase(fs, n.ChildAt(0))
	if err != nil {
		return nil, nil, err
	}
	elemSize, err := fs.scope.SizeOfType(elemType)
	if err != nil {
		return nil, nil, err
	}
	scale, err := log2Scale(elemSize)
	if err != nil {
		return nil, nil, err
	}

	idxOp, err := l.walkSubExpression(fs, n.ChildAt(1))
	if err != nil {
		return nil, nil, err
	}

	structElem := elemType.Basic == types.Struct
	promote := wantAddress || structElem

	if idxOp.Kind == tac.Literal {
		offset := idxOp.Payload.Val * int64(elemSize)
		if promote {
			destOp := fs.newTemp(l.pointerTo(elemType))
			instr := tac.New(tac.OpLeaOff, posOf(n))
			instr.Operands[0] = destOp
			instr.Operands[1] = baseOp
			instr.Operands[2] = tac.LiteralOperand(offset, nil)
			fs.block.Append(instr)
			return destOp, elemType, nil
		}
		destOp := fs.newTemp(elemType)
		instr := tac.New(tac.OpLoadOff, posOf(n))
		instr.Operands[0] = destOp
		instr.Operands[1] = baseOp
		instr.Operands[2] = tac.LiteralOperand(offset, nil)
		fs.block.Append(instr)
		return destOp, elemType, nil
	}

	if promote {
		destOp := fs.newTemp(l.pointerTo(elemType))
		instr := tac.New(tac.OpLeaArr, posOf(n))
		instr.Operands[0] = destOp
		instr.Operands[1] = baseOp
		instr.Operands[2] = idxOp
		instr.Operands[3] = tac.LiteralOperand(scale, nil)
		fs.block.Append(instr)
		return destOp, elemType, nil
	}

	destOp := fs.newTemp(elemType)
	instr := tac.New(tac.OpLoadArr, posOf(n))
	instr.Operands[0] = destOp
	instr.Operands[1] = baseOp
	instr.Operands[2] = idxOp
	instr.Operands[3] = tac.LiteralOperand(scale, nil)
	fs.block.Append(instr)
	return destOp, elemType, nil
}

// walkArrayStore lowers an array-index assignment target; unlike
// walkArrayRef, a constant-literal index is never folded here.
func (l *Linearizer) walkArrayStore(fs *funcState, n *ast.Node, rhsOp *tac.Operand) error {
	baseOp, elemType, err := l.arrayBase(fs, n.ChildAt(0))
	if err != nil {
		return err
	}
	elemSize, err := fs.scope.SizeOfType(elemType)
	if err != nil {
		return err
	}
	scale, err := log2Scale(elemSize)
	if err != nil {
		return err
	}
	idxOp, err := l.walkSubExpression(fs, n.ChildAt(1))
	if err != nil {
		return err
	}
	instr := tac.New(tac.OpStoreArr, posOf(n))
	instr.Operands[0] = baseOp
	instr.Operands[1] = idxOp
	instr.Operands[2] = tac.LiteralOperand(scale, nil)
	instr.Operands[3] = rhsOp
	fs.block.Append(instr)
	return nil
}
