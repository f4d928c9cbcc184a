package linearize

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// walkSubExpression yields an operand describing where an expression's
// value lives.
func (l *Linearizer) walkSubExpression(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	switch n.Token {
	case ast.Identifier:
		v, err := fs.scope.LookupVar(n.Value)
		if err != nil {
			return nil, err
		}
		return tac.StandardOperand(v.Name, v.Type), nil

	case ast.Constant:
		v, err := parseConstant(n.Value)
		if err != nil {
			return nil, err
		}
		return tac.LiteralOperand(v, l.narrowestFit(v)), nil

	case ast.CharLiteral:
		v, err := canonicalizeChar(n.Value)
		if err != nil {
			return nil, err
		}
		return tac.LiteralOperand(v, l.primType(types.U8)), nil

	case ast.StringLiteral:
		return l.internString(fs, n.Value), nil

	case ast.Sizeof:
		return l.walkSizeof(fs, n)

	case ast.Cast:
		return l.walkCast(fs, n)

	case ast.AddressOf:
		return l.walkAddrOf(fs, n)

	case ast.Dereference:
		return l.walkDereference(fs, n)

	case ast.BitwiseNot:
		sub, err := l.walkSubExpression(fs, n.ChildAt(0))
		if err != nil {
			return nil, err
		}
		destOp := fs.newTemp(sub.EffectiveType())
		instr := tac.New(tac.OpBitwiseNot, posOf(n))
		instr.Operands[0] = destOp
		instr.Operands[1] = sub
		fs.block.Append(instr)
		return destOp, nil

	case ast.Less, ast.Greater, ast.LessEq, ast.GreaterEq, ast.Equal, ast.NotEqual,
		ast.LogicalAnd, ast.LogicalOr, ast.LogicalNot:
		return l.walkBooleanValue(fs, n)

	case ast.Add, ast.Sub, ast.Multiply, ast.Divide, ast.Modulo,
		ast.LShift, ast.RShift, ast.BitwiseAnd, ast.BitwiseOr, ast.BitwiseXor:
		return l.walkExpression(fs, n)

	case ast.FunctionCall:
		return l.walkFunctionCall(fs, n, true)

	case ast.ArrayIndex:
		op, _, err := l.walkArrayRef(fs, n, false)
		return op, err

	case ast.Dot, ast.Arrow:
		return l.walkMemberAccess(fs, n, false)

	case ast.PostIncrement, ast.PostDecrement:
		return l.walkPostIncDec(fs, n)

	default:
		return nil, fmt.Errorf("unsupported expression %s", n.Token)
	}
}

// walkExpression lowers a binary arithmetic/bitwise operator, scaling the
// right operand when the left is a pointer.
func (l *Linearizer) walkExpression(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	lhsOp, err := l.walkSubExpression(fs, n.ChildAt(0))
	if err != nil {
		return nil, err
	}
	rhsOp, err := l.walkSubExpression(fs, n.ChildAt(1))
	if err != nil {
		return nil, err
	}

	lhsT := lhsOp.EffectiveType()
	rhsT := rhsOp.EffectiveType()
	if lhsT.IsPointer() && rhsT.IsPointer() {
		return nil, fmt.Errorf("cannot perform arithmetic on two pointer operands")
	}

	resultType := l.widerOf(lhsT, rhsT)
	if lhsT.IsPointer() {
		elemType, err := lhsT.Dereferenced()
		if err != nil {
			return nil, err
		}
		elemSize, err := fs.scope.SizeOfType(elemType)
		if err != nil {
			return nil, err
		}
		if elemSize != 1 {
			scaledOp := fs.newTemp(rhsT)
			scale := tac.New(tac.OpMul, posOf(n))
			scale.Operands[0] = scaledOp
			scale.Operands[1] = rhsOp
			scale.Operands[2] = tac.LiteralOperand(int64(elemSize), l.primType(types.U64))
			fs.block.Append(scale)
			rhsOp = scaledOp
		}
		resultType = lhsT
	}

	op, ok := binaryOp(n.Token)
	if !ok {
		return nil, fmt.Errorf("internal error: %s is not a binary arithmetic operator", n.Token)
	}
	destOp := fs.newTemp(resultType)
	instr := tac.New(op, posOf(n))
	instr.Operands[0] = destOp
	instr.Operands[1] = lhsOp
	instr.Operands[2] = rhsOp
	fs.block.Append(instr)
	return destOp, nil
}

// walkCast lowers a `(type)expr` cast: the underlying value is computed
// normally and the cast type is recorded as the operand's castAsType.
func (l *Linearizer) walkCast(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	typeNode := n.ChildAt(0)
	exprNode := n.ChildAt(1)
	pointerDepth := 0
	for p := typeNode.FirstChild; p != nil && p.Token == ast.Multiply; p = p.NextSibling {
		pointerDepth++
	}
	castType, err := l.resolveTypeNode(fs.scope, typeNode, pointerDepth, 0)
	if err != nil {
		return nil, err
	}
	op, err := l.walkSubExpression(fs, exprNode)
	if err != nil {
		return nil, err
	}
	cast := *op
	cast.CastAsType = castType
	return &cast, nil
}

// walkSizeof resolves either a variable/struct identifier or a bare type
// node to its byte size.
func (l *Linearizer) walkSizeof(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	target := n.ChildAt(0)
	var size int
	var err error
	switch target.Token {
	case ast.Identifier:
		if v, verr := fs.scope.LookupVar(target.Value); verr == nil {
			size, err = fs.scope.SizeOfType(v.Type)
		} else if st, serr := fs.scope.LookupStruct(target.Value); serr == nil {
			size = st.TotalSize
		} else {
			return nil, fmt.Errorf("undeclared identifier %q in sizeof", target.Value)
		}
	default:
		pointerDepth := 0
		for p := target.FirstChild; p != nil && p.Token == ast.Multiply; p = p.NextSibling {
			pointerDepth++
		}
		t, terr := l.resolveTypeNode(fs.scope, target, pointerDepth, 0)
		if terr != nil {
			return nil, terr
		}
		size, err = fs.scope.SizeOfType(t)
	}
	if err != nil {
		return nil, err
	}
	return tac.LiteralOperand(int64(size), l.primType(types.U8)), nil
}

// internString returns the operand for a string literal, creating its
// backing global on first use.
func (l *Linearizer) internString(fs *funcState, raw string) *tac.Operand {
	name, ok := l.ctx.StringLiterals[raw]
	if !ok {
		name = mangleStringLiteral(raw)
		l.ctx.StringLiterals[raw] = name
		elemType := l.primType(types.U8)
		arrType := &types.Type{Basic: types.U8, ArrayLen: len(raw) + 1, ElementType: elemType}
		arrType = l.ctx.Dictionary.Intern(arrType)
		bytes := append([]byte(raw), 0)
		v := &symtab.VariableEntry{
			Name: name, Type: arrType, IsGlobal: true, IsStringLiteral: true,
			InitializeArrayTo: bytes,
		}
		_ = l.prog.Global.InsertVariable(v)
	}
	v, _ := l.prog.Global.LookupVar(name)
	return tac.StandardOperand(v.Name, v.Type)
}

// walkPostIncDec lowers `x++`/`x--` as a value-producing expression: the
// old value is returned, then the variable is incremented in place.
func (l *Linearizer) walkPostIncDec(fs *funcState, n *ast.Node) (*tac.Operand, error) {
	target := n.ChildAt(0)
	if target.Token != ast.Identifier {
		return nil, fmt.Errorf("++/-- only support a plain variable operand")
	}
	v, err := fs.scope.LookupVar(target.Value)
	if err != nil {
		return nil, err
	}
	oldOp := fs.newTemp(v.Type)
	save := tac.New(tac.OpAssign, posOf(n))
	save.Operands[0] = oldOp
	save.Operands[1] = tac.StandardOperand(v.Name, v.Type)
	fs.block.Append(save)

	op := tac.OpAdd
	if n.Token == ast.PostDecrement {
		op = tac.OpSub
	}
	instr := tac.New(op, posOf(n))
	instr.Operands[0] = tac.StandardOperand(v.Name, v.Type)
	instr.Operands[1] = tac.StandardOperand(v.Name, v.Type)
	instr.Operands[2] = tac.LiteralOperand(1, v.Type)
	fs.block.Append(instr)

	return oldOp, nil
}
