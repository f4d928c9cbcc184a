package linearize

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// memberBase is the resolved instance address and struct context a dot/
// arrow node's own member name should be looked up against.
type memberBase struct {
	addr   *tac.Operand
	def    *symtab.StructEntry
	offset int
}

// resolveMemberBase computes the instance address and struct definition
// that node's own member (node.Value) should be resolved against.
func (l *Linearizer) resolveMemberBase(fs *funcState, node *ast.Node) (memberBase, error) {
	lhs := node.ChildAt(0)

	switch lhs.Token {
	case ast.Dot, ast.Arrow:
		inner, err := l.resolveMemberBase(fs, lhs)
		if err != nil {
			return memberBase{}, err
		}
		member, ok := inner.def.FindMember(lhs.Value)
		if !ok {
			return memberBase{}, fmt.Errorf("struct %q has no member %q", inner.def.Name, lhs.Value)
		}
		accumulated := inner.offset + member.ByteOffset

		if node.Token == ast.Arrow {
			// Traversing -> after an already-offset access: emit the
			// outstanding access as lea_off, then begin a fresh load_off
			// chain at offset 0.
			addrOp := fs.newTemp(l.pointerTo(member.Variable.Type))
			lea := tac.New(tac.OpLeaOff, posOf(lhs))
			lea.Operands[0] = addrOp
			lea.Operands[1] = inner.addr
			lea.Operands[2] = tac.LiteralOperand(int64(accumulated), nil)
			fs.block.Append(lea)

			if member.Variable.Type.PointerDepth != 1 || member.Variable.Type.Basic != types.Struct {
				return memberBase{}, fmt.Errorf("member %q is not a pointer to a struct", lhs.Value)
			}
			ptrOp := fs.newTemp(member.Variable.Type)
			load := tac.New(tac.OpLoad, posOf(lhs))
			load.Operands[0] = ptrOp
			load.Operands[1] = addrOp
			fs.block.Append(load)

			def, err := fs.scope.LookupStructByType(member.Variable.Type)
			if err != nil {
				return memberBase{}, err
			}
			return memberBase{addr: ptrOp, def: def}, nil
		}

		if member.Variable.Type.Basic != types.Struct || member.Variable.Type.PointerDepth != 0 {
			return memberBase{}, fmt.Errorf("member %q is not a struct value", lhs.Value)
		}
		def, err := fs.scope.LookupStructByType(member.Variable.Type)
		if err != nil {
			return memberBase{}, err
		}
		return memberBase{addr: inner.addr, def: def, offset: accumulated}, nil

	case ast.ArrayIndex:
		addrOp, elemType, err := l.walkArrayRef(fs, lhs, true)
		if err != nil {
			return memberBase{}, err
		}
		def, err := fs.scope.LookupStructByType(elemType)
		if err != nil {
			return memberBase{}, err
		}
		return memberBase{addr: addrOp, def: def}, nil

	case ast.Identifier:
		v, err := fs.scope.LookupVar(lhs.Value)
		if err != nil {
			return memberBase{}, err
		}
		if node.Token == ast.Dot {
			if v.Type.Basic != types.Struct || v.Type.PointerDepth != 0 {
				return memberBase{}, fmt.Errorf("%q is not a struct value", lhs.Value)
			}
			addrOp := l.addrOfVar(fs, lhs, v)
			def, err := fs.scope.LookupStructByType(v.Type)
			if err != nil {
				return memberBase{}, err
			}
			return memberBase{addr: addrOp, def: def}, nil
		}
		if v.Type.PointerDepth != 1 || v.Type.Basic != types.Struct {
			return memberBase{}, fmt.Errorf("%q is not a pointer to a struct", lhs.Value)
		}
		def, err := fs.scope.LookupStructByType(v.Type)
		if err != nil {
			return memberBase{}, err
		}
		return memberBase{addr: tac.StandardOperand(v.Name, v.Type), def: def}, nil

	default:
		op, err := l.walkSubExpression(fs, lhs)
		if err != nil {
			return memberBase{}, err
		}
		t := op.EffectiveType()
		if node.Token == ast.Dot {
			return memberBase{}, fmt.Errorf("'.' requires an addressable struct value")
		}
		if t.PointerDepth != 1 || t.Basic != types.Struct {
			return memberBase{}, fmt.Errorf("'->' requires a pointer to a struct")
		}
		def, err := fs.scope.LookupStructByType(t)
		if err != nil {
			return memberBase{}, err
		}
		return memberBase{addr: op, def: def}, nil
	}
}

// walkMemberAccess resolves node.Value against its base struct and emits
// load_off (or lea_off, when the member is itself a struct value or the
// caller wants an address).
func (l *Linearizer) walkMemberAccess(fs *funcState, node *ast.Node, wantAddress bool) (*tac.Operand, error) {
	base, err := l.resolveMemberBase(fs, node)
	if err != nil {
		return nil, err
	}
	member, ok := base.def.FindMember(node.Value)
	if !ok {
		return nil, fmt.Errorf("struct %q has no member %q", base.def.Name, node.Value)
	}
	finalOffset := base.offset + member.ByteOffset
	memberType := member.Variable.Type

	if wantAddress || memberType.Basic == types.Struct {
		destOp := fs.newTemp(l.pointerTo(memberType))
		instr := tac.New(tac.OpLeaOff, posOf(node))
		instr.Operands[0] = destOp
		instr.Operands[1] = base.addr
		instr.Operands[2] = tac.LiteralOperand(int64(finalOffset), nil)
		fs.block.Append(instr)
		return destOp, nil
	}

	destOp := fs.newTemp(memberType)
	instr := tac.New(tac.OpLoadOff, posOf(node))
	instr.Operands[0] = destOp
	// The base operand gets the member's type as a cast so the emitter's
	// width selection sees the accessed field, not the instance pointer.
	// base.addr is also an operand of the instruction that computed it, so
	// the cast goes on a copy.
	instr.Operands[1] = castOperand(base.addr, memberType)
	instr.Operands[2] = tac.LiteralOperand(int64(finalOffset), nil)
	fs.block.Append(instr)
	return destOp, nil
}

// castOperand returns a copy of op with cast recorded as its cast-as type.
func castOperand(op *tac.Operand, cast *types.Type) *tac.Operand {
	c := *op
	c.CastAsType = cast
	return &c
}

// walkMemberAssign lowers a dot/arrow assignment target to store_off,
// promoting to a struct-address store when the member itself is a struct
// value.
func (l *Linearizer) walkMemberAssign(fs *funcState, node *ast.Node, rhsOp *tac.Operand) error {
	base, err := l.resolveMemberBase(fs, node)
	if err != nil {
		return err
	}
	member, ok := base.def.FindMember(node.Value)
	if !ok {
		return fmt.Errorf("struct %q has no member %q", base.def.Name, node.Value)
	}
	finalOffset := base.offset + member.ByteOffset

	if member.Variable.Type.Basic == types.Struct {
		destAddr := fs.newTemp(l.pointerTo(member.Variable.Type))
		lea := tac.New(tac.OpLeaOff, posOf(node))
		lea.Operands[0] = destAddr
		lea.Operands[1] = base.addr
		lea.Operands[2] = tac.LiteralOperand(int64(finalOffset), nil)
		fs.block.Append(lea)

		store := tac.New(tac.OpStore, posOf(node))
		store.Operands[0] = destAddr
		store.Operands[1] = rhsOp
		fs.block.Append(store)
		return nil
	}

	instr := tac.New(tac.OpStoreOff, posOf(node))
	instr.Operands[0] = castOperand(base.addr, member.Variable.Type)
	instr.Operands[1] = tac.LiteralOperand(int64(finalOffset), nil)
	instr.Operands[2] = rhsOp
	fs.block.Append(instr)
	return nil
}
