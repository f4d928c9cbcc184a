package linearize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

func (l *Linearizer) primType(b types.Basic) *types.Type {
	return l.ctx.Dictionary.Intern(&types.Type{Basic: b})
}

// pointerTo interns the type one pointer level above t.
func (l *Linearizer) pointerTo(t *types.Type) *types.Type {
	d := *t
	d.PointerDepth++
	return l.ctx.Dictionary.Intern(&d)
}

// narrowestFit picks u8/u16/u32/u64 for an unsigned literal value:
// literals are tagged with the narrowest type that fits.
func (l *Linearizer) narrowestFit(v int64) *types.Type {
	switch {
	case v >= 0 && v <= 0xFF:
		return l.primType(types.U8)
	case v >= 0 && v <= 0xFFFF:
		return l.primType(types.U16)
	case v >= 0 && v <= 0xFFFFFFFF:
		return l.primType(types.U32)
	default:
		return l.primType(types.U64)
	}
}

// widerOf returns whichever of a, b has the larger primitive size (ties
// keep a): a binary operation's destination is typed to the wider of the
// two operand types.
func (l *Linearizer) widerOf(a, b *types.Type) *types.Type {
	sa, errA := types.PrimitiveSize(a)
	sb, errB := types.PrimitiveSize(b)
	if errA != nil {
		return b
	}
	if errB != nil {
		return a
	}
	if sb > sa {
		return b
	}
	return a
}

// log2Scale returns the power-of-two exponent for an element size, for the
// load_arr/store_arr/lea_arr "log2 scale" operand slot.
func log2Scale(size int) (int64, error) {
	switch size {
	case 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	default:
		return 0, fmt.Errorf("internal error: non-power-of-two element size %d", size)
	}
}

// parseConstant parses an integer-literal AST leaf's text (decimal or 0x
// hex, as produced by internal/frontend).
func parseConstant(text string) (int64, error) {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		v, err := strconv.ParseUint(text[2:], 16, 64)
		return int64(v), err
	}
	v, err := strconv.ParseUint(text, 10, 64)
	return int64(v), err
}

// canonicalizeChar resolves a char_literal's raw text to its numeric code.
func canonicalizeChar(text string) (int64, error) {
	if len(text) == 0 {
		return 0, fmt.Errorf("empty char literal")
	}
	if text[0] != '\\' {
		return int64(text[0]), nil
	}
	if len(text) < 2 {
		return 0, fmt.Errorf("malformed escape in char literal %q", text)
	}
	switch text[1] {
	case 'a':
		return 7, nil
	case 'b':
		return 8, nil
	case 'n':
		return 10, nil
	case 'r':
		return 13, nil
	case 't':
		return 9, nil
	case '\\':
		return 92, nil
	case '\'':
		return 39, nil
	case '"':
		return 34, nil
	default:
		return 0, fmt.Errorf("unrecognized escape %q in char literal", text)
	}
}

// mangleStringLiteral turns a raw string literal's text into a stable
// global-variable name: whitespace becomes '_', every other
// non-alphanumeric byte folds deterministically onto a letter.
func mangleStringLiteral(raw string) string {
	var b strings.Builder
	b.WriteString(".str.")
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			b.WriteByte('_')
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			b.WriteByte('a' + (c % 26))
		}
	}
	return b.String()
}

func isConstantLeaf(n *ast.Node) bool {
	return n != nil && n.Token == ast.Constant
}

func binaryOp(tok ast.TokenKind) (tac.Op, bool) {
	switch tok {
	case ast.Add:
		return tac.OpAdd, true
	case ast.Sub:
		return tac.OpSub, true
	case ast.Multiply:
		return tac.OpMul, true
	case ast.Divide:
		return tac.OpDiv, true
	case ast.Modulo:
		return tac.OpMod, true
	case ast.LShift:
		return tac.OpLShift, true
	case ast.RShift:
		return tac.OpRShift, true
	case ast.BitwiseAnd:
		return tac.OpBitwiseAnd, true
	case ast.BitwiseOr:
		return tac.OpBitwiseOr, true
	case ast.BitwiseXor:
		return tac.OpBitwiseXor, true
	default:
		return 0, false
	}
}

// inverseBranch maps a relational AST token to the TAC branch op that
// jumps to the false label when the relation does NOT hold.
func inverseBranch(tok ast.TokenKind) (tac.Op, bool) {
	switch tok {
	case ast.Less:
		return tac.OpBgeu, true
	case ast.Greater:
		return tac.OpBleu, true
	case ast.LessEq:
		return tac.OpBgtu, true
	case ast.GreaterEq:
		return tac.OpBltu, true
	case ast.Equal:
		return tac.OpBne, true
	case ast.NotEqual:
		return tac.OpBeq, true
	default:
		return 0, false
	}
}

// cloneTree deep-copies an AST subtree. Needed whenever the linearizer
// synthesizes a new tree that reuses a piece of source AST more than once
// (`lhs += rhs` becoming `lhs = lhs + rhs` walks lhs twice): ast.Node's
// NextSibling link means the same node cannot be a child of two different
// parents at once without corrupting both.
func cloneTree(n *ast.Node) *ast.Node {
	if n == nil {
		return nil
	}
	clone := ast.New(n.Token, n.Value, n.SourceFile, n.SourceLine, n.SourceCol)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AddChild(cloneTree(c))
	}
	return clone
}
