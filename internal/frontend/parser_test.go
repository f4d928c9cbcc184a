package frontend

import (
	"testing"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Node {
	t.Helper()
	root, err := Parse(src, "test.sub")
	require.NoError(t, err)
	require.Equal(t, ast.TranslationUnit, root.Token)
	return root
}

func TestParseGlobalVariableDeclaration(t *testing.T) {
	root := mustParse(t, "u32 counter = 0;")
	require.Equal(t, 1, root.NumChildren())

	decl := root.ChildAt(0)
	require.Equal(t, ast.VariableDeclaration, decl.Token)
	require.Equal(t, "counter", decl.Value)
	require.Equal(t, 2, decl.NumChildren(), "type-node and init expr")
	require.Equal(t, ast.TU32, decl.ChildAt(0).Token)
	require.Equal(t, ast.Constant, decl.ChildAt(1).Token)
	require.Equal(t, "0", decl.ChildAt(1).Value)
}

func TestParseArrayDeclarationEmbedsLengthConstant(t *testing.T) {
	root := mustParse(t, "u8 buf[16];")
	decl := root.ChildAt(0)
	require.Equal(t, ast.VariableDeclaration, decl.Token)
	require.Equal(t, 2, decl.NumChildren())
	require.Equal(t, ast.Constant, decl.ChildAt(1).Token)
	require.Equal(t, "16", decl.ChildAt(1).Value)
}

func TestParsePointerTypeAddsMultiplyChildren(t *testing.T) {
	root := mustParse(t, "u64 *p = 0;")
	decl := root.ChildAt(0)
	typeNode := decl.ChildAt(0)
	require.Equal(t, ast.TU64, typeNode.Token)
	require.Equal(t, 1, typeNode.NumChildren())
	require.Equal(t, ast.Multiply, typeNode.ChildAt(0).Token)
}

func TestParseFunDeclWithReturnType(t *testing.T) {
	root := mustParse(t, `
fun add(u32 a, u32 b) -> u32 {
	return a + b;
}
`)
	fn := root.ChildAt(0)
	require.Equal(t, ast.Fun, fn.Token)
	require.Equal(t, "add", fn.Value)
	require.Equal(t, 3, fn.NumChildren(), "args, return type, body")

	args := fn.ChildAt(0)
	require.Equal(t, ast.FunArguments, args.Token)
	require.Equal(t, 2, args.NumChildren())
	require.Equal(t, "a", args.ChildAt(0).Value)
	require.Equal(t, "b", args.ChildAt(1).Value)

	require.Equal(t, ast.TU32, fn.ChildAt(1).Token)

	body := fn.ChildAt(2)
	require.Equal(t, ast.CompoundStatement, body.Token)
	require.Equal(t, 1, body.NumChildren())

	ret := body.ChildAt(0)
	require.Equal(t, ast.Return, ret.Token)
	require.Equal(t, 1, ret.NumChildren())
	require.Equal(t, ast.Add, ret.ChildAt(0).Token)
}

func TestParseFunDeclWithNoReturnTypeSynthesizesTVoid(t *testing.T) {
	root := mustParse(t, `
fun doNothing() {
	return;
}
`)
	fn := root.ChildAt(0)
	require.Equal(t, ast.TVoid, fn.ChildAt(1).Token)
}

func TestParseFunDeclPrototypeHasNoBody(t *testing.T) {
	root := mustParse(t, "fun extern_looking(u32 a) -> u32;")
	fn := root.ChildAt(0)
	require.Equal(t, 2, fn.NumChildren(), "args and return type only, no CompoundStatement")
}

func TestParseIfElse(t *testing.T) {
	root := mustParse(t, `
fun f(u32 a) -> u32 {
	if (a < 10) {
		return 1;
	} else {
		return 0;
	}
}
`)
	body := root.ChildAt(0).ChildAt(2)
	ifNode := body.ChildAt(0)
	require.Equal(t, ast.If, ifNode.Token)
	require.Equal(t, 3, ifNode.NumChildren(), "cond, then, else")
	require.Equal(t, ast.Less, ifNode.ChildAt(0).Token)
	require.Equal(t, ast.CompoundStatement, ifNode.ChildAt(1).Token)
	require.Equal(t, ast.Else, ifNode.ChildAt(2).Token)
}

func TestParseWhileLoop(t *testing.T) {
	root := mustParse(t, `
fun f() {
	u32 i = 0;
	while (i < 10) {
		i = i + 1;
	}
}
`)
	body := root.ChildAt(0).ChildAt(2)
	whileNode := body.ChildAt(1)
	require.Equal(t, ast.While, whileNode.Token)
	require.Equal(t, ast.Less, whileNode.ChildAt(0).Token)
	require.Equal(t, ast.CompoundStatement, whileNode.ChildAt(1).Token)
}

func TestParseForLoopWithCompoundAssignPost(t *testing.T) {
	root := mustParse(t, `
fun f() {
	for (u32 i = 0; i < 10; i += 1) {
		continue;
	}
}
`)
	body := root.ChildAt(0).ChildAt(2)
	forNode := body.ChildAt(0)
	require.Equal(t, ast.For, forNode.Token)
	require.Equal(t, 4, forNode.NumChildren(), "init, cond, post, body")
	require.Equal(t, ast.VariableDeclaration, forNode.ChildAt(0).Token)
	require.Equal(t, ast.Less, forNode.ChildAt(1).Token)
	require.Equal(t, ast.AddAssign, forNode.ChildAt(2).Token, "post clause stays a bare assign node, not wrapped")
	require.Equal(t, ast.CompoundStatement, forNode.ChildAt(3).Token)
}

func TestParseSwitchCaseDefault(t *testing.T) {
	root := mustParse(t, `
fun f(u32 x) {
	switch (x) {
	case 1:
		break;
	default:
		break;
	}
}
`)
	body := root.ChildAt(0).ChildAt(2)
	sw := body.ChildAt(0)
	require.Equal(t, ast.Switch, sw.Token)
	require.Equal(t, 3, sw.NumChildren(), "subject, case, default")
	caseNode := sw.ChildAt(1)
	require.Equal(t, ast.Case, caseNode.Token)
	require.Equal(t, "1", caseNode.Value)
	require.Equal(t, ast.Default, sw.ChildAt(2).Token)
}

func TestParseMemberAccessArrow(t *testing.T) {
	root := mustParse(t, `
fun f(class Point *p) {
	p->x = p->x + 1;
}
`)
	body := root.ChildAt(0).ChildAt(2)
	assign := body.ChildAt(0)
	require.Equal(t, ast.Assign, assign.Token)
	lhs := assign.ChildAt(0)
	require.Equal(t, ast.Arrow, lhs.Token)
	require.Equal(t, "x", lhs.Value)
	require.Equal(t, ast.Identifier, lhs.ChildAt(0).Token)
}

func TestParseCastExpression(t *testing.T) {
	root := mustParse(t, "u64 x = (u64)1;")
	decl := root.ChildAt(0)
	cast := decl.ChildAt(1)
	require.Equal(t, ast.Cast, cast.Token)
	require.Equal(t, ast.TU64, cast.ChildAt(0).Token)
	require.Equal(t, ast.Constant, cast.ChildAt(1).Token)
}

func TestParseSizeofOnType(t *testing.T) {
	root := mustParse(t, "u32 n = sizeof(u64);")
	decl := root.ChildAt(0)
	sz := decl.ChildAt(1)
	require.Equal(t, ast.Sizeof, sz.Token)
	require.Equal(t, ast.TU64, sz.ChildAt(0).Token)
}

func TestParseUnaryMinusDesugarsToSubtraction(t *testing.T) {
	root := mustParse(t, "u32 n = -5;")
	decl := root.ChildAt(0)
	sub := decl.ChildAt(1)
	require.Equal(t, ast.Sub, sub.Token)
	require.Equal(t, "0", sub.ChildAt(0).Value)
	require.Equal(t, "5", sub.ChildAt(1).Value)
}

func TestParseFunctionCallArguments(t *testing.T) {
	root := mustParse(t, `
fun f() {
	add(1, 2);
}
`)
	body := root.ChildAt(0).ChildAt(2)
	call := body.ChildAt(0)
	require.Equal(t, ast.FunctionCall, call.Token)
	require.Equal(t, "add", call.Value)
	require.Equal(t, 2, call.NumChildren())
}

func TestParseClassDeclaration(t *testing.T) {
	root := mustParse(t, `
class Point {
	u32 x;
	u32 y;
}
`)
	class := root.ChildAt(0)
	require.Equal(t, ast.Class, class.Token)
	require.Equal(t, "Point", class.Value)
	body := class.ChildAt(0)
	require.Equal(t, ast.ClassBody, body.Token)
	require.Equal(t, 2, body.NumChildren())
}

func TestParseAsmBlockCollectsLinesVerbatim(t *testing.T) {
	root := mustParse(t, `
fun f() {
	asm {
		nop;
		nop;
	}
}
`)
	body := root.ChildAt(0).ChildAt(2)
	asmNode := body.ChildAt(0)
	require.Equal(t, ast.Asm, asmNode.Token)
	require.Equal(t, 2, asmNode.NumChildren())
	require.Equal(t, ast.AsmLine, asmNode.ChildAt(0).Token)
}

func TestParseExternDeclaration(t *testing.T) {
	root := mustParse(t, "extern u32 globalCounter;")
	ext := root.ChildAt(0)
	require.Equal(t, ast.Extern, ext.Token)
	require.Equal(t, 1, ext.NumChildren())
	require.Equal(t, ast.VariableDeclaration, ext.ChildAt(0).Token)
}

func TestParseMissingSemicolonIsAnError(t *testing.T) {
	_, err := Parse("u32 x = 1", "test.sub")
	require.Error(t, err)
}

func TestParseUnexpectedTokenInExpressionIsAnError(t *testing.T) {
	_, err := Parse("u32 x = ;", "test.sub")
	require.Error(t, err)
}

func TestParseOperatorPrecedence(t *testing.T) {
	root := mustParse(t, "u32 x = 1 + 2 * 3;")
	decl := root.ChildAt(0)
	add := decl.ChildAt(1)
	require.Equal(t, ast.Add, add.Token, "multiplication binds tighter than addition")
	require.Equal(t, ast.Constant, add.ChildAt(0).Token)
	mul := add.ChildAt(1)
	require.Equal(t, ast.Multiply, mul.Token)
}
