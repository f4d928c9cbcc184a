// Package ast defines the tree the linearizer consumes: a first-child /
// next-sibling n-ary tree of source tokens. The linearizer treats this tree as read-only; internal/frontend
// is the only producer in this module.
package ast

import "fmt"

// TokenKind enumerates the AST node tags the linearizer dispatches on.
// It intentionally mirrors, rather than reuses, internal/frontend's
// lexical TokenType: the AST's token set is the language's semantic
// vocabulary (declarations, statements, operators), while the lexer's
// token set also includes punctuation that never survives into the tree
// (commas, parentheses, ...).
type TokenKind int

const (
	Invalid TokenKind = iota

	// Leaves
	Identifier
	Constant    // integer literal
	CharLiteral
	StringLiteral
	TypeName // a named struct type reference

	// Type tokens
	TAny
	TU8
	TU16
	TU32
	TU64
	TClass
	// TVoid has no surface keyword; internal/frontend synthesizes it as a
	// Fun's return-type-node when the signature carries no "-> type" clause.
	TVoid

	// Declarations / top level
	TranslationUnit
	VariableDeclaration
	Extern
	Fun
	FunArguments
	FunArgument
	Class
	ClassBody
	Asm
	AsmLine
	Sizeof

	// Statements
	CompoundStatement
	Return
	If
	Else
	While
	For
	Do
	Switch
	Case
	Default
	Break
	Continue
	ExpressionStatement

	// Operators
	Add
	Sub
	Multiply
	Divide
	Modulo
	LShift
	RShift
	AddAssign
	SubAssign
	MulAssign
	DivAssign
	ModAssign
	AndAssign
	OrAssign
	XorAssign
	LShiftAssign
	RShiftAssign

	Less
	Greater
	LessEq
	GreaterEq
	Equal
	NotEqual

	LogicalAnd
	LogicalOr
	LogicalNot

	BitwiseAnd
	BitwiseOr
	BitwiseNot
	BitwiseXor

	Dereference
	AddressOf
	Assign
	Cast
	Dot
	Arrow
	FunctionCall
	ArrayIndex
	PostIncrement
	PostDecrement
)

var tokenKindNames = [...]string{
	Invalid: "Invalid", Identifier: "Identifier", Constant: "Constant",
	CharLiteral: "CharLiteral", StringLiteral: "StringLiteral", TypeName: "TypeName",
	TAny: "any", TU8: "u8", TU16: "u16", TU32: "u32", TU64: "u64", TClass: "class", TVoid: "void",
	TranslationUnit: "TranslationUnit", VariableDeclaration: "VariableDeclaration",
	Extern: "extern", Fun: "fun", FunArguments: "FunArguments", FunArgument: "FunArgument",
	Class: "class", ClassBody: "ClassBody", Asm: "asm", AsmLine: "AsmLine", Sizeof: "sizeof",
	CompoundStatement: "CompoundStatement", Return: "return", If: "if", Else: "else",
	While: "while", For: "for", Do: "do", Switch: "switch", Case: "case", Default: "default",
	Break: "break", Continue: "continue", ExpressionStatement: "ExpressionStatement",
	Add: "+", Sub: "-", Multiply: "*", Divide: "/", Modulo: "%", LShift: "<<", RShift: ">>",
	AddAssign: "+=", SubAssign: "-=", MulAssign: "*=", DivAssign: "/=", ModAssign: "%=",
	AndAssign: "&=", OrAssign: "|=", XorAssign: "^=", LShiftAssign: "<<=", RShiftAssign: ">>=",
	Less: "<", Greater: ">", LessEq: "<=", GreaterEq: ">=", Equal: "==", NotEqual: "!=",
	LogicalAnd: "&&", LogicalOr: "||", LogicalNot: "!",
	BitwiseAnd: "&", BitwiseOr: "|", BitwiseNot: "~", BitwiseXor: "^",
	Dereference: "Dereference", AddressOf: "AddressOf", Assign: "=", Cast: "Cast",
	Dot: ".", Arrow: "->", FunctionCall: "FunctionCall", ArrayIndex: "ArrayIndex",
	PostIncrement: "++", PostDecrement: "--",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(tokenKindNames) && tokenKindNames[k] != "" {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Node shapes, by Token (the convention internal/frontend builds and
// internal/linearize consumes; anything not listed here is a leaf):
//
//	TranslationUnit    -> top-level decls/defs, in source order
//	VariableDeclaration Value=name -> [type-node, arrayLenConstant?, initExpr?]
//	  a type-node is TAny/TU8/TU16/TU32/TU64/TypeName, with leading Multiply
//	  children (one per '*') marking pointer depth
//	Extern             -> [VariableDeclaration]
//	Fun Value=name      -> [FunArguments, returnType-node, CompoundStatement?]
//	  (CompoundStatement is absent for a declaration-only prototype;
//	  returnType-node is a bare TVoid leaf when the signature has no
//	  "-> type" clause)
//	FunArguments       -> FunArgument*
//	FunArgument Value=name -> [type-node]
//	Class Value=name    -> [ClassBody]
//	ClassBody          -> VariableDeclaration* (no initializers)
//	Asm                -> AsmLine*
//	AsmLine Value=text (leaf)
//	CompoundStatement  -> statement*
//	Return             -> [expr?]
//	If                 -> [condExpr, thenStmt, Else?]
//	Else               -> [elseStmt]
//	While              -> [condExpr, bodyStmt]
//	For                -> [initStmt, condExpr, postStmt, bodyStmt]
//	Switch             -> [subjectExpr, Case*, Default?]
//	Case Value=constant -> statement*
//	Default            -> statement*
//	Break, Continue    -> (leaf)
//	ExpressionStatement -> [expr]
//	Add..BitwiseXor, Less..NotEqual, LogicalAnd, LogicalOr -> [lhs, rhs]
//	LogicalNot, BitwiseNot, Dereference, AddressOf, PostIncrement,
//	  PostDecrement -> [operand]
//	Assign, AddAssign..RShiftAssign -> [lvalueExpr, rhsExpr]
//	Cast               -> [type-node, expr]
//	Dot, Arrow Value=member -> [baseExpr]
//	FunctionCall Value=name -> argExpr* (right-to-left eval is the
//	  linearizer's concern, not the tree's)
//	ArrayIndex         -> [baseExpr, indexExpr]
//	Sizeof             -> [type-node or Identifier]
//	Identifier Value=name, Constant Value=digits, CharLiteral Value=char,
//	  StringLiteral Value=text, TypeName Value=name -> leaves
//
// Node is a single AST node: a token tag, its literal text (for leaves), and
// first-child/next-sibling links to the rest of the tree.
type Node struct {
	Token TokenKind
	Value string

	FirstChild  *Node
	NextSibling *Node

	SourceFile string
	SourceLine int
	SourceCol  int
}

// New builds a leaf Node at the given position.
func New(tok TokenKind, value string, file string, line, col int) *Node {
	return &Node{Token: tok, Value: value, SourceFile: file, SourceLine: line, SourceCol: col}
}

// AddChild appends child as the new last child of n, preserving the order
// children were added in (append, not prepend, so callers may iterate
// Children() in source order).
func (n *Node) AddChild(child *Node) *Node {
	if n.FirstChild == nil {
		n.FirstChild = child
		return n
	}
	last := n.FirstChild
	for last.NextSibling != nil {
		last = last.NextSibling
	}
	last.NextSibling = child
	return n
}

// Children returns n's children as a slice, in source order. It allocates;
// hot paths in the linearizer should walk FirstChild/NextSibling directly.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// ChildAt returns n's i-th child (0-based), or nil if there are fewer than
// i+1 children.
func (n *Node) ChildAt(i int) *Node {
	c := n.FirstChild
	for ; c != nil && i > 0; i-- {
		c = c.NextSibling
	}
	return c
}

// NumChildren counts n's direct children.
func (n *Node) NumChildren() int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Value != "" {
		return fmt.Sprintf("%s(%q)", n.Token, n.Value)
	}
	return n.Token.String()
}
