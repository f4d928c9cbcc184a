// Package frontend implements the only producer of internal/ast trees in
// this module: a lexer and recursive-descent parser for the Substratum
// surface grammar.
package frontend

import "fmt"

// TokenType identifies the category of a lexed token. It is distinct from
// ast.TokenKind: this set includes punctuation (commas, parens, braces)
// that never survives into the tree.
type TokenType int

const (
	EOF TokenType = iota

	IDENTIFIER
	INTEGER
	CHAR
	STRING

	// Keywords
	KwAny
	KwU8
	KwU16
	KwU32
	KwU64
	KwClass
	KwExtern
	KwFun
	KwAsm
	KwReturn
	KwIf
	KwElse
	KwWhile
	KwFor
	KwDo
	KwSwitch
	KwCase
	KwDefault
	KwBreak
	KwContinue
	KwSizeof

	// Paired delimiters
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET

	// Punctuation
	DOT
	ARROW
	SEMICOLON
	COMMA
	COLON

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	AMP
	PIPE
	CARET
	TILDE
	SHL
	SHR
	AND_AND
	OR_OR
	NOT
	PLUS_PLUS
	MINUS_MINUS

	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN
	AMP_ASSIGN
	PIPE_ASSIGN
	CARET_ASSIGN
	SHL_ASSIGN
	SHR_ASSIGN

	EQ
	NEQ
	LT
	GT
	LE
	GE

	ARROW_RESULT // the "->" inside a fun signature, lexed identically to ARROW
)

var tokenNames = [...]string{
	EOF: "EOF", IDENTIFIER: "IDENTIFIER", INTEGER: "INTEGER", CHAR: "CHAR", STRING: "STRING",
	KwAny: "any", KwU8: "u8", KwU16: "u16", KwU32: "u32", KwU64: "u64", KwClass: "class",
	KwExtern: "extern", KwFun: "fun", KwAsm: "asm", KwReturn: "return", KwIf: "if", KwElse: "else",
	KwWhile: "while", KwFor: "for", KwDo: "do", KwSwitch: "switch", KwCase: "case",
	KwDefault: "default", KwBreak: "break", KwContinue: "continue", KwSizeof: "sizeof",
	LBRACE: "{", RBRACE: "}", LPAREN: "(", RPAREN: ")", LBRACKET: "[", RBRACKET: "]",
	DOT: ".", ARROW: "->", SEMICOLON: ";", COMMA: ",", COLON: ":",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	AMP: "&", PIPE: "|", CARET: "^", TILDE: "~", SHL: "<<", SHR: ">>",
	AND_AND: "&&", OR_OR: "||", NOT: "!", PLUS_PLUS: "++", MINUS_MINUS: "--",
	ASSIGN: "=", PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", STAR_ASSIGN: "*=", SLASH_ASSIGN: "/=",
	PERCENT_ASSIGN: "%=", AMP_ASSIGN: "&=", PIPE_ASSIGN: "|=", CARET_ASSIGN: "^=",
	SHL_ASSIGN: "<<=", SHR_ASSIGN: ">>=",
	EQ: "==", NEQ: "!=", LT: "<", GT: ">", LE: "<=", GE: ">=",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) && tokenNames[tt] != "" {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"any": KwAny, "u8": KwU8, "u16": KwU16, "u32": KwU32, "u64": KwU64,
	"class": KwClass, "extern": KwExtern, "fun": KwFun, "asm": KwAsm,
	"return": KwReturn, "if": KwIf, "else": KwElse, "while": KwWhile,
	"for": KwFor, "do": KwDo, "switch": KwSwitch, "case": KwCase,
	"default": KwDefault, "break": KwBreak, "continue": KwContinue, "sizeof": KwSizeof,
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Col    int
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q line %d col %d", t.Type, t.Lexeme, t.Line, t.Col)
}
