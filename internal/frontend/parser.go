package frontend

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/ast"
)

// Parser consumes the flat token slice produced by Lex and builds an
// internal/ast tree, the contract internal/linearize's walkers assume:
// flat token slice, peek/peekAt/advance, a precedence-climbing expression
// grammar emitting ast.Node rather than typed statement/expression values.
//
// Grammar:
//
//	program       = (externDecl | classDecl | funDecl | varDeclStmt | asmStmt | assignStmt)* EOF
//	externDecl    = "extern" varDecl ";"
//	classDecl     = "class" IDENTIFIER "{" (varDecl ";")* "}"
//	funDecl       = "fun" IDENTIFIER "(" (funArg ("," funArg)*)? ")" ("->" typeSpec)? (compoundStmt | ";")
//	funArg        = typeSpec IDENTIFIER
//	varDecl       = typeSpec IDENTIFIER ("[" INTEGER "]")? ("=" expression)?
//	typeSpec      = ("any"|"u8"|"u16"|"u32"|"u64"|"class" IDENTIFIER) "*"*
//	statement     = varDecl ";" | "if" ... | "while" ... | "for" ... | "switch" ...
//	                | "break" ";" | "continue" ";" | "return" expression? ";"
//	                | "asm" asmBlock | compoundStmt | assignOrExprStmt ";"
//	assignOrExprStmt = lvalue ("=" | "+=" | ... ) expression | expression
//	expression    = logical_or
//	logical_or    = logical_and ("||" logical_and)*
//	logical_and   = bitwise_or ("&&" bitwise_or)*
//	bitwise_or    = bitwise_xor ("|" bitwise_xor)*
//	bitwise_xor   = bitwise_and ("^" bitwise_and)*
//	bitwise_and   = equality ("&" equality)*
//	equality      = relational (("=="|"!=") relational)*
//	relational    = shift (("<"|">"|"<="|">=") shift)*
//	shift         = additive (("<<"|">>") additive)*
//	additive      = multiplicative (("+"|"-") multiplicative)*
//	multiplicative = unary (("*"|"/"|"%") unary)*
//	unary         = ("&"|"*"|"~"|"!"|"-") unary | postfix
//	postfix       = primary ("[" expression "]" | "." IDENT | "->" IDENT
//	                | "(" args ")" | "++" | "--")*
//	primary       = INTEGER | CHAR | STRING | IDENTIFIER | "sizeof" "(" (typeSpec|IDENT) ")"
//	                | "(" typeSpec ")" unary | "(" expression ")"
type Parser struct {
	tokens []Token
	pos    int
	file   string
}

// NewParser builds a Parser over an already-lexed token stream. file is
// recorded on every produced ast.Node for diagnostics.
func NewParser(tokens []Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// Parse lexes and parses src in one step, the convenience entry point
// cmd/subc and tests use.
func Parse(src, file string) (*ast.Node, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return NewParser(tokens, file).ParseTranslationUnit()
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(tt TokenType) bool { return p.peek().Type == tt }

func (p *Parser) match(tt TokenType) (Token, bool) {
	if p.check(tt) {
		return p.advance(), true
	}
	return Token{}, false
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	if tok, ok := p.match(tt); ok {
		return tok, nil
	}
	got := p.peek()
	return Token{}, fmt.Errorf("%s:%d:%d: expected %s, got %s %q", p.file, got.Line, got.Col, tt, got.Type, got.Lexeme)
}

func (p *Parser) node(tok ast.TokenKind, value string, pos Token) *ast.Node {
	return ast.New(tok, value, p.file, pos.Line, pos.Col)
}

// ParseTranslationUnit parses the whole token stream into a TranslationUnit
// root, the entry point internal/linearize.WalkProgram expects.
func (p *Parser) ParseTranslationUnit() (*ast.Node, error) {
	start := p.peek()
	root := p.node(ast.TranslationUnit, "", start)
	for !p.check(EOF) {
		decl, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		root.AddChild(decl)
	}
	return root, nil
}

func (p *Parser) parseTopLevel() (*ast.Node, error) {
	switch p.peek().Type {
	case KwExtern:
		tok := p.advance()
		decl, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		ext := p.node(ast.Extern, "", tok)
		ext.AddChild(decl)
		return ext, nil
	case KwClass:
		return p.parseClassDecl()
	case KwFun:
		return p.parseFunDecl()
	case KwAsm:
		return p.parseAsmStatement()
	default:
		if isTypeStart(p.peek().Type) {
			decl, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(SEMICOLON); err != nil {
				return nil, err
			}
			return decl, nil
		}
		return p.parseAssignOrExprStatement()
	}
}

func isTypeStart(tt TokenType) bool {
	switch tt {
	case KwAny, KwU8, KwU16, KwU32, KwU64, KwClass:
		return true
	default:
		return false
	}
}

// parseTypeSpec consumes a base type token (and, for `class`, the struct
// name it names) plus any number of trailing '*' pointer markers, returning
// an ast.Node shaped per ast.go's "a type-node is TAny/TU8/.../TypeName,
// with leading Multiply children (one per '*') marking pointer depth".
func (p *Parser) parseTypeSpec() (*ast.Node, error) {
	tok := p.peek()
	var typeNode *ast.Node
	switch tok.Type {
	case KwAny:
		p.advance()
		typeNode = p.node(ast.TAny, "", tok)
	case KwU8:
		p.advance()
		typeNode = p.node(ast.TU8, "", tok)
	case KwU16:
		p.advance()
		typeNode = p.node(ast.TU16, "", tok)
	case KwU32:
		p.advance()
		typeNode = p.node(ast.TU32, "", tok)
	case KwU64:
		p.advance()
		typeNode = p.node(ast.TU64, "", tok)
	case KwClass:
		p.advance()
		nameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		typeNode = p.node(ast.TypeName, nameTok.Lexeme, tok)
	default:
		return nil, fmt.Errorf("%s:%d:%d: expected a type, got %s %q", p.file, tok.Line, tok.Col, tok.Type, tok.Lexeme)
	}
	for {
		star, ok := p.match(STAR)
		if !ok {
			break
		}
		typeNode.AddChild(p.node(ast.Multiply, "", star))
	}
	return typeNode, nil
}

// parseVarDecl parses a bare declaration (no trailing ';'), embedding an
// optional array length and initializer directly as the VariableDeclaration
// node's own children, per ast.go's shape comment and internal/linearize's
// declInfo, which reads both off the same node rather than a wrapping
// Assign.
func (p *Parser) parseVarDecl() (*ast.Node, error) {
	start := p.peek()
	typeNode, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	decl := p.node(ast.VariableDeclaration, nameTok.Lexeme, start)
	decl.AddChild(typeNode)

	if _, ok := p.match(LBRACKET); ok {
		lenTok, err := p.expect(INTEGER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		decl.AddChild(p.node(ast.Constant, lenTok.Lexeme, lenTok))
	}

	if _, ok := p.match(ASSIGN); ok {
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl.AddChild(init)
	}
	return decl, nil
}

func (p *Parser) parseClassDecl() (*ast.Node, error) {
	tok, _ := p.match(KwClass)
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	body := p.node(ast.ClassBody, "", tok)
	for !p.check(RBRACE) {
		field, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		body.AddChild(field)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	class := p.node(ast.Class, nameTok.Lexeme, tok)
	class.AddChild(body)
	return class, nil
}

// parseFunDecl parses `fun name(args) [-> type] (compoundStmt | ";")`.
// A signature with no "-> type" clause synthesizes a bare TVoid leaf in the
// return-type-node slot; internal/linearize's resolveTypeNode maps TVoid
// to types.Null, so a signature without a declared return type means a
// non-returning function.
func (p *Parser) parseFunDecl() (*ast.Node, error) {
	tok, _ := p.match(KwFun)
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	argsNode := p.node(ast.FunArguments, "", tok)
	for !p.check(RPAREN) {
		if argsNode.NumChildren() > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return nil, err
			}
		}
		argTok := p.peek()
		argType, err := p.parseTypeSpec()
		if err != nil {
			return nil, err
		}
		argName, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		arg := p.node(ast.FunArgument, argName.Lexeme, argTok)
		arg.AddChild(argType)
		argsNode.AddChild(arg)
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	var returnType *ast.Node
	if _, ok := p.match(ARROW); ok {
		returnType, err = p.parseTypeSpec()
		if err != nil {
			return nil, err
		}
	} else {
		returnType = p.node(ast.TVoid, "", p.peek())
	}

	fn := p.node(ast.Fun, nameTok.Lexeme, tok)
	fn.AddChild(argsNode)
	fn.AddChild(returnType)

	if _, ok := p.match(SEMICOLON); ok {
		return fn, nil
	}
	body, err := p.parseCompoundStatement()
	if err != nil {
		return nil, err
	}
	fn.AddChild(body)
	return fn, nil
}

// parseAsmStatement parses an `asm { line; line; ... }` block into an Asm
// node whose children are AsmLine leaves, matching Lex's special handling
// of the block's body as raw, unlexed lines.
func (p *Parser) parseAsmStatement() (*ast.Node, error) {
	tok, _ := p.match(KwAsm)
	asmNode := p.node(ast.Asm, "", tok)
	if _, ok := p.match(LBRACE); !ok {
		return asmNode, nil
	}
	for {
		if _, ok := p.match(RBRACE); ok {
			break
		}
		line, err := p.expect(ASM_LINE)
		if err != nil {
			return nil, err
		}
		asmNode.AddChild(p.node(ast.AsmLine, line.Lexeme, line))
	}
	return asmNode, nil
}

// parseStatement parses one statement.
func (p *Parser) parseStatement() (*ast.Node, error) {
	switch p.peek().Type {
	case LBRACE:
		return p.parseCompoundStatement()
	case KwReturn:
		return p.parseReturn()
	case KwIf:
		return p.parseIf()
	case KwWhile:
		return p.parseWhile()
	case KwFor:
		return p.parseFor()
	case KwSwitch:
		return p.parseSwitch()
	case KwBreak:
		tok := p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return p.node(ast.Break, "", tok), nil
	case KwContinue:
		tok := p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return p.node(ast.Continue, "", tok), nil
	case KwAsm:
		return p.parseAsmStatement()
	default:
		if isTypeStart(p.peek().Type) {
			decl, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(SEMICOLON); err != nil {
				return nil, err
			}
			return decl, nil
		}
		return p.parseAssignOrExprStatement()
	}
}

func (p *Parser) parseCompoundStatement() (*ast.Node, error) {
	tok, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	block := p.node(ast.CompoundStatement, "", tok)
	for !p.check(RBRACE) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.AddChild(stmt)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseReturn() (*ast.Node, error) {
	tok, _ := p.match(KwReturn)
	ret := p.node(ast.Return, "", tok)
	if !p.check(SEMICOLON) {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ret.AddChild(expr)
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return ret, nil
}

func (p *Parser) parseIf() (*ast.Node, error) {
	tok, _ := p.match(KwIf)
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	thenStmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	ifNode := p.node(ast.If, "", tok)
	ifNode.AddChild(cond)
	ifNode.AddChild(thenStmt)
	if elseTok, ok := p.match(KwElse); ok {
		elseStmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		elseNode := p.node(ast.Else, "", elseTok)
		elseNode.AddChild(elseStmt)
		ifNode.AddChild(elseNode)
	}
	return ifNode, nil
}

func (p *Parser) parseWhile() (*ast.Node, error) {
	tok, _ := p.match(KwWhile)
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	whileNode := p.node(ast.While, "", tok)
	whileNode.AddChild(cond)
	whileNode.AddChild(body)
	return whileNode, nil
}

// parseFor parses `for (init; cond; post) body`. init may be a declaration
// or an assignment/expression statement; post is a bare statement-shaped
// node with no trailing ';' consumed by the caller (the loop's own
// semicolons separate it from cond, and ')' terminates it), matching
// internal/linearize/statement.go's walkFor, which reattaches it directly
// as a statement rather than wrapping it.
func (p *Parser) parseFor() (*ast.Node, error) {
	tok, _ := p.match(KwFor)
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var initStmt *ast.Node
	var err error
	if isTypeStart(p.peek().Type) {
		initStmt, err = p.parseVarDecl()
	} else {
		initStmt, err = p.parseAssignOrExprNode()
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	post, err := p.parseAssignOrExprNode()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	forNode := p.node(ast.For, "", tok)
	forNode.AddChild(initStmt)
	forNode.AddChild(cond)
	forNode.AddChild(post)
	forNode.AddChild(body)
	return forNode, nil
}

func (p *Parser) parseSwitch() (*ast.Node, error) {
	tok, _ := p.match(KwSwitch)
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	switchNode := p.node(ast.Switch, "", tok)
	switchNode.AddChild(subject)
	for !p.check(RBRACE) {
		switch p.peek().Type {
		case KwCase:
			caseTok := p.advance()
			val, err := p.expect(INTEGER)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(COLON); err != nil {
				return nil, err
			}
			caseNode := p.node(ast.Case, val.Lexeme, caseTok)
			for !p.check(KwCase) && !p.check(KwDefault) && !p.check(RBRACE) {
				stmt, err := p.parseStatement()
				if err != nil {
					return nil, err
				}
				caseNode.AddChild(stmt)
			}
			switchNode.AddChild(caseNode)
		case KwDefault:
			defTok := p.advance()
			if _, err := p.expect(COLON); err != nil {
				return nil, err
			}
			defNode := p.node(ast.Default, "", defTok)
			for !p.check(KwCase) && !p.check(KwDefault) && !p.check(RBRACE) {
				stmt, err := p.parseStatement()
				if err != nil {
					return nil, err
				}
				defNode.AddChild(stmt)
			}
			switchNode.AddChild(defNode)
		default:
			got := p.peek()
			return nil, fmt.Errorf("%s:%d:%d: expected 'case' or 'default', got %s", p.file, got.Line, got.Col, got.Type)
		}
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return switchNode, nil
}

// assignTokens maps an assignment-operator TokenType to its ast.TokenKind,
// covering plain '=' and every compound-assign form the language has.
var assignTokens = map[TokenType]ast.TokenKind{
	ASSIGN:         ast.Assign,
	PLUS_ASSIGN:    ast.AddAssign,
	MINUS_ASSIGN:   ast.SubAssign,
	STAR_ASSIGN:    ast.MulAssign,
	SLASH_ASSIGN:   ast.DivAssign,
	PERCENT_ASSIGN: ast.ModAssign,
	AMP_ASSIGN:     ast.AndAssign,
	PIPE_ASSIGN:    ast.OrAssign,
	CARET_ASSIGN:   ast.XorAssign,
	SHL_ASSIGN:     ast.LShiftAssign,
	SHR_ASSIGN:     ast.RShiftAssign,
}

// parseAssignOrExprNode parses a bare lvalue ("=" | compound-op) expression,
// or a plain expression statement, without consuming a trailing ';' -
// shared between parseFor's init/post clauses and
// parseAssignOrExprStatement.
func (p *Parser) parseAssignOrExprNode() (*ast.Node, error) {
	lhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if kind, ok := assignTokens[tok.Type]; ok {
		p.advance()
		rhs, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		assignNode := p.node(kind, "", tok)
		assignNode.AddChild(lhs)
		assignNode.AddChild(rhs)
		return assignNode, nil
	}
	if lhs.Token == ast.FunctionCall || lhs.Token == ast.PostIncrement || lhs.Token == ast.PostDecrement {
		return lhs, nil
	}
	stmt := p.node(ast.ExpressionStatement, "", tok)
	stmt.AddChild(lhs)
	return stmt, nil
}

func (p *Parser) parseAssignOrExprStatement() (*ast.Node, error) {
	stmt, err := p.parseAssignOrExprNode()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

// --- expressions: precedence-climbing, weakest to strongest. ---

func (p *Parser) parseExpression() (*ast.Node, error) { return p.parseLogicalOr() }

func (p *Parser) parseLogicalOr() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseLogicalAnd, map[TokenType]ast.TokenKind{OR_OR: ast.LogicalOr})
}

func (p *Parser) parseLogicalAnd() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseBitwiseOr, map[TokenType]ast.TokenKind{AND_AND: ast.LogicalAnd})
}

func (p *Parser) parseBitwiseOr() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseBitwiseXor, map[TokenType]ast.TokenKind{PIPE: ast.BitwiseOr})
}

func (p *Parser) parseBitwiseXor() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseBitwiseAnd, map[TokenType]ast.TokenKind{CARET: ast.BitwiseXor})
}

func (p *Parser) parseBitwiseAnd() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseEquality, map[TokenType]ast.TokenKind{AMP: ast.BitwiseAnd})
}

func (p *Parser) parseEquality() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseRelational, map[TokenType]ast.TokenKind{EQ: ast.Equal, NEQ: ast.NotEqual})
}

func (p *Parser) parseRelational() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseShift, map[TokenType]ast.TokenKind{
		LT: ast.Less, GT: ast.Greater, LE: ast.LessEq, GE: ast.GreaterEq,
	})
}

func (p *Parser) parseShift() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseAdditive, map[TokenType]ast.TokenKind{SHL: ast.LShift, SHR: ast.RShift})
}

func (p *Parser) parseAdditive() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseMultiplicative, map[TokenType]ast.TokenKind{PLUS: ast.Add, MINUS: ast.Sub})
}

func (p *Parser) parseMultiplicative() (*ast.Node, error) {
	return p.parseLeftAssocBinary(p.parseUnary, map[TokenType]ast.TokenKind{
		STAR: ast.Multiply, SLASH: ast.Divide, PERCENT: ast.Modulo,
	})
}

// parseLeftAssocBinary is the common shape for every left-associative
// binary precedence level: parse one operand at the next-tighter level,
// then fold in same-level operators while they keep appearing.
func (p *Parser) parseLeftAssocBinary(next func() (*ast.Node, error), ops map[TokenType]ast.TokenKind) (*ast.Node, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		kind, ok := ops[tok.Type]
		if !ok {
			return lhs, nil
		}
		p.advance()
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		bin := p.node(kind, "", tok)
		bin.AddChild(lhs)
		bin.AddChild(rhs)
		lhs = bin
	}
}

// parseUnary handles prefix operators, including the `(type)expr` cast
// form, which is distinguished from a parenthesized sub-expression by
// whether the token right after '(' starts a type.
func (p *Parser) parseUnary() (*ast.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case AMP:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := p.node(ast.AddressOf, "", tok)
		n.AddChild(operand)
		return n, nil
	case STAR:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := p.node(ast.Dereference, "", tok)
		n.AddChild(operand)
		return n, nil
	case TILDE:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := p.node(ast.BitwiseNot, "", tok)
		n.AddChild(operand)
		return n, nil
	case NOT:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := p.node(ast.LogicalNot, "", tok)
		n.AddChild(operand)
		return n, nil
	case MINUS:
		// No dedicated unary-minus TAC op exists: desugar `-x` to `0 - x`.
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		zero := p.node(ast.Constant, "0", tok)
		n := p.node(ast.Sub, "", tok)
		n.AddChild(zero)
		n.AddChild(operand)
		return n, nil
	case LPAREN:
		if p.looksLikeCast() {
			p.advance()
			typeNode, err := p.parseTypeSpec()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			n := p.node(ast.Cast, "", tok)
			n.AddChild(typeNode)
			n.AddChild(operand)
			return n, nil
		}
	}
	return p.parsePostfix()
}

// looksLikeCast decides whether a '(' opens a cast or a parenthesized
// expression: a cast's first token inside is a type keyword, followed
// (after any '*'s) by ')'.
func (p *Parser) looksLikeCast() bool {
	if !isTypeStart(p.peekAt(1).Type) {
		return false
	}
	i := 2
	if p.peekAt(1).Type == KwClass {
		if p.peekAt(2).Type != IDENTIFIER {
			return false
		}
		i = 3
	}
	for p.peekAt(i).Type == STAR {
		i++
	}
	return p.peekAt(i).Type == RPAREN
}

func (p *Parser) parsePostfix() (*ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch tok.Type {
		case LBRACKET:
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			idxNode := p.node(ast.ArrayIndex, "", tok)
			idxNode.AddChild(expr)
			idxNode.AddChild(idx)
			expr = idxNode
		case DOT:
			p.advance()
			member, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			dot := p.node(ast.Dot, member.Lexeme, tok)
			dot.AddChild(expr)
			expr = dot
		case ARROW:
			p.advance()
			member, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			arrow := p.node(ast.Arrow, member.Lexeme, tok)
			arrow.AddChild(expr)
			expr = arrow
		case PLUS_PLUS:
			p.advance()
			inc := p.node(ast.PostIncrement, "", tok)
			inc.AddChild(expr)
			expr = inc
		case MINUS_MINUS:
			p.advance()
			dec := p.node(ast.PostDecrement, "", tok)
			dec.AddChild(expr)
			expr = dec
		default:
			return expr, nil
		}
	}
}

// parsePrimary handles the leaves and the two parenthesized forms: a
// function call (only legal on a bare identifier primary) is recognized
// here rather than as a general postfix operator.
func (p *Parser) parsePrimary() (*ast.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		return p.node(ast.Constant, tok.Lexeme, tok), nil
	case CHAR:
		p.advance()
		return p.node(ast.CharLiteral, tok.Lexeme, tok), nil
	case STRING:
		p.advance()
		return p.node(ast.StringLiteral, tok.Lexeme, tok), nil
	case KwSizeof:
		p.advance()
		if _, err := p.expect(LPAREN); err != nil {
			return nil, err
		}
		var target *ast.Node
		var err error
		if isTypeStart(p.peek().Type) {
			target, err = p.parseTypeSpec()
		} else {
			nameTok, nerr := p.expect(IDENTIFIER)
			if nerr != nil {
				return nil, nerr
			}
			target = p.node(ast.Identifier, nameTok.Lexeme, nameTok)
			err = nerr
		}
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		sz := p.node(ast.Sizeof, "", tok)
		sz.AddChild(target)
		return sz, nil
	case IDENTIFIER:
		p.advance()
		if _, ok := p.match(LPAREN); ok {
			call := p.node(ast.FunctionCall, tok.Lexeme, tok)
			for !p.check(RPAREN) {
				if call.NumChildren() > 0 {
					if _, err := p.expect(COMMA); err != nil {
						return nil, err
					}
				}
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				call.AddChild(arg)
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			return call, nil
		}
		return p.node(ast.Identifier, tok.Lexeme, tok), nil
	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("%s:%d:%d: unexpected token %s %q in expression", p.file, tok.Line, tok.Col, tok.Type, tok.Lexeme)
	}
}
