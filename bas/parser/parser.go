package parser

import (
	"fmt"
	"strconv"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/lexer"
)

type Parser struct {
	filename string
	lex      *lexer.Lexer
	cur      lexer.Token
	diags    diag.Diagnostics
}

// ParseFile parses a single Basalt source file into a module AST. The
// returned diagnostics carry every parse error encountered; the AST is
// best-effort when diagnostics are present.
func ParseFile(filename string, src []byte) (*ast.TopLevelModule, diag.Diagnostics) {
	p := &Parser{
		filename: filename,
		lex:      lexer.New(src),
	}
	p.next()
	mod := p.parseModule()
	return mod, p.diags
}

func (p *Parser) parseModule() *ast.TopLevelModule {
	mod := &ast.TopLevelModule{}

	if p.cur.Type != lexer.TokenKwContract {
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: "expected 'contract' declaration",
			Span:    p.span(p.cur),
		})
		return mod
	}
	mod.Contract = p.parseContractDecl()

	for p.cur.Type == lexer.TokenKwEvent {
		ev := p.parseEventDecl()
		if ev != nil {
			mod.Events = append(mod.Events, *ev)
		}
	}

	for p.cur.Type == lexer.TokenIdent {
		b := p.parseBehaviorDecl()
		if b != nil {
			mod.Behaviors = append(mod.Behaviors, *b)
		}
	}

	if p.cur.Type != lexer.TokenEOF {
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: fmt.Sprintf("unexpected token '%s' at top level", p.cur.Literal),
			Span:    p.span(p.cur),
		})
	}
	return mod
}

func (p *Parser) parseContractDecl() *ast.ContractDeclaration {
	if !p.expect(lexer.TokenKwContract, "expected 'contract'") {
		return nil
	}
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected contract name") {
		return nil
	}
	decl := &ast.ContractDeclaration{Identifier: p.identifier(nameTok)}
	if !p.expect(lexer.TokenLBrace, "expected '{' after contract name") {
		return decl
	}
	for p.cur.Type == lexer.TokenKwVar {
		v := p.parseVarDecl()
		if v != nil {
			decl.Variables = append(decl.Variables, *v)
		}
	}
	p.expect(lexer.TokenRBrace, "expected '}' to close contract body")
	return decl
}

func (p *Parser) parseVarDecl() *ast.VariableDeclaration {
	if !p.expect(lexer.TokenKwVar, "expected 'var'") {
		return nil
	}
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected field name after 'var'") {
		return nil
	}
	if !p.expect(lexer.TokenColon, "expected ':' after field name") {
		return nil
	}
	typ, ok := p.parseType()
	if !ok {
		return nil
	}
	return &ast.VariableDeclaration{
		Identifier: p.identifier(nameTok),
		Type:       typ,
	}
}

func (p *Parser) parseEventDecl() *ast.EventDeclaration {
	if !p.expect(lexer.TokenKwEvent, "expected 'event'") {
		return nil
	}
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected event name") {
		return nil
	}
	decl := &ast.EventDeclaration{Identifier: p.identifier(nameTok)}
	if !p.expect(lexer.TokenLParen, "expected '(' after event name") {
		return decl
	}
	for p.cur.Type != lexer.TokenRParen && p.cur.Type != lexer.TokenEOF {
		paramTok := p.cur
		if !p.expect(lexer.TokenIdent, "expected event parameter name") {
			break
		}
		if !p.expect(lexer.TokenColon, "expected ':' after event parameter name") {
			break
		}
		typ, ok := p.parseType()
		if !ok {
			break
		}
		decl.Parameters = append(decl.Parameters, ast.VariableDeclaration{
			Identifier: p.identifier(paramTok),
			Type:       typ,
		})
		if p.cur.Type == lexer.TokenComma {
			p.next()
			continue
		}
		break
	}
	p.expect(lexer.TokenRParen, "expected ')' to close event parameter list")
	return decl
}

func (p *Parser) parseBehaviorDecl() *ast.ContractBehaviorDeclaration {
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected contract name before '::'") {
		return nil
	}
	if !p.expect(lexer.TokenScope, "expected '::' after contract name") {
		return nil
	}
	decl := &ast.ContractBehaviorDeclaration{ContractIdentifier: p.identifier(nameTok)}

	if !p.expect(lexer.TokenLBracket, "expected '[' to open caller capability list") {
		return decl
	}
	for {
		capTok := p.cur
		if !p.expect(lexer.TokenIdent, "expected caller capability name") {
			return decl
		}
		decl.CallerCapabilities = append(decl.CallerCapabilities, ast.CallerCapability{
			Identifier: p.identifier(capTok),
		})
		if p.cur.Type == lexer.TokenComma {
			p.next()
			continue
		}
		break
	}
	if !p.expect(lexer.TokenRBracket, "expected ']' to close caller capability list") {
		return decl
	}

	if !p.expect(lexer.TokenLBrace, "expected '{' after caller capability list") {
		return decl
	}
	for p.cur.Type != lexer.TokenRBrace && p.cur.Type != lexer.TokenEOF {
		fn := p.parseFunctionDecl()
		if fn == nil {
			p.syncUntil(lexer.TokenKwFunc, lexer.TokenKwPublic, lexer.TokenKwMutating, lexer.TokenRBrace, lexer.TokenEOF)
			continue
		}
		decl.Functions = append(decl.Functions, *fn)
	}
	p.expect(lexer.TokenRBrace, "expected '}' to close behavior block")
	return decl
}

func (p *Parser) parseFunctionDecl() *ast.FunctionDeclaration {
	pos := p.location(p.cur)
	var mods []string
	for p.cur.Type == lexer.TokenKwPublic || p.cur.Type == lexer.TokenKwMutating {
		mods = append(mods, p.cur.Literal)
		p.next()
	}
	if !p.expect(lexer.TokenKwFunc, "expected 'func'") {
		return nil
	}
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected function name") {
		return nil
	}
	params, ok := p.parseParameterList()
	if !ok {
		return nil
	}
	var result *ast.Type
	if p.cur.Type == lexer.TokenArrow {
		p.next()
		typ, tok := p.parseType()
		if !tok {
			return nil
		}
		result = &typ
	}
	body, ok := p.parseStatementBlock("function body")
	if !ok {
		return nil
	}
	return &ast.FunctionDeclaration{
		Modifiers:  mods,
		Identifier: p.identifier(nameTok),
		Parameters: params,
		ResultType: result,
		Body:       body,
		Pos:        pos,
	}
}

func (p *Parser) parseParameterList() ([]ast.Parameter, bool) {
	if !p.expect(lexer.TokenLParen, "expected '(' to open parameter list") {
		return nil, false
	}
	params := []ast.Parameter{}
	if p.cur.Type == lexer.TokenRParen {
		p.next()
		return params, true
	}
	for {
		inout := false
		if p.cur.Type == lexer.TokenKwInout {
			inout = true
			p.next()
		}
		nameTok := p.cur
		if !p.expect(lexer.TokenIdent, "expected parameter name") {
			return nil, false
		}
		if !p.expect(lexer.TokenColon, "expected ':' after parameter name") {
			return nil, false
		}
		typ, ok := p.parseType()
		if !ok {
			return nil, false
		}
		if inout {
			inner := typ
			typ = ast.Type{Kind: ast.TypeInout, Element: &inner}
		}
		params = append(params, ast.Parameter{
			Identifier: p.identifier(nameTok),
			Type:       typ,
		})
		if p.cur.Type == lexer.TokenComma {
			p.next()
			continue
		}
		break
	}
	if !p.expect(lexer.TokenRParen, "expected ')' to close parameter list") {
		return nil, false
	}
	return params, true
}

// parseType parses a raw type:
//
//	Address | Int | Bool | String | UserType
//	inout T | [T] | [K: V] | T[n]
func (p *Parser) parseType() (ast.Type, bool) {
	var typ ast.Type
	switch p.cur.Type {
	case lexer.TokenKwInout:
		p.next()
		inner, ok := p.parseType()
		if !ok {
			return ast.Type{}, false
		}
		typ = ast.Type{Kind: ast.TypeInout, Element: &inner}
		return typ, true
	case lexer.TokenLBracket:
		p.next()
		first, ok := p.parseType()
		if !ok {
			return ast.Type{}, false
		}
		if p.cur.Type == lexer.TokenColon {
			p.next()
			value, vok := p.parseType()
			if !vok {
				return ast.Type{}, false
			}
			if !p.expect(lexer.TokenRBracket, "expected ']' to close dictionary type") {
				return ast.Type{}, false
			}
			return ast.Type{Kind: ast.TypeDictionary, Element: &first, Value: &value}, true
		}
		if !p.expect(lexer.TokenRBracket, "expected ']' to close array type") {
			return ast.Type{}, false
		}
		typ = ast.Type{Kind: ast.TypeArray, Element: &first}
	case lexer.TokenIdent:
		name := p.cur.Literal
		p.next()
		switch name {
		case ast.BasicAddress, ast.BasicInt, ast.BasicBool, ast.BasicString:
			typ = ast.Type{Kind: ast.TypeBasic, Basic: name}
		default:
			typ = ast.Type{Kind: ast.TypeUserDefined, Name: name}
		}
	default:
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: fmt.Sprintf("expected type, found '%s'", p.cur.Literal),
			Span:    p.span(p.cur),
		})
		return ast.Type{}, false
	}

	// Fixed-size array suffix: T[n].
	for p.cur.Type == lexer.TokenLBracket {
		p.next()
		sizeTok := p.cur
		if !p.expect(lexer.TokenNumber, "expected fixed array size") {
			return ast.Type{}, false
		}
		size, err := strconv.Atoi(sizeTok.Literal)
		if err != nil {
			p.addDiag(diag.Diagnostic{
				Code:    diag.CodeParseUnexpected,
				Message: fmt.Sprintf("invalid fixed array size '%s'", sizeTok.Literal),
				Span:    p.span(sizeTok),
			})
			return ast.Type{}, false
		}
		if !p.expect(lexer.TokenRBracket, "expected ']' after fixed array size") {
			return ast.Type{}, false
		}
		inner := typ
		typ = ast.Type{Kind: ast.TypeFixedArray, Element: &inner, Size: size}
	}
	return typ, true
}

func (p *Parser) parseStatementBlock(what string) ([]ast.Statement, bool) {
	if p.cur.Type != lexer.TokenLBrace {
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: "expected '{' before " + what,
			Span:    p.span(p.cur),
		})
		return nil, false
	}
	p.next()

	stmts := []ast.Statement{}
	for p.cur.Type != lexer.TokenRBrace && p.cur.Type != lexer.TokenEOF {
		stmt, ok := p.parseStatement()
		if ok {
			stmts = append(stmts, stmt)
			continue
		}
		p.syncStatement()
	}
	if p.cur.Type == lexer.TokenEOF {
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: "unexpected EOF while parsing " + what,
			Span:    p.span(p.cur),
		})
		return nil, false
	}
	p.next()
	return stmts, true
}

func (p *Parser) parseStatement() (ast.Statement, bool) {
	switch p.cur.Type {
	case lexer.TokenKwReturn:
		p.next()
		if !p.canStartExpression() {
			return ast.Statement{Kind: ast.StmtReturn}, true
		}
		expr, ok := p.parseExpression(nil)
		if !ok {
			return ast.Statement{}, false
		}
		return ast.Statement{Kind: ast.StmtReturn, Expr: expr}, true
	case lexer.TokenKwIf:
		return p.parseIfStatement()
	default:
		expr, ok := p.parseExpression(nil)
		if !ok {
			return ast.Statement{}, false
		}
		return ast.Statement{Kind: ast.StmtExpression, Expr: expr}, true
	}
}

func (p *Parser) parseIfStatement() (ast.Statement, bool) {
	if !p.expect(lexer.TokenKwIf, "expected 'if'") {
		return ast.Statement{}, false
	}
	cond, ok := p.parseExpression(map[lexer.Type]bool{lexer.TokenLBrace: true})
	if !ok {
		return ast.Statement{}, false
	}
	thenBlock, ok := p.parseStatementBlock("if body")
	if !ok {
		return ast.Statement{}, false
	}
	stmt := ast.Statement{
		Kind: ast.StmtIf,
		Cond: cond,
		Then: thenBlock,
	}
	if p.cur.Type == lexer.TokenKwElse {
		p.next()
		if p.cur.Type == lexer.TokenKwIf {
			nested, ok := p.parseIfStatement()
			if !ok {
				return ast.Statement{}, false
			}
			stmt.Else = []ast.Statement{nested}
			return stmt, true
		}
		elseBlock, ok := p.parseStatementBlock("else body")
		if !ok {
			return ast.Statement{}, false
		}
		stmt.Else = elseBlock
	}
	return stmt, true
}

func (p *Parser) canStartExpression() bool {
	switch p.cur.Type {
	case lexer.TokenIdent, lexer.TokenNumber, lexer.TokenString,
		lexer.TokenKwTrue, lexer.TokenKwFalse, lexer.TokenKwSelf,
		lexer.TokenKwLet, lexer.TokenKwVar, lexer.TokenLParen:
		return true
	default:
		return false
	}
}

const (
	exprPrecLowest = 1
	exprPrecAssign = 2
	exprPrecCmp    = 3
	exprPrecAdd    = 4
	exprPrecMul    = 5
)

func (p *Parser) parseExpression(stop map[lexer.Type]bool) (*ast.Expression, bool) {
	return p.parseExprPrec(exprPrecLowest, stop)
}

func (p *Parser) parseExprPrec(minPrec int, stop map[lexer.Type]bool) (*ast.Expression, bool) {
	left, ok := p.parsePrefixExpr(stop)
	if !ok {
		return nil, false
	}

	for {
		if p.cur.Type == lexer.TokenEOF || stop[p.cur.Type] {
			break
		}

		if p.cur.Type == lexer.TokenDot {
			left, ok = p.parseDotExpr(left)
			if !ok {
				return nil, false
			}
			continue
		}

		prec, rightAssoc := infixPrecedence(p.cur.Type)
		if prec < minPrec || prec == 0 {
			break
		}

		opTok := p.cur
		p.next()
		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		right, ok := p.parseExprPrec(nextMin, stop)
		if !ok {
			return nil, false
		}
		left = &ast.Expression{
			Kind:  ast.ExprBinary,
			Op:    opTok.Literal,
			Left:  left,
			Right: right,
			Pos:   p.location(opTok),
		}
	}
	return left, true
}

func (p *Parser) parsePrefixExpr(stop map[lexer.Type]bool) (*ast.Expression, bool) {
	if p.cur.Type == lexer.TokenEOF || stop[p.cur.Type] {
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: "expected expression",
			Span:    p.span(p.cur),
		})
		return nil, false
	}

	switch p.cur.Type {
	case lexer.TokenIdent:
		tok := p.cur
		p.next()
		if p.cur.Type == lexer.TokenLParen {
			return p.parseCallExpr(tok)
		}
		return &ast.Expression{
			Kind:  ast.ExprIdentifier,
			Ident: p.identifier(tok),
			Pos:   p.location(tok),
		}, true
	case lexer.TokenNumber:
		tok := p.cur
		p.next()
		return &ast.Expression{
			Kind:    ast.ExprLiteral,
			Literal: ast.LiteralNumber,
			Value:   tok.Literal,
			Pos:     p.location(tok),
		}, true
	case lexer.TokenString:
		tok := p.cur
		p.next()
		return &ast.Expression{
			Kind:    ast.ExprLiteral,
			Literal: ast.LiteralString,
			Value:   tok.Literal,
			Pos:     p.location(tok),
		}, true
	case lexer.TokenKwTrue, lexer.TokenKwFalse:
		tok := p.cur
		p.next()
		return &ast.Expression{
			Kind:    ast.ExprLiteral,
			Literal: ast.LiteralBool,
			Value:   tok.Literal,
			Pos:     p.location(tok),
		}, true
	case lexer.TokenKwSelf:
		tok := p.cur
		p.next()
		return &ast.Expression{Kind: ast.ExprSelf, Pos: p.location(tok)}, true
	case lexer.TokenKwLet, lexer.TokenKwVar:
		return p.parseVarDeclExpr()
	case lexer.TokenLParen:
		tok := p.cur
		p.next()
		inner, ok := p.parseExpression(map[lexer.Type]bool{lexer.TokenRParen: true})
		if !ok {
			return nil, false
		}
		if !p.expect(lexer.TokenRParen, "expected ')' to close expression") {
			return nil, false
		}
		return &ast.Expression{Kind: ast.ExprBracketed, Inner: inner, Pos: p.location(tok)}, true
	default:
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: fmt.Sprintf("unexpected token '%s' in expression", p.cur.Literal),
			Span:    p.span(p.cur),
		})
		return nil, false
	}
}

func (p *Parser) parseVarDeclExpr() (*ast.Expression, bool) {
	constant := p.cur.Type == lexer.TokenKwLet
	declTok := p.cur
	p.next()
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected variable name") {
		return nil, false
	}
	var typ ast.Type
	if p.cur.Type == lexer.TokenColon {
		p.next()
		var ok bool
		typ, ok = p.parseType()
		if !ok {
			return nil, false
		}
	}
	return &ast.Expression{
		Kind: ast.ExprVarDecl,
		VarDecl: &ast.VariableDeclaration{
			Identifier: p.identifier(nameTok),
			Type:       typ,
			IsConstant: constant,
		},
		Pos: p.location(declTok),
	}, true
}

func (p *Parser) parseCallExpr(nameTok lexer.Token) (*ast.Expression, bool) {
	if !p.expect(lexer.TokenLParen, "expected '(' to open argument list") {
		return nil, false
	}
	args := []*ast.Expression{}
	if p.cur.Type != lexer.TokenRParen {
		for {
			arg, ok := p.parseExpression(map[lexer.Type]bool{
				lexer.TokenComma:  true,
				lexer.TokenRParen: true,
			})
			if !ok {
				return nil, false
			}
			args = append(args, arg)
			if p.cur.Type == lexer.TokenComma {
				p.next()
				continue
			}
			break
		}
	}
	if !p.expect(lexer.TokenRParen, "expected ')' after argument list") {
		return nil, false
	}
	return &ast.Expression{
		Kind:   ast.ExprCall,
		Callee: p.identifier(nameTok),
		Args:   args,
		Pos:    p.location(nameTok),
	}, true
}

func (p *Parser) parseDotExpr(left *ast.Expression) (*ast.Expression, bool) {
	dotTok := p.cur
	if !p.expect(lexer.TokenDot, "expected '.'") {
		return nil, false
	}
	memberTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected member name after '.'") {
		return nil, false
	}
	var right *ast.Expression
	if p.cur.Type == lexer.TokenLParen {
		call, ok := p.parseCallExpr(memberTok)
		if !ok {
			return nil, false
		}
		right = call
	} else {
		right = &ast.Expression{
			Kind:  ast.ExprIdentifier,
			Ident: p.identifier(memberTok),
			Pos:   p.location(memberTok),
		}
	}
	return &ast.Expression{
		Kind:  ast.ExprBinary,
		Op:    ".",
		Left:  left,
		Right: right,
		Pos:   p.location(dotTok),
	}, true
}

func infixPrecedence(tt lexer.Type) (int, bool) {
	switch tt {
	case lexer.TokenAssign:
		return exprPrecAssign, true
	case lexer.TokenEq, lexer.TokenNe, lexer.TokenLT, lexer.TokenLE, lexer.TokenGT, lexer.TokenGE:
		return exprPrecCmp, false
	case lexer.TokenPlus, lexer.TokenMinus:
		return exprPrecAdd, false
	case lexer.TokenStar, lexer.TokenSlash, lexer.TokenPercent:
		return exprPrecMul, false
	default:
		return 0, false
	}
}

func (p *Parser) syncStatement() {
	for p.cur.Type != lexer.TokenEOF && p.cur.Type != lexer.TokenRBrace {
		if p.cur.Type == lexer.TokenLBrace {
			p.consumeBlock()
			return
		}
		if p.cur.Type == lexer.TokenKwReturn || p.cur.Type == lexer.TokenKwIf {
			return
		}
		p.next()
	}
}

func (p *Parser) consumeBlock() {
	if p.cur.Type != lexer.TokenLBrace {
		return
	}
	p.next()
	depth := 1
	for p.cur.Type != lexer.TokenEOF {
		switch p.cur.Type {
		case lexer.TokenLBrace:
			depth++
		case lexer.TokenRBrace:
			depth--
			if depth == 0 {
				p.next()
				return
			}
		}
		p.next()
	}
}

func (p *Parser) syncUntil(types ...lexer.Type) {
	for p.cur.Type != lexer.TokenEOF {
		for _, tt := range types {
			if p.cur.Type == tt {
				return
			}
		}
		p.next()
	}
}

func (p *Parser) expect(tt lexer.Type, message string) bool {
	if p.cur.Type != tt {
		p.addDiag(diag.Diagnostic{
			Code:    diag.CodeParseUnexpected,
			Message: fmt.Sprintf("%s, found '%s'", message, p.cur.Literal),
			Span:    p.span(p.cur),
		})
		return false
	}
	p.next()
	return true
}

func (p *Parser) next() { p.cur = p.lex.Next() }

func (p *Parser) addDiag(d diag.Diagnostic) {
	p.diags = append(p.diags, d)
}

func (p *Parser) identifier(tok lexer.Token) ast.Identifier {
	return ast.Identifier{
		Name: tok.Literal,
		Pos:  p.location(tok),
	}
}

func (p *Parser) location(tok lexer.Token) ast.SourceLocation {
	return ast.SourceLocation{
		Line:   tok.Start.Line,
		Column: tok.Start.Column,
		Offset: tok.Start.Offset,
	}
}

func (p *Parser) span(tok lexer.Token) diag.Span {
	return diag.Span{
		File: p.filename,
		Start: diag.Position{
			Line:   tok.Start.Line,
			Column: tok.Start.Column,
		},
		End: diag.Position{
			Line:   tok.End.Line,
			Column: tok.End.Column,
		},
	}
}
