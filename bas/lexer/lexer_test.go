package lexer

import "testing"

func collect(src string) []Token {
	l := New([]byte(src))
	var out []Token
	for {
		tok := l.Next()
		out = append(out, tok)
		if tok.Type == TokenEOF {
			return out
		}
	}
}

func TestLexBehaviorHeader(t *testing.T) {
	toks := collect("Bank :: [any, admin] {")
	want := []Type{
		TokenIdent, TokenScope, TokenLBracket, TokenIdent, TokenComma,
		TokenIdent, TokenRBracket, TokenLBrace, TokenEOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("unexpected token count: got=%d want=%d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d: got %s want %s", i, toks[i].Type, w)
		}
	}
	if toks[0].Literal != "Bank" {
		t.Fatalf("unexpected literal: %s", toks[0].Literal)
	}
}

func TestLexKeywordsAndOperators(t *testing.T) {
	toks := collect("public mutating func init(y: Address) -> Int")
	want := []Type{
		TokenKwPublic, TokenKwMutating, TokenKwFunc, TokenIdent,
		TokenLParen, TokenIdent, TokenColon, TokenIdent, TokenRParen,
		TokenArrow, TokenIdent, TokenEOF,
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d: got %s want %s", i, toks[i].Type, w)
		}
	}
	if toks[3].Literal != "init" {
		t.Fatalf("expected 'init' to lex as a plain identifier, got %s", toks[3].Literal)
	}
}

func TestLexComparisonOperators(t *testing.T) {
	toks := collect("a == b != c <= d >= e < f > g = h")
	want := []Type{
		TokenIdent, TokenEq, TokenIdent, TokenNe, TokenIdent, TokenLE,
		TokenIdent, TokenGE, TokenIdent, TokenLT, TokenIdent, TokenGT,
		TokenIdent, TokenAssign, TokenIdent, TokenEOF,
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d: got %s want %s", i, toks[i].Type, w)
		}
	}
}

func TestLexNumbersAndStrings(t *testing.T) {
	toks := collect(`42 0x1fA "hello"`)
	if toks[0].Type != TokenNumber || toks[0].Literal != "42" {
		t.Fatalf("unexpected first token: %v", toks[0])
	}
	if toks[1].Type != TokenNumber || toks[1].Literal != "0x1fA" {
		t.Fatalf("unexpected hex token: %v", toks[1])
	}
	if toks[2].Type != TokenString || toks[2].Literal != `"hello"` {
		t.Fatalf("unexpected string token: %v", toks[2])
	}
}

func TestLexSkipsComments(t *testing.T) {
	toks := collect("a // line comment\n/* block\ncomment */ b")
	if len(toks) != 3 {
		t.Fatalf("unexpected token count: %d", len(toks))
	}
	if toks[0].Literal != "a" || toks[1].Literal != "b" {
		t.Fatalf("unexpected tokens: %v %v", toks[0], toks[1])
	}
}

func TestLexPositions(t *testing.T) {
	toks := collect("a\n  b")
	if toks[0].Start.Line != 1 || toks[0].Start.Column != 1 {
		t.Fatalf("unexpected position for a: %+v", toks[0].Start)
	}
	if toks[1].Start.Line != 2 || toks[1].Start.Column != 3 {
		t.Fatalf("unexpected position for b: %+v", toks[1].Start)
	}
}
