package scanner

import (
	"testing"

	"canidae/pkg/token"
)

func TestNextTokenBasics(t *testing.T) {
	input := `var a = 1 + 2; print a;`

	expected := []token.Type{
		token.VAR, token.IDENT, token.ASSIGN, token.NUMBER, token.PLUS,
		token.NUMBER, token.SEMICOLON, token.PRINT, token.IDENT, token.SEMICOLON,
		token.EOF,
	}

	s := New(input)
	for i, want := range expected {
		got := s.Next()
		if got.Type != want {
			t.Fatalf("token %d: expected %s, got %s (%q)", i, want, got.Type, got.Lexeme)
		}
	}
}

func TestStringLiteralSpansLines(t *testing.T) {
	input := "\"line one\nline two\" ;"
	s := New(input)
	str := s.Next()
	if str.Type != token.STRING {
		t.Fatalf("expected STRING, got %s", str.Type)
	}
	if str.Literal != "line one\nline two" {
		t.Fatalf("unexpected literal: %q", str.Literal)
	}
	if str.Line != 1 {
		t.Fatalf("expected string token to report its opening line, got %d", str.Line)
	}
}

func TestUnterminatedStringReportsOpeningLine(t *testing.T) {
	input := "\n\"never closed"
	s := New(input)
	tok := s.Next()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s", tok.Type)
	}
	if tok.Lexeme != "Unterminated string." {
		t.Fatalf("unexpected message: %q", tok.Lexeme)
	}
	if tok.Line != 2 {
		t.Fatalf("expected error to be reported at line 2, got %d", tok.Line)
	}
}

func TestCompoundAssignmentOperators(t *testing.T) {
	input := "+= -= *= /= %= ^="
	expected := []token.Type{
		token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ, token.PCT_EQ, token.CARET_EQ, token.EOF,
	}
	s := New(input)
	for i, want := range expected {
		got := s.Next()
		if got.Type != want {
			t.Fatalf("token %d: expected %s, got %s", i, want, got.Type)
		}
	}
}

func TestLineCommentsAreSkipped(t *testing.T) {
	input := "1 // a comment\n2"
	s := New(input)
	first := s.Next()
	if first.Lexeme != "1" {
		t.Fatalf("expected 1, got %q", first.Lexeme)
	}
	second := s.Next()
	if second.Lexeme != "2" || second.Line != 2 {
		t.Fatalf("expected 2 on line 2, got %q on line %d", second.Lexeme, second.Line)
	}
}
