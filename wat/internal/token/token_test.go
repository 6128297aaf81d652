package token

import (
	"errors"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			"empty",
			"",
			nil,
		},
		{
			"parens",
			"()",
			[]Token{{"(", LParen, 1, 1}, {")", RParen, 1, 2}},
		},
		{
			"module",
			"(module)",
			[]Token{{"(", LParen, 1, 1}, {"module", Keyword, 1, 2}, {")", RParen, 1, 8}},
		},
		{
			"newlines",
			"(\n  module\n)",
			[]Token{{"(", LParen, 1, 1}, {"module", Keyword, 2, 3}, {")", RParen, 3, 1}},
		},
		{
			"identifier",
			"$foo.bar",
			[]Token{{"$foo.bar", ID, 1, 1}},
		},
		{
			"memarg",
			"offset=8 align=4",
			[]Token{{"offset=8", Keyword, 1, 1}, {"align=4", Keyword, 1, 10}},
		},
		{
			"numbers",
			"42 -7 0xFF 1_000 1.5e-3",
			[]Token{
				{"42", Number, 1, 1},
				{"-7", Number, 1, 4},
				{"0xFF", Number, 1, 7},
				{"1_000", Number, 1, 12},
				{"1.5e-3", Number, 1, 18},
			},
		},
		{
			"special floats",
			"inf -inf nan nan:0x200000 +nan",
			[]Token{
				{"inf", Number, 1, 1},
				{"-inf", Number, 1, 5},
				{"nan", Number, 1, 10},
				{"nan:0x200000", Number, 1, 14},
				{"+nan", Number, 1, 27},
			},
		},
		{
			"comments",
			";; line\n(; block (; nested ;) ;)x",
			[]Token{{"x", Keyword, 2, 25}},
		},
		{
			"string escapes",
			`"a\n\t\"\\\41\u{e9}"`,
			[]Token{{"a\n\t\"\\A\u00e9", String, 1, 1}},
		},
		{
			"raw bytes",
			`"\00\ff"`,
			[]Token{{"\x00\xff", String, 1, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		col   int
	}{
		{"unterminated string", "(data \"abc", 1, 7},
		{"unterminated comment", "\n  (; open", 2, 3},
		{"bad escape", `"\q"`, 1, 2},
		{"bad unicode escape", `"\u{zz}"`, 1, 2},
		{"surrogate escape", `"\u{d800}"`, 1, 2},
		{"control character", "\"a\x01\"", 1, 3},
		{"stray semicolon", "(module ;)", 1, 9},
		{"unexpected character", "(module {)", 1, 9},
		{"string after keyword", `module"x"`, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var lexErr *Error
			if !errors.As(err, &lexErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if lexErr.Line != tt.line || lexErr.Col != tt.col {
				t.Errorf("position = %d:%d, want %d:%d (%v)", lexErr.Line, lexErr.Col, tt.line, tt.col, err)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	if ID.String() != "identifier" || Type(99).String() != "unknown" {
		t.Error("unexpected type names")
	}
}
