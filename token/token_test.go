package token

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		typ    Type
		lexeme string
		want   Token
	}{
		{name: "assign token", typ: ASSIGN, lexeme: "=", want: Token{Type: ASSIGN, Lexeme: "="}},
		{name: "identifier token", typ: IDENTIFIER, lexeme: "MYVAR", want: Token{Type: IDENTIFIER, Lexeme: "MYVAR"}},
		{name: "mult token", typ: STAR, lexeme: "*", want: Token{Type: STAR, Lexeme: "*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.typ, tt.lexeme, 0, 0)
			if got != tt.want {
				t.Errorf("New() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeywordsAreUppercase(t *testing.T) {
	for word := range Keywords {
		for _, r := range word {
			if r >= 'a' && r <= 'z' {
				t.Errorf("keyword %q contains a lowercase rune; keywords must be pre-uppercased", word)
			}
		}
	}
}

func TestIsStatementKeyword(t *testing.T) {
	if !IsStatementKeyword(PRINT) {
		t.Errorf("PRINT should be a statement keyword")
	}
	if IsStatementKeyword(AND) {
		t.Errorf("AND should not be a statement keyword")
	}
}
