package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordsRoundTrip(t *testing.T) {
	for _, kw := range Keywords() {
		assert.NotEmpty(t, kw)
		tok := LookupIdent(kw)
		assert.True(t, IsKeyword(tok), "keyword %s", kw)
		assert.Equal(t, kw, tok.String())
	}
}

func TestLookupIdent(t *testing.T) {
	tests := []struct {
		in   string
		want TokenType
	}{
		{"select", SELECT},
		{"SeLeCt", SELECT},
		{"with", WITH},
		{"orders", IDENT},
		{"date", IDENT},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupIdent(tt.in))
		})
	}
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "::", DCOLON.String())
	assert.Equal(t, "TOKEN(9999)", TokenType(9999).String())
	assert.True(t, IsOperator(NE))
	assert.False(t, IsOperator(IDENT))
}
