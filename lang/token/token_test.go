package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		if tok.String() == "" {
			t.Errorf("missing string representation of token %d", tok)
		}
	}
}

func TestLookupKw(t *testing.T) {
	for lit, tok := range keywords {
		require.Equal(t, tok, LookupKw(lit))
	}
	require.Equal(t, IDENT, LookupKw("notakeyword"))
}

func TestLookupPunct(t *testing.T) {
	for lit, tok := range puncts {
		require.Equal(t, tok, LookupPunct(lit))
	}
}
