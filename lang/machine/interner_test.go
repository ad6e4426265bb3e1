package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternerInternIsIdempotent(t *testing.T) {
	in := NewInterner()
	a := in.Intern("foo")
	b := in.Intern("foo")
	require.Equal(t, a, b)
}

func TestInternerAssignsDistinctSymbols(t *testing.T) {
	in := NewInterner()
	a := in.Intern("foo")
	b := in.Intern("bar")
	require.NotEqual(t, a, b)
}

func TestInternerNameRoundtrips(t *testing.T) {
	in := NewInterner()
	sym := in.Intern("hello")
	require.Equal(t, "hello", in.Name(sym))
}

func TestInternerSymbolsStartAtOne(t *testing.T) {
	in := NewInterner()
	sym := in.Intern("first")
	require.NotEqual(t, invalidSymbol, sym)
}
