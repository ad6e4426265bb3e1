package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableGetMissingReturnsFalse(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Get(Symbol(1))
	require.False(t, ok)
}

func TestTableSetThenGetRoundtrips(t *testing.T) {
	tbl := NewTable()
	isNew := tbl.Set(Symbol(3), Number(42))
	require.True(t, isNew)

	v, ok := tbl.Get(Symbol(3))
	require.True(t, ok)
	require.Equal(t, 42.0, v.Num)
}

func TestTableSetOverwritesExisting(t *testing.T) {
	tbl := NewTable()
	tbl.Set(Symbol(1), Number(1))
	isNew := tbl.Set(Symbol(1), Number(2))
	require.False(t, isNew)

	v, _ := tbl.Get(Symbol(1))
	require.Equal(t, 2.0, v.Num)
	require.Equal(t, 1, tbl.Count())
}

func TestTableGrowsBeforeExceedingLoadFactor(t *testing.T) {
	tbl := NewTable()
	for i := 1; i <= initialTableCap; i++ {
		tbl.Set(Symbol(i), Number(float64(i)))
	}
	require.Greater(t, len(tbl.keys), initialTableCap)
	require.LessOrEqual(t, float64(tbl.count), float64(len(tbl.keys))*0.75)

	for i := 1; i <= initialTableCap; i++ {
		v, ok := tbl.Get(Symbol(i))
		require.True(t, ok)
		require.Equal(t, float64(i), v.Num)
	}
}

func TestTableCapacityIsAlwaysPowerOfTwo(t *testing.T) {
	tbl := NewTable()
	for i := 1; i <= 100; i++ {
		tbl.Set(Symbol(i), Bool(true))
		require.Equal(t, 0, len(tbl.keys)&(len(tbl.keys)-1))
	}
}

func TestTableSetPanicsOnInvalidSymbol(t *testing.T) {
	tbl := NewTable()
	require.Panics(t, func() { tbl.Set(invalidSymbol, Nil()) })
}

func TestTableEachVisitsEveryEntry(t *testing.T) {
	tbl := NewTable()
	want := map[Symbol]float64{1: 10, 2: 20, 3: 30}
	for sym, n := range want {
		tbl.Set(sym, Number(n))
	}

	got := map[Symbol]float64{}
	tbl.Each(func(sym Symbol, v Value) { got[sym] = v.Num })
	require.Equal(t, want, got)
}

func TestTableNilReceiverGetIsSafe(t *testing.T) {
	var tbl *Table
	_, ok := tbl.Get(Symbol(1))
	require.False(t, ok)
}
