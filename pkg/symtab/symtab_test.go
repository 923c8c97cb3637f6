package symtab

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
)

func TestDeclare(t *testing.T) {
	st := New()

	off, err := st.Declare("x")
	be.Err(t, err, nil)
	be.Equal(t, 0, off)

	off, err = st.Declare("y")
	be.Err(t, err, nil)
	be.Equal(t, 4, off)
	be.Equal(t, 8, st.NextOffset())

	got, ok := st.Lookup("y")
	be.True(t, ok)
	be.Equal(t, 4, got)
	be.True(t, st.IsDeclared("x"))
	be.True(t, !st.IsArray("x"))
}

func TestDeclareDuplicate(t *testing.T) {
	st := New()
	_, err := st.Declare("x")
	be.Err(t, err, nil)

	off, err := st.Declare("x")
	be.Equal(t, -1, off)
	be.True(t, errors.Is(err, ErrRedeclared))
	be.Equal(t, "variable 'x' already declared", err.Error())

	_, err = st.DeclareArray("x", 3)
	be.True(t, errors.Is(err, ErrRedeclared))
	be.Equal(t, 4, st.NextOffset())
}

func TestDeclareArray(t *testing.T) {
	st := New()
	_, err := st.Declare("before")
	be.Err(t, err, nil)

	base, err := st.DeclareArray("arr", 5)
	be.Err(t, err, nil)
	be.Equal(t, 4, base)

	after, err := st.Declare("after")
	be.Err(t, err, nil)
	be.Equal(t, base+5*WordSize, after)

	size, ok := st.ArraySize("arr")
	be.True(t, ok)
	be.Equal(t, 5, size)
	be.True(t, st.IsArray("arr"))

	_, ok = st.ArraySize("before")
	be.True(t, !ok)
	_, ok = st.ArraySize("missing")
	be.True(t, !ok)
}

func TestDeclareArrayInvalidSize(t *testing.T) {
	st := New()
	for _, size := range []int{0, -3} {
		off, err := st.DeclareArray("a", size)
		be.Equal(t, -1, off)
		be.True(t, errors.Is(err, ErrInvalidSize))
	}
	be.True(t, !st.IsDeclared("a"))
	be.Equal(t, 0, st.NextOffset())
}

func TestLookupMissing(t *testing.T) {
	st := New()
	off, ok := st.Lookup("nope")
	be.True(t, !ok)
	be.Equal(t, -1, off)
	be.True(t, !st.IsDeclared("nope"))
}

func TestOffsetsMonotonicUnderCollisions(t *testing.T) {
	st := New()
	// More names than buckets forces chaining.
	const n = HashSize + 50
	for i := 0; i < n; i++ {
		off, err := st.Declare(fmt.Sprintf("v%d", i))
		be.Err(t, err, nil)
		be.Equal(t, i*WordSize, off)
	}
	for i := 0; i < n; i++ {
		off, ok := st.Lookup(fmt.Sprintf("v%d", i))
		be.True(t, ok)
		be.Equal(t, i*WordSize, off)
	}
	stats := st.Stats()
	be.Equal(t, n, stats.Count)
	be.True(t, stats.Collisions >= n-HashSize)
	be.True(t, stats.Lookups > 0)
}

func TestReset(t *testing.T) {
	st := New()
	st.Declare("a")
	st.DeclareArray("b", 2)
	st.Reset()

	be.True(t, !st.IsDeclared("a"))
	be.Equal(t, 0, st.NextOffset())
	be.Equal(t, Stats{}, st.Stats())

	off, err := st.Declare("a")
	be.Err(t, err, nil)
	be.Equal(t, 0, off)
}

func TestSymbolsOrderedByOffset(t *testing.T) {
	st := New()
	st.Declare("z")
	st.DeclareArray("m", 2)
	st.Declare("a")

	want := []Symbol{
		{Name: "z", Offset: 0},
		{Name: "m", Offset: 4, IsArray: true, ArraySize: 2},
		{Name: "a", Offset: 12},
	}
	if diff := cmp.Diff(want, st.Symbols(), cmp.AllowUnexported(Symbol{})); diff != "" {
		t.Errorf("Symbols() mismatch (-want +got):\n%s", diff)
	}

	sym, ok := st.Symbol("m")
	be.True(t, ok)
	be.Equal(t, 4, sym.Offset)
}
