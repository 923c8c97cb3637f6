// Package symtab maps declared names to byte offsets in the single stack frame
package symtab

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HashSize is the number of buckets
const HashSize = 211

// WordSize is the number of bytes a scalar reserves
const WordSize = 4

var (
	ErrRedeclared  = errors.New("already declared")
	ErrInvalidSize = errors.New("invalid array size")
)

// Symbol is one declared name
type Symbol struct {
	Name      string
	Offset    int
	IsArray   bool
	ArraySize int
	next      *Symbol
}

// Stats are diagnostic counters; they never affect behavior
type Stats struct {
	Count      int
	Lookups    int
	Collisions int
}

// Table is a chained hash table of symbols. Offsets are handed out monotonically
// and never reclaimed
type Table struct {
	buckets    [HashSize]*Symbol
	nextOffset int
	stats      Stats
}

func New() *Table { return &Table{} }

func bucket(name string) uint64 { return xxhash.Sum64String(name) % HashSize }

func (t *Table) find(name string) *Symbol {
	for sym := t.buckets[bucket(name)]; sym != nil; sym = sym.next {
		t.stats.Lookups++
		if sym.Name == name {
			return sym
		}
	}
	return nil
}

func (t *Table) insert(name string, words int, isArray bool) *Symbol {
	b := bucket(name)
	sym := &Symbol{
		Name: name, Offset: t.nextOffset, IsArray: isArray, next: t.buckets[b],
	}
	if isArray {
		sym.ArraySize = words
	}
	if t.buckets[b] != nil {
		t.stats.Collisions++
	}
	t.buckets[b] = sym
	t.stats.Count++
	t.nextOffset += words * WordSize
	return sym
}

// Declare reserves one word for name and returns its offset
func (t *Table) Declare(name string) (int, error) {
	if t.find(name) != nil {
		return -1, fmt.Errorf("variable '%s' %w", name, ErrRedeclared)
	}
	return t.insert(name, 1, false).Offset, nil
}

// DeclareArray reserves size contiguous words for name and returns the base offset
func (t *Table) DeclareArray(name string, size int) (int, error) {
	if size <= 0 {
		return -1, fmt.Errorf("array '%s' has size %d: %w", name, size, ErrInvalidSize)
	}
	if t.find(name) != nil {
		return -1, fmt.Errorf("array '%s' %w", name, ErrRedeclared)
	}
	return t.insert(name, size, true).Offset, nil
}

// Lookup returns the offset of name
func (t *Table) Lookup(name string) (int, bool) {
	if sym := t.find(name); sym != nil {
		return sym.Offset, true
	}
	return -1, false
}

// Symbol returns the full entry for name
func (t *Table) Symbol(name string) (Symbol, bool) {
	if sym := t.find(name); sym != nil {
		s := *sym
		s.next = nil
		return s, true
	}
	return Symbol{}, false
}

func (t *Table) IsDeclared(name string) bool { return t.find(name) != nil }

func (t *Table) IsArray(name string) bool {
	sym := t.find(name)
	return sym != nil && sym.IsArray
}

// ArraySize returns the element count of an array; scalars and unknown names report false
func (t *Table) ArraySize(name string) (int, bool) {
	sym := t.find(name)
	if sym == nil || !sym.IsArray {
		return -1, false
	}
	return sym.ArraySize, true
}

// NextOffset is the number of bytes reserved so far
func (t *Table) NextOffset() int { return t.nextOffset }

func (t *Table) Stats() Stats { return t.stats }

// Reset clears all entries and counters. Called once per compilation unit
func (t *Table) Reset() { *t = Table{} }

// Symbols returns every entry ordered by offset
func (t *Table) Symbols() []Symbol {
	syms := make([]Symbol, 0, t.stats.Count)
	for _, head := range t.buckets {
		for sym := head; sym != nil; sym = sym.next {
			s := *sym
			s.next = nil
			syms = append(syms, s)
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Offset < syms[j].Offset })
	return syms
}

func (t *Table) String() string {
	var sb strings.Builder
	syms := t.Symbols()
	if len(syms) == 0 {
		sb.WriteString("Symbols: (empty)\n")
	} else {
		sb.WriteString("Symbols:\n")
	}
	for _, sym := range syms {
		if sym.IsArray {
			fmt.Fprintf(&sb, "  %-20s  Offset: %d (Array: %d words)\n", sym.Name, sym.Offset, sym.ArraySize)
		} else {
			fmt.Fprintf(&sb, "  %-20s  Offset: %d\n", sym.Name, sym.Offset)
		}
	}
	fmt.Fprintf(&sb, "Frame bytes: %d, lookups: %d, collisions: %d\n", t.nextOffset, t.stats.Lookups, t.stats.Collisions)
	return sb.String()
}
