package types

import (
	"github.com/dolthub/swiss"
)

// Dictionary owns canonical copies of every Type constructed during a
// compilation, keyed by RenderName, so that Compare can rely on pointer
// identity after interning.
//
// It is backed by a fixed-bucket (SwissTable) hash map so canonical
// entries never move once inserted.
type Dictionary struct {
	byName *swiss.Map[string, *Type]
}

// NewDictionary returns an empty Dictionary with room for size entries
// before its first resize.
func NewDictionary(size uint32) *Dictionary {
	if size == 0 {
		size = 64
	}
	return &Dictionary{byName: swiss.NewMap[string, *Type](size)}
}

// Intern returns the canonical *Type for t's rendering, inserting a copy of
// t the first time its rendering is seen. Two calls with types that render
// identically always return the same pointer.
func (d *Dictionary) Intern(t *Type) *Type {
	name := t.RenderName()
	if existing, ok := d.byName.Get(name); ok {
		return existing
	}
	canonical := *t
	if t.IsArray() {
		elem := *t.ElementType
		canonical.ElementType = d.Intern(&elem)
	}
	d.byName.Put(name, &canonical)
	return &canonical
}

// Len reports how many distinct canonical types have been interned.
func (d *Dictionary) Len() int { return d.byName.Count() }
