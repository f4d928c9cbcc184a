package symtab

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// Scope is a node in the symbol table's scope tree. Entries are held in an
// ordered map (insertion-order slice of names plus a lookup index) so that
// iteration, e.g. during scope-collapse, is deterministic.
type Scope struct {
	// Name is this scope's own synthesized qualifier: "" for a function's
	// main scope and for the global scope, "00"/"01"/... for sub-scopes.
	Name string

	parentScope    *Scope
	parentFunction *FunctionEntry
	subScopeCount  int

	order   []string
	entries map[string]*ScopeEntry
}

// NewScope constructs an empty scope with the given parent (nil for the
// global/main scope) and owning function.
func NewScope(parent *Scope, fn *FunctionEntry) *Scope {
	return &Scope{
		parentScope:    parent,
		parentFunction: fn,
		entries:        make(map[string]*ScopeEntry),
	}
}

// ParentScope returns s's enclosing scope, or nil at the root.
func (s *Scope) ParentScope() *Scope { return s.parentScope }

// ParentFunction returns the function s belongs to (every scope, including
// nested sub-scopes, carries the owning function so lookups can reach its
// label counter and basic block list).
func (s *Scope) ParentFunction() *FunctionEntry { return s.parentFunction }

// AdoptFunction retroactively sets s's owning function. The global scope is
// built before the synthetic initializer function that owns its label-0
// block can exist, so the linearizer wires the back-reference here once
// both are constructed; from then on basic blocks added under s (or its
// later sub-scopes) land on fn's block list like any function body's.
func (s *Scope) AdoptFunction(fn *FunctionEntry) { s.parentFunction = fn }

// Insert adds entry under name, failing if name already exists in this
// scope. Shadowing across scopes is fine; only same-scope redeclaration
// is an error.
func (s *Scope) Insert(name string, entry *ScopeEntry) error {
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("redeclaration of %q in this scope", name)
	}
	s.entries[name] = entry
	s.order = append(s.order, name)
	return nil
}

// InsertVariable is a convenience wrapper for the common case of declaring
// a local/global variable.
func (s *Scope) InsertVariable(v *VariableEntry) error {
	return s.Insert(v.Name, &ScopeEntry{Kind: EntryVariable, Variable: v})
}

// InsertArgument is like InsertVariable but tags the entry as an argument.
func (s *Scope) InsertArgument(v *VariableEntry) error {
	return s.Insert(v.Name, &ScopeEntry{Kind: EntryArgument, Variable: v})
}

// InsertFunction declares a function in this scope.
func (s *Scope) InsertFunction(fn *FunctionEntry) error {
	return s.Insert(fn.Name, &ScopeEntry{Kind: EntryFunction, Function: fn})
}

// InsertStruct declares a struct/class in this scope.
func (s *Scope) InsertStruct(st *StructEntry) error {
	return s.Insert(st.Name, &ScopeEntry{Kind: EntryStruct, Struct: st})
}

// Entries returns the direct entries of this scope in insertion order. It
// allocates; callers on a hot path should prefer OrderedNames + lookup.
func (s *Scope) Entries() []*ScopeEntry {
	out := make([]*ScopeEntry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name])
	}
	return out
}

// OrderedNames returns the names declared directly in this scope, in
// insertion order.
func (s *Scope) OrderedNames() []string {
	return append([]string(nil), s.order...)
}

// lookupLocal returns the entry declared directly in s, without walking
// parents.
func (s *Scope) lookupLocal(name string) (*ScopeEntry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Lookup walks s and its parents and returns the first match of any kind.
func (s *Scope) Lookup(name string) (*ScopeEntry, bool) {
	for scope := s; scope != nil; scope = scope.parentScope {
		if e, ok := scope.lookupLocal(name); ok {
			return e, true
		}
	}
	return nil, false
}

// LookupVar is a typed variant of Lookup that fails if name resolves to
// something other than a variable or argument.
func (s *Scope) LookupVar(name string) (*VariableEntry, error) {
	e, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("undeclared identifier %q", name)
	}
	if e.Kind != EntryVariable && e.Kind != EntryArgument {
		return nil, fmt.Errorf("%q is a %s, not a variable", name, e.Kind)
	}
	return e.Variable, nil
}

// LookupFun is a typed variant of Lookup for functions.
func (s *Scope) LookupFun(name string) (*FunctionEntry, error) {
	e, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("undeclared function %q", name)
	}
	if e.Kind != EntryFunction {
		return nil, fmt.Errorf("%q is a %s, not a function", name, e.Kind)
	}
	return e.Function, nil
}

// LookupStruct is a typed variant of Lookup for structs/classes.
func (s *Scope) LookupStruct(name string) (*StructEntry, error) {
	e, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("undeclared struct %q", name)
	}
	if e.Kind != EntryStruct {
		return nil, fmt.Errorf("%q is a %s, not a struct", name, e.Kind)
	}
	return e.Struct, nil
}

// LookupStructByType resolves the StructEntry a struct-basic Type refers
// to.
func (s *Scope) LookupStructByType(t *types.Type) (*StructEntry, error) {
	if t.Basic != types.Struct {
		return nil, fmt.Errorf("type %s is not a struct", t.RenderName())
	}
	return s.LookupStruct(t.StructName)
}

// subScopeName synthesizes the next two-hex-digit child name for s.
func (s *Scope) subScopeName() string {
	n := fmt.Sprintf("%02x", s.subScopeCount)
	s.subScopeCount++
	return n
}

// CreateSubScope builds a new child scope of s, inserts it under its
// synthesized name, and returns it.
func (s *Scope) CreateSubScope() *Scope {
	name := s.subScopeName()
	child := NewScope(s, s.parentFunction)
	child.Name = name
	// A sub-scope is itself a scope entry in its parent.
	s.entries[name] = &ScopeEntry{Kind: EntrySubScope, SubScope: child}
	s.order = append(s.order, name)
	return child
}

// AddBasicBlock inserts block under the synthesized name "BlockN" (N being
// the block's own label number) and appends it to the enclosing function's
// BasicBlockList.
func (s *Scope) AddBasicBlock(block *tac.BasicBlock) {
	name := fmt.Sprintf("Block%d", block.LabelNum)
	s.entries[name] = &ScopeEntry{Kind: EntryBasicBlock, Block: &BasicBlockEntry{Name: name, Block: block}}
	s.order = append(s.order, name)
	if s.parentFunction != nil {
		s.parentFunction.BasicBlockList = append(s.parentFunction.BasicBlockList, block)
	}
}

// SizeOfType returns the byte size of t: u8=1, u16=2, u32=4, u64=8; any
// pointer is a machine word; an array is elementSize x arrayLen
// (elementSize computed recursively, so an array of pointers naturally
// uses a machine word per element); a struct looks up its
// StructEntry.TotalSize.
//
// It is a Scope method (not a free function) because resolving a struct
// basic's size requires a struct lookup.
func (s *Scope) SizeOfType(t *types.Type) (int, error) {
	if t.IsArray() {
		elemSize, err := s.SizeOfType(t.ElementType)
		if err != nil {
			return 0, err
		}
		return elemSize * t.ArrayLen, nil
	}
	if t.IsPointer() {
		return types.MachineWordSize, nil
	}
	if t.Basic == types.Struct {
		def, err := s.LookupStruct(t.StructName)
		if err != nil {
			return 0, err
		}
		return def.TotalSize, nil
	}
	return types.PrimitiveSize(t)
}

// AlignmentOfType mirrors SizeOfType: alignment equals size for primitives
// and pointers; an array's alignment is its element's alignment; a
// struct's alignment is the max alignment of any of its members.
func (s *Scope) AlignmentOfType(t *types.Type) (int, error) {
	if t.IsArray() {
		return s.AlignmentOfType(t.ElementType)
	}
	if t.IsPointer() {
		return types.MachineWordSize, nil
	}
	if t.Basic == types.Struct {
		def, err := s.LookupStruct(t.StructName)
		if err != nil {
			return 0, err
		}
		maxAlign := 1
		for _, m := range def.MemberLocations {
			a, err := s.AlignmentOfType(m.Variable.Type)
			if err != nil {
				return 0, err
			}
			if a > maxAlign {
				maxAlign = a
			}
		}
		return maxAlign, nil
	}
	return types.PrimitiveAlignment(t)
}

// DefineStruct lays out a struct's members (each member padded to its own
// alignment; no tail padding after the final member) and registers it in
// s.
func (s *Scope) DefineStruct(name string, fieldNames []string, fieldTypes []*types.Type) (*StructEntry, error) {
	if len(fieldNames) != len(fieldTypes) {
		return nil, fmt.Errorf("internal error: mismatched struct field name/type counts for %q", name)
	}
	def := &StructEntry{Name: name, Members: NewScope(s, nil)}
	offset := 0
	for i, fname := range fieldNames {
		ftype := fieldTypes[i]
		size, err := s.SizeOfType(ftype)
		if err != nil {
			return nil, err
		}
		align, err := s.AlignmentOfType(ftype)
		if err != nil {
			return nil, err
		}
		offset = alignUp(offset, align)
		member := &VariableEntry{Name: fname, Type: ftype}
		if err := def.Members.InsertVariable(member); err != nil {
			return nil, err
		}
		def.MemberLocations = append(def.MemberLocations, MemberLocation{Variable: member, ByteOffset: offset})
		offset += size
	}
	def.TotalSize = offset
	if err := s.InsertStruct(def); err != nil {
		return nil, err
	}
	return def, nil
}
