// Package lifetime computes per-variable live ranges and read/write
// counts over a function's flattened TAC, plus the per-index overlap
// lists the register allocator (internal/regalloc) consumes.
package lifetime

import (
	"strings"

	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
)

// Lifetime is the inclusive [Start, End] TAC-index interval a named value
// is alive across, plus its read/write counts.
type Lifetime struct {
	Name       string
	Variable   *symtab.VariableEntry
	Start      int
	End        int
	NReads     int
	NWrites    int
	IsArgument bool
}

// Result is FindLifetimes' output: the flattened instruction stream (index
// i of Instructions is TAC index i everywhere else in this package and in
// internal/regalloc) and every lifetime found, keyed by name.
type Result struct {
	Instructions []*tac.Instruction
	Lifetimes    map[string]*Lifetime
	// Order preserves first-encountered order, for deterministic tie-break
	// iteration downstream.
	Order []string
}

func (r *Result) getOrCreate(name string, variable *symtab.VariableEntry, index int) *Lifetime {
	lt, ok := r.Lifetimes[name]
	if !ok {
		lt = &Lifetime{Name: name, Variable: variable, Start: index, End: index}
		r.Lifetimes[name] = lt
		r.Order = append(r.Order, name)
	}
	return lt
}

// isTempName reports whether name is a compiler-generated temp (".tN"),
// excluded from do/enddo lifetime extension.
func isTempName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// FindLifetimes walks fn's basic blocks in order, flattening them into
// one TAC-index space, and produces each named operand's Lifetime.
func FindLifetimes(fn *symtab.FunctionEntry) (*Result, error) {
	r := &Result{Lifetimes: make(map[string]*Lifetime)}

	for _, block := range fn.BasicBlockList {
		r.Instructions = append(r.Instructions, block.TACList...)
	}

	for _, arg := range fn.Arguments {
		lt := r.getOrCreate(arg.Name, arg, 0)
		lt.IsArgument = true
	}

	var doStack []int

	for index, instr := range r.Instructions {
		switch instr.Op {
		case tac.OpDo:
			doStack = append(doStack, index)
			continue
		case tac.OpEndDo:
			if len(doStack) == 0 {
				continue
			}
			pushed := doStack[len(doStack)-1]
			doStack = doStack[:len(doStack)-1]
			for _, name := range r.Order {
				lt := r.Lifetimes[name]
				if isTempName(name) {
					continue
				}
				if lt.End >= pushed && lt.End < index {
					lt.End = index + 1
				}
			}
			continue
		}

		for slot, op := range instr.Operands {
			if op == nil || op.Kind == tac.Literal {
				continue
			}
			role := instr.Op.OperandRole(slot)
			if role == tac.Unused {
				continue
			}
			name := op.Payload.Name
			v, err := fn.MainScope.LookupVar(name)
			if err != nil {
				return nil, err
			}
			lt := r.getOrCreate(name, v, index)
			if index > lt.End {
				lt.End = index
			}
			if index < lt.Start {
				lt.Start = index
			}
			switch role {
			case tac.Read:
				lt.NReads++
			case tac.Write:
				lt.NWrites++
			}
		}
	}

	return r, nil
}

// GenerateLifetimeOverlaps allocates, for every TAC index from 0 through
// the last instruction's index, the list of lifetimes active at that
// index. MaxConcurrent is the longest such list seen.
type Overlaps struct {
	Active        [][]*Lifetime
	MaxConcurrent int
}

func GenerateLifetimeOverlaps(r *Result) *Overlaps {
	n := len(r.Instructions)
	o := &Overlaps{Active: make([][]*Lifetime, n)}
	for _, name := range r.Order {
		lt := r.Lifetimes[name]
		start := lt.Start
		end := lt.End
		if end >= n {
			end = n - 1
		}
		for i := start; i <= end; i++ {
			o.Active[i] = append(o.Active[i], lt)
			if len(o.Active[i]) > o.MaxConcurrent {
				o.MaxConcurrent = len(o.Active[i])
			}
		}
	}
	return o
}

// SeedResidencies applies the register allocator's seed rule to every
// lifetime's underlying variable. Must run
// once per function, after FindLifetimes and before internal/regalloc.
func SeedResidencies(r *Result) {
	for _, name := range r.Order {
		r.Lifetimes[name].Variable.SeedResidency()
	}
}
