package symtab

import (
	"fmt"

	"github.com/Mitch-Siegel/substratum-sub000/internal/tac"
)

// CollapseScopes lifts all non-global declarations from fn's inner scopes
// into fn.MainScope, mangling names as "<parentScopeName>.<name>". It is
// destructive and single-shot: each sub-scope's entries are cleared after
// being re-inserted into MainScope under their mangled name, and the
// sub-scope's link is severed from its parent's entry table.
//
// Calling this twice on the same function is an internal error.
func CollapseScopes(fn *FunctionEntry) error {
	if fn.collapsed {
		return fmt.Errorf("internal error: CollapseScopes called twice on function %q", fn.Name)
	}
	fn.collapsed = true
	return collapseInto(fn, fn.MainScope, fn.MainScope, "")
}

// renameOperands rewrites every Standard/Temp operand named old, across
// every instruction fn has emitted so far, to newName. Each occurrence of a
// variable in the TAC is its own *Operand (tac.StandardOperand builds a
// fresh one per call site), so the rename has to walk every instruction
// rather than mutate one shared value.
func renameOperands(fn *FunctionEntry, old, newName string) {
	for _, block := range fn.BasicBlockList {
		for _, instr := range block.TACList {
			for _, op := range instr.Operands {
				if op != nil && op.Kind != tac.Literal && op.Payload.IsName && op.Payload.Name == old {
					op.Payload.Name = newName
				}
			}
		}
	}
}

// collapseInto walks scope's direct entries; variable/argument/function/
// struct/basic-block entries declared directly in a non-root scope are
// moved into target under prefix-mangled names, and sub-scopes are
// recursed into with an extended prefix. scope == target means "root",
// where names are kept unmangled.
func collapseInto(fn *FunctionEntry, scope, target *Scope, prefix string) error {
	names := scope.OrderedNames()
	for _, name := range names {
		entry := scope.entries[name]

		if entry.Kind == EntrySubScope {
			child := entry.SubScope
			childPrefix := name
			if prefix != "" {
				childPrefix = prefix + "." + name
			}
			if err := collapseInto(fn, child, target, childPrefix); err != nil {
				return err
			}
			// Sever the sub-scope's entries; it must not retain anything
			// after collapse, and remove its own entry so no subscope
			// handle remains reachable from scope.
			child.entries = make(map[string]*ScopeEntry)
			child.order = nil
			delete(scope.entries, name)
			continue
		}

		if scope == target {
			// Already in the function's main scope; nothing to mangle.
			continue
		}

		mangled := name
		if prefix != "" {
			mangled = prefix + "." + name
		}

		switch entry.Kind {
		case EntryVariable, EntryArgument:
			if entry.Variable.IsGlobal {
				// Globals are not local to any function; leave them where
				// lexically visible rather than duplicating into MainScope.
				continue
			}
			renameOperands(fn, entry.Variable.Name, mangled)
			entry.Variable.Name = mangled
			if err := target.Insert(mangled, entry); err != nil {
				return err
			}
		case EntryFunction, EntryStruct:
			if err := target.Insert(mangled, entry); err != nil {
				return err
			}
		case EntryBasicBlock:
			entry.Block.Name = mangled
			if err := target.Insert(mangled, entry); err != nil {
				return err
			}
		}
	}

	if scope != target {
		scope.entries = make(map[string]*ScopeEntry)
		scope.order = nil
	} else {
		// Subscope entries were deleted from target.entries above; drop
		// their now-dangling names from the order slice too.
		kept := scope.order[:0:0]
		for _, name := range scope.order {
			if _, ok := scope.entries[name]; ok {
				kept = append(kept, name)
			}
		}
		scope.order = kept
	}
	return nil
}
