// Package regalloc implements a single-pass linear-scan allocator that
// decides, for every variable an internal/lifetime.Result reports as
// Unknown-residency, whether it lives in a register or on the stack, then
// assigns concrete RISC-V register names and stack offsets.
package regalloc

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/Mitch-Siegel/substratum-sub000/internal/lifetime"
	"github.com/Mitch-Siegel/substratum-sub000/internal/symtab"
	"github.com/Mitch-Siegel/substratum-sub000/internal/types"
)

// MachineRegisterCount: RISC-V has 32 integer registers; zero, ra, sp,
// and gp/tp are never allocatable, leaving 28 general-purpose names. The
// working spill threshold derives from AllocatablePool below rather than
// this figure; see Budget.
const MachineRegisterCount = 28

// ScratchRegisters are reserved by codegen for intermediate values within
// a single instruction's expansion (e.g. loading an immediate before an
// op that has no immediate form) and are never assigned to a lifetime.
var ScratchRegisters = []string{"t0", "t1", "t2"}

// ReturnValueRegister carries a function's scalar return value and a
// call's result, per the RISC-V ABI; never assigned to a lifetime.
const ReturnValueRegister = "a0"

// AllocatablePool is the concrete register names the assignment sweep
// draws from: every general-purpose name except the 3 scratch registers,
// the return-value register, and fp itself, which cannot double as a
// variable's home since the prologue/epilogue need it unconditionally as
// the frame pointer.
var AllocatablePool = []string{
	"t3", "t4", "t5", "t6",
	"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
	"a1", "a2", "a3", "a4", "a5", "a6", "a7",
}

// Budget is the number of Unknown-residency lifetimes allowed to be
// concurrently live at any single TAC index before the allocator starts
// spilling the cheapest ones to the stack. Derivations from
// MachineRegisterCount land at 24, but that count carries fp among the
// allocatable names; the spill threshold must not exceed the pool the
// assignment sweep actually draws from, or a full-pressure function would
// hit the sweep's cannot-find-a-register internal error instead of
// spilling.
var Budget = len(AllocatablePool)

// CalleeSaved is the subset of AllocatablePool the RISC-V ABI requires a
// callee to preserve across a call; used to size the prologue's
// callee-save area.
var CalleeSaved = map[string]bool{
	"s1": true, "s2": true, "s3": true, "s4": true, "s5": true,
	"s6": true, "s7": true, "s8": true, "s9": true, "s10": true, "s11": true,
}

// Allocate runs the full allocation pipeline over fn, given lifetime
// analysis already computed by internal/lifetime: spill selection,
// residency finalization, physical register assignment, stack layout, and
// frame size computation. fn's VariableEntry residencies must already be
// seeded (lifetime.SeedResidencies) before calling this.
func Allocate(fn *symtab.FunctionEntry, res *lifetime.Result, ov *lifetime.Overlaps) error {
	spillContendingLifetimes(res, ov)
	finalizeRegisterResidencies(res)

	used, err := assignRegisters(res, ov)
	if err != nil {
		return err
	}

	// The callee-save/ra/fp block's size is already fixed at this point
	// (it depends only on `used` and fn.SavesReturnAddress, not on the
	// stack layout below), so it can be reserved before laying out locals
	// which lets layoutStack place locals below it instead of colliding
	// with it at the top of the frame.
	var calleeSaved []string
	for _, reg := range AllocatablePool {
		if used[reg] && CalleeSaved[reg] {
			calleeSaved = append(calleeSaved, reg)
		}
	}
	savesReturnAddress := fn.CallsOtherFunction || fn.IsAsmFun
	reservedHeader := types.MachineWordSize // fp's own save slot
	if savesReturnAddress {
		reservedHeader += types.MachineWordSize
	}
	reservedHeader += len(calleeSaved) * types.MachineWordSize

	localStackSize, err := layoutStack(fn, res, reservedHeader)
	if err != nil {
		return err
	}

	computeFrame(fn, localStackSize, reservedHeader, calleeSaved, savesReturnAddress)
	return nil
}

// spillContendingLifetimes: at every TAC index, while more than Budget
// Unknown-residency lifetimes are active, pick the cheapest-to-spill one
// (lowest heuristic, first-encountered breaks ties) and pin it to the
// stack. Marking a lifetime's Variable.Residency as Stack removes it
// from every other index's active count too, since all indices share the
// same *symtab.VariableEntry.
func spillContendingLifetimes(res *lifetime.Result, ov *lifetime.Overlaps) {
	for _, active := range ov.Active {
		for {
			contenders := filterUnknown(active)
			if len(contenders) <= Budget {
				break
			}
			victim := cheapestToSpill(contenders)
			victim.Variable.Residency = symtab.Stack
		}
	}
}

func filterUnknown(active []*lifetime.Lifetime) []*lifetime.Lifetime {
	var out []*lifetime.Lifetime
	for _, lt := range active {
		if lt.Variable.Residency == symtab.Unknown {
			out = append(out, lt)
		}
	}
	return out
}

// spillHeuristic is the spill cost function: cheaper-to-spill lifetimes
// (short-lived, read-and-written-little) get a lower score. Arguments
// score 10x lower than non-arguments at equal usage: an argument already
// arrives in a stack slot, so spilling it costs nothing extra.
func spillHeuristic(lt *lifetime.Lifetime) int {
	h := ((lt.End - lt.Start) + lt.NReads) * lt.NWrites
	if !lt.IsArgument {
		h *= 10
	}
	return h
}

func cheapestToSpill(contenders []*lifetime.Lifetime) *lifetime.Lifetime {
	best := contenders[0]
	bestH := spillHeuristic(best)
	for _, lt := range contenders[1:] {
		h := spillHeuristic(lt)
		if h < bestH {
			best = lt
			bestH = h
		}
	}
	return best
}

// finalizeRegisterResidencies: every lifetime left Unknown after spilling
// survived contention and becomes register-resident.
func finalizeRegisterResidencies(res *lifetime.Result) {
	for _, name := range res.Order {
		lt := res.Lifetimes[name]
		if lt.Variable.Residency == symtab.Unknown {
			lt.Variable.Residency = symtab.Register
		}
	}
}

// assignRegisters walks TAC indices in order, freeing any occupant whose
// lifetime has ended, then giving every register-resident lifetime newly
// starting at this index an unoccupied name from AllocatablePool. Returns the set of register names actually
// used, for the callee-save accounting in computeFrame.
func assignRegisters(res *lifetime.Result, ov *lifetime.Overlaps) (map[string]bool, error) {
	occupied := make(map[string]*lifetime.Lifetime, len(AllocatablePool))
	used := make(map[string]bool)

	for index := range res.Instructions {
		for reg, occupant := range occupied {
			if occupant.End < index {
				delete(occupied, reg)
			}
		}

		for _, lt := range ov.Active[index] {
			if lt.Variable.Residency != symtab.Register || lt.Start != index {
				continue
			}
			if lt.Variable.RegisterName != "" {
				continue
			}
			reg, err := pickFreeRegister(occupied)
			if err != nil {
				return nil, fmt.Errorf("internal error: allocating register for %q at TAC index %d: %w", lt.Name, index, err)
			}
			lt.Variable.RegisterName = reg
			occupied[reg] = lt
			used[reg] = true
		}
	}

	return used, nil
}

func pickFreeRegister(occupied map[string]*lifetime.Lifetime) (string, error) {
	for _, reg := range AllocatablePool {
		if _, taken := occupied[reg]; !taken {
			return reg, nil
		}
	}
	return "", fmt.Errorf("no free register (all %d in use)", len(AllocatablePool))
}

// layoutStack: every stack-resident, non-argument lifetime gets a slot
// below fp, sorted descending by type size (ties broken by declaration
// order, i.e. res.Order, via a stable sort) so wider values don't
// straddle alignment boundaries smaller ones would have respected.
// Argument-resident lifetimes keep the positive offset fixed at
// declaration time (internal/linearize's walkFunctionDecl) and are left
// untouched here. reservedHeader is the byte size of the fp/ra/
// callee-save block that sits between fp and the local area (computed by
// the caller, since it depends only on register assignment, not on
// layout); locals are placed below it so the two blocks never overlap.
// Returns the total padded byte size of the local (non-argument) stack
// area, not including reservedHeader.
func layoutStack(fn *symtab.FunctionEntry, res *lifetime.Result, reservedHeader int) (int, error) {
	type slot struct {
		lt   *lifetime.Lifetime
		size int
	}

	var slots []slot
	for _, name := range res.Order {
		lt := res.Lifetimes[name]
		if lt.Variable.Residency != symtab.Stack || lt.IsArgument {
			continue
		}
		size, err := fn.MainScope.SizeOfType(lt.Variable.Type)
		if err != nil {
			return 0, err
		}
		slots = append(slots, slot{lt: lt, size: size})
	}

	slices.SortStableFunc(slots, func(a, b slot) int {
		if a.size > b.size {
			return -1
		}
		if a.size < b.size {
			return 1
		}
		return 0
	})

	offset := 0
	for _, s := range slots {
		align, err := fn.MainScope.AlignmentOfType(s.lt.Variable.Type)
		if err != nil {
			return 0, err
		}
		offset += s.size
		if rem := offset % align; rem != 0 {
			offset += align - rem
		}
		s.lt.Variable.StackOffset = -(reservedHeader + offset)
	}

	return offset, nil
}

// computeFrame sizes the frame from the local stack area and the
// already-reserved fp/ra/callee-save header, then rounds to a 16-byte
// boundary per the RISC-V calling convention.
func computeFrame(fn *symtab.FunctionEntry, localStackSize, reservedHeader int, calleeSaved []string, savesReturnAddress bool) {
	fn.LocalStackSize = localStackSize
	fn.CalleeSavedRegisters = calleeSaved
	fn.CalleeSaveStackSize = len(calleeSaved) * types.MachineWordSize
	fn.SavesReturnAddress = savesReturnAddress

	frame := reservedHeader + localStackSize
	if rem := frame % 16; rem != 0 {
		frame += 16 - rem
	}
	fn.FrameSize = frame
}
