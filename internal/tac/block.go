package tac

// BasicBlock is a maximal sequence of TAC with a single entry and a single
// exit: label 0 is always a function's entry block, labels 1+ are
// generated as control flow is lowered.
type BasicBlock struct {
	LabelNum int
	TACList  []*Instruction

	// ContainsEffectiveCode is false for a block that never accumulated
	// anything beyond bookkeeping (e.g. an empty convergence block the
	// emitter can still fall through to).
	ContainsEffectiveCode bool
}

// NewBasicBlock constructs an empty block for the given label number.
func NewBasicBlock(labelNum int) *BasicBlock {
	return &BasicBlock{LabelNum: labelNum}
}

// Append adds instr to the end of the block, assigning it the next dense
// block-local index; the linearizer renumbers function-wide afterward.
func (b *BasicBlock) Append(instr *Instruction) *Instruction {
	if len(b.TACList) > 0 {
		instr.Index = b.TACList[len(b.TACList)-1].Index + 1
	} else {
		instr.Index = 0
	}
	b.TACList = append(b.TACList, instr)
	if !instr.Op.IsLifetimeMarker() {
		b.ContainsEffectiveCode = true
	}
	return instr
}

// LastIndex returns the index of the final instruction in the block, or -1
// if the block is empty.
func (b *BasicBlock) LastIndex() int {
	if len(b.TACList) == 0 {
		return -1
	}
	return b.TACList[len(b.TACList)-1].Index
}
