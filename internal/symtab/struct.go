package symtab

// MemberLocation records one field's placement within a struct's layout.
type MemberLocation struct {
	Variable   *VariableEntry
	ByteOffset int
}

// StructEntry is a struct/class definition: its members (held in their own
// scope so member lookup reuses the regular Lookup machinery) and their
// laid-out byte offsets.
//
// Alignment rule: each new member's offset is padded to a
// multiple of its own natural alignment; TotalSize carries no trailing
// padding after the final member.
type StructEntry struct {
	Name            string
	Members         *Scope
	MemberLocations []MemberLocation
	TotalSize       int
}

// FindMember looks up a member by name and returns its layout, or false if
// no such member exists.
func (s *StructEntry) FindMember(name string) (MemberLocation, bool) {
	for _, m := range s.MemberLocations {
		if m.Variable.Name == name {
			return m, true
		}
	}
	return MemberLocation{}, false
}

// alignUp rounds offset up to the next multiple of alignment (alignment
// must be a power of two).
func alignUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}
