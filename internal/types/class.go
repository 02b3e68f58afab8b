package types

import (
	"pythia/internal/source"
)

// MRO returns the method resolution order of a class: the class itself,
// then its bases depth-first left to right, each class appearing once at
// its first occurrence. Inheritance cycles are cut off silently.
func (in *Interner) MRO(id ClassID) []ClassID {
	var order []ClassID
	seen := make(map[ClassID]struct{})
	var walk func(c ClassID)
	walk = func(c ClassID) {
		if c == NoClassID {
			return
		}
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		order = append(order, c)
		info, ok := in.ClassInfo(c)
		if !ok {
			return
		}
		for _, base := range info.Bases {
			walk(base)
		}
	}
	walk(id)

	// object всегда замыкает линейризацию
	if id != in.builtins.Object {
		for i, c := range order {
			if c == in.builtins.Object && i != len(order)-1 {
				order = append(order[:i], order[i+1:]...)
				order = append(order, in.builtins.Object)
				break
			}
		}
	}
	return order
}

// LookupMember finds a member by walking the MRO; the defining class is
// returned alongside the member for override diagnostics.
func (in *Interner) LookupMember(class ClassID, name source.StringID) (Member, ClassID, bool) {
	for _, c := range in.MRO(class) {
		info, ok := in.ClassInfo(c)
		if !ok {
			continue
		}
		if m, ok := info.Members[name]; ok {
			return m, c, true
		}
	}
	return Member{}, NoClassID, false
}

// IsSubclass reports whether sub has super in its MRO.
func (in *Interner) IsSubclass(sub, super ClassID) bool {
	if sub == NoClassID || super == NoClassID {
		return false
	}
	for _, c := range in.MRO(sub) {
		if c == super {
			return true
		}
	}
	return false
}
