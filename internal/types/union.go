package types

import (
	"sort"
)

// Union interns the union of the given types. Nested unions are
// flattened, duplicates removed, Never dropped and Unknown absorbs the
// whole union. Members are sorted by ID so equal sets intern equally.
func (in *Interner) Union(members ...TypeID) TypeID {
	flat := in.flatten(KindUnion, members)
	switch len(flat) {
	case 0:
		return in.builtins.Never
	case 1:
		return flat[0]
	}
	for _, m := range flat {
		if m == in.builtins.Unknown {
			return in.builtins.Unknown
		}
	}
	return in.internComposite(KindUnion, 'u', flat)
}

// Intersection interns the intersection of the given types. Unknown
// absorbs here too: an intersection with an unanalyzable side is itself
// unanalyzable.
func (in *Interner) Intersection(members ...TypeID) TypeID {
	flat := in.flatten(KindIntersection, members)
	switch len(flat) {
	case 0:
		return in.builtins.Unknown
	case 1:
		return flat[0]
	}
	for _, m := range flat {
		if m == in.builtins.Unknown {
			return in.builtins.Unknown
		}
		if m == in.builtins.Never {
			return in.builtins.Never
		}
	}
	return in.internComposite(KindIntersection, 'n', flat)
}

// Members returns the member list of a union or intersection.
func (in *Interner) Members(id TypeID) []TypeID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || (tt.Kind != KindUnion && tt.Kind != KindIntersection) {
		return nil
	}
	return cloneTypeIDs(in.members[tt.Payload])
}

func (in *Interner) flatten(kind Kind, members []TypeID) []TypeID {
	seen := make(map[TypeID]struct{}, len(members))
	var flat []TypeID
	var walk func(ids []TypeID)
	walk = func(ids []TypeID) {
		for _, id := range ids {
			if id == NoTypeID {
				continue
			}
			if kind == KindUnion && id == in.builtins.Never {
				continue
			}
			tt, ok := in.Lookup(id)
			if ok && tt.Kind == kind {
				walk(in.Members(id))
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			flat = append(flat, id)
		}
	}
	walk(members)
	sort.Slice(flat, func(i, j int) bool { return flat[i] < flat[j] })
	return flat
}

func (in *Interner) internComposite(kind Kind, tag byte, flat []TypeID) TypeID {
	key := buildKey(tag, uint32(len(flat)), flat...)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	slot := uint32(len(in.members))
	in.members = append(in.members, cloneTypeIDs(flat))
	return in.internLocked(Type{Kind: kind, Payload: slot}, key)
}
