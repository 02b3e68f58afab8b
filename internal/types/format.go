package types

import (
	"strings"

	"pythia/internal/source"
)

// Format renders a type for diagnostics: "int | str", "type[Dog]",
// "def (int, str) -> bool", "Literal[3]".
func (in *Interner) Format(id TypeID, strs *source.Interner) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch tt.Kind {
	case KindUnknown:
		return "Unknown"
	case KindNever:
		return "Never"
	case KindNone:
		return "None"
	case KindInstance:
		name := in.className(tt.Class, strs)
		args := in.InstanceArgs(id)
		if len(args) == 0 {
			return name
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = in.Format(a, strs)
		}
		return name + "[" + strings.Join(parts, ", ") + "]"
	case KindClass:
		return "type[" + in.className(tt.Class, strs) + "]"
	case KindModule:
		name, _ := in.ModuleName(id)
		return "module " + lookupName(name, strs)
	case KindCallable:
		info, _ := in.CallableInfo(id)
		parts := make([]string, len(info.Params))
		for i, p := range info.Params {
			parts[i] = in.Format(p, strs)
		}
		return "def (" + strings.Join(parts, ", ") + ") -> " + in.Format(info.Ret, strs)
	case KindUnion:
		return in.formatComposite(id, " | ", strs)
	case KindIntersection:
		return in.formatComposite(id, " & ", strs)
	case KindLiteral:
		value, _ := in.LiteralValue(id)
		return "Literal[" + lookupName(value, strs) + "]"
	case KindTypeVar:
		name, _ := in.TypeVarName(id)
		return lookupName(name, strs)
	default:
		return "<" + tt.Kind.String() + ">"
	}
}

func (in *Interner) formatComposite(id TypeID, sep string, strs *source.Interner) string {
	members := in.Members(id)
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = in.Format(m, strs)
	}
	return strings.Join(parts, sep)
}

func (in *Interner) className(id ClassID, strs *source.Interner) string {
	info, ok := in.ClassInfo(id)
	if !ok {
		return "<class?>"
	}
	return lookupName(info.Name, strs)
}

func lookupName(id source.StringID, strs *source.Interner) string {
	if strs == nil {
		return "?"
	}
	s, ok := strs.Lookup(id)
	if !ok || s == "" {
		return "?"
	}
	return s
}
