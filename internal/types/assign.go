package types

// Assignable reports whether a value of type src can be used where dst
// is expected. Unknown is compatible in both directions so analysis gaps
// never cascade into diagnostics.
func (in *Interner) Assignable(src, dst TypeID) bool {
	if src == NoTypeID || dst == NoTypeID {
		return true
	}
	if src == dst {
		return true
	}
	if src == in.builtins.Unknown || dst == in.builtins.Unknown {
		return true
	}
	if src == in.builtins.Never {
		return true
	}

	st := in.MustLookup(src)
	dt := in.MustLookup(dst)

	// typevar без подстановки совместим с чем угодно
	if st.Kind == KindTypeVar || dt.Kind == KindTypeVar {
		return true
	}

	// объединение слева: каждый член должен подходить
	if st.Kind == KindUnion {
		for _, m := range in.Members(src) {
			if !in.Assignable(m, dst) {
				return false
			}
		}
		return true
	}
	// объединение справа: достаточно одного подходящего члена
	if dt.Kind == KindUnion {
		for _, m := range in.Members(dst) {
			if in.Assignable(src, m) {
				return true
			}
		}
		return false
	}
	// пересечение справа: нужны все члены
	if dt.Kind == KindIntersection {
		for _, m := range in.Members(dst) {
			if !in.Assignable(src, m) {
				return false
			}
		}
		return true
	}
	// пересечение слева: достаточно одного члена
	if st.Kind == KindIntersection {
		for _, m := range in.Members(src) {
			if in.Assignable(m, dst) {
				return true
			}
		}
		return false
	}

	// литерал сужает свой класс: Literal[3] -> int
	if st.Kind == KindLiteral {
		return in.Assignable(in.Instance(st.Class), dst)
	}

	switch dt.Kind {
	case KindInstance:
		if st.Kind != KindInstance {
			return false
		}
		if !in.IsSubclass(st.Class, dt.Class) {
			return false
		}
		if st.Class == dt.Class {
			srcArgs := in.InstanceArgs(src)
			dstArgs := in.InstanceArgs(dst)
			if len(srcArgs) != len(dstArgs) {
				// несовпадающая арность параметров - деградация, не ошибка
				return true
			}
			for i := range srcArgs {
				if !in.Assignable(srcArgs[i], dstArgs[i]) {
					return false
				}
			}
		}
		return true
	case KindCallable:
		if st.Kind != KindCallable {
			return false
		}
		si, _ := in.CallableInfo(src)
		di, _ := in.CallableInfo(dst)
		if len(si.Params) != len(di.Params) {
			return false
		}
		// параметры контравариантны, результат ковариантен
		for i := range si.Params {
			if !in.Assignable(di.Params[i], si.Params[i]) {
				return false
			}
		}
		return in.Assignable(si.Ret, di.Ret)
	case KindNone:
		return st.Kind == KindNone
	case KindClass:
		return st.Kind == KindClass && in.IsSubclass(st.Class, dt.Class)
	case KindModule:
		return false
	default:
		return false
	}
}

// Unify matches a declared parameter type against an argument type,
// binding type variables along the way. Returns false when the shapes
// are incompatible.
func (in *Interner) Unify(param, arg TypeID, bindings map[TypeID]TypeID) bool {
	if param == NoTypeID || arg == NoTypeID {
		return true
	}
	if param == in.builtins.Unknown || arg == in.builtins.Unknown {
		return true
	}

	pt := in.MustLookup(param)
	if pt.Kind == KindTypeVar {
		if bound, ok := bindings[param]; ok {
			// повторное вхождение той же переменной: расширяем до union
			if bound != arg {
				bindings[param] = in.Union(bound, arg)
			}
			return true
		}
		bindings[param] = in.Widen(arg)
		return true
	}

	at := in.MustLookup(arg)
	if pt.Kind == KindInstance && at.Kind == KindInstance && pt.Class == at.Class {
		pArgs := in.InstanceArgs(param)
		aArgs := in.InstanceArgs(arg)
		if len(pArgs) == len(aArgs) {
			for i := range pArgs {
				if !in.Unify(pArgs[i], aArgs[i], bindings) {
					return false
				}
			}
			return true
		}
	}
	return in.Assignable(arg, param)
}

// Substitute replaces bound type variables inside t.
func (in *Interner) Substitute(t TypeID, bindings map[TypeID]TypeID) TypeID {
	if len(bindings) == 0 || t == NoTypeID {
		return t
	}
	if bound, ok := bindings[t]; ok {
		return bound
	}
	tt, ok := in.Lookup(t)
	if !ok {
		return t
	}
	switch tt.Kind {
	case KindInstance:
		args := in.InstanceArgs(t)
		if len(args) == 0 {
			return t
		}
		out := make([]TypeID, len(args))
		changed := false
		for i, a := range args {
			out[i] = in.Substitute(a, bindings)
			changed = changed || out[i] != a
		}
		if !changed {
			return t
		}
		return in.Instance(tt.Class, out...)
	case KindUnion:
		members := in.Members(t)
		out := make([]TypeID, len(members))
		for i, m := range members {
			out[i] = in.Substitute(m, bindings)
		}
		return in.Union(out...)
	case KindCallable:
		info, _ := in.CallableInfo(t)
		params := make([]TypeID, len(info.Params))
		changed := false
		for i, p := range info.Params {
			params[i] = in.Substitute(p, bindings)
			changed = changed || params[i] != p
		}
		ret := in.Substitute(info.Ret, bindings)
		if !changed && ret == info.Ret {
			return t
		}
		return in.Callable(params, ret)
	default:
		return t
	}
}
