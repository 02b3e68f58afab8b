package sema

import (
	"pythia/internal/source"
	"pythia/internal/types"
)

// builtinScope is the outermost resolution layer: names Python provides
// without any import. Deliberately small; everything absent degrades to
// Unknown rather than a hard error.
type builtinScope struct {
	byName map[source.StringID]types.TypeID
}

func newBuiltinScope(ti *types.Interner, strs *source.Interner) *builtinScope {
	b := ti.Builtins()
	intT := ti.Instance(b.Int)
	strT := ti.Instance(b.Str)
	boolT := ti.Instance(b.Bool)
	unknown := ti.Unknown()

	s := &builtinScope{byName: make(map[source.StringID]types.TypeID, 48)}
	put := func(name string, t types.TypeID) {
		s.byName[strs.Intern(name)] = t
	}

	put("object", ti.ClassLiteral(b.Object))
	put("int", ti.ClassLiteral(b.Int))
	put("float", ti.ClassLiteral(b.Float))
	put("str", ti.ClassLiteral(b.Str))
	put("bool", ti.ClassLiteral(b.Bool))
	put("list", ti.ClassLiteral(b.List))
	put("dict", ti.ClassLiteral(b.Dict))
	put("tuple", ti.ClassLiteral(b.Tuple))

	// исключения сведены к одному базовому классу
	for _, name := range []string{
		"BaseException", "Exception", "ValueError", "TypeError",
		"KeyError", "IndexError", "AttributeError", "RuntimeError",
		"StopIteration", "NotImplementedError", "OSError",
	} {
		put(name, ti.ClassLiteral(b.BaseExc))
	}

	put("len", ti.Callable([]types.TypeID{unknown}, intT))
	put("repr", ti.Callable([]types.TypeID{unknown}, strT))
	put("id", ti.Callable([]types.TypeID{unknown}, intT))
	put("hash", ti.Callable([]types.TypeID{unknown}, intT))
	put("isinstance", ti.Callable([]types.TypeID{unknown, unknown}, boolT))
	put("issubclass", ti.Callable([]types.TypeID{unknown, unknown}, boolT))
	put("callable", ti.Callable([]types.TypeID{unknown}, boolT))
	put("hasattr", ti.Callable([]types.TypeID{unknown, strT}, boolT))
	put("print", unknown)
	put("range", ti.Callable([]types.TypeID{intT}, ti.Instance(b.List, intT)))
	put("sorted", unknown)
	put("iter", unknown)
	put("next", unknown)
	put("getattr", unknown)
	put("setattr", unknown)
	put("super", unknown)
	put("abs", unknown)
	put("min", unknown)
	put("max", unknown)
	put("sum", unknown)
	put("open", unknown)
	put("type", unknown)
	put("NotImplemented", unknown)
	put("__name__", strT)
	put("__file__", strT)
	put("__doc__", ti.Union(strT, ti.None()))
	return s
}

func (s *builtinScope) lookup(name source.StringID) (types.TypeID, bool) {
	t, ok := s.byName[name]
	return t, ok
}
