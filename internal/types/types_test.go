package types

import (
	"testing"

	"pythia/internal/source"
)

func newTestInterner() (*Interner, *source.Interner) {
	strs := source.NewInterner()
	return NewInterner(strs), strs
}

func TestStructuralInterning(t *testing.T) {
	in, _ := newTestInterner()
	b := in.Builtins()

	intInst := in.Instance(b.Int)
	if intInst != in.Instance(b.Int) {
		t.Error("equal instances must intern to the same ID")
	}
	listOfInt := in.Instance(b.List, intInst)
	if listOfInt != in.Instance(b.List, intInst) {
		t.Error("equal generic instances must intern to the same ID")
	}
	if listOfInt == in.Instance(b.List, in.Instance(b.Str)) {
		t.Error("different arguments must yield different IDs")
	}

	sig := in.Callable([]TypeID{intInst}, in.Instance(b.Bool))
	if sig != in.Callable([]TypeID{intInst}, in.Instance(b.Bool)) {
		t.Error("equal signatures must intern to the same ID")
	}
}

func TestUnionCanonicalization(t *testing.T) {
	in, _ := newTestInterner()
	b := in.Builtins()
	i := in.Instance(b.Int)
	s := in.Instance(b.Str)

	// порядок и дубликаты не влияют
	if in.Union(i, s) != in.Union(s, i, s) {
		t.Error("union must be order- and duplicate-insensitive")
	}
	// вложенные объединения расплющиваются
	if in.Union(in.Union(i, s), in.None()) != in.Union(i, s, in.None()) {
		t.Error("nested unions must flatten")
	}
	// одиночный член схлопывается
	if in.Union(i) != i {
		t.Error("single-member union must collapse")
	}
	// Never выпадает
	if in.Union(i, in.Never()) != i {
		t.Error("Never must vanish from unions")
	}
	// Unknown поглощает
	if in.Union(i, in.Unknown()) != in.Unknown() {
		t.Error("Unknown must absorb the union")
	}
	if in.Union() != in.Never() {
		t.Error("empty union is Never")
	}
}

func TestIntersection(t *testing.T) {
	in, _ := newTestInterner()
	b := in.Builtins()
	i := in.Instance(b.Int)
	s := in.Instance(b.Str)

	if in.Intersection(i, s) != in.Intersection(s, i) {
		t.Error("intersection must be order-insensitive")
	}
	if in.Intersection(i) != i {
		t.Error("single-member intersection must collapse")
	}
	if in.Intersection(i, in.Unknown()) != in.Unknown() {
		t.Error("Unknown must absorb intersections")
	}
}

func TestMRO(t *testing.T) {
	in, strs := newTestInterner()
	b := in.Builtins()

	animal := in.RegisterClass(strs.Intern("Animal"), source.Span{}, []ClassID{b.Object})
	pet := in.RegisterClass(strs.Intern("Pet"), source.Span{}, []ClassID{b.Object})
	dog := in.RegisterClass(strs.Intern("Dog"), source.Span{}, []ClassID{animal, pet})

	mro := in.MRO(dog)
	want := []ClassID{dog, animal, pet, b.Object}
	if len(mro) != len(want) {
		t.Fatalf("mro length = %d, want %d", len(mro), len(want))
	}
	for i := range want {
		if mro[i] != want[i] {
			t.Errorf("mro[%d] = %v, want %v", i, mro[i], want[i])
		}
	}
	if !in.IsSubclass(dog, animal) || !in.IsSubclass(dog, b.Object) {
		t.Error("subclass relation broken")
	}
	if in.IsSubclass(animal, dog) {
		t.Error("subclass relation must not be symmetric")
	}
}

func TestMROSurvivesInheritanceCycle(t *testing.T) {
	in, strs := newTestInterner()
	a := in.RegisterClass(strs.Intern("A"), source.Span{}, nil)
	bID := in.RegisterClass(strs.Intern("B"), source.Span{}, []ClassID{a})
	in.SetClassBases(a, []ClassID{bID})

	mro := in.MRO(a)
	if len(mro) != 2 {
		t.Errorf("cyclic mro length = %d, want 2", len(mro))
	}
}

func TestMemberLookupWalksMRO(t *testing.T) {
	in, strs := newTestInterner()
	b := in.Builtins()
	name := strs.Intern("bark")

	animal := in.RegisterClass(strs.Intern("Animal"), source.Span{}, []ClassID{b.Object})
	dog := in.RegisterClass(strs.Intern("Dog"), source.Span{}, []ClassID{animal})
	barkType := in.Callable(nil, in.None())
	in.SetClassMembers(animal, map[source.StringID]Member{name: {Type: barkType}})

	m, owner, ok := in.LookupMember(dog, name)
	if !ok {
		t.Fatal("member must be found through the MRO")
	}
	if owner != animal {
		t.Errorf("owner = %v, want the base class", owner)
	}
	if m.Type != barkType {
		t.Error("wrong member type")
	}
	if _, _, ok := in.LookupMember(dog, strs.Intern("meow")); ok {
		t.Error("absent member must not resolve")
	}
}

func TestAssignable(t *testing.T) {
	in, strs := newTestInterner()
	b := in.Builtins()
	i := in.Instance(b.Int)
	s := in.Instance(b.Str)
	boolT := in.Instance(b.Bool)

	animal := in.RegisterClass(strs.Intern("Animal"), source.Span{}, []ClassID{b.Object})
	dog := in.RegisterClass(strs.Intern("Dog"), source.Span{}, []ClassID{animal})

	tests := []struct {
		name string
		src  TypeID
		dst  TypeID
		want bool
	}{
		{"same", i, i, true},
		{"unknown src", in.Unknown(), i, true},
		{"unknown dst", i, in.Unknown(), true},
		{"never", in.Never(), i, true},
		{"int to str", i, s, false},
		{"bool to int", boolT, i, true},
		{"int to bool", i, boolT, false},
		{"subclass", in.Instance(dog), in.Instance(animal), true},
		{"superclass", in.Instance(animal), in.Instance(dog), false},
		{"into union", i, in.Union(i, s), true},
		{"union into member", in.Union(i, s), i, false},
		{"union into union", in.Union(i, boolT), in.Union(i, s), true},
		{"literal to class", in.Literal(b.Int, strs.Intern("3")), i, true},
		{"none to none", in.None(), in.None(), true},
		{"none to int", in.None(), i, false},
	}
	for _, tt := range tests {
		if got := in.Assignable(tt.src, tt.dst); got != tt.want {
			t.Errorf("%s: Assignable = %v, want %v", tt.name, got, tt.want)
		}
	}

	// контравариантность параметров, ковариантность результата
	fnDog := in.Callable([]TypeID{in.Instance(dog)}, in.Instance(dog))
	fnAnimal := in.Callable([]TypeID{in.Instance(animal)}, in.Instance(dog))
	if !in.Assignable(fnAnimal, fnDog) {
		t.Error("wider parameter must be accepted")
	}
	if in.Assignable(fnDog, fnAnimal) {
		t.Error("narrower parameter must be rejected")
	}
}

func TestUnifyAndSubstitute(t *testing.T) {
	in, strs := newTestInterner()
	b := in.Builtins()
	tv := in.TypeVar(strs.Intern("T"))
	i := in.Instance(b.Int)
	s := in.Instance(b.Str)

	// def f(x: list[T]) -> T  при вызове f([1,2])
	param := in.Instance(b.List, tv)
	arg := in.Instance(b.List, i)
	bindings := map[TypeID]TypeID{}
	if !in.Unify(param, arg, bindings) {
		t.Fatal("unification must succeed")
	}
	if got := in.Substitute(tv, bindings); got != i {
		t.Errorf("T bound to %v, want int", got)
	}

	// повторное связывание расширяет до объединения
	if !in.Unify(tv, s, bindings) {
		t.Fatal("re-binding must succeed")
	}
	if got := in.Substitute(tv, bindings); got != in.Union(i, s) {
		t.Errorf("re-bound T = %v, want int | str", got)
	}
}

func TestWiden(t *testing.T) {
	in, strs := newTestInterner()
	b := in.Builtins()
	lit := in.Literal(b.Int, strs.Intern("42"))
	if in.Widen(lit) != in.Instance(b.Int) {
		t.Error("literal must widen to its class instance")
	}
	i := in.Instance(b.Int)
	if in.Widen(i) != i {
		t.Error("non-literal must pass through Widen")
	}
}

func TestFormat(t *testing.T) {
	in, strs := newTestInterner()
	b := in.Builtins()
	i := in.Instance(b.Int)
	s := in.Instance(b.Str)

	tests := []struct {
		id   TypeID
		want string
	}{
		{in.Unknown(), "Unknown"},
		{in.None(), "None"},
		{i, "int"},
		{in.Instance(b.List, i), "list[int]"},
		{in.Union(i, s), in.Format(in.Union(i, s), strs)}, // детерминированность
		{in.ClassLiteral(b.Int), "type[int]"},
		{in.Callable([]TypeID{i, s}, in.Instance(b.Bool)), "def (int, str) -> bool"},
		{in.Literal(b.Int, strs.Intern("3")), "Literal[3]"},
	}
	for _, tt := range tests {
		if got := in.Format(tt.id, strs); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.id, got, tt.want)
		}
	}

	union := in.Format(in.Union(i, s), strs)
	if union != "int | str" && union != "str | int" {
		t.Errorf("union format = %q", union)
	}
}
