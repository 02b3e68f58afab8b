package types

import (
	"encoding/binary"
	"fmt"
	"sync"

	"fortio.org/safecast"

	"pythia/internal/source"
)

// ClassInfo stores the nominal side of a class type. Members are filled
// in after registration, once the class body has been analyzed.
type ClassInfo struct {
	Name source.StringID
	Decl source.Span
	// Bases in declaration order; resolution may leave NoClassID holes
	// for bases that did not resolve to classes.
	Bases      []ClassID
	Members    map[source.StringID]Member
	TypeParams []source.StringID
}

// Member is one attribute or method of a class.
type Member struct {
	Type TypeID
	Decl source.Span
}

// CallableInfo stores a function signature.
type CallableInfo struct {
	Params []TypeID
	Ret    TypeID
}

// LiteralInfo stores the value of a literal type alongside its class.
type LiteralInfo struct {
	Value source.StringID
}

// Interner provides stable TypeIDs keyed on structure. Safe for
// concurrent use: analysis workers intern types from many files at once.
type Interner struct {
	mu sync.RWMutex

	types []Type
	index map[string]TypeID

	classes   []ClassInfo
	instArgs  [][]TypeID
	members   [][]TypeID // union and intersection member lists
	callables []CallableInfo
	modules   []source.StringID
	literals  []LiteralInfo
	typeVars  []source.StringID

	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in types and the
// core builtin classes.
func NewInterner(strings *source.Interner) *Interner {
	in := &Interner{
		index: make(map[string]TypeID, 64),
	}
	// слот 0 везде зарезервирован под invalid
	in.types = append(in.types, Type{})
	in.classes = append(in.classes, ClassInfo{})
	in.instArgs = append(in.instArgs, nil)
	in.members = append(in.members, nil)
	in.callables = append(in.callables, CallableInfo{})
	in.modules = append(in.modules, source.NoStringID)
	in.literals = append(in.literals, LiteralInfo{})
	in.typeVars = append(in.typeVars, source.NoStringID)

	in.builtins.Unknown = in.internKeyed(Type{Kind: KindUnknown}, "?")
	in.builtins.Never = in.internKeyed(Type{Kind: KindNever}, "!")
	in.builtins.None = in.internKeyed(Type{Kind: KindNone}, "N")

	object := in.RegisterClass(strings.Intern("object"), source.Span{}, nil)
	in.builtins.Object = object
	reg := func(name string) ClassID {
		return in.RegisterClass(strings.Intern(name), source.Span{}, []ClassID{object})
	}
	in.builtins.Int = reg("int")
	in.builtins.Float = reg("float")
	in.builtins.Str = reg("str")
	// bool наследует int, как в рантайме питона
	in.builtins.Bool = in.RegisterClass(strings.Intern("bool"), source.Span{}, []ClassID{in.builtins.Int})
	in.builtins.List = reg("list")
	in.builtins.Dict = reg("dict")
	in.builtins.Tuple = reg("tuple")
	in.builtins.BaseExc = reg("BaseException")
	in.builtins.Function = reg("function")
	return in
}

// Builtins returns seeded TypeIDs and ClassIDs.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Unknown returns the absorbing Unknown type.
func (in *Interner) Unknown() TypeID { return in.builtins.Unknown }

// Never returns the bottom type.
func (in *Interner) Never() TypeID { return in.builtins.Never }

// None returns the type of the None value.
func (in *Interner) None() TypeID { return in.builtins.None }

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// RegisterClass allocates a fresh nominal class slot. Classes are never
// deduplicated: two classes with the same name are distinct types.
func (in *Interner) RegisterClass(name source.StringID, decl source.Span, bases []ClassID) ClassID {
	in.mu.Lock()
	defer in.mu.Unlock()
	slot, err := safecast.Conv[uint32](len(in.classes))
	if err != nil {
		panic(fmt.Errorf("class table overflow: %w", err))
	}
	in.classes = append(in.classes, ClassInfo{
		Name:  name,
		Decl:  decl,
		Bases: cloneClassIDs(bases),
	})
	return ClassID(slot)
}

// SetClassBases replaces the base list of a registered class.
func (in *Interner) SetClassBases(id ClassID, bases []ClassID) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if info := in.classInfoLocked(id); info != nil {
		info.Bases = cloneClassIDs(bases)
	}
}

// SetClassMembers publishes the analyzed member table of a class.
func (in *Interner) SetClassMembers(id ClassID, members map[source.StringID]Member) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if info := in.classInfoLocked(id); info != nil {
		info.Members = members
	}
}

// ClassInfo returns a copy-safe view of the class metadata.
func (in *Interner) ClassInfo(id ClassID) (ClassInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.classInfoLocked(id)
	if info == nil {
		return ClassInfo{}, false
	}
	return *info, true
}

func (in *Interner) classInfoLocked(id ClassID) *ClassInfo {
	if id == NoClassID || int(id) >= len(in.classes) {
		return nil
	}
	return &in.classes[id]
}

// Instance interns the instance type of a class with the given generic
// arguments (none for plain instances).
func (in *Interner) Instance(class ClassID, args ...TypeID) TypeID {
	if class == NoClassID {
		return in.builtins.Unknown
	}
	key := buildKey('i', uint32(class), args...)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	slot := uint32(0)
	if len(args) > 0 {
		slot = uint32(len(in.instArgs))
		in.instArgs = append(in.instArgs, cloneTypeIDs(args))
	}
	return in.internLocked(Type{Kind: KindInstance, Class: class, Payload: slot}, key)
}

// InstanceArgs returns generic arguments of an instance type.
func (in *Interner) InstanceArgs(id TypeID) []TypeID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindInstance || tt.Payload == 0 {
		return nil
	}
	return cloneTypeIDs(in.instArgs[tt.Payload])
}

// ClassLiteral interns the type of the class object itself (type[C]).
func (in *Interner) ClassLiteral(class ClassID) TypeID {
	if class == NoClassID {
		return in.builtins.Unknown
	}
	key := buildKey('c', uint32(class))
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internLocked(Type{Kind: KindClass, Class: class}, key)
}

// Module interns the type of a module object.
func (in *Interner) Module(name source.StringID) TypeID {
	key := buildKey('m', uint32(name))
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	slot := uint32(len(in.modules))
	in.modules = append(in.modules, name)
	return in.internLocked(Type{Kind: KindModule, Payload: slot}, key)
}

// ModuleName returns the dotted name behind a module type.
func (in *Interner) ModuleName(id TypeID) (source.StringID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindModule {
		return source.NoStringID, false
	}
	return in.modules[tt.Payload], true
}

// Callable interns a function signature type.
func (in *Interner) Callable(params []TypeID, ret TypeID) TypeID {
	key := buildKey('f', uint32(ret), params...)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	slot := uint32(len(in.callables))
	in.callables = append(in.callables, CallableInfo{Params: cloneTypeIDs(params), Ret: ret})
	return in.internLocked(Type{Kind: KindCallable, Payload: slot}, key)
}

// CallableInfo returns the signature behind a callable type.
func (in *Interner) CallableInfo(id TypeID) (CallableInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindCallable {
		return CallableInfo{}, false
	}
	info := in.callables[tt.Payload]
	return CallableInfo{Params: cloneTypeIDs(info.Params), Ret: info.Ret}, true
}

// Literal interns a literal type: the value plus its runtime class.
func (in *Interner) Literal(class ClassID, value source.StringID) TypeID {
	key := buildKey('l', uint32(class), TypeID(value))
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	slot := uint32(len(in.literals))
	in.literals = append(in.literals, LiteralInfo{Value: value})
	return in.internLocked(Type{Kind: KindLiteral, Class: class, Payload: slot}, key)
}

// LiteralValue returns the literal's source text.
func (in *Interner) LiteralValue(id TypeID) (source.StringID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindLiteral {
		return source.NoStringID, false
	}
	return in.literals[tt.Payload].Value, true
}

// TypeVar interns an unsubstituted generic type parameter.
func (in *Interner) TypeVar(name source.StringID) TypeID {
	key := buildKey('v', uint32(name))
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	slot := uint32(len(in.typeVars))
	in.typeVars = append(in.typeVars, name)
	return in.internLocked(Type{Kind: KindTypeVar, Payload: slot}, key)
}

// TypeVarName returns the name of a type variable.
func (in *Interner) TypeVarName(id TypeID) (source.StringID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindTypeVar {
		return source.NoStringID, false
	}
	return in.typeVars[tt.Payload], true
}

// Widen maps a literal type to its class instance; other types pass
// through unchanged.
func (in *Interner) Widen(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindLiteral {
		return id
	}
	return in.Instance(tt.Class)
}

func (in *Interner) lookupLocked(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

func (in *Interner) internKeyed(t Type, key string) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internLocked(t, key)
}

func (in *Interner) internLocked(t Type, key string) TypeID {
	slot, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("type table overflow: %w", err))
	}
	id := TypeID(slot)
	in.types = append(in.types, t)
	in.index[key] = id
	return id
}

// buildKey produces the canonical map key for one structural shape.
func buildKey(tag byte, head uint32, ids ...TypeID) string {
	buf := make([]byte, 0, 5+4*len(ids))
	buf = append(buf, tag)
	buf = binary.LittleEndian.AppendUint32(buf, head)
	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	}
	return string(buf)
}

func cloneTypeIDs(ids []TypeID) []TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out
}

func cloneClassIDs(ids []ClassID) []ClassID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]ClassID, len(ids))
	copy(out, ids)
	return out
}
