package semindex

import (
	"pythia/internal/ast"
	"pythia/internal/source"
)

// ScopeID identifies a scope inside one Index. 0 is the invalid sentinel.
type ScopeID uint32

const NoScopeID ScopeID = 0

// BindingID identifies a binding inside one Index.
type BindingID uint32

const NoBindingID BindingID = 0

// UseID identifies a name read inside one Index.
type UseID uint32

const NoUseID UseID = 0

// ScopeKind mirrors Python's lexical scope flavors.
type ScopeKind uint8

const (
	ScopeInvalid ScopeKind = iota
	ScopeModule
	ScopeClass
	ScopeFunction
	ScopeLambda
	ScopeComprehension
)

// Scope is one node of the lexical scope tree. Built once per file
// revision and immutable afterward.
type Scope struct {
	Kind   ScopeKind
	Parent ScopeID
	Span   source.Span
	// Decl is the def/class statement that introduced the scope.
	Decl ast.StmtID
	// Names lists every binding of each name in source order.
	Names map[source.StringID][]BindingID
}

// BindingKind distinguishes the syntactic forms that give a name a value.
type BindingKind uint8

const (
	BindInvalid BindingKind = iota
	BindAssign
	BindAugAssign
	BindDef
	BindClass
	BindParam
	BindImport
	BindImportFrom
	BindImportStar
	BindExcept
	BindFor
	BindWith
)

// Binding records one place where a name gets a value.
type Binding struct {
	Scope ScopeID
	Name  source.StringID
	Kind  BindingKind
	Span  source.Span // бинд-имени, не всего оператора
	Used  bool

	// Value is the RHS expression for assignments, the iterable for
	// for-targets, the context expression for with-targets.
	Value ast.ExprID
	// Ann is the declared annotation (assignment or parameter), or the
	// exception class expression for except-bindings.
	Ann ast.ExprID
	// Stmt is the owning statement for def/class/import bindings.
	Stmt ast.StmtID
	// TupleIndex is the position inside a destructuring target, -1 for
	// plain single-name targets.
	TupleIndex int
	// ParamIndex is the position in the parameter list for BindParam.
	ParamIndex int

	// Import payload: dotted module, member name for from-imports,
	// number of leading dots for relative imports.
	Module source.StringID
	Member source.StringID
	Level  uint8
}

// Narrow records one type guard active at a use site, e.g. the then
// branch of `if isinstance(x, C)`.
type Narrow struct {
	Name      source.StringID
	ClassExpr ast.ExprID
	Positive  bool
}

// Use records one read of a name.
type Use struct {
	Scope ScopeID
	Name  source.StringID
	Expr  ast.ExprID
	Span  source.Span
	// Reaching holds the flow-sensitive candidate bindings. Empty means
	// the name did not resolve lexically; the checker then tries
	// builtins and star imports.
	Reaching []BindingID
	// Narrows are the guards applicable to this use, innermost last.
	Narrows []Narrow
	// MaybeStar is set when the module has star imports that could
	// supply this otherwise-unresolved name.
	MaybeStar bool
}

// Index is the per-file semantic index: scope tree, bindings, uses. It
// is a pure function of the file's AST and is rebuilt wholesale when the
// revision changes.
type Index struct {
	File     ast.FileID
	Scopes   []Scope   // слот 0 - invalid
	Bindings []Binding // слот 0 - invalid
	Uses     []Use     // слот 0 - invalid
	Module   ScopeID

	UseByExpr   map[ast.ExprID]UseID
	StarImports []BindingID

	// ErrorRecovered is inherited from the parse: downstream checks
	// soften unresolved-name diagnostics on broken trees.
	ErrorRecovered bool
}

// Scope returns the scope for an ID, nil when invalid.
func (ix *Index) Scope(id ScopeID) *Scope {
	if id == NoScopeID || int(id) >= len(ix.Scopes) {
		return nil
	}
	return &ix.Scopes[id]
}

// Binding returns the binding for an ID, nil when invalid.
func (ix *Index) Binding(id BindingID) *Binding {
	if id == NoBindingID || int(id) >= len(ix.Bindings) {
		return nil
	}
	return &ix.Bindings[id]
}

// Use returns the use for an ID, nil when invalid.
func (ix *Index) Use(id UseID) *Use {
	if id == NoUseID || int(id) >= len(ix.Uses) {
		return nil
	}
	return &ix.Uses[id]
}

// LookupFrom resolves a name lexically starting at scope, returning all
// bindings of the nearest enclosing scope that has any. Class scopes are
// skipped for anything but the starting scope, per LEGB.
func (ix *Index) LookupFrom(scope ScopeID, name source.StringID) []BindingID {
	first := true
	for id := scope; id != NoScopeID; {
		s := ix.Scope(id)
		if s == nil {
			break
		}
		if first || s.Kind != ScopeClass {
			if bs, ok := s.Names[name]; ok && len(bs) > 0 {
				return bs
			}
		}
		first = false
		id = s.Parent
	}
	return nil
}

// ModuleNames returns the names bound at module scope in first-binding
// order. This is the export surface star imports pull in.
func (ix *Index) ModuleNames() []source.StringID {
	mod := ix.Scope(ix.Module)
	if mod == nil {
		return nil
	}
	type entry struct {
		name  source.StringID
		first BindingID
	}
	ordered := make([]entry, 0, len(mod.Names))
	for name, bs := range mod.Names {
		ordered = append(ordered, entry{name: name, first: bs[0]})
	}
	// порядок по первому биндингу - детерминированный порядок источника
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].first > ordered[j].first; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	names := make([]source.StringID, len(ordered))
	for i, e := range ordered {
		names[i] = e.name
	}
	return names
}
