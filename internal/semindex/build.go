package semindex

import (
	"pythia/internal/ast"
	"pythia/internal/source"
)

// Build constructs the semantic index for one parsed file. The walk is
// deterministic (source order), so binding and use IDs are reproducible
// across runs.
func Build(arenas *ast.Builder, file ast.FileID) *Index {
	f := arenas.Files.Get(file)
	ix := &Index{
		File:      file,
		Scopes:    make([]Scope, 1, 16),
		Bindings:  make([]Binding, 1, 64),
		Uses:      make([]Use, 1, 64),
		UseByExpr: make(map[ast.ExprID]UseID, 64),
	}
	if f == nil {
		return ix
	}
	ix.ErrorRecovered = f.ErrorRecovered

	b := &builder{arenas: arenas, ix: ix}
	moduleScope := b.newScope(ScopeModule, NoScopeID, f.Span, ast.NoStmtID)
	ix.Module = moduleScope

	b.push(moduleScope, ScopeModule)
	b.walkBlock(f.Body)
	b.processDeferred()
	b.pop()

	b.markUsed()
	return ix
}

type deferredBody struct {
	scope  ScopeID
	def    ast.StmtID // функция; NoStmtID для лямбды
	lambda ast.ExprID
}

type scopeState struct {
	id        ScopeID
	kind      ScopeKind
	env       map[source.StringID][]BindingID
	globals   map[source.StringID]struct{}
	nonlocals map[source.StringID]struct{}
	narrows   []Narrow
	deferred  []deferredBody
}

type builder struct {
	arenas *ast.Builder
	ix     *Index
	stack  []*scopeState

	// кэш интернированного "isinstance"
	isinstance source.StringID
}

func (b *builder) cur() *scopeState {
	return b.stack[len(b.stack)-1]
}

func (b *builder) push(id ScopeID, kind ScopeKind) {
	b.stack = append(b.stack, &scopeState{
		id:   id,
		kind: kind,
		env:  make(map[source.StringID][]BindingID),
	})
}

func (b *builder) pop() {
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *builder) newScope(kind ScopeKind, parent ScopeID, span source.Span, decl ast.StmtID) ScopeID {
	id := ScopeID(len(b.ix.Scopes))
	b.ix.Scopes = append(b.ix.Scopes, Scope{
		Kind:   kind,
		Parent: parent,
		Span:   span,
		Decl:   decl,
		Names:  make(map[source.StringID][]BindingID),
	})
	return id
}

// ---------------------------------------------------------------------------
// bindings

func (b *builder) bind(binding Binding) BindingID {
	cur := b.cur()
	name := binding.Name

	// global/nonlocal перенаправляют привязку в другой скоуп
	targetScope := cur.id
	if _, ok := cur.globals[name]; ok {
		targetScope = b.ix.Module
	} else if _, ok := cur.nonlocals[name]; ok {
		if enc := b.enclosingFunctionScope(cur.id, name); enc != NoScopeID {
			targetScope = enc
		}
	}
	binding.Scope = targetScope

	id := BindingID(len(b.ix.Bindings))
	b.ix.Bindings = append(b.ix.Bindings, binding)

	scope := b.ix.Scope(targetScope)
	scope.Names[name] = append(scope.Names[name], id)

	// локальный env всегда указывает на свежую привязку
	cur.env[name] = []BindingID{id}
	return id
}

func (b *builder) enclosingFunctionScope(from ScopeID, name source.StringID) ScopeID {
	s := b.ix.Scope(from)
	if s == nil {
		return NoScopeID
	}
	for id := s.Parent; id != NoScopeID; {
		sc := b.ix.Scope(id)
		if sc == nil {
			break
		}
		if sc.Kind == ScopeFunction || sc.Kind == ScopeLambda {
			if _, ok := sc.Names[name]; ok {
				return id
			}
		}
		if sc.Kind == ScopeModule {
			break
		}
		id = sc.Parent
	}
	return NoScopeID
}

// bindTarget destructures an assignment target, creating bindings for
// names and uses for attribute/subscript owners.
func (b *builder) bindTarget(target ast.ExprID, kind BindingKind, value ast.ExprID, ann ast.ExprID, tupleIndex int) {
	expr := b.arenas.Exprs.Get(target)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprName:
		data, _ := b.arenas.Exprs.Name(target)
		b.bind(Binding{
			Name:       data.Name,
			Kind:       kind,
			Span:       expr.Span,
			Value:      value,
			Ann:        ann,
			TupleIndex: tupleIndex,
			ParamIndex: -1,
		})
	case ast.ExprTuple, ast.ExprList:
		seq, _ := b.arenas.Exprs.Seq(target)
		for i, elem := range seq.Elems {
			b.bindTarget(elem, kind, value, ast.NoExprID, i)
		}
	case ast.ExprStar:
		star, _ := b.arenas.Exprs.Star(target)
		b.bindTarget(star.Value, kind, value, ast.NoExprID, -1)
	case ast.ExprAttr:
		// obj.attr = v: читается владелец, имя не биндится
		attr, _ := b.arenas.Exprs.Attr(target)
		b.walkExpr(attr.Owner)
	case ast.ExprSubscript:
		sub, _ := b.arenas.Exprs.Subscript(target)
		b.walkExpr(sub.Owner)
		b.walkExpr(sub.Index)
	}
}

// ---------------------------------------------------------------------------
// uses

func (b *builder) use(expr ast.ExprID, name source.StringID, span source.Span) {
	cur := b.cur()
	reaching := b.resolve(name)

	var narrows []Narrow
	for _, n := range cur.narrows {
		if n.Name == name {
			narrows = append(narrows, n)
		}
	}

	id := UseID(len(b.ix.Uses))
	b.ix.Uses = append(b.ix.Uses, Use{
		Scope:     cur.id,
		Name:      name,
		Expr:      expr,
		Span:      span,
		Reaching:  reaching,
		Narrows:   narrows,
		MaybeStar: len(reaching) == 0 && len(b.ix.StarImports) > 0,
	})
	b.ix.UseByExpr[expr] = id
}

func (b *builder) resolve(name source.StringID) []BindingID {
	cur := b.cur()
	if _, ok := cur.globals[name]; ok {
		if mod := b.ix.Scope(b.ix.Module); mod != nil {
			return cloneBindings(mod.Names[name])
		}
		return nil
	}

	// активные скоупы: flow-sensitive окружения
	for i := len(b.stack) - 1; i >= 0; i-- {
		st := b.stack[i]
		if i < len(b.stack)-1 && st.kind == ScopeClass {
			continue // LEGB: тела функций не видят скоуп класса
		}
		if bs := st.env[name]; len(bs) > 0 {
			return cloneBindings(bs)
		}
	}

	// дальше по лексической цепочке завершённые скоупы
	bottom := b.ix.Scope(b.stack[0].id)
	if bottom == nil {
		return nil
	}
	return cloneBindings(b.lookupOuter(bottom.Parent, name))
}

func (b *builder) lookupOuter(scope ScopeID, name source.StringID) []BindingID {
	for id := scope; id != NoScopeID; {
		s := b.ix.Scope(id)
		if s == nil {
			break
		}
		if s.Kind != ScopeClass {
			if bs, ok := s.Names[name]; ok && len(bs) > 0 {
				return bs
			}
		}
		id = s.Parent
	}
	return nil
}

func cloneBindings(bs []BindingID) []BindingID {
	if len(bs) == 0 {
		return nil
	}
	out := make([]BindingID, len(bs))
	copy(out, bs)
	return out
}

func (b *builder) markUsed() {
	for i := range b.ix.Uses {
		for _, bid := range b.ix.Uses[i].Reaching {
			if bd := b.ix.Binding(bid); bd != nil {
				bd.Used = true
			}
		}
	}
}

// ---------------------------------------------------------------------------
// environment merge

func copyEnv(env map[source.StringID][]BindingID) map[source.StringID][]BindingID {
	out := make(map[source.StringID][]BindingID, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// joinEnv unions the live binding sets of two branches: both sets of
// candidates reach any use after the join.
func joinEnv(a, c map[source.StringID][]BindingID) map[source.StringID][]BindingID {
	out := make(map[source.StringID][]BindingID, len(a)+len(c))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range c {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		out[k] = unionBindings(existing, v)
	}
	return out
}

func unionBindings(a, c []BindingID) []BindingID {
	seen := make(map[BindingID]struct{}, len(a)+len(c))
	out := make([]BindingID, 0, len(a)+len(c))
	for _, set := range [2][]BindingID{a, c} {
		for _, id := range set {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
