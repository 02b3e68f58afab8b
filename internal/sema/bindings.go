package sema

import (
	"context"
	"strings"

	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/semindex"
	"pythia/internal/source"
	"pythia/internal/types"
)

// bindingType infers the type a binding gives its name. Memoized per
// checker run; re-entrant lookups (a recursive def reading itself)
// degrade to Unknown instead of recursing forever.
func (c *Checker) bindingType(ctx context.Context, id semindex.BindingID) types.TypeID {
	if t, ok := c.bindingTypes[id]; ok {
		return t
	}
	if _, active := c.activeBindings[id]; active {
		return c.env.Types.Unknown()
	}
	c.activeBindings[id] = struct{}{}
	t := c.computeBindingType(ctx, id)
	delete(c.activeBindings, id)
	c.bindingTypes[id] = t
	return t
}

func (c *Checker) computeBindingType(ctx context.Context, id semindex.BindingID) types.TypeID {
	ti := c.env.Types
	binding := c.art.Index.Binding(id)
	if binding == nil {
		return ti.Unknown()
	}
	switch binding.Kind {
	case semindex.BindAssign:
		if binding.Ann != ast.NoExprID {
			return c.evalAnnotation(ctx, binding.Ann)
		}
		return c.assignedValueType(ctx, binding)
	case semindex.BindAugAssign:
		return c.augAssignType(ctx, id, binding)
	case semindex.BindDef:
		return c.defType(ctx, binding)
	case semindex.BindClass:
		return ti.ClassLiteral(c.ensureClass(ctx, id))
	case semindex.BindParam:
		return c.paramType(ctx, binding)
	case semindex.BindImport, semindex.BindImportStar:
		return c.importType(ctx, binding)
	case semindex.BindImportFrom:
		return c.importFromType(ctx, binding)
	case semindex.BindFor:
		return c.elementType(ctx, c.inferExpr(ctx, binding.Value), binding.TupleIndex)
	case semindex.BindWith:
		return c.inferExpr(ctx, binding.Value)
	case semindex.BindExcept:
		return c.exceptType(ctx, binding.Ann)
	default:
		return ti.Unknown()
	}
}

// unionOfBindings combines every candidate binding of a name, widening
// literals so `x = 1` joins `x = "a"` as int | str.
func (c *Checker) unionOfBindings(ctx context.Context, bs []semindex.BindingID) types.TypeID {
	ti := c.env.Types
	if len(bs) == 1 {
		return ti.Widen(c.bindingType(ctx, bs[0]))
	}
	members := make([]types.TypeID, 0, len(bs))
	for _, b := range bs {
		members = append(members, ti.Widen(c.bindingType(ctx, b)))
	}
	return ti.Union(members...)
}

func (c *Checker) assignedValueType(ctx context.Context, binding *semindex.Binding) types.TypeID {
	ti := c.env.Types
	if binding.Value == ast.NoExprID {
		return ti.Unknown()
	}
	if binding.TupleIndex >= 0 {
		return c.destructuredType(ctx, binding)
	}
	return ti.Widen(c.inferExpr(ctx, binding.Value))
}

// destructuredType handles `a, b = expr` element extraction.
func (c *Checker) destructuredType(ctx context.Context, binding *semindex.Binding) types.TypeID {
	exprs := c.art.Arenas.Exprs
	if seq, ok := exprs.Seq(binding.Value); ok {
		if binding.TupleIndex < len(seq.Elems) {
			return c.env.Types.Widen(c.inferExpr(ctx, seq.Elems[binding.TupleIndex]))
		}
		return c.env.Types.Unknown()
	}
	return c.elementType(ctx, c.inferExpr(ctx, binding.Value), binding.TupleIndex)
}

// augAssignType joins the operand with every earlier binding of the
// name in the same scope: `x += e` reads before it writes.
func (c *Checker) augAssignType(ctx context.Context, id semindex.BindingID, binding *semindex.Binding) types.TypeID {
	ti := c.env.Types
	members := []types.TypeID{ti.Widen(c.inferExpr(ctx, binding.Value))}
	scope := c.art.Index.Scope(binding.Scope)
	if scope != nil {
		for _, prior := range scope.Names[binding.Name] {
			if prior < id {
				members = append(members, ti.Widen(c.bindingType(ctx, prior)))
			}
		}
	}
	return ti.Union(members...)
}

func (c *Checker) defType(ctx context.Context, binding *semindex.Binding) types.TypeID {
	ti := c.env.Types
	data, ok := c.art.Arenas.Stmts.Def(binding.Stmt)
	if !ok {
		return ti.Unknown()
	}
	params := make([]types.TypeID, len(data.Params))
	for i, p := range data.Params {
		if p.Ann != ast.NoExprID {
			params[i] = c.evalAnnotation(ctx, p.Ann)
		} else {
			params[i] = ti.Unknown()
		}
	}
	var ret types.TypeID
	if data.Returns != ast.NoExprID {
		ret = c.evalAnnotation(ctx, data.Returns)
	} else {
		ret = c.inferReturnType(ctx, data.Body)
	}
	return ti.Callable(params, ret)
}

// inferReturnType unions every return expression in the body; a body
// with no returns yields None.
func (c *Checker) inferReturnType(ctx context.Context, body []ast.StmtID) types.TypeID {
	ti := c.env.Types
	var members []types.TypeID
	c.forEachReturn(body, func(value ast.ExprID) {
		if value == ast.NoExprID {
			members = append(members, ti.None())
			return
		}
		members = append(members, ti.Widen(c.inferExpr(ctx, value)))
	})
	if len(members) == 0 {
		return ti.None()
	}
	return ti.Union(members...)
}

func (c *Checker) forEachReturn(body []ast.StmtID, fn func(ast.ExprID)) {
	stmts := c.art.Arenas.Stmts
	for _, id := range body {
		stmt := stmts.Get(id)
		if stmt == nil {
			continue
		}
		switch stmt.Kind {
		case ast.StmtReturn:
			data, _ := stmts.Return(id)
			fn(data.Value)
		case ast.StmtIf:
			data, _ := stmts.If(id)
			c.forEachReturn(data.Then, fn)
			c.forEachReturn(data.Else, fn)
		case ast.StmtWhile:
			data, _ := stmts.While(id)
			c.forEachReturn(data.Body, fn)
			c.forEachReturn(data.Else, fn)
		case ast.StmtFor:
			data, _ := stmts.For(id)
			c.forEachReturn(data.Body, fn)
			c.forEachReturn(data.Else, fn)
		case ast.StmtTry:
			data, _ := stmts.Try(id)
			c.forEachReturn(data.Body, fn)
			for _, h := range data.Handlers {
				c.forEachReturn(h.Body, fn)
			}
			c.forEachReturn(data.Else, fn)
			c.forEachReturn(data.Finally, fn)
		case ast.StmtWith:
			data, _ := stmts.With(id)
			c.forEachReturn(data.Body, fn)
		}
		// вложенные def/class не относятся к этой функции
	}
}

func (c *Checker) paramType(ctx context.Context, binding *semindex.Binding) types.TypeID {
	ti := c.env.Types
	if binding.Ann != ast.NoExprID {
		return c.evalAnnotation(ctx, binding.Ann)
	}
	// первый параметр метода - экземпляр класса
	if binding.ParamIndex == 0 {
		if cls, ok := c.enclosingClassOf(ctx, binding.Scope); ok {
			return ti.Instance(cls)
		}
	}
	if binding.Value != ast.NoExprID {
		return ti.Widen(c.inferExpr(ctx, binding.Value))
	}
	return ti.Unknown()
}

func (c *Checker) enclosingClassOf(ctx context.Context, scope semindex.ScopeID) (types.ClassID, bool) {
	ix := c.art.Index
	s := ix.Scope(scope)
	if s == nil || s.Kind != semindex.ScopeFunction {
		return types.NoClassID, false
	}
	parent := ix.Scope(s.Parent)
	if parent == nil || parent.Kind != semindex.ScopeClass {
		return types.NoClassID, false
	}
	bid, ok := c.classBindingForDecl(parent.Decl)
	if !ok {
		return types.NoClassID, false
	}
	return c.ensureClass(ctx, bid), true
}

func (c *Checker) classBindingForDecl(decl ast.StmtID) (semindex.BindingID, bool) {
	ix := c.art.Index
	for i := 1; i < len(ix.Bindings); i++ {
		b := &ix.Bindings[i]
		if b.Kind == semindex.BindClass && b.Stmt == decl {
			return semindex.BindingID(i), true
		}
	}
	return semindex.NoBindingID, false
}

// ---------------------------------------------------------------------------
// imports

func (c *Checker) importType(ctx context.Context, binding *semindex.Binding) types.TypeID {
	ti := c.env.Types
	full := c.env.Strings.MustLookup(binding.Module)
	bound := c.env.Strings.MustLookup(binding.Name)

	// `import a.b` связывает имя a с модулем a, не a.b
	module := full
	if bound != full && strings.HasPrefix(full, bound+".") {
		module = bound
	}
	path, ok := c.env.Host.ResolveImport(ctx, ImportRef{
		FromPath: c.art.Path,
		Module:   module,
		Level:    binding.Level,
	})
	if !ok {
		c.reportImportFailure(binding, module)
		return ti.Unknown()
	}
	// глубина `a.b.c` резолвится отдельно, чтобы файл попал в зависимости
	if module != full {
		c.env.Host.ResolveImport(ctx, ImportRef{FromPath: c.art.Path, Module: full})
	}
	t := ti.Module(c.env.Strings.Intern(module))
	c.modulePaths[t] = path
	return t
}

func (c *Checker) importFromType(ctx context.Context, binding *semindex.Binding) types.TypeID {
	ti := c.env.Types
	module := ""
	if binding.Module != source.NoStringID {
		module = c.env.Strings.MustLookup(binding.Module)
	}
	path, ok := c.env.Host.ResolveImport(ctx, ImportRef{
		FromPath: c.art.Path,
		Module:   module,
		Level:    binding.Level,
	})
	if !ok {
		c.reportImportFailure(binding, module)
		return ti.Unknown()
	}
	member := c.env.Strings.MustLookup(binding.Member)
	if t, ok := c.env.Host.ExportType(ctx, path, member); ok {
		return t
	}
	// `from pkg import mod` может означать субмодуль
	sub := member
	if module != "" {
		sub = module + "." + member
	}
	if subPath, ok := c.env.Host.ResolveImport(ctx, ImportRef{
		FromPath: c.art.Path,
		Module:   sub,
		Level:    binding.Level,
	}); ok {
		t := ti.Module(c.env.Strings.Intern(sub))
		c.modulePaths[t] = subPath
		return t
	}
	c.reporter.Report(diag.SemaUnresolvedImport, diag.SevError, binding.Span,
		"module \""+module+"\" has no exported name \""+member+"\"", nil)
	return ti.Unknown()
}

func (c *Checker) reportImportFailure(binding *semindex.Binding, module string) {
	if binding.Level > 0 {
		c.reporter.Report(diag.SemaBadRelativeImport, diag.SevError, binding.Span,
			"relative import could not be resolved", nil)
		return
	}
	c.reporter.Report(diag.SemaUnresolvedImport, diag.SevError, binding.Span,
		"import \""+module+"\" could not be resolved", nil)
}

func (c *Checker) exceptType(ctx context.Context, classExpr ast.ExprID) types.TypeID {
	ti := c.env.Types
	if classExpr == ast.NoExprID {
		return ti.Instance(ti.Builtins().BaseExc)
	}
	exprs := c.art.Arenas.Exprs
	// except (A, B) ловит объединение
	if seq, ok := exprs.Seq(classExpr); ok {
		members := make([]types.TypeID, 0, len(seq.Elems))
		for _, e := range seq.Elems {
			members = append(members, c.exceptType(ctx, e))
		}
		return ti.Union(members...)
	}
	t := c.inferExpr(ctx, classExpr)
	if tt, ok := ti.Lookup(t); ok && tt.Kind == types.KindClass {
		return ti.Instance(tt.Class)
	}
	return ti.Unknown()
}

// elementType extracts what iteration or destructuring yields from a
// container type.
func (c *Checker) elementType(ctx context.Context, container types.TypeID, index int) types.TypeID {
	ti := c.env.Types
	tt, ok := ti.Lookup(container)
	if !ok {
		return ti.Unknown()
	}
	b := ti.Builtins()
	switch tt.Kind {
	case types.KindUnion:
		members := ti.Members(container)
		out := make([]types.TypeID, 0, len(members))
		for _, m := range members {
			out = append(out, c.elementType(ctx, m, index))
		}
		return ti.Union(out...)
	case types.KindInstance:
		args := ti.InstanceArgs(container)
		switch tt.Class {
		case b.List:
			if len(args) == 1 {
				return args[0]
			}
		case b.Dict:
			// итерация по словарю даёт ключи
			if len(args) == 2 {
				return args[0]
			}
		case b.Tuple:
			if index >= 0 && index < len(args) {
				return args[index]
			}
			if len(args) > 0 {
				return ti.Union(args...)
			}
		case b.Str:
			return ti.Instance(b.Str)
		}
	}
	return ti.Unknown()
}

// ---------------------------------------------------------------------------
// classes

// ensureClass registers the nominal class behind a class binding and
// publishes its bases and member table. Identity is stable across
// re-analysis via the Env's ClassKeys.
func (c *Checker) ensureClass(ctx context.Context, id semindex.BindingID) types.ClassID {
	if cls, ok := c.classByBinding[id]; ok {
		return cls
	}
	ti := c.env.Types
	binding := c.art.Index.Binding(id)
	if binding == nil || binding.Kind != semindex.BindClass {
		return types.NoClassID
	}
	name := c.env.Strings.MustLookup(binding.Name)
	cls := c.env.Classes.Ensure(c.art.Path+"::"+name, func() types.ClassID {
		return ti.RegisterClass(binding.Name, binding.Span, nil)
	})
	// публикуем до разбора тела: методы могут ссылаться на свой класс
	c.classByBinding[id] = cls

	data, ok := c.art.Arenas.Stmts.Class(binding.Stmt)
	if !ok {
		return cls
	}
	bases := make([]types.ClassID, 0, len(data.Bases))
	for _, base := range data.Bases {
		t := c.inferExpr(ctx, base)
		if tt, ok := ti.Lookup(t); ok && tt.Kind == types.KindClass {
			bases = append(bases, tt.Class)
		}
	}
	if len(bases) == 0 {
		bases = append(bases, ti.Builtins().Object)
	}
	ti.SetClassBases(cls, bases)

	if scope, ok := c.classScopeForDecl(binding.Stmt); ok {
		members := make(map[source.StringID]types.Member, len(scope.Names))
		for memberName, bs := range scope.Names {
			last := bs[len(bs)-1]
			memberBinding := c.art.Index.Binding(last)
			members[memberName] = types.Member{
				Type: c.bindingType(ctx, last),
				Decl: memberBinding.Span,
			}
		}
		ti.SetClassMembers(cls, members)
	}
	return cls
}

func (c *Checker) classScopeForDecl(decl ast.StmtID) (*semindex.Scope, bool) {
	ix := c.art.Index
	for i := 1; i < len(ix.Scopes); i++ {
		s := &ix.Scopes[i]
		if s.Kind == semindex.ScopeClass && s.Decl == decl {
			return s, true
		}
	}
	return nil, false
}
