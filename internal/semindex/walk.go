package semindex

import (
	"strings"

	"pythia/internal/ast"
	"pythia/internal/source"
)

func (b *builder) walkBlock(body []ast.StmtID) {
	for _, id := range body {
		b.walkStmt(id)
	}
}

func (b *builder) walkStmt(id ast.StmtID) {
	stmt := b.arenas.Stmts.Get(id)
	if stmt == nil {
		return
	}
	switch stmt.Kind {
	case ast.StmtExpr:
		data, _ := b.arenas.Stmts.Expr(id)
		b.walkExpr(data.Expr)
	case ast.StmtAssign:
		b.walkAssign(id)
	case ast.StmtAugAssign:
		b.walkAugAssign(id)
	case ast.StmtIf:
		b.walkIf(id)
	case ast.StmtWhile:
		b.walkWhile(id)
	case ast.StmtFor:
		b.walkFor(id)
	case ast.StmtDef:
		b.walkDef(id, stmt.Span)
	case ast.StmtClass:
		b.walkClass(id, stmt.Span)
	case ast.StmtReturn:
		data, _ := b.arenas.Stmts.Return(id)
		b.walkExpr(data.Value)
	case ast.StmtImport:
		b.walkImport(id)
	case ast.StmtImportFrom:
		b.walkImportFrom(id)
	case ast.StmtTry:
		b.walkTry(id)
	case ast.StmtRaise:
		data, _ := b.arenas.Stmts.Raise(id)
		b.walkExpr(data.Exc)
	case ast.StmtGlobal:
		data, _ := b.arenas.Stmts.NameDecl(id)
		cur := b.cur()
		if cur.globals == nil {
			cur.globals = make(map[source.StringID]struct{}, len(data.Names))
		}
		for _, n := range data.Names {
			cur.globals[n] = struct{}{}
		}
	case ast.StmtNonlocal:
		data, _ := b.arenas.Stmts.NameDecl(id)
		cur := b.cur()
		if cur.nonlocals == nil {
			cur.nonlocals = make(map[source.StringID]struct{}, len(data.Names))
		}
		for _, n := range data.Names {
			cur.nonlocals[n] = struct{}{}
		}
	case ast.StmtAssert:
		data, _ := b.arenas.Stmts.Assert(id)
		b.walkExpr(data.Cond)
		b.walkExpr(data.Msg)
		// assert isinstance(...) сужает до конца скоупа
		cur := b.cur()
		cur.narrows = append(cur.narrows, b.narrowsFromCond(data.Cond, true)...)
	case ast.StmtWith:
		b.walkWith(id)
	case ast.StmtPass, ast.StmtBreak, ast.StmtContinue, ast.StmtError:
		// ничего не вносят
	}
}

func (b *builder) walkAssign(id ast.StmtID) {
	data, _ := b.arenas.Stmts.Assign(id)
	b.walkExpr(data.Ann)
	b.walkExpr(data.Value)
	for _, target := range data.Targets {
		b.bindTarget(target, BindAssign, data.Value, data.Ann, -1)
	}
}

func (b *builder) walkAugAssign(id ast.StmtID) {
	data, _ := b.arenas.Stmts.AugAssign(id)
	b.walkExpr(data.Value)
	// x += v читает старое значение перед записью
	b.walkExpr(data.Target)
	b.bindTarget(data.Target, BindAugAssign, data.Value, ast.NoExprID, -1)
}

func (b *builder) walkIf(id ast.StmtID) {
	data, _ := b.arenas.Stmts.If(id)
	b.walkExpr(data.Cond)

	pos := b.narrowsFromCond(data.Cond, true)
	thenEnv := b.walkBranch(data.Then, pos)
	elseEnv := b.walkBranch(data.Else, negateNarrows(pos))
	b.cur().env = joinEnv(thenEnv, elseEnv)
}

func (b *builder) walkWhile(id ast.StmtID) {
	data, _ := b.arenas.Stmts.While(id)
	b.walkExpr(data.Cond)

	pos := b.narrowsFromCond(data.Cond, true)
	bodyEnv := b.walkBranch(data.Body, pos)
	cur := b.cur()
	cur.env = joinEnv(cur.env, bodyEnv)
	b.walkBlock(data.Else)
}

func (b *builder) walkFor(id ast.StmtID) {
	data, _ := b.arenas.Stmts.For(id)
	b.walkExpr(data.Iter)
	b.bindTarget(data.Target, BindFor, data.Iter, ast.NoExprID, -1)

	bodyEnv := b.walkBranch(data.Body, nil)
	cur := b.cur()
	cur.env = joinEnv(cur.env, bodyEnv)
	b.walkBlock(data.Else)
}

func (b *builder) walkDef(id ast.StmtID, span source.Span) {
	data, _ := b.arenas.Stmts.Def(id)
	for _, dec := range data.Decorators {
		b.walkExpr(dec)
	}
	// аннотации и дефолты вычисляются в объемлющем скоупе
	for _, p := range data.Params {
		b.walkExpr(p.Ann)
		b.walkExpr(p.Default)
	}
	b.walkExpr(data.Returns)

	b.bind(Binding{
		Name:       data.Name,
		Kind:       BindDef,
		Span:       data.NameSpan,
		Stmt:       id,
		TupleIndex: -1,
		ParamIndex: -1,
	})

	cur := b.cur()
	scope := b.newScope(ScopeFunction, cur.id, span, id)
	// тело откладывается: Python исполняет его позже всех деклараций
	cur.deferred = append(cur.deferred, deferredBody{scope: scope, def: id})
}

func (b *builder) walkClass(id ast.StmtID, span source.Span) {
	data, _ := b.arenas.Stmts.Class(id)
	for _, dec := range data.Decorators {
		b.walkExpr(dec)
	}
	for _, base := range data.Bases {
		b.walkExpr(base)
	}

	b.bind(Binding{
		Name:       data.Name,
		Kind:       BindClass,
		Span:       data.NameSpan,
		Stmt:       id,
		TupleIndex: -1,
		ParamIndex: -1,
	})

	scope := b.newScope(ScopeClass, b.cur().id, span, id)
	b.push(scope, ScopeClass)
	b.walkBlock(data.Body)
	// тела методов идут после тела класса, пока его скоуп ещё на стеке
	b.processDeferred()
	b.pop()
}

func (b *builder) walkImport(id ast.StmtID) {
	data, _ := b.arenas.Stmts.Import(id)
	for _, alias := range data.Names {
		b.bind(Binding{
			Name:       b.importedName(alias),
			Kind:       BindImport,
			Span:       alias.Span,
			Stmt:       id,
			Module:     alias.Name,
			TupleIndex: -1,
			ParamIndex: -1,
		})
	}
}

func (b *builder) walkImportFrom(id ast.StmtID) {
	data, _ := b.arenas.Stmts.ImportFrom(id)
	if data.Star {
		stmt := b.arenas.Stmts.Get(id)
		bid := b.bind(Binding{
			Name:       data.Module,
			Kind:       BindImportStar,
			Span:       stmt.Span,
			Stmt:       id,
			Module:     data.Module,
			Level:      data.Level,
			TupleIndex: -1,
			ParamIndex: -1,
		})
		b.ix.StarImports = append(b.ix.StarImports, bid)
		return
	}
	for _, alias := range data.Names {
		name := alias.Asname
		if name == source.NoStringID {
			name = alias.Name
		}
		b.bind(Binding{
			Name:       name,
			Kind:       BindImportFrom,
			Span:       alias.Span,
			Stmt:       id,
			Module:     data.Module,
			Member:     alias.Name,
			Level:      data.Level,
			TupleIndex: -1,
			ParamIndex: -1,
		})
	}
}

// importedName picks the bound name for `import a.b.c` (a) and
// `import a.b.c as m` (m).
func (b *builder) importedName(alias ast.ImportAlias) source.StringID {
	if alias.Asname != source.NoStringID {
		return alias.Asname
	}
	full := b.arenas.StringsInterner.MustLookup(alias.Name)
	if i := strings.IndexByte(full, '.'); i >= 0 {
		return b.arenas.StringsInterner.Intern(full[:i])
	}
	return alias.Name
}

func (b *builder) walkTry(id ast.StmtID) {
	data, _ := b.arenas.Stmts.Try(id)
	cur := b.cur()

	pre := copyEnv(cur.env)
	b.walkBlock(data.Body)
	bodyEnv := cur.env

	// обработчик может сработать в любой точке тела
	entry := joinEnv(pre, bodyEnv)
	handlerEnvs := make([]map[source.StringID][]BindingID, 0, len(data.Handlers))
	for _, h := range data.Handlers {
		cur.env = copyEnv(entry)
		b.walkExpr(h.Type)
		if h.Name != source.NoStringID {
			b.bind(Binding{
				Name:       h.Name,
				Kind:       BindExcept,
				Span:       h.NameSpan,
				Ann:        h.Type,
				Stmt:       id,
				TupleIndex: -1,
				ParamIndex: -1,
			})
		}
		b.walkBlock(h.Body)
		handlerEnvs = append(handlerEnvs, cur.env)
	}

	cur.env = bodyEnv
	b.walkBlock(data.Else)
	out := cur.env
	for _, he := range handlerEnvs {
		out = joinEnv(out, he)
	}
	cur.env = out
	b.walkBlock(data.Finally)
}

func (b *builder) walkWith(id ast.StmtID) {
	data, _ := b.arenas.Stmts.With(id)
	for _, item := range data.Items {
		b.walkExpr(item.Ctx)
		if item.As != source.NoStringID {
			b.bind(Binding{
				Name:       item.As,
				Kind:       BindWith,
				Span:       item.AsSpan,
				Value:      item.Ctx,
				Stmt:       id,
				TupleIndex: -1,
				ParamIndex: -1,
			})
		}
	}
	b.walkBlock(data.Body)
}

// walkBranch runs a block against a copy of the current environment and
// returns the resulting one, leaving the current environment untouched.
func (b *builder) walkBranch(body []ast.StmtID, narrows []Narrow) map[source.StringID][]BindingID {
	cur := b.cur()
	saved := cur.env
	cur.env = copyEnv(saved)
	b.withNarrows(narrows, func() {
		b.walkBlock(body)
	})
	result := cur.env
	cur.env = saved
	return result
}

func (b *builder) withNarrows(narrows []Narrow, fn func()) {
	cur := b.cur()
	mark := len(cur.narrows)
	cur.narrows = append(cur.narrows, narrows...)
	fn()
	cur.narrows = cur.narrows[:mark]
}

// ---------------------------------------------------------------------------
// deferred function bodies

// processDeferred walks function and lambda bodies collected while
// walking the current scope. Deferral models Python execution order: a
// body sees every name bound anywhere in the enclosing scope, not just
// those bound above the def.
func (b *builder) processDeferred() {
	cur := b.cur()
	for len(cur.deferred) > 0 {
		items := cur.deferred
		cur.deferred = nil
		for _, d := range items {
			b.runDeferred(d)
		}
	}
}

func (b *builder) runDeferred(d deferredBody) {
	scope := b.ix.Scope(d.scope)
	if scope == nil {
		return
	}
	b.push(d.scope, scope.Kind)

	if d.lambda != ast.NoExprID {
		data, ok := b.arenas.Exprs.Lambda(d.lambda)
		if ok {
			b.bindParams(data.Params, ast.NoStmtID)
			b.walkExpr(data.Body)
		}
	} else {
		data, ok := b.arenas.Stmts.Def(d.def)
		if ok {
			b.bindParams(data.Params, d.def)
			b.walkBlock(data.Body)
		}
	}

	b.processDeferred()
	b.pop()
}

func (b *builder) bindParams(params []ast.Param, stmt ast.StmtID) {
	for i, p := range params {
		if p.Name == source.NoStringID {
			continue
		}
		b.bind(Binding{
			Name:       p.Name,
			Kind:       BindParam,
			Span:       p.Span,
			Ann:        p.Ann,
			Value:      p.Default,
			Stmt:       stmt,
			TupleIndex: -1,
			ParamIndex: i,
		})
	}
}

// ---------------------------------------------------------------------------
// expressions

func (b *builder) walkExpr(id ast.ExprID) {
	if id == ast.NoExprID {
		return
	}
	expr := b.arenas.Exprs.Get(id)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprName:
		data, _ := b.arenas.Exprs.Name(id)
		b.use(id, data.Name, expr.Span)
	case ast.ExprLit, ast.ExprError:
		// нечего резолвить
	case ast.ExprAttr:
		// имя атрибута резолвится по типу владельца, не лексически
		data, _ := b.arenas.Exprs.Attr(id)
		b.walkExpr(data.Owner)
	case ast.ExprCall:
		data, _ := b.arenas.Exprs.Call(id)
		b.walkExpr(data.Callee)
		for _, a := range data.Args {
			b.walkExpr(a)
		}
		for _, kw := range data.KwValues {
			b.walkExpr(kw)
		}
	case ast.ExprBinary:
		data, _ := b.arenas.Exprs.Binary(id)
		b.walkExpr(data.Left)
		b.walkExpr(data.Right)
	case ast.ExprUnary:
		data, _ := b.arenas.Exprs.Unary(id)
		b.walkExpr(data.Operand)
	case ast.ExprCompare:
		data, _ := b.arenas.Exprs.Compare(id)
		b.walkExpr(data.Left)
		for _, c := range data.Comparators {
			b.walkExpr(c)
		}
	case ast.ExprBool:
		data, _ := b.arenas.Exprs.Bool(id)
		if data.Op == ast.BoolAnd && len(data.Values) > 1 {
			// правые операнды and видят сужения левых
			b.walkExpr(data.Values[0])
			acc := b.narrowsFromCond(data.Values[0], true)
			for _, v := range data.Values[1:] {
				ns := acc
				b.withNarrows(ns, func() { b.walkExpr(v) })
				acc = append(acc, b.narrowsFromCond(v, true)...)
			}
			return
		}
		for _, v := range data.Values {
			b.walkExpr(v)
		}
	case ast.ExprSubscript:
		data, _ := b.arenas.Exprs.Subscript(id)
		b.walkExpr(data.Owner)
		b.walkExpr(data.Index)
	case ast.ExprTuple, ast.ExprList:
		data, _ := b.arenas.Exprs.Seq(id)
		for _, e := range data.Elems {
			b.walkExpr(e)
		}
	case ast.ExprDict:
		data, _ := b.arenas.Exprs.Dict(id)
		for _, k := range data.Keys {
			b.walkExpr(k)
		}
		for _, v := range data.Values {
			b.walkExpr(v)
		}
	case ast.ExprLambda:
		cur := b.cur()
		scope := b.newScope(ScopeLambda, cur.id, expr.Span, ast.NoStmtID)
		cur.deferred = append(cur.deferred, deferredBody{scope: scope, lambda: id})
	case ast.ExprIf:
		data, _ := b.arenas.Exprs.If(id)
		b.walkExpr(data.Cond)
		pos := b.narrowsFromCond(data.Cond, true)
		b.withNarrows(pos, func() { b.walkExpr(data.Then) })
		b.withNarrows(negateNarrows(pos), func() { b.walkExpr(data.Else) })
	case ast.ExprStar:
		data, _ := b.arenas.Exprs.Star(id)
		b.walkExpr(data.Value)
	}
}

// ---------------------------------------------------------------------------
// narrowing

// narrowsFromCond extracts isinstance guards from a condition.
// Supported shapes: isinstance(x, C), not <cond>, and-chains on the
// positive side, or-chains on the negative side.
func (b *builder) narrowsFromCond(cond ast.ExprID, positive bool) []Narrow {
	if cond == ast.NoExprID {
		return nil
	}
	expr := b.arenas.Exprs.Get(cond)
	if expr == nil {
		return nil
	}
	switch expr.Kind {
	case ast.ExprCall:
		data, _ := b.arenas.Exprs.Call(cond)
		callee, ok := b.arenas.Exprs.Name(data.Callee)
		if !ok || len(data.Args) != 2 {
			return nil
		}
		if callee.Name != b.isinstanceName() {
			return nil
		}
		target, ok := b.arenas.Exprs.Name(data.Args[0])
		if !ok {
			return nil
		}
		return []Narrow{{Name: target.Name, ClassExpr: data.Args[1], Positive: positive}}
	case ast.ExprUnary:
		data, _ := b.arenas.Exprs.Unary(cond)
		if data.Op == ast.UnaryNot {
			return b.narrowsFromCond(data.Operand, !positive)
		}
		return nil
	case ast.ExprBool:
		data, _ := b.arenas.Exprs.Bool(cond)
		// `a and b` истинно: оба сужения действуют;
		// `a or b` ложно: оба отрицания действуют
		if (data.Op == ast.BoolAnd) == positive {
			var out []Narrow
			for _, v := range data.Values {
				out = append(out, b.narrowsFromCond(v, positive)...)
			}
			return out
		}
		return nil
	default:
		return nil
	}
}

func (b *builder) isinstanceName() source.StringID {
	if b.isinstance == source.NoStringID {
		b.isinstance = b.arenas.StringsInterner.Intern("isinstance")
	}
	return b.isinstance
}

func negateNarrows(ns []Narrow) []Narrow {
	if len(ns) == 0 {
		return nil
	}
	out := make([]Narrow, len(ns))
	for i, n := range ns {
		out[i] = Narrow{Name: n.Name, ClassExpr: n.ClassExpr, Positive: !n.Positive}
	}
	return out
}
