package sema

import (
	"context"
	"fmt"
	"strconv"

	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/semindex"
	"pythia/internal/source"
	"pythia/internal/types"
)

// inferExpr computes the type of an expression, memoized per checker
// run. The memo is pre-seeded with Unknown so pathological self
// references read a provisional value instead of recursing.
func (c *Checker) inferExpr(ctx context.Context, id ast.ExprID) types.TypeID {
	ti := c.env.Types
	if id == ast.NoExprID {
		return ti.Unknown()
	}
	if t, ok := c.exprTypes[id]; ok {
		return t
	}
	c.exprTypes[id] = ti.Unknown()
	t := c.computeExprType(ctx, id)
	c.exprTypes[id] = t
	return t
}

func (c *Checker) computeExprType(ctx context.Context, id ast.ExprID) types.TypeID {
	ti := c.env.Types
	exprs := c.art.Arenas.Exprs
	node := exprs.Get(id)
	if node == nil {
		return ti.Unknown()
	}
	switch node.Kind {
	case ast.ExprName:
		return c.nameType(ctx, id)
	case ast.ExprLit:
		return c.literalType(id)
	case ast.ExprAttr:
		data, _ := exprs.Attr(id)
		owner := c.inferExpr(ctx, data.Owner)
		return c.attrOn(ctx, owner, data, false)
	case ast.ExprCall:
		return c.callType(ctx, id, node.Span)
	case ast.ExprBinary:
		data, _ := exprs.Binary(id)
		return c.binaryType(ctx, data)
	case ast.ExprUnary:
		data, _ := exprs.Unary(id)
		operand := ti.Widen(c.inferExpr(ctx, data.Operand))
		if data.Op == ast.UnaryNot {
			return ti.Instance(ti.Builtins().Bool)
		}
		return operand
	case ast.ExprCompare:
		data, _ := exprs.Compare(id)
		c.inferExpr(ctx, data.Left)
		for _, cmp := range data.Comparators {
			c.inferExpr(ctx, cmp)
		}
		return ti.Instance(ti.Builtins().Bool)
	case ast.ExprBool:
		data, _ := exprs.Bool(id)
		members := make([]types.TypeID, 0, len(data.Values))
		for _, v := range data.Values {
			members = append(members, ti.Widen(c.inferExpr(ctx, v)))
		}
		return ti.Union(members...)
	case ast.ExprSubscript:
		data, _ := exprs.Subscript(id)
		return c.subscriptType(ctx, data)
	case ast.ExprTuple:
		data, _ := exprs.Seq(id)
		args := make([]types.TypeID, len(data.Elems))
		for i, e := range data.Elems {
			args[i] = ti.Widen(c.inferExpr(ctx, e))
		}
		return ti.Instance(ti.Builtins().Tuple, args...)
	case ast.ExprList:
		data, _ := exprs.Seq(id)
		if len(data.Elems) == 0 {
			return ti.Instance(ti.Builtins().List)
		}
		members := make([]types.TypeID, len(data.Elems))
		for i, e := range data.Elems {
			members[i] = ti.Widen(c.inferExpr(ctx, e))
		}
		return ti.Instance(ti.Builtins().List, ti.Union(members...))
	case ast.ExprDict:
		data, _ := exprs.Dict(id)
		if len(data.Values) == 0 {
			return ti.Instance(ti.Builtins().Dict)
		}
		keys := make([]types.TypeID, 0, len(data.Keys))
		values := make([]types.TypeID, 0, len(data.Values))
		for i := range data.Values {
			if i < len(data.Keys) && data.Keys[i] != ast.NoExprID {
				keys = append(keys, ti.Widen(c.inferExpr(ctx, data.Keys[i])))
			}
			values = append(values, ti.Widen(c.inferExpr(ctx, data.Values[i])))
		}
		return ti.Instance(ti.Builtins().Dict, ti.Union(keys...), ti.Union(values...))
	case ast.ExprLambda:
		data, _ := exprs.Lambda(id)
		params := make([]types.TypeID, len(data.Params))
		for i := range data.Params {
			params[i] = ti.Unknown()
		}
		return ti.Callable(params, ti.Widen(c.inferExpr(ctx, data.Body)))
	case ast.ExprIf:
		data, _ := exprs.If(id)
		c.inferExpr(ctx, data.Cond)
		return ti.Union(
			ti.Widen(c.inferExpr(ctx, data.Then)),
			ti.Widen(c.inferExpr(ctx, data.Else)),
		)
	case ast.ExprStar:
		data, _ := exprs.Star(id)
		return c.inferExpr(ctx, data.Value)
	default:
		return ti.Unknown()
	}
}

func (c *Checker) nameType(ctx context.Context, id ast.ExprID) types.TypeID {
	ti := c.env.Types
	useID, ok := c.art.Index.UseByExpr[id]
	if !ok {
		return ti.Unknown()
	}
	use := c.art.Index.Use(useID)
	var t types.TypeID
	switch {
	case len(use.Reaching) > 0:
		t = c.unionOfBindings(ctx, use.Reaching)
	default:
		if bt, found := c.env.builtins.lookup(use.Name); found {
			t = bt
		} else if use.MaybeStar {
			t, _ = c.starLookup(ctx, use.Name)
		} else {
			t = ti.Unknown()
		}
	}
	return c.applyNarrows(ctx, t, use.Narrows)
}

func (c *Checker) literalType(id ast.ExprID) types.TypeID {
	ti := c.env.Types
	b := ti.Builtins()
	data, _ := c.art.Arenas.Exprs.Literal(id)
	switch data.Kind {
	case ast.LitInt:
		return ti.Literal(b.Int, data.Value)
	case ast.LitFloat:
		return ti.Instance(b.Float)
	case ast.LitStr:
		return ti.Literal(b.Str, data.Value)
	case ast.LitTrue, ast.LitFalse:
		return ti.Literal(b.Bool, data.Value)
	case ast.LitNone:
		return ti.None()
	default:
		return ti.Unknown()
	}
}

// ---------------------------------------------------------------------------
// attribute access

// attrOn resolves attribute access against an owner type. quiet
// suppresses diagnostics when probing union members.
func (c *Checker) attrOn(ctx context.Context, owner types.TypeID, data *ast.ExprAttrData, quiet bool) types.TypeID {
	ti := c.env.Types
	tt, ok := ti.Lookup(owner)
	if !ok {
		return ti.Unknown()
	}
	switch tt.Kind {
	case types.KindUnknown, types.KindTypeVar, types.KindCallable, types.KindNever:
		return ti.Unknown()
	case types.KindUnion:
		members := ti.Members(owner)
		out := make([]types.TypeID, len(members))
		for i, m := range members {
			out[i] = c.attrOn(ctx, m, data, true)
		}
		return ti.Union(out...)
	case types.KindLiteral:
		return c.attrOn(ctx, ti.Instance(tt.Class), data, quiet)
	case types.KindModule:
		return c.moduleAttr(ctx, owner, data, quiet)
	case types.KindInstance:
		member, _, found := ti.LookupMember(tt.Class, data.Name)
		if !found {
			c.reportAttr(quiet, owner, data)
			return ti.Unknown()
		}
		return c.bindMethod(member.Type)
	case types.KindClass:
		member, _, found := ti.LookupMember(tt.Class, data.Name)
		if !found {
			c.reportAttr(quiet, owner, data)
			return ti.Unknown()
		}
		return member.Type
	case types.KindNone:
		c.reportAttr(quiet, owner, data)
		return ti.Unknown()
	default:
		return ti.Unknown()
	}
}

func (c *Checker) moduleAttr(ctx context.Context, owner types.TypeID, data *ast.ExprAttrData, quiet bool) types.TypeID {
	ti := c.env.Types
	path, ok := c.modulePaths[owner]
	if !ok {
		return ti.Unknown()
	}
	name := c.env.Strings.MustLookup(data.Name)
	if t, found := c.env.Host.ExportType(ctx, path, name); found {
		return t
	}
	// атрибут модуля может быть субмодулем пакета
	moduleName, _ := ti.ModuleName(owner)
	dotted := c.env.Strings.MustLookup(moduleName) + "." + name
	if subPath, found := c.env.Host.ResolveImport(ctx, ImportRef{
		FromPath: c.art.Path,
		Module:   dotted,
	}); found {
		t := ti.Module(c.env.Strings.Intern(dotted))
		c.modulePaths[t] = subPath
		return t
	}
	c.reportAttr(quiet, owner, data)
	return ti.Unknown()
}

func (c *Checker) reportAttr(quiet bool, owner types.TypeID, data *ast.ExprAttrData) {
	if quiet {
		return
	}
	c.reporter.Report(diag.SemaUnresolvedAttribute, diag.SevError, data.NameSpan,
		fmt.Sprintf("%q has no attribute %q",
			c.env.Types.Format(owner, c.env.Strings),
			c.env.Strings.MustLookup(data.Name)), nil)
}

// bindMethod drops the receiver from a signature accessed on an
// instance.
func (c *Checker) bindMethod(t types.TypeID) types.TypeID {
	ti := c.env.Types
	info, ok := ti.CallableInfo(t)
	if !ok || len(info.Params) == 0 {
		return t
	}
	return ti.Callable(info.Params[1:], info.Ret)
}

// ---------------------------------------------------------------------------
// calls

func (c *Checker) callType(ctx context.Context, id ast.ExprID, span source.Span) types.TypeID {
	exprs := c.art.Arenas.Exprs
	data, _ := exprs.Call(id)
	callee := c.inferExpr(ctx, data.Callee)

	variadic := false
	args := make([]types.TypeID, 0, len(data.Args))
	for _, a := range data.Args {
		if e := exprs.Get(a); e != nil && e.Kind == ast.ExprStar {
			variadic = true
			c.inferExpr(ctx, a)
			continue
		}
		args = append(args, c.inferExpr(ctx, a))
	}
	hasKw := len(data.KwValues) > 0
	for _, kw := range data.KwValues {
		c.inferExpr(ctx, kw)
	}
	return c.callOn(ctx, callee, args, variadic, hasKw, span, false)
}

func (c *Checker) callOn(ctx context.Context, callee types.TypeID, args []types.TypeID, variadic, hasKw bool, span source.Span, quiet bool) types.TypeID {
	ti := c.env.Types
	tt, ok := ti.Lookup(callee)
	if !ok {
		return ti.Unknown()
	}
	switch tt.Kind {
	case types.KindUnknown, types.KindTypeVar, types.KindNever:
		return ti.Unknown()
	case types.KindUnion:
		members := ti.Members(callee)
		out := make([]types.TypeID, len(members))
		for i, m := range members {
			out[i] = c.callOn(ctx, m, args, variadic, hasKw, span, true)
		}
		return ti.Union(out...)
	case types.KindCallable:
		info, _ := ti.CallableInfo(callee)
		return c.checkSignature(info, args, variadic, hasKw, span, quiet)
	case types.KindClass:
		return c.constructType(ctx, tt.Class, args, variadic, hasKw, span, quiet)
	case types.KindInstance:
		member, _, found := ti.LookupMember(tt.Class, c.env.Strings.Intern("__call__"))
		if found {
			return c.callOn(ctx, c.bindMethod(member.Type), args, variadic, hasKw, span, quiet)
		}
		c.reportNotCallable(quiet, callee, span)
		return ti.Unknown()
	default:
		c.reportNotCallable(quiet, callee, span)
		return ti.Unknown()
	}
}

func (c *Checker) checkSignature(info types.CallableInfo, args []types.TypeID, variadic, hasKw bool, span source.Span, quiet bool) types.TypeID {
	ti := c.env.Types
	if !variadic && !hasKw && len(args) != len(info.Params) {
		if !quiet {
			c.reporter.Report(diag.SemaBadArgumentCount, diag.SevError, span,
				"expected "+strconv.Itoa(len(info.Params))+" arguments, got "+strconv.Itoa(len(args)), nil)
		}
		return info.Ret
	}
	bindings := make(map[types.TypeID]types.TypeID, 2)
	n := len(args)
	if len(info.Params) < n {
		n = len(info.Params)
	}
	for i := 0; i < n; i++ {
		arg := ti.Widen(args[i])
		if !ti.Unify(info.Params[i], arg, bindings) {
			if !quiet {
				c.reporter.Report(diag.SemaBadArgumentType, diag.SevError, span,
					fmt.Sprintf("argument %d: %q is not assignable to %q",
						i+1,
						ti.Format(arg, c.env.Strings),
						ti.Format(info.Params[i], c.env.Strings)), nil)
			}
		}
	}
	return ti.Substitute(info.Ret, bindings)
}

func (c *Checker) constructType(ctx context.Context, cls types.ClassID, args []types.TypeID, variadic, hasKw bool, span source.Span, quiet bool) types.TypeID {
	ti := c.env.Types
	member, _, found := ti.LookupMember(cls, c.env.Strings.Intern("__init__"))
	if found {
		if info, ok := ti.CallableInfo(member.Type); ok && len(info.Params) > 0 {
			c.checkSignature(types.CallableInfo{Params: info.Params[1:], Ret: ti.None()},
				args, variadic, hasKw, span, quiet)
		}
	}
	return ti.Instance(cls)
}

func (c *Checker) reportNotCallable(quiet bool, callee types.TypeID, span source.Span) {
	if quiet {
		return
	}
	c.reporter.Report(diag.SemaNotCallable, diag.SevError, span,
		fmt.Sprintf("%q is not callable", c.env.Types.Format(callee, c.env.Strings)), nil)
}

// ---------------------------------------------------------------------------
// operators

func (c *Checker) binaryType(ctx context.Context, data *ast.ExprBinaryData) types.TypeID {
	ti := c.env.Types
	b := ti.Builtins()
	left := ti.Widen(c.inferExpr(ctx, data.Left))
	right := ti.Widen(c.inferExpr(ctx, data.Right))
	if left == ti.Unknown() || right == ti.Unknown() {
		return ti.Unknown()
	}

	isOf := func(t types.TypeID, cls types.ClassID) bool {
		tt, ok := ti.Lookup(t)
		return ok && tt.Kind == types.KindInstance && ti.IsSubclass(tt.Class, cls)
	}
	bothInt := isOf(left, b.Int) && isOf(right, b.Int)
	numeric := (isOf(left, b.Int) || isOf(left, b.Float)) &&
		(isOf(right, b.Int) || isOf(right, b.Float))

	switch data.Op {
	case ast.BinDiv:
		if numeric {
			return ti.Instance(b.Float)
		}
	case ast.BinAdd:
		if isOf(left, b.Str) && isOf(right, b.Str) {
			return ti.Instance(b.Str)
		}
		if isOf(left, b.List) && isOf(right, b.List) {
			return left
		}
		if isOf(left, b.Tuple) && isOf(right, b.Tuple) {
			return ti.Instance(b.Tuple)
		}
		if bothInt {
			return ti.Instance(b.Int)
		}
		if numeric {
			return ti.Instance(b.Float)
		}
	case ast.BinSub, ast.BinPow:
		if bothInt {
			return ti.Instance(b.Int)
		}
		if numeric {
			return ti.Instance(b.Float)
		}
	case ast.BinMul:
		if isOf(left, b.Str) && isOf(right, b.Int) {
			return ti.Instance(b.Str)
		}
		if isOf(left, b.List) && isOf(right, b.Int) {
			return left
		}
		if bothInt {
			return ti.Instance(b.Int)
		}
		if numeric {
			return ti.Instance(b.Float)
		}
	case ast.BinFloorDiv, ast.BinMod:
		if bothInt {
			return ti.Instance(b.Int)
		}
		if numeric {
			return ti.Instance(b.Float)
		}
		if data.Op == ast.BinMod && isOf(left, b.Str) {
			// форматирование через %
			return ti.Instance(b.Str)
		}
	case ast.BinBitOr, ast.BinBitAnd, ast.BinBitXor:
		if bothInt {
			return ti.Instance(b.Int)
		}
	}
	return ti.Unknown()
}

func (c *Checker) subscriptType(ctx context.Context, data *ast.ExprSubscriptData) types.TypeID {
	ti := c.env.Types
	b := ti.Builtins()
	owner := ti.Widen(c.inferExpr(ctx, data.Owner))
	c.inferExpr(ctx, data.Index)

	tt, ok := ti.Lookup(owner)
	if !ok {
		return ti.Unknown()
	}
	switch tt.Kind {
	case types.KindClass:
		// generic alias в выражении остаётся объектом типа
		return owner
	case types.KindInstance:
		args := ti.InstanceArgs(owner)
		switch tt.Class {
		case b.List:
			if len(args) == 1 {
				return args[0]
			}
		case b.Dict:
			if len(args) == 2 {
				return args[1]
			}
		case b.Tuple:
			if idx, ok := c.constIndex(data.Index); ok && idx >= 0 && idx < len(args) {
				return args[idx]
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

func (c *Checker) constIndex(expr ast.ExprID) (int, bool) {
	data, ok := c.art.Arenas.Exprs.Literal(expr)
	if !ok || data.Kind != ast.LitInt {
		return 0, false
	}
	n, err := strconv.Atoi(c.env.Strings.MustLookup(data.Value))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ---------------------------------------------------------------------------
// narrowing

func (c *Checker) applyNarrows(ctx context.Context, t types.TypeID, narrows []semindex.Narrow) types.TypeID {
	for _, n := range narrows {
		classes := c.classesOfExpr(ctx, n.ClassExpr)
		if len(classes) == 0 {
			continue
		}
		t = c.narrowTo(t, classes, n.Positive)
	}
	return t
}

// classesOfExpr extracts the classes named by an isinstance second
// argument: a class or a tuple of classes.
func (c *Checker) classesOfExpr(ctx context.Context, expr ast.ExprID) []types.ClassID {
	ti := c.env.Types
	exprs := c.art.Arenas.Exprs
	if seq, ok := exprs.Seq(expr); ok {
		var out []types.ClassID
		for _, e := range seq.Elems {
			out = append(out, c.classesOfExpr(ctx, e)...)
		}
		return out
	}
	t := c.inferExpr(ctx, expr)
	if tt, ok := ti.Lookup(t); ok && tt.Kind == types.KindClass {
		return []types.ClassID{tt.Class}
	}
	return nil
}

// narrowTo restricts t by an isinstance guard: the positive branch
// keeps members compatible with the guard classes, the negative branch
// drops members that are definitely instances of them.
func (c *Checker) narrowTo(t types.TypeID, classes []types.ClassID, positive bool) types.TypeID {
	ti := c.env.Types
	targets := make([]types.TypeID, len(classes))
	for i, cls := range classes {
		targets[i] = ti.Instance(cls)
	}
	target := ti.Union(targets...)

	if t == ti.Unknown() {
		if positive {
			return target
		}
		return t
	}

	var members []types.TypeID
	if tt, ok := ti.Lookup(t); ok && tt.Kind == types.KindUnion {
		members = ti.Members(t)
	} else {
		members = []types.TypeID{t}
	}

	isInstanceOf := func(m types.TypeID) bool {
		mt, ok := ti.Lookup(m)
		if !ok {
			return false
		}
		if mt.Kind != types.KindInstance && mt.Kind != types.KindLiteral {
			return false
		}
		for _, cls := range classes {
			if ti.IsSubclass(mt.Class, cls) {
				return true
			}
		}
		return false
	}

	kept := make([]types.TypeID, 0, len(members))
	for _, m := range members {
		if positive {
			if ti.Assignable(m, target) {
				kept = append(kept, m)
			}
		} else if !isInstanceOf(m) {
			kept = append(kept, m)
		}
	}
	if positive && len(kept) == 0 {
		return target
	}
	return ti.Union(kept...)
}
