package sema

import (
	"context"

	"pythia/internal/ast"
	"pythia/internal/source"
	"pythia/internal/types"
)

// evalAnnotation interprets an expression in annotation position as a
// type: `int`, `list[int]`, `int | None`, `"Forward"`. Anything it
// cannot interpret degrades to Unknown.
func (c *Checker) evalAnnotation(ctx context.Context, expr ast.ExprID) types.TypeID {
	ti := c.env.Types
	if expr == ast.NoExprID {
		return ti.Unknown()
	}
	exprs := c.art.Arenas.Exprs
	node := exprs.Get(expr)
	if node == nil {
		return ti.Unknown()
	}
	switch node.Kind {
	case ast.ExprName:
		data, _ := exprs.Name(expr)
		t := c.classToInstance(c.inferExpr(ctx, expr))
		if t == ti.Unknown() {
			// одиночная заглавная буква без привязки - параметр типа
			name := c.env.Strings.MustLookup(data.Name)
			if len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z' {
				return ti.TypeVar(data.Name)
			}
		}
		return t
	case ast.ExprLit:
		data, _ := exprs.Literal(expr)
		switch data.Kind {
		case ast.LitNone:
			return ti.None()
		case ast.LitStr:
			return c.forwardRef(ctx, data.Value)
		}
		return ti.Unknown()
	case ast.ExprAttr:
		return c.classToInstance(c.inferExpr(ctx, expr))
	case ast.ExprSubscript:
		data, _ := exprs.Subscript(expr)
		cls := c.annotationClass(ctx, data.Owner)
		if cls == types.NoClassID {
			return ti.Unknown()
		}
		var args []types.TypeID
		if seq, ok := exprs.Seq(data.Index); ok {
			for _, e := range seq.Elems {
				args = append(args, c.evalAnnotation(ctx, e))
			}
		} else {
			args = append(args, c.evalAnnotation(ctx, data.Index))
		}
		return ti.Instance(cls, args...)
	case ast.ExprBinary:
		data, _ := exprs.Binary(expr)
		if data.Op == ast.BinBitOr {
			return ti.Union(
				c.evalAnnotation(ctx, data.Left),
				c.evalAnnotation(ctx, data.Right),
			)
		}
		return ti.Unknown()
	default:
		return ti.Unknown()
	}
}

// forwardRef resolves a string annotation ("G") against module scope,
// which is where forward-referenced classes land by the time bodies are
// analyzed.
func (c *Checker) forwardRef(ctx context.Context, name source.StringID) types.TypeID {
	ti := c.env.Types
	ix := c.art.Index
	bs := ix.LookupFrom(ix.Module, name)
	if len(bs) == 0 {
		if t, ok := c.env.builtins.lookup(name); ok {
			return c.classToInstance(t)
		}
		return ti.Unknown()
	}
	return c.classToInstance(c.unionOfBindings(ctx, bs))
}

// classToInstance maps `type[C]` in annotation position to the instance
// type C; composable types pass through.
func (c *Checker) classToInstance(t types.TypeID) types.TypeID {
	ti := c.env.Types
	tt, ok := ti.Lookup(t)
	if !ok {
		return ti.Unknown()
	}
	switch tt.Kind {
	case types.KindClass:
		return ti.Instance(tt.Class)
	case types.KindUnion:
		members := ti.Members(t)
		out := make([]types.TypeID, len(members))
		for i, m := range members {
			out[i] = c.classToInstance(m)
		}
		return ti.Union(out...)
	case types.KindUnknown, types.KindNone, types.KindInstance,
		types.KindTypeVar, types.KindCallable, types.KindNever:
		return t
	default:
		return ti.Unknown()
	}
}

func (c *Checker) annotationClass(ctx context.Context, expr ast.ExprID) types.ClassID {
	t := c.inferExpr(ctx, expr)
	if tt, ok := c.env.Types.Lookup(t); ok && tt.Kind == types.KindClass {
		return tt.Class
	}
	return types.NoClassID
}
