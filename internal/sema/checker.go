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

// Env is the analysis-wide state shared by every Checker: the host, the
// type interner and the stable class identity table. One Env per
// analyzer session.
type Env struct {
	Host     Host
	Types    *types.Interner
	Strings  *source.Interner
	Classes  *ClassKeys
	builtins *builtinScope
}

func NewEnv(host Host, ti *types.Interner, strs *source.Interner) *Env {
	return &Env{
		Host:     host,
		Types:    ti,
		Strings:  strs,
		Classes:  NewClassKeys(),
		builtins: newBuiltinScope(ti, strs),
	}
}

// Checker infers types and reports semantic diagnostics for one file
// revision. It is single-use: a new revision gets a new Checker, only
// the Env survives.
type Checker struct {
	env      *Env
	art      *Artifacts
	reporter diag.Reporter

	bindingTypes   map[semindex.BindingID]types.TypeID
	exprTypes      map[ast.ExprID]types.TypeID
	activeBindings map[semindex.BindingID]struct{}
	classByBinding map[semindex.BindingID]types.ClassID
	// пути модулей за типами module, для атрибутного доступа
	modulePaths map[types.TypeID]string
}

func NewChecker(env *Env, art *Artifacts, reporter diag.Reporter) *Checker {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	return &Checker{
		env:            env,
		art:            art,
		reporter:       reporter,
		bindingTypes:   make(map[semindex.BindingID]types.TypeID, 64),
		exprTypes:      make(map[ast.ExprID]types.TypeID, 128),
		activeBindings: make(map[semindex.BindingID]struct{}, 8),
		classByBinding: make(map[semindex.BindingID]types.ClassID, 8),
		modulePaths:    make(map[types.TypeID]string, 8),
	}
}

// CheckFile runs every check over the file and emits diagnostics to the
// reporter. Cancellation is honored between top-level items.
func (c *Checker) CheckFile(ctx context.Context) error {
	ix := c.art.Index

	// неразрешённые имена
	for i := 1; i < len(ix.Uses); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		use := &ix.Uses[i]
		if len(use.Reaching) > 0 {
			continue
		}
		if _, ok := c.env.builtins.lookup(use.Name); ok {
			continue
		}
		if use.MaybeStar {
			if _, ok := c.starLookup(ctx, use.Name); ok {
				continue
			}
		}
		sev := diag.SevError
		if ix.ErrorRecovered {
			// на битом дереве связывание ненадёжно
			sev = diag.SevWarning
		}
		c.reporter.Report(diag.SemaUnresolvedName, sev, use.Span,
			"name \""+c.env.Strings.MustLookup(use.Name)+"\" is not defined", nil)
	}

	// импорты и неиспользуемые привязки
	for i := 1; i < len(ix.Bindings); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := semindex.BindingID(i)
		binding := ix.Binding(b)
		switch binding.Kind {
		case semindex.BindImport, semindex.BindImportFrom, semindex.BindImportStar:
			c.bindingType(ctx, b)
		case semindex.BindAssign:
			c.reportUnused(ix, binding)
		}
	}

	// типизация всех вызовов и атрибутов файла
	exprs := c.art.Arenas.Exprs
	for i := uint32(1); i <= exprs.Arena.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := ast.ExprID(i)
		switch exprs.Get(id).Kind {
		case ast.ExprCall, ast.ExprAttr:
			c.inferExpr(ctx, id)
		}
	}

	// классы: регистрация, члены, проверка переопределений
	for i := 1; i < len(ix.Bindings); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := semindex.BindingID(i)
		if ix.Binding(b).Kind == semindex.BindClass {
			cls := c.ensureClass(ctx, b)
			c.checkOverrides(ctx, cls)
		}
	}
	return nil
}

func (c *Checker) reportUnused(ix *semindex.Index, binding *semindex.Binding) {
	if binding.Used {
		return
	}
	scope := ix.Scope(binding.Scope)
	if scope == nil || scope.Kind != semindex.ScopeFunction {
		return
	}
	name := c.env.Strings.MustLookup(binding.Name)
	if strings.HasPrefix(name, "_") {
		return
	}
	c.reporter.Report(diag.SemaUnusedBinding, diag.SevWarning, binding.Span,
		"local variable \""+name+"\" is assigned but never used", nil)
}

// TypeOfExpr returns the inferred type of an expression node.
func (c *Checker) TypeOfExpr(ctx context.Context, id ast.ExprID) types.TypeID {
	return c.inferExpr(ctx, id)
}

// TypeOfBinding returns the inferred type of a binding.
func (c *Checker) TypeOfBinding(ctx context.Context, id semindex.BindingID) types.TypeID {
	return c.bindingType(ctx, id)
}

// ExportType resolves one exported name of this module, following star
// imports when the name is not bound locally.
func (c *Checker) ExportType(ctx context.Context, name string) (types.TypeID, bool) {
	ix := c.art.Index
	id := c.env.Strings.Intern(name)
	mod := ix.Scope(ix.Module)
	if mod == nil {
		return c.env.Types.Unknown(), false
	}
	if bs := mod.Names[id]; len(bs) > 0 {
		return c.unionOfBindings(ctx, bs), true
	}
	return c.starLookup(ctx, id)
}

// ExportNames lists the public module-scope names plus the public names
// pulled in by star imports.
func (c *Checker) ExportNames(ctx context.Context) []string {
	ix := c.art.Index
	seen := make(map[string]struct{}, 16)
	var out []string
	add := func(name string) {
		if strings.HasPrefix(name, "_") {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, id := range ix.ModuleNames() {
		add(c.env.Strings.MustLookup(id))
	}
	for _, sb := range ix.StarImports {
		if path, ok := c.starModulePath(ctx, ix.Binding(sb)); ok {
			for _, name := range c.env.Host.ExportNames(ctx, path) {
				add(name)
			}
		}
	}
	return out
}

func (c *Checker) starLookup(ctx context.Context, name source.StringID) (types.TypeID, bool) {
	for _, sb := range c.art.Index.StarImports {
		path, ok := c.starModulePath(ctx, c.art.Index.Binding(sb))
		if !ok {
			continue
		}
		if t, ok := c.env.Host.ExportType(ctx, path, c.env.Strings.MustLookup(name)); ok {
			return t, true
		}
	}
	return c.env.Types.Unknown(), false
}

func (c *Checker) starModulePath(ctx context.Context, binding *semindex.Binding) (string, bool) {
	if binding == nil {
		return "", false
	}
	module := ""
	if binding.Module != source.NoStringID {
		module = c.env.Strings.MustLookup(binding.Module)
	}
	return c.env.Host.ResolveImport(ctx, ImportRef{
		FromPath: c.art.Path,
		Module:   module,
		Level:    binding.Level,
	})
}

// ExprAt returns the innermost expression whose span covers the byte
// offset. Hover and type-at-offset build on this.
func ExprAt(art *Artifacts, offset uint32) (ast.ExprID, bool) {
	exprs := art.Arenas.Exprs
	best := ast.NoExprID
	bestLen := uint32(0)
	for i := uint32(1); i <= exprs.Arena.Len(); i++ {
		id := ast.ExprID(i)
		sp := exprs.Get(id).Span
		if !sp.Contains(offset) {
			continue
		}
		if best == ast.NoExprID || sp.Len() < bestLen {
			best, bestLen = id, sp.Len()
		}
	}
	return best, best != ast.NoExprID
}
