package driver

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/parser"
	"pythia/internal/project"
	"pythia/internal/query"
	"pythia/internal/resolver"
	"pythia/internal/sema"
	"pythia/internal/semindex"
	"pythia/internal/source"
	"pythia/internal/types"
)

// Query kinds registered on the runtime. "text" and "fsgen" are inputs,
// the rest are derived.
const (
	qText        = "text"
	qFsGen       = "fsgen"
	qConfig      = "config"
	qParse       = "parse"
	qResolve     = "resolve"
	qExportType  = "exportType"
	qExportNames = "exportNames"
	qDeps        = "deps"
	qCheck       = "check"
)

// Analyzer is the top-level analysis database: the file store, the query
// runtime, the shared type state and the resolver, with every cross-file
// fact routed through tracked queries. One Analyzer per configuration;
// a config change means a new Analyzer.
type Analyzer struct {
	fs  *source.FileSet
	rt  *query.Runtime
	cfg project.Config
	res *resolver.Resolver
	env *sema.Env

	cache    *DiskCache
	progress ProgressSink

	// confDiags are project-level problems found at construction
	// (dropped search roots). Prepended to every check result.
	confDiags []diag.Diagnostic
	// confBag receives resolver diagnostics raised lazily during
	// resolution (ambiguous modules).
	confBag *diag.Bag

	mu sync.Mutex
	// unstableCycles collects query keys whose cycle iteration hit the
	// bound and degraded; drained into the next check result.
	unstableCycles []string
	fsGen          uint64
}

// Option configures an Analyzer at construction.
type Option func(*Analyzer)

// WithDiskCache attaches a cross-process diagnostic cache.
func WithDiskCache(c *DiskCache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithProgress attaches a per-file progress sink for project runs.
func WithProgress(sink ProgressSink) Option {
	return func(a *Analyzer) { a.progress = sink }
}

// New builds an Analyzer over cfg. Invalid search roots are dropped and
// reported as project-level diagnostics instead of failing construction.
func New(cfg project.Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		fs:  source.NewFileSet(),
		rt:  query.NewRuntime(),
		cfg: cfg,
	}
	for _, problem := range a.cfg.ValidateRoots() {
		a.confDiags = append(a.confDiags,
			diag.NewWarning(diag.ConfBadSearchPath, source.Span{}, problem))
	}

	a.confBag = diag.NewBag(64)
	a.res = resolver.New(a.cfg, resolver.FileSetProbe{FS: a.fs, Disk: resolver.DiskProbe{}},
		diag.BagReporter{Bag: a.confBag})
	strs := source.NewInterner()
	a.env = sema.NewEnv(a, types.NewInterner(strs), strs)

	a.registerQueries()
	a.rt.OnUnstableCycle = func(key query.Key) {
		a.mu.Lock()
		a.unstableCycles = append(a.unstableCycles, key.String())
		a.mu.Unlock()
	}
	a.rt.SetInput(query.Key{Kind: qConfig, Arg: ""}, a.cfg.Digest())
	a.rt.SetInput(query.Key{Kind: qFsGen, Arg: ""}, a.fsGen)

	for _, o := range opts {
		o(a)
	}
	return a
}

// ProjectDiags returns configuration-level diagnostics: dropped search
// roots plus anything the resolver reported so far.
func (a *Analyzer) ProjectDiags() []diag.Diagnostic {
	out := append([]diag.Diagnostic(nil), a.confDiags...)
	return append(out, a.confBag.Items()...)
}

// FileSet exposes the revision-tracked store. Content mutation must go
// through ApplyChanges so the runtime sees every revision bump.
func (a *Analyzer) FileSet() *source.FileSet { return a.fs }

// Runtime exposes the query engine, mainly for instrumentation in tests.
func (a *Analyzer) Runtime() *query.Runtime { return a.rt }

// Config returns the configuration this analyzer answers for.
func (a *Analyzer) Config() project.Config { return a.cfg }

func (a *Analyzer) registerQueries() {
	a.rt.Register(qParse, a.parseQuery)
	a.rt.Register(qResolve, a.resolveQuery)
	a.rt.Register(qDeps, a.depsQuery)
	a.rt.Register(qCheck, a.checkQuery)

	unknown := a.env.Types.Unknown()
	// экспортные запросы участвуют в циклах импорта
	a.rt.RegisterCyclic(qExportType, a.exportTypeQuery, exportEntry{Type: unknown, OK: true})
	a.rt.RegisterCyclic(qExportNames, a.exportNamesQuery, []string(nil))
}

// parseResult is the cached output of the parse query: the artifacts
// plus the syntax diagnostics that producing them raised.
type parseResult struct {
	Art   *sema.Artifacts
	Diags []diag.Diagnostic
}

// ensureTracked pulls a file the resolver found on disk into the store
// and publishes its content digest as the "text" input. Files already
// tracked (virtual buffers, earlier loads) are left alone.
func (a *Analyzer) ensureTracked(path string) {
	key := query.Key{Kind: qText, Arg: path}
	if _, ok := a.rt.GetInput(key); ok {
		return
	}
	if f, err := a.fs.Read(path); err == nil {
		a.rt.SetInput(key, project.Digest(f.Hash))
		return
	}
	if _, err := a.fs.Load(path); err != nil {
		// отсутствующий файл тоже вход: нулевой дайджест
		a.rt.SetInput(key, project.Digest{})
		return
	}
	f, err := a.fs.Read(path)
	if err != nil {
		a.rt.SetInput(key, project.Digest{})
		return
	}
	a.rt.SetInput(key, project.Digest(f.Hash))
}

// parseQuery builds AST and semantic index for the latest snapshot of a
// path. Depends on the file's content digest, so rewriting identical
// bytes does not invalidate it.
func (a *Analyzer) parseQuery(ctx context.Context, rt *query.Runtime, path string) (any, error) {
	if _, err := rt.Get(ctx, query.Key{Kind: qText, Arg: path}); err != nil {
		return nil, err
	}
	file, err := a.fs.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	bag := diag.NewBag(a.bagCap())
	arenas := ast.NewBuilder(ast.Hints{}, a.env.Strings)
	res := parser.ParseFile(file, arenas, parser.Options{Reporter: diag.BagReporter{Bag: bag}})
	ix := semindex.Build(arenas, res.File)

	return &parseResult{
		Art:   &sema.Artifacts{Path: path, Arenas: arenas, Index: ix},
		Diags: bag.Items(),
	}, nil
}

// resolveArg encodes an import reference into a query argument. The
// requesting module only matters for relative imports, so absolute
// imports from different files share one cache entry.
func resolveArg(ref sema.ImportRef, reqModule string) string {
	if ref.Level == 0 {
		return "0\x00" + ref.Module + "\x00"
	}
	return strconv.Itoa(int(ref.Level)) + "\x00" + ref.Module + "\x00" + reqModule
}

func splitResolveArg(arg string) (level int, module, reqModule string) {
	parts := strings.SplitN(arg, "\x00", 3)
	if len(parts) != 3 {
		return 0, "", ""
	}
	level, _ = strconv.Atoi(parts[0])
	return level, parts[1], parts[2]
}

// resolveQuery maps a dotted module name to its defining file. Depends
// on the config digest and the filesystem generation, so changing
// search paths or creating/deleting files invalidates resolutions.
func (a *Analyzer) resolveQuery(ctx context.Context, rt *query.Runtime, arg string) (any, error) {
	if _, err := rt.Get(ctx, query.Key{Kind: qConfig, Arg: ""}); err != nil {
		return nil, err
	}
	if _, err := rt.Get(ctx, query.Key{Kind: qFsGen, Arg: ""}); err != nil {
		return nil, err
	}
	level, module, reqModule := splitResolveArg(arg)
	res, ok, err := a.res.ResolveRelative(level, module, reqModule)
	if err != nil || !ok {
		return "", nil
	}
	return res.Path, nil
}

// exportEntry is the cached answer of exportType: the type plus whether
// the module exports the name at all.
type exportEntry struct {
	Type types.TypeID
	OK   bool
}

func exportTypeArg(path, name string) string { return path + "\x00" + name }

func splitExportTypeArg(arg string) (path, name string) {
	if i := strings.IndexByte(arg, 0); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

func (a *Analyzer) exportTypeQuery(ctx context.Context, rt *query.Runtime, arg string) (any, error) {
	path, name := splitExportTypeArg(arg)
	art, err := a.artifacts(ctx, path)
	if err != nil {
		return exportEntry{Type: a.env.Types.Unknown(), OK: false}, nil
	}
	c := sema.NewChecker(a.env, art, diag.NopReporter{})
	t, ok := c.ExportType(ctx, name)
	return exportEntry{Type: t, OK: ok}, nil
}

func (a *Analyzer) exportNamesQuery(ctx context.Context, rt *query.Runtime, path string) (any, error) {
	art, err := a.artifacts(ctx, path)
	if err != nil {
		return []string(nil), nil
	}
	c := sema.NewChecker(a.env, art, diag.NopReporter{})
	names := c.ExportNames(ctx)
	sort.Strings(names)
	return names, nil
}

// depsQuery lists the files a module's direct imports resolve to,
// sorted and deduplicated. Used for disk-cache keys.
func (a *Analyzer) depsQuery(ctx context.Context, rt *query.Runtime, path string) (any, error) {
	art, err := a.artifacts(ctx, path)
	if err != nil {
		return []string(nil), nil
	}
	seen := make(map[string]struct{}, 8)
	var out []string
	add := func(module string, level uint8) {
		target, ok := a.ResolveImport(ctx, sema.ImportRef{FromPath: path, Module: module, Level: level})
		if !ok || target == path {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	ix := art.Index
	for i := 1; i < len(ix.Bindings); i++ {
		b := &ix.Bindings[i]
		switch b.Kind {
		case semindex.BindImport, semindex.BindImportFrom, semindex.BindImportStar:
			if b.Module != source.NoStringID {
				add(a.env.Strings.MustLookup(b.Module), b.Level)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// checkQuery runs full semantic analysis over one file and returns the
// sorted diagnostics. Syntax diagnostics from the parse are included.
func (a *Analyzer) checkQuery(ctx context.Context, rt *query.Runtime, path string) (any, error) {
	v, err := rt.Get(ctx, query.Key{Kind: qParse, Arg: path})
	if err != nil {
		return nil, err
	}
	pr := v.(*parseResult)

	bag := diag.NewBag(a.bagCap())
	for _, d := range pr.Diags {
		bag.Add(d)
	}
	c := sema.NewChecker(a.env, pr.Art, diag.BagReporter{Bag: bag})
	if err := c.CheckFile(ctx); err != nil {
		return nil, err
	}
	bag.Sort()
	bag.Dedup()
	return bag.Items(), nil
}

func (a *Analyzer) bagCap() int {
	if a.cfg.MaxDiagnostics > 0 {
		return a.cfg.MaxDiagnostics
	}
	return 1024
}

// artifacts fetches parse output through the runtime so the caller's
// query records the dependency edge.
func (a *Analyzer) artifacts(ctx context.Context, path string) (*sema.Artifacts, error) {
	a.ensureTracked(path)
	v, err := a.rt.Get(ctx, query.Key{Kind: qParse, Arg: path})
	if err != nil {
		return nil, err
	}
	return v.(*parseResult).Art, nil
}

// Artifacts implements sema.Host.
func (a *Analyzer) Artifacts(ctx context.Context, path string) (*sema.Artifacts, error) {
	return a.artifacts(ctx, path)
}

// ResolveImport implements sema.Host.
func (a *Analyzer) ResolveImport(ctx context.Context, ref sema.ImportRef) (string, bool) {
	reqModule := ""
	if ref.Level > 0 {
		reqModule = a.res.ModuleNameForPath(ref.FromPath)
	}
	v, err := a.rt.Get(ctx, query.Key{Kind: qResolve, Arg: resolveArg(ref, reqModule)})
	if err != nil {
		return "", false
	}
	path := v.(string)
	return path, path != ""
}

// ExportType implements sema.Host.
func (a *Analyzer) ExportType(ctx context.Context, path, name string) (types.TypeID, bool) {
	v, err := a.rt.Get(ctx, query.Key{Kind: qExportType, Arg: exportTypeArg(path, name)})
	if err != nil {
		return a.env.Types.Unknown(), false
	}
	e := v.(exportEntry)
	return e.Type, e.OK
}

// ExportNames implements sema.Host.
func (a *Analyzer) ExportNames(ctx context.Context, path string) []string {
	v, err := a.rt.Get(ctx, query.Key{Kind: qExportNames, Arg: path})
	if err != nil {
		return nil
	}
	names, _ := v.([]string)
	return names
}

// TypeAt returns the formatted type of the innermost expression covering
// a byte offset, for hover-style consumers.
func (a *Analyzer) TypeAt(ctx context.Context, path string, offset uint32) (string, bool) {
	art, err := a.artifacts(ctx, path)
	if err != nil {
		return "", false
	}
	id, ok := sema.ExprAt(art, offset)
	if !ok {
		return "", false
	}
	c := sema.NewChecker(a.env, art, diag.NopReporter{})
	t := c.TypeOfExpr(ctx, id)
	return a.env.Types.Format(t, a.env.Strings), true
}
