package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pythia/internal/diag"
	"pythia/internal/project"
	"pythia/internal/project/dag"
	"pythia/internal/query"
	"pythia/internal/source"
)

// FileResult is the outcome of checking one file.
type FileResult struct {
	Path  string
	Diags []diag.Diagnostic
	// Pass is false when any diagnostic is an error.
	Pass bool
	// FromCache marks results served from the disk cache.
	FromCache bool
}

// ProjectResult aggregates per-file results in deterministic path order.
type ProjectResult struct {
	Files []FileResult
	// ProjectDiags are configuration-level problems not tied to a file.
	ProjectDiags []diag.Diagnostic
}

// Pass reports whether the whole run is error-free.
func (r *ProjectResult) Pass() bool {
	for _, f := range r.Files {
		if !f.Pass {
			return false
		}
	}
	for _, d := range r.ProjectDiags {
		if d.Severity == diag.SevError {
			return false
		}
	}
	return true
}

// CheckFile analyzes one file and returns its sorted diagnostics. Usable
// both one-shot and inside a long-lived session; repeated calls with no
// intervening changes cost one cache validation.
func (a *Analyzer) CheckFile(ctx context.Context, path string) (FileResult, error) {
	a.ensureTracked(path)

	if a.cache != nil {
		if res, ok := a.cachedResult(ctx, path); ok {
			return res, nil
		}
	}

	v, err := a.rt.Get(ctx, query.Key{Kind: qCheck, Arg: path})
	if err != nil {
		return FileResult{Path: path}, err
	}
	diags, _ := v.([]diag.Diagnostic)
	diags = append(a.drainCycleDiags(), diags...)

	res := FileResult{Path: path, Diags: diags, Pass: !hasError(diags)}
	if a.cache != nil {
		a.storeResult(ctx, path, res)
	}
	return res, nil
}

// CheckProject discovers every .py file under the source roots and
// checks them in dependency-first batches, files inside a batch in
// parallel. Result order is by path regardless of completion order.
func (a *Analyzer) CheckProject(ctx context.Context) (*ProjectResult, error) {
	paths, err := a.ProjectFiles()
	if err != nil {
		return nil, err
	}

	out := &ProjectResult{
		Files: make([]FileResult, len(paths)),
	}
	pos := make(map[string]int, len(paths))
	for i, path := range paths {
		pos[path] = i
		a.emit(ProgressEvent{File: path, Status: StatusQueued})
	}

	for _, batch := range a.checkBatches(ctx, paths) {
		g, gctx := errgroup.WithContext(ctx)
		if a.cfg.Jobs > 0 {
			g.SetLimit(a.cfg.Jobs)
		}
		for _, path := range batch {
			g.Go(func() error {
				a.emit(ProgressEvent{File: path, Status: StatusWorking})
				start := time.Now()
				res, err := a.CheckFile(gctx, path)
				if err != nil {
					a.emit(ProgressEvent{File: path, Status: StatusError, Elapsed: time.Since(start)})
					return err
				}
				out.Files[pos[path]] = res
				a.emit(ProgressEvent{File: path, Status: statusOf(res), Elapsed: time.Since(start)})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	// проектные диагностики собираем после прохода: резолвер мог
	// дорепортить во время анализа
	out.ProjectDiags = a.ProjectDiags()
	return out, nil
}

// checkBatches orders the project files so that dependencies are
// analyzed before their importers. Warm export queries make the later
// batches mostly cache hits. Files stuck in import cycles form the last
// batch; running them in parallel is safe because each worker iterates
// the cycle on its own stack instead of waiting on another worker.
func (a *Analyzer) checkBatches(ctx context.Context, paths []string) [][]string {
	files := make([]dag.FileImports, 0, len(paths))
	for _, path := range paths {
		a.ensureTracked(path)
		fi := dag.FileImports{Path: path}
		if v, err := a.rt.Get(ctx, query.Key{Kind: qDeps, Arg: path}); err == nil {
			fi.Imports, _ = v.([]string)
		}
		files = append(files, fi)
	}

	idx := dag.BuildIndex(files)
	topo := dag.ToposortKahn(dag.BuildGraph(idx, files))

	batches := make([][]string, 0, len(topo.Batches)+1)
	for _, batch := range topo.Batches {
		wave := make([]string, 0, len(batch))
		for _, id := range batch {
			wave = append(wave, idx.IDToPath[int(id)])
		}
		batches = append(batches, wave)
	}
	if len(topo.Cycles) > 0 {
		wave := make([]string, 0, len(topo.Cycles))
		for _, id := range topo.Cycles {
			wave = append(wave, idx.IDToPath[int(id)])
		}
		batches = append(batches, wave)
	}
	return batches
}

// ProjectFiles walks the first-party roots collecting checkable sources.
// Stub and package roots participate in resolution only.
func (a *Analyzer) ProjectFiles() ([]string, error) {
	seen := make(map[string]struct{}, 64)
	var paths []string
	for _, root := range a.cfg.Roots {
		if root.Kind != project.RootSource && root.Kind != project.RootExtra {
			continue
		}
		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if strings.HasPrefix(name, ".") || name == "__pycache__" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(name, ".py") {
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Diagnose is the one-shot convenience used by the CLI: check a single
// path with project-level diagnostics folded in.
func (a *Analyzer) Diagnose(ctx context.Context, path string) (FileResult, error) {
	res, err := a.CheckFile(ctx, path)
	if err != nil {
		return res, err
	}
	if projDiags := a.ProjectDiags(); len(projDiags) > 0 {
		res.Diags = append(projDiags, res.Diags...)
		res.Pass = !hasError(res.Diags)
	}
	return res, nil
}

func statusOf(res FileResult) Status {
	switch {
	case !res.Pass:
		return StatusError
	case res.FromCache:
		return StatusCached
	default:
		return StatusDone
	}
}

func hasError(diags []diag.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diag.SevError {
			return true
		}
	}
	return false
}

// drainCycleDiags converts unstable-cycle reports accumulated since the
// last drain into diagnostics.
func (a *Analyzer) drainCycleDiags() []diag.Diagnostic {
	a.mu.Lock()
	keys := a.unstableCycles
	a.unstableCycles = nil
	a.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}
	out := make([]diag.Diagnostic, 0, len(keys))
	for _, key := range keys {
		out = append(out, diag.NewWarning(diag.SemaCycleUnstable, source.Span{},
			"recursive definitions did not stabilize, falling back to Unknown: "+key))
	}
	return out
}

// depClosure returns the transitive import closure of path, sorted. Used
// for disk-cache keys: a result is reusable only when nothing the file
// reads has changed.
func (a *Analyzer) depClosure(ctx context.Context, path string) []string {
	visited := map[string]struct{}{path: {}}
	queue := []string{path}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		v, err := a.rt.Get(ctx, query.Key{Kind: qDeps, Arg: cur})
		if err != nil {
			continue
		}
		deps, _ := v.([]string)
		for _, dep := range deps {
			if _, ok := visited[dep]; ok {
				continue
			}
			visited[dep] = struct{}{}
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	sort.Strings(out)
	return out
}

// cacheKey digests everything a cached check result depends on: the
// configuration, the file's own content and every transitive import.
func (a *Analyzer) cacheKey(ctx context.Context, path string) (project.Digest, bool) {
	f, err := a.fs.Read(path)
	if err != nil {
		return project.Digest{}, false
	}
	deps := a.depClosure(ctx, path)
	digests := make([]project.Digest, 0, len(deps)+1)
	digests = append(digests, project.Digest(f.Hash))
	for _, dep := range deps {
		a.ensureTracked(dep)
		df, err := a.fs.Read(dep)
		if err != nil {
			digests = append(digests, project.Digest{})
			continue
		}
		digests = append(digests, project.Digest(df.Hash))
	}
	return project.Combine(a.cfg.Digest(), digests...), true
}

func (a *Analyzer) cachedResult(ctx context.Context, path string) (FileResult, bool) {
	key, ok := a.cacheKey(ctx, path)
	if !ok {
		return FileResult{}, false
	}
	var payload DiskPayload
	hit, err := a.cache.Get(key, &payload)
	if err != nil || !hit {
		return FileResult{}, false
	}
	diags := payload.Diagnostics(a.fs)
	return FileResult{Path: path, Diags: diags, Pass: !hasError(diags), FromCache: true}, true
}

func (a *Analyzer) storeResult(ctx context.Context, path string, res FileResult) {
	key, ok := a.cacheKey(ctx, path)
	if !ok {
		return
	}
	// ошибки записи кеша некритичны
	_ = a.cache.Put(key, NewDiskPayload(path, res.Diags, a.fs))
}
