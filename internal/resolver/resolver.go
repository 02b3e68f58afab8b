package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"pythia/internal/diag"
	"pythia/internal/project"
	"pythia/internal/source"
)

// Resolution is the outcome of mapping a dotted module name to a file.
type Resolution struct {
	Path   string
	IsStub bool
	Root   project.SearchRoot
	// Ambiguous помечает конфликт пакет/модуль внутри одного корня
	Ambiguous bool
}

// Probe abstracts file existence checks so tests and virtual buffers
// do not need a real filesystem.
type Probe interface {
	IsFile(path string) bool
	IsDir(path string) bool
}

// DiskProbe checks the real filesystem.
type DiskProbe struct{}

func (DiskProbe) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (DiskProbe) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileSetProbe consults tracked (possibly unsaved) files first, then disk.
type FileSetProbe struct {
	FS   *source.FileSet
	Disk Probe
}

func (p FileSetProbe) IsFile(path string) bool {
	if p.FS != nil && p.FS.Exists(path) {
		return true
	}
	if p.Disk != nil {
		return p.Disk.IsFile(path)
	}
	return false
}

func (p FileSetProbe) IsDir(path string) bool {
	if p.Disk != nil {
		return p.Disk.IsDir(path)
	}
	return false
}

// Resolver maps dotted module names onto files under the configured
// search roots. One instance per configuration: the internal cache is
// valid exactly as long as the config digest stays the same.
type Resolver struct {
	cfg      project.Config
	digest   project.Digest
	probe    Probe
	reporter diag.Reporter

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	res Resolution
	ok  bool
}

// New builds a resolver over cfg. reporter may be nil; it receives
// configuration-level diagnostics (ambiguous modules, bad search paths).
func New(cfg project.Config, probe Probe, reporter diag.Reporter) *Resolver {
	if probe == nil {
		probe = DiskProbe{}
	}
	return &Resolver{
		cfg:      cfg,
		digest:   cfg.Digest(),
		probe:    probe,
		reporter: reporter,
		cache:    make(map[string]cacheEntry),
	}
}

// ConfigDigest identifies the configuration this resolver answers for.
// Query keys embed it so a config change invalidates every resolution.
func (r *Resolver) ConfigDigest() project.Digest {
	return r.digest
}

// NormalizeName case-folds a distribution/package name so lookups are
// insensitive to case. Folding is idempotent: folding a folded name is
// a no-op.
func NormalizeName(name string) string {
	return cases.Fold().String(name)
}

// Resolve maps a dotted module name to its defining file. First matching
// root wins; inside a root a package directory with __init__ wins over a
// same-named module file, and a .pyi stub wins over the .py source.
func (r *Resolver) Resolve(name string) (Resolution, bool) {
	if name == "" {
		return Resolution{}, false
	}

	r.mu.RLock()
	entry, hit := r.cache[name]
	r.mu.RUnlock()
	if hit {
		return entry.res, entry.ok
	}

	res, ok := r.resolveUncached(name)
	r.mu.Lock()
	r.cache[name] = cacheEntry{res: res, ok: ok}
	r.mu.Unlock()
	return res, ok
}

func (r *Resolver) resolveUncached(name string) (Resolution, bool) {
	segments := strings.Split(name, ".")
	for _, seg := range segments {
		if seg == "" {
			return Resolution{}, false
		}
	}

	for _, root := range r.cfg.Roots {
		res, ok := r.probeRoot(root, name, segments)
		if ok {
			return res, true
		}
	}
	return Resolution{}, false
}

func (r *Resolver) probeRoot(root project.SearchRoot, name string, segments []string) (Resolution, bool) {
	// промежуточные сегменты обязаны быть каталогами пакетов
	dir := root.Path
	for _, seg := range segments[:len(segments)-1] {
		dir = filepath.Join(dir, seg)
		if !r.probe.IsDir(dir) {
			return Resolution{}, false
		}
	}
	last := segments[len(segments)-1]

	pkgDir := filepath.Join(dir, last)
	pkgStub := filepath.Join(pkgDir, "__init__.pyi")
	pkgInit := filepath.Join(pkgDir, "__init__.py")
	modStub := filepath.Join(dir, last+".pyi")
	modFile := filepath.Join(dir, last+".py")

	var pkg Resolution
	havePkg := false
	if r.probe.IsDir(pkgDir) {
		switch {
		case r.probe.IsFile(pkgStub):
			pkg = Resolution{Path: pkgStub, IsStub: true, Root: root}
			havePkg = true
		case r.probe.IsFile(pkgInit):
			pkg = Resolution{Path: pkgInit, Root: root}
			havePkg = true
		}
	}

	var mod Resolution
	haveMod := false
	switch {
	case r.probe.IsFile(modStub):
		mod = Resolution{Path: modStub, IsStub: true, Root: root}
		haveMod = true
	case r.probe.IsFile(modFile):
		mod = Resolution{Path: modFile, Root: root}
		haveMod = true
	}

	switch {
	case havePkg && haveMod:
		// пакет и одноимённый модуль в одном корне: берём пакет,
		// но это ошибка конфигурации, не паника
		pkg.Ambiguous = true
		if r.reporter != nil {
			msg := fmt.Sprintf("module %q is both a package and a file under %q", name, root.Path)
			r.reporter.Report(diag.ConfAmbiguousModule, diag.SevWarning, source.Span{}, msg, nil)
		}
		return pkg, true
	case havePkg:
		return pkg, true
	case haveMod:
		return mod, true
	default:
		return Resolution{}, false
	}
}

// ResolveRelative resolves `from ...pkg import x` style names against the
// requesting file's own module name. level is the number of leading dots.
func (r *Resolver) ResolveRelative(level int, name, requestingModule string) (Resolution, bool, error) {
	if level <= 0 {
		res, ok := r.Resolve(name)
		return res, ok, nil
	}
	if requestingModule == "" {
		return Resolution{}, false, fmt.Errorf("relative import outside of any configured source root")
	}

	segments := strings.Split(requestingModule, ".")
	// один уровень - текущий пакет: отбрасываем имя самого модуля
	if level > len(segments) {
		return Resolution{}, false, fmt.Errorf("relative import level %d escapes package %q", level, requestingModule)
	}
	base := segments[:len(segments)-level]

	full := strings.Join(base, ".")
	if name != "" {
		if full != "" {
			full += "."
		}
		full += name
	}
	if full == "" {
		return Resolution{}, false, fmt.Errorf("relative import resolves to an empty module name")
	}
	res, ok := r.Resolve(full)
	return res, ok, nil
}

// ModuleNameForPath inverts resolution: given a file path, derive the
// dotted module name from the first search root containing it. Returns
// "" when the file lies outside every root.
func (r *Resolver) ModuleNameForPath(path string) string {
	for _, root := range r.cfg.Roots {
		rel, err := filepath.Rel(root.Path, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		rel = strings.TrimSuffix(rel, ".pyi")
		rel = strings.TrimSuffix(rel, ".py")
		rel = strings.TrimSuffix(rel, "/__init__")
		return strings.ReplaceAll(rel, "/", ".")
	}
	return ""
}
