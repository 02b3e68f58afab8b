package sema

import (
	"context"
	"sync"

	"pythia/internal/ast"
	"pythia/internal/semindex"
	"pythia/internal/types"
)

// Artifacts bundles the per-file inputs inference reads: the parsed
// tree and its semantic index, both fixed to one file revision.
type Artifacts struct {
	Path   string
	Arenas *ast.Builder
	Index  *semindex.Index
}

// ImportRef names a module as written at an import site.
type ImportRef struct {
	FromPath string
	Module   string
	Level    uint8
}

// Host supplies cross-file facts. The driver implements it on top of
// the query runtime, so every call below is recorded as a dependency of
// the calling query and revalidated incrementally.
type Host interface {
	Artifacts(ctx context.Context, path string) (*Artifacts, error)
	// ResolveImport maps an import reference to the defining file.
	ResolveImport(ctx context.Context, ref ImportRef) (string, bool)
	// ExportType returns the type of one name exported by a module.
	ExportType(ctx context.Context, path, name string) (types.TypeID, bool)
	// ExportNames lists a module's public names, source order.
	ExportNames(ctx context.Context, path string) []string
}

// ClassKeys keeps nominal class identity stable across re-analysis.
// Re-checking a file reuses the ClassID registered for (path, name), so
// an unchanged class produces an identical TypeID and early cutoff
// holds for its dependents.
type ClassKeys struct {
	mu    sync.Mutex
	byKey map[string]types.ClassID
}

func NewClassKeys() *ClassKeys {
	return &ClassKeys{byKey: make(map[string]types.ClassID, 32)}
}

// Ensure returns the ClassID for key, calling register once on first use.
func (k *ClassKeys) Ensure(key string, register func() types.ClassID) types.ClassID {
	k.mu.Lock()
	defer k.mu.Unlock()
	if id, ok := k.byKey[key]; ok {
		return id
	}
	id := register()
	k.byKey[key] = id
	return id
}
