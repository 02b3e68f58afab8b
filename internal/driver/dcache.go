package driver

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"pythia/internal/diag"
	"pythia/internal/project"
	"pythia/internal/source"
)

// Bump when the payload format changes; stale entries just miss.
const diskCacheSchemaVersion uint16 = 1

// DiskCache persists per-file check results across processes, keyed by
// a digest of content, configuration and transitive imports.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// NoteRecord is a serialized diag.Note. Spans are stored as path plus
// byte offsets because FileIDs are process-local.
type NoteRecord struct {
	Path    string
	Start   uint32
	End     uint32
	Message string
}

// DiagRecord is a serialized diag.Diagnostic.
type DiagRecord struct {
	Severity uint8
	Code     uint16
	Message  string
	Path     string
	Start    uint32
	End      uint32
	Notes    []NoteRecord
}

// DiskPayload is one cached check result.
type DiskPayload struct {
	Schema uint16
	Path   string
	Diags  []DiagRecord
}

// OpenDiskCache initializes the cache at the XDG-standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt initializes the cache at an explicit directory.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key project.Digest) string {
	hexKey := hex.EncodeToString(key[:])
	// подкаталог ради удобства ручной очистки
	return filepath.Join(c.dir, "checks", hexKey+".mp")
}

// Put serializes a payload and replaces the entry atomically.
func (c *DiskCache) Put(key project.Digest, payload *DiskPayload) error {
	if c == nil || payload == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Get reads a payload; a schema mismatch counts as a miss.
func (c *DiskCache) Get(key project.Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != diskCacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll wipes the cache, e.g. after a format change.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// NewDiskPayload converts diagnostics into their serialized form,
// resolving FileIDs to paths through the store.
func NewDiskPayload(path string, diags []diag.Diagnostic, fs *source.FileSet) *DiskPayload {
	payload := &DiskPayload{
		Schema: diskCacheSchemaVersion,
		Path:   path,
		Diags:  make([]DiagRecord, 0, len(diags)),
	}
	for _, d := range diags {
		rec := DiagRecord{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Message:  d.Message,
			Path:     pathOf(fs, d.Primary.File),
			Start:    d.Primary.Start,
			End:      d.Primary.End,
		}
		for _, n := range d.Notes {
			rec.Notes = append(rec.Notes, NoteRecord{
				Path:    pathOf(fs, n.Span.File),
				Start:   n.Span.Start,
				End:     n.Span.End,
				Message: n.Msg,
			})
		}
		payload.Diags = append(payload.Diags, rec)
	}
	return payload
}

// Diagnostics rebinds the serialized records to the current process's
// FileIDs. Spans in files no longer tracked degrade to empty spans.
func (p *DiskPayload) Diagnostics(fs *source.FileSet) []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(p.Diags))
	for _, rec := range p.Diags {
		d := diag.Diagnostic{
			Severity: diag.Severity(rec.Severity),
			Code:     diag.Code(rec.Code),
			Message:  rec.Message,
			Primary:  rebindSpan(fs, rec.Path, rec.Start, rec.End),
		}
		for _, n := range rec.Notes {
			d.Notes = append(d.Notes, diag.Note{
				Span: rebindSpan(fs, n.Path, n.Start, n.End),
				Msg:  n.Message,
			})
		}
		out = append(out, d)
	}
	return out
}

func pathOf(fs *source.FileSet, id source.FileID) string {
	if f := fs.Get(id); f != nil {
		return f.Path
	}
	return ""
}

func rebindSpan(fs *source.FileSet, path string, start, end uint32) source.Span {
	if path == "" {
		return source.Span{}
	}
	id, ok := fs.GetLatest(path)
	if !ok {
		return source.Span{}
	}
	return source.Span{File: id, Start: start, End: end}
}
