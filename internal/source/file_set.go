package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"

	"fortio.org/safecast"
)

// ErrNotFound is returned when a path is unknown to the store or was deleted.
var ErrNotFound = errors.New("source: file not found")

// FileSet is the revision-tracked file store. It exclusively owns file
// content: every write or delete goes through it and is the single trigger
// for downstream cache invalidation. Snapshots are append-only — a write
// mints a fresh FileID while earlier snapshots stay readable, so analysis
// already running against an old revision finishes against consistent data.
//
// Thread-safe for concurrent access.
type FileSet struct {
	mu      sync.RWMutex
	files   []File
	index   map[string]FileID // path -> latest snapshot
	revs    map[string]Revision
	deleted map[string]bool
	baseDir string
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files:   make([]File, 0),
		index:   make(map[string]FileID),
		revs:    make(map[string]Revision),
		deleted: make(map[string]bool),
	}
}

// NewFileSetWithBase создаёт FileSet с заданной базовой директорией.
func NewFileSetWithBase(baseDir string) *FileSet {
	fs := NewFileSet()
	fs.baseDir = baseDir
	return fs
}

// BaseDir returns the base directory for relative paths.
func (fs *FileSet) BaseDir() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return fs.baseDir
}

// Write stores new content for path, bumping its revision and minting a new
// snapshot. It is the only mutation path besides Delete/Close.
func (fs *FileSet) Write(path string, content []byte, flags FileFlags) FileID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.addLocked(path, content, flags)
}

func (fs *FileSet) addLocked(path string, content []byte, flags FileFlags) FileID {
	normalized := normalizePath(path)
	hash := sha256.Sum256(content)
	rev := fs.revs[normalized] + 1
	fs.revs[normalized] = rev

	lenFiles, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fs.files = append(fs.files, File{
		ID:       id,
		Path:     normalized,
		Content:  content,
		LineIdx:  buildLineIndex(content),
		Hash:     hash,
		Revision: rev,
		Flags:    flags,
	})
	// индекс всегда указывает на последнюю версию файла
	fs.index[normalized] = id
	delete(fs.deleted, normalized)
	return id
}

// Load reads a file from disk, normalizes CRLF/BOM, and stores a snapshot.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return NoFileID, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fs.Write(path, content, flags), nil
}

// AddVirtual stores an in-memory buffer (unsaved editor document, test input).
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	return fs.Write(name, content, FileVirtual)
}

// Read returns the latest snapshot for path, or ErrNotFound if the path is
// unknown or has been deleted.
func (fs *FileSet) Read(path string) (*File, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	normalized := normalizePath(path)
	if fs.deleted[normalized] {
		return nil, ErrNotFound
	}
	id, ok := fs.index[normalized]
	if !ok {
		return nil, ErrNotFound
	}
	return &fs.files[id], nil
}

// Get returns the snapshot for the given ID. Snapshots are immutable; the
// pointer stays valid for the lifetime of the store.
func (fs *FileSet) Get(id FileID) *File {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// GetLatest returns the latest snapshot ID for the path, if present and alive.
func (fs *FileSet) GetLatest(path string) (FileID, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	normalized := normalizePath(path)
	if fs.deleted[normalized] {
		return NoFileID, false
	}
	id, ok := fs.index[normalized]
	if !ok {
		return NoFileID, false
	}
	return id, true
}

// RevisionOf returns the current revision stamp for path (0 if never written).
// Deleted paths keep their historical stamp so in-flight evaluations that
// reference an old revision stay coherent.
func (fs *FileSet) RevisionOf(path string) Revision {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.revs[normalizePath(path)]
}

// Exists reports whether path currently resolves to a live snapshot.
func (fs *FileSet) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	normalized := normalizePath(path)
	if fs.deleted[normalized] {
		return false
	}
	_, ok := fs.index[normalized]
	return ok
}

// Delete marks the path absent. Historical snapshots are retained; only the
// path lookup is severed. The revision stamp is bumped so dependents notice.
func (fs *FileSet) Delete(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	normalized := normalizePath(path)
	if _, ok := fs.index[normalized]; !ok {
		return
	}
	fs.deleted[normalized] = true
	fs.revs[normalized]++
}

// SetOpen toggles the editor-owned flag on the latest snapshot of path.
func (fs *FileSet) SetOpen(path string, open bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	id, ok := fs.index[normalizePath(path)]
	if !ok {
		return
	}
	if open {
		fs.files[id].Flags |= FileOpen
	} else {
		fs.files[id].Flags &^= FileOpen
	}
}

// Paths returns every live path known to the store.
func (fs *FileSet) Paths() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]string, 0, len(fs.index))
	for p := range fs.index {
		if !fs.deleted[p] {
			out = append(out, p)
		}
	}
	return out
}

// Resolve converts a span into line and column positions.
func (fs *FileSet) Resolve(span Span) (start, end LineCol) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if int(span.File) >= len(fs.files) {
		return LineCol{Line: 1, Col: 1}, LineCol{Line: 1, Col: 1}
	}
	f := &fs.files[span.File]
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End)
}

// GetLine returns the 1-based line from the snapshot, or "" when out of range.
func (f *File) GetLine(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}

	var start, end, lenLineIdx, lenContent uint32
	var err error
	lenLineIdx, err = safecast.Conv[uint32](len(f.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err = safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}

	switch {
	case lineNum == 1:
		start = 0
	case (lineNum - 2) < lenLineIdx:
		start = f.LineIdx[lineNum-2] + 1
	default:
		return ""
	}

	if (lineNum - 1) < lenLineIdx {
		end = f.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}

	if start >= lenContent {
		return ""
	}
	if end > lenContent {
		end = lenContent
	}

	return string(f.Content[start:end])
}
