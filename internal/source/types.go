package source

type (
	// FileID identifies one immutable snapshot of a file inside a FileSet.
	// A new snapshot (and FileID) is minted on every write; old snapshots
	// stay addressable so in-flight analysis over a prior revision remains
	// valid until it completes.
	FileID uint32
	// Revision is a per-path monotonic stamp, bumped on every write.
	Revision uint32
	// FileFlags encodes metadata about a source file snapshot.
	FileFlags uint8
)

// NoFileID marks the absence of a file snapshot.
const NoFileID FileID = ^FileID(0)

const (
	// FileVirtual indicates the snapshot came from memory (editor buffer, test, stdin).
	FileVirtual FileFlags = 1 << iota
	// FileOpen marks a file held open by a client (editor); content is owned
	// by the store, not re-read from disk.
	FileOpen
	FileHadBOM
	FileNormalizedCRLF
)

// File captures metadata and content for a single source file snapshot.
type File struct {
	ID       FileID
	Path     string
	Content  []byte
	LineIdx  []uint32
	Hash     [32]byte
	Revision Revision
	Flags    FileFlags
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
