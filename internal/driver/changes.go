package driver

import (
	"pythia/internal/project"
	"pythia/internal/query"
	"pythia/internal/source"
)

// ChangeKind discriminates file-change events coming from the outside
// (watcher, editor). The core never watches anything itself.
type ChangeKind uint8

const (
	// Opened - клиент открыл файл; содержимое дальше живёт в буфере
	Opened ChangeKind = iota
	Created
	Changed
	Deleted
	CreatedVirtual
	ChangedVirtual
	DeletedVirtual
	// Rescan signals the watcher lost sync: every tracked file must be
	// treated as potentially changed.
	Rescan
)

func (k ChangeKind) String() string {
	switch k {
	case Opened:
		return "opened"
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	case CreatedVirtual:
		return "created-virtual"
	case ChangedVirtual:
		return "changed-virtual"
	case DeletedVirtual:
		return "deleted-virtual"
	case Rescan:
		return "rescan"
	default:
		return "unknown"
	}
}

// Event is one file-change notification. Content is only meaningful for
// virtual events and Opened; disk events are re-read from disk.
type Event struct {
	Kind    ChangeKind
	Path    string
	Content []byte
}

// ApplyChanges feeds a batch of change events into the store and the
// runtime. Each event bumps the relevant inputs; derived queries are
// re-validated lazily on next demand, not here.
func (a *Analyzer) ApplyChanges(events []Event) {
	structural := false
	for _, ev := range events {
		switch ev.Kind {
		case Opened:
			if ev.Content != nil {
				a.fs.Write(ev.Path, ev.Content, source.FileOpen)
				a.publishText(ev.Path)
			} else {
				a.loadFromDisk(ev.Path)
			}
			a.fs.SetOpen(ev.Path, true)
		case Created:
			a.loadFromDisk(ev.Path)
			structural = true
		case Changed:
			a.loadFromDisk(ev.Path)
		case Deleted:
			a.fs.Delete(ev.Path)
			a.rt.SetInput(query.Key{Kind: qText, Arg: ev.Path}, project.Digest{})
			structural = true
		case CreatedVirtual:
			a.fs.AddVirtual(ev.Path, ev.Content)
			a.publishText(ev.Path)
			structural = true
		case ChangedVirtual:
			a.fs.AddVirtual(ev.Path, ev.Content)
			a.publishText(ev.Path)
		case DeletedVirtual:
			a.fs.Delete(ev.Path)
			a.rt.SetInput(query.Key{Kind: qText, Arg: ev.Path}, project.Digest{})
			structural = true
		case Rescan:
			a.rescan()
			structural = true
		}
	}
	if structural {
		a.bumpFsGen()
	}
}

// loadFromDisk re-reads one path and republishes its digest. A file that
// vanished from disk is treated as deleted.
func (a *Analyzer) loadFromDisk(path string) {
	if _, err := a.fs.Load(path); err != nil {
		a.fs.Delete(path)
		a.rt.SetInput(query.Key{Kind: qText, Arg: path}, project.Digest{})
		return
	}
	a.publishText(path)
}

func (a *Analyzer) publishText(path string) {
	f, err := a.fs.Read(path)
	if err != nil {
		a.rt.SetInput(query.Key{Kind: qText, Arg: path}, project.Digest{})
		return
	}
	a.rt.SetInput(query.Key{Kind: qText, Arg: path}, project.Digest(f.Hash))
}

// rescan re-reads every tracked disk file. Virtual buffers are client
// owned and keep their current content; republishing an equal digest is
// a no-op for dependents thanks to early cutoff.
func (a *Analyzer) rescan() {
	for _, path := range a.fs.Paths() {
		f, err := a.fs.Read(path)
		if err != nil {
			continue
		}
		if f.Flags&(source.FileVirtual|source.FileOpen) != 0 {
			a.publishText(path)
			continue
		}
		a.loadFromDisk(path)
	}
}

func (a *Analyzer) bumpFsGen() {
	a.mu.Lock()
	a.fsGen++
	gen := a.fsGen
	a.mu.Unlock()
	a.rt.SetInput(query.Key{Kind: qFsGen, Arg: ""}, gen)
}
