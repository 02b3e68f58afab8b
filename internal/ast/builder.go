package ast

import (
	"pythia/internal/source"
)

type Hints struct{ Files, Stmts, Exprs uint }

// Builder owns all node arenas for the modules parsed into it. One Builder
// per file revision: the whole tree is rebuilt from scratch on change, never
// patched in place.
type Builder struct {
	Files           *Files
	Stmts           *Stmts
	Exprs           *Exprs
	StringsInterner *source.Interner
}

// NewBuilder creates arenas with optional capacity hints. If strings is nil
// a fresh interner is allocated.
func NewBuilder(hints Hints, strings *source.Interner) *Builder {
	if hints.Files == 0 {
		hints.Files = 1
	}
	if hints.Stmts == 0 {
		hints.Stmts = 1 << 8
	}
	if hints.Exprs == 0 {
		hints.Exprs = 1 << 8
	}
	if strings == nil {
		strings = source.NewInterner()
	}
	return &Builder{
		Files:           NewFiles(hints.Files),
		Stmts:           NewStmts(hints.Stmts),
		Exprs:           NewExprs(hints.Exprs),
		StringsInterner: strings,
	}
}

// PushStmt appends a statement to the file body.
func (b *Builder) PushStmt(file FileID, stmt StmtID) {
	f := b.Files.Get(file)
	f.Body = append(f.Body, stmt)
}

// MarkErrorRecovered flags the file as containing error nodes.
func (b *Builder) MarkErrorRecovered(file FileID) {
	b.Files.Get(file).ErrorRecovered = true
}
