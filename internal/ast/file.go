package ast

import (
	"pythia/internal/source"
)

// File is the root node of one parsed module.
type File struct {
	Span source.Span
	Body []StmtID
	// ErrorRecovered marks a tree that contains at least one error node;
	// downstream analysis still runs over it best-effort.
	ErrorRecovered bool
}

type Files struct {
	Arena *Arena[File]
}

func NewFiles(capHint uint) *Files {
	return &Files{Arena: NewArena[File](capHint)}
}

func (f *Files) New(span source.Span) FileID {
	return FileID(f.Arena.Allocate(File{Span: span}))
}

func (f *Files) Get(id FileID) *File {
	return f.Arena.Get(uint32(id))
}
