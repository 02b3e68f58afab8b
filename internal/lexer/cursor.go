package lexer

import (
	"fmt"

	"fortio.org/safecast"

	"pythia/internal/source"
)

// Cursor представляет собой позицию в файле
type Cursor struct {
	File *source.File
	Off  uint32
}

// NewCursor creates a new cursor for the provided file snapshot.
func NewCursor(f *source.File) Cursor {
	if _, err := safecast.Conv[uint32](len(f.Content)); err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}
	return Cursor{File: f, Off: 0}
}

func (c *Cursor) limit() uint32 {
	return uint32(len(c.File.Content))
}

// EOF проверяет, достигнут ли конец файла
func (c *Cursor) EOF() bool {
	return c.Off >= c.limit()
}

// Peek читает текущий байт, если есть, иначе возвращает 0
func (c *Cursor) Peek() byte {
	if c.EOF() {
		return 0
	}
	return c.File.Content[c.Off]
}

// PeekAt читает байт со смещением от текущей позиции.
func (c *Cursor) PeekAt(delta uint32) byte {
	if c.Off+delta >= c.limit() {
		return 0
	}
	return c.File.Content[c.Off+delta]
}

// Bump продвигает курсор на один байт.
func (c *Cursor) Bump() {
	if !c.EOF() {
		c.Off++
	}
}

// Span builds a span from start to the current offset.
func (c *Cursor) Span(start uint32) source.Span {
	return source.Span{File: c.File.ID, Start: start, End: c.Off}
}

// Text returns the source slice from start to the current offset.
func (c *Cursor) Text(start uint32) string {
	return string(c.File.Content[start:c.Off])
}
