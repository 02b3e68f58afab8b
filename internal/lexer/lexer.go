package lexer

import (
	"pythia/internal/source"
	"pythia/internal/token"
)

const tabWidth = 8

// Lexer tokenizes one Python source file snapshot. It produces a stream of
// significant tokens with synthetic Newline/Indent/Dedent tokens describing
// the logical line structure, recovering from every error so that downstream
// analysis always sees a complete stream.
type Lexer struct {
	file    *source.File
	cursor  Cursor
	opts    Options
	indents []uint32 // стек отступов (в колонках)
	pending []token.Token
	depth   int // глубина скобок: внутри () [] {} переносы строк игнорируются
	atStart bool
	lastNL  bool
	eof     bool
}

func New(file *source.File, opts Options) *Lexer {
	return &Lexer{
		file:    file,
		cursor:  NewCursor(file),
		opts:    opts,
		indents: []uint32{0},
		atStart: true,
		lastNL:  true,
	}
}

// EmptySpan returns a zero-length span at the current cursor position.
func (lx *Lexer) EmptySpan() source.Span {
	return source.Span{File: lx.file.ID, Start: lx.cursor.Off, End: lx.cursor.Off}
}

// Tokenize drains the lexer into a full token slice (EOF included).
func Tokenize(file *source.File, opts Options) []token.Token {
	lx := New(file, opts)
	var out []token.Token
	for {
		tok := lx.Next()
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

// Next возвращает следующий значимый токен. После EOF всегда возвращает EOF.
func (lx *Lexer) Next() token.Token {
	if len(lx.pending) > 0 {
		tok := lx.pending[0]
		lx.pending = lx.pending[1:]
		lx.noteKind(tok.Kind)
		return tok
	}

	for {
		if lx.atStart && lx.depth == 0 {
			if tok, ok := lx.handleIndentation(); ok {
				lx.noteKind(tok.Kind)
				return tok
			}
			if lx.eof {
				return lx.finish()
			}
			continue
		}

		if lx.cursor.EOF() {
			return lx.finish()
		}

		lx.skipInsignificant()
		if lx.cursor.EOF() {
			return lx.finish()
		}

		ch := lx.cursor.Peek()
		switch {
		case ch == '\n':
			start := lx.cursor.Off
			lx.cursor.Bump()
			if lx.depth > 0 {
				continue
			}
			lx.atStart = true
			if lx.lastNL {
				continue
			}
			lx.lastNL = true
			return token.Token{Kind: token.Newline, Span: lx.cursor.Span(start), Text: "\n"}

		case isStringStart(ch, lx.cursor.PeekAt(1), lx.cursor.PeekAt(2)):
			tok := lx.scanString()
			lx.noteKind(tok.Kind)
			return tok

		case isIdentStartByte(ch) || ch >= utf8RuneSelf:
			tok := lx.scanIdentOrKeyword()
			lx.noteKind(tok.Kind)
			return tok

		case isDec(ch) || (ch == '.' && isDec(lx.cursor.PeekAt(1))):
			tok := lx.scanNumber()
			lx.noteKind(tok.Kind)
			return tok

		default:
			tok := lx.scanOperatorOrPunct()
			lx.noteKind(tok.Kind)
			return tok
		}
	}
}

// handleIndentation измеряет отступ логической строки и выдаёт Indent/Dedent.
// Возвращает (token, true) если есть что отдать; пустые строки и строки
// только с комментарием пропускаются целиком.
func (lx *Lexer) handleIndentation() (token.Token, bool) {
	start := lx.cursor.Off
	width := uint32(0)
	for !lx.cursor.EOF() {
		switch lx.cursor.Peek() {
		case ' ':
			width++
			lx.cursor.Bump()
		case '\t':
			width = width/tabWidth*tabWidth + tabWidth
			lx.cursor.Bump()
		default:
			goto measured
		}
	}
measured:
	if lx.cursor.EOF() {
		lx.eof = true
		return token.Token{}, false
	}
	ch := lx.cursor.Peek()
	if ch == '\n' {
		// пустая строка — отступ не учитывается
		lx.cursor.Bump()
		return token.Token{}, false
	}
	if ch == '#' {
		lx.skipComment()
		if !lx.cursor.EOF() {
			lx.cursor.Bump() // съесть \n
		}
		return token.Token{}, false
	}

	lx.atStart = false
	top := lx.indents[len(lx.indents)-1]
	switch {
	case width == top:
		return token.Token{}, false
	case width > top:
		lx.indents = append(lx.indents, width)
		return token.Token{Kind: token.Indent, Span: lx.cursor.Span(start)}, true
	default:
		var first token.Token
		have := false
		for len(lx.indents) > 1 && lx.indents[len(lx.indents)-1] > width {
			lx.indents = lx.indents[:len(lx.indents)-1]
			ded := token.Token{Kind: token.Dedent, Span: lx.cursor.Span(start)}
			if !have {
				first, have = ded, true
			} else {
				lx.pending = append(lx.pending, ded)
			}
		}
		if lx.indents[len(lx.indents)-1] != width {
			lx.report(ReportBadIndent, lx.cursor.Span(start),
				"unindent does not match any outer indentation level")
		}
		return first, have
	}
}

// finish emits the trailing Newline, pending Dedents, then EOF forever.
func (lx *Lexer) finish() token.Token {
	lx.eof = true
	if !lx.lastNL && lx.depth == 0 {
		lx.lastNL = true
		return token.Token{Kind: token.Newline, Span: lx.EmptySpan(), Text: "\n"}
	}
	if len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		return token.Token{Kind: token.Dedent, Span: lx.EmptySpan()}
	}
	return token.Token{Kind: token.EOF, Span: lx.EmptySpan()}
}

// skipInsignificant пропускает пробелы, комментарии и продолжения строк.
func (lx *Lexer) skipInsignificant() {
	for !lx.cursor.EOF() {
		switch lx.cursor.Peek() {
		case ' ', '\t', '\r':
			lx.cursor.Bump()
		case '#':
			lx.skipComment()
		case '\\':
			if lx.cursor.PeekAt(1) == '\n' {
				lx.cursor.Bump()
				lx.cursor.Bump()
			} else {
				return
			}
		default:
			return
		}
	}
}

func (lx *Lexer) skipComment() {
	for !lx.cursor.EOF() && lx.cursor.Peek() != '\n' {
		lx.cursor.Bump()
	}
}

func (lx *Lexer) noteKind(k token.Kind) {
	lx.lastNL = k == token.Newline || k == token.Indent || k == token.Dedent
}
