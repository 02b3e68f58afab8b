package parser

import (
	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/lexer"
	"pythia/internal/source"
	"pythia/internal/token"
)

type Options struct {
	MaxErrors     uint
	CurrentErrors uint
	Reporter      diag.Reporter
}

// Enough - проверить, достигли ли мы максимального количества ошибок
func (o *Options) Enough() bool {
	if o.MaxErrors == 0 {
		return false
	}
	return o.CurrentErrors >= o.MaxErrors
}

type Result struct {
	File ast.FileID
}

// Parser — состояние парсера на один файл
type Parser struct {
	toks   []token.Token
	pos    int
	arenas *ast.Builder
	file   ast.FileID
	opts   Options
	// noIn блокирует `in` как оператор сравнения при разборе цели for
	noIn bool
}

// ParseFile — входная точка для разбора одного файла. Parse errors never
// abort: на любой ошибке парсер восстанавливается до следующей логической
// строки и продолжает, помечая дерево как error-recovered.
func ParseFile(srcFile *source.File, arenas *ast.Builder, opts Options) Result {
	toks := lexer.Tokenize(srcFile, lexer.Options{Reporter: lexerReporter{opts.Reporter}})

	fileSpan := source.Span{File: srcFile.ID, Start: 0, End: uint32(len(srcFile.Content))}
	p := Parser{
		toks:   toks,
		arenas: arenas,
		file:   arenas.Files.New(fileSpan),
		opts:   opts,
	}

	p.parseModule()
	return Result{File: p.file}
}

// TokenizeFile exposes the lexer with diagnostics routed through the
// standard reporter, for tools that stop before parsing.
func TokenizeFile(srcFile *source.File, reporter diag.Reporter) []token.Token {
	return lexer.Tokenize(srcFile, lexer.Options{Reporter: lexerReporter{reporter}})
}

// lexerReporter адаптирует diag.Reporter под тонкий интерфейс лексера.
type lexerReporter struct {
	r diag.Reporter
}

func (lr lexerReporter) Report(kind string, span source.Span, msg string) {
	if lr.r == nil {
		return
	}
	code := diag.LexInfo
	switch kind {
	case lexer.ReportUnknownChar:
		code = diag.LexUnknownChar
	case lexer.ReportUnterminatedString:
		code = diag.LexUnterminatedString
	case lexer.ReportBadNumber:
		code = diag.LexBadNumber
	case lexer.ReportBadIndent:
		code = diag.LexBadIndent
	}
	lr.r.Report(code, diag.SevError, span, msg, nil)
}

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos]
}

func (p *Parser) peekKind() token.Kind {
	return p.peek().Kind
}

func (p *Parser) next() token.Token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) at(kind token.Kind) bool {
	return p.peekKind() == kind
}

func (p *Parser) eat(kind token.Kind) (token.Token, bool) {
	if p.at(kind) {
		return p.next(), true
	}
	return token.Token{}, false
}

func (p *Parser) expect(kind token.Kind, code diag.Code, msg string) (token.Token, bool) {
	if tok, ok := p.eat(kind); ok {
		return tok, true
	}
	p.reportHere(code, msg)
	return token.Token{}, false
}

func (p *Parser) reportHere(code diag.Code, msg string) {
	p.reportAt(code, p.peek().Span, msg)
}

func (p *Parser) reportAt(code diag.Code, span source.Span, msg string) {
	if p.opts.Enough() {
		return
	}
	p.opts.CurrentErrors++
	if p.opts.Reporter != nil {
		p.opts.Reporter.Report(code, diag.SevError, span, msg, nil)
	}
	p.arenas.MarkErrorRecovered(p.file)
}

// syncToNewline пропускает токены до конца логической строки (включительно).
func (p *Parser) syncToNewline() {
	depth := 0
	for {
		switch p.peekKind() {
		case token.EOF:
			return
		case token.Newline:
			if depth == 0 {
				p.next()
				return
			}
			p.next()
		case token.Indent:
			depth++
			p.next()
		case token.Dedent:
			if depth == 0 {
				return
			}
			depth--
			p.next()
		default:
			p.next()
		}
	}
}

func (p *Parser) intern(s string) source.StringID {
	return p.arenas.StringsInterner.Intern(s)
}
