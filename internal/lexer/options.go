package lexer

import (
	"pythia/internal/source"
)

// Reporter — тонкий интерфейс, чтобы не тянуть diag сюда.
// Лексер **только вызывает** его с параметрами; форматирует diag внешний слой.
type Reporter interface {
	Report(kind string, span source.Span, msg string)
}

// Diagnostic kinds the lexer can report.
const (
	ReportUnknownChar        = "unknown-char"
	ReportUnterminatedString = "unterminated-string"
	ReportBadNumber          = "bad-number"
	ReportBadIndent          = "bad-indent"
)

type Options struct {
	Reporter Reporter // может быть nil — тогда ошибки игнорируем (но продолжаем лексить)
}

func (lx *Lexer) report(kind string, sp source.Span, msg string) {
	if lx.opts.Reporter != nil {
		lx.opts.Reporter.Report(kind, sp, msg)
	}
}
