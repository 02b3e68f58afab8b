package token

import (
	"pythia/internal/source"
)

// Token represents a single source token with its location.
type Token struct {
	Kind Kind
	Span source.Span
	Text string
}

// IsLiteral reports whether the token is a numeric, string, or constant literal.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case IntLit, FloatLit, StringLit, KwNone, KwTrue, KwFalse:
		return true
	default:
		return false
	}
}

// IsKeyword reports whether the token is a Python keyword.
func (t Token) IsKeyword() bool {
	switch t.Kind {
	case KwDef, KwClass, KwReturn, KwIf, KwElif, KwElse, KwWhile, KwFor, KwIn,
		KwImport, KwFrom, KwAs, KwPass, KwBreak, KwContinue, KwLambda, KwTry,
		KwExcept, KwFinally, KwRaise, KwGlobal, KwNonlocal, KwNot, KwAnd, KwOr,
		KwIs, KwNone, KwTrue, KwFalse, KwDel, KwAssert, KwWith, KwYield:
		return true
	default:
		return false
	}
}

// IsIdent reports whether the token is an identifier.
func (t Token) IsIdent() bool { return t.Kind == Ident }

// EndsLogicalLine reports whether the token terminates a statement.
func (t Token) EndsLogicalLine() bool {
	return t.Kind == Newline || t.Kind == Semicolon || t.Kind == EOF
}
