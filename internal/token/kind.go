package token

// Kind represents the category of a Python source token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF
	// Newline terminates a logical line.
	Newline
	// Indent opens an indentation block.
	Indent
	// Dedent closes an indentation block.
	Dedent

	// Ident represents an identifier token.
	Ident
	// IntLit represents an integer literal.
	IntLit
	// FloatLit represents a floating-point literal.
	FloatLit
	// StringLit represents a string literal (prefix and quotes stripped).
	StringLit

	// KwDef represents the 'def' keyword.
	KwDef // def
	// KwClass represents the 'class' keyword.
	KwClass // class
	// KwReturn represents the 'return' keyword.
	KwReturn // return
	// KwIf represents the 'if' keyword.
	KwIf // if
	// KwElif represents the 'elif' keyword.
	KwElif // elif
	// KwElse represents the 'else' keyword.
	KwElse // else
	// KwWhile represents the 'while' keyword.
	KwWhile // while
	// KwFor represents the 'for' keyword.
	KwFor // for
	// KwIn represents the 'in' keyword.
	KwIn // in
	// KwImport represents the 'import' keyword.
	KwImport // import
	// KwFrom represents the 'from' keyword.
	KwFrom // from
	// KwAs represents the 'as' keyword.
	KwAs // as
	// KwPass represents the 'pass' keyword.
	KwPass // pass
	// KwBreak represents the 'break' keyword.
	KwBreak // break
	// KwContinue represents the 'continue' keyword.
	KwContinue // continue
	// KwLambda represents the 'lambda' keyword.
	KwLambda // lambda
	// KwTry represents the 'try' keyword.
	KwTry // try
	// KwExcept represents the 'except' keyword.
	KwExcept // except
	// KwFinally represents the 'finally' keyword.
	KwFinally // finally
	// KwRaise represents the 'raise' keyword.
	KwRaise // raise
	// KwGlobal represents the 'global' keyword.
	KwGlobal // global
	// KwNonlocal represents the 'nonlocal' keyword.
	KwNonlocal // nonlocal
	// KwNot represents the 'not' keyword.
	KwNot // not
	// KwAnd represents the 'and' keyword.
	KwAnd // and
	// KwOr represents the 'or' keyword.
	KwOr // or
	// KwIs represents the 'is' keyword.
	KwIs // is
	// KwNone represents the 'None' literal keyword.
	KwNone // None
	// KwTrue represents the 'True' literal keyword.
	KwTrue // True
	// KwFalse represents the 'False' literal keyword.
	KwFalse // False
	// KwDel represents the 'del' keyword.
	KwDel // del
	// KwAssert represents the 'assert' keyword.
	KwAssert // assert
	// KwWith represents the 'with' keyword.
	KwWith // with
	// KwYield represents the 'yield' keyword.
	KwYield // yield

	// Plus represents '+'.
	Plus
	// Minus represents '-'.
	Minus
	// Star represents '*'.
	Star
	// DoubleStar represents '**'.
	DoubleStar
	// Slash represents '/'.
	Slash
	// DoubleSlash represents '//'.
	DoubleSlash
	// Percent represents '%'.
	Percent
	// Assign represents '='.
	Assign
	// PlusAssign represents '+='.
	PlusAssign
	// MinusAssign represents '-='.
	MinusAssign
	// StarAssign represents '*='.
	StarAssign
	// SlashAssign represents '/='.
	SlashAssign
	// EqEq represents '=='.
	EqEq
	// BangEq represents '!='.
	BangEq
	// Lt represents '<'.
	Lt
	// LtEq represents '<='.
	LtEq
	// Gt represents '>'.
	Gt
	// GtEq represents '>='.
	GtEq
	// LParen represents '('.
	LParen
	// RParen represents ')'.
	RParen
	// LBracket represents '['.
	LBracket
	// RBracket represents ']'.
	RBracket
	// LBrace represents '{'.
	LBrace
	// RBrace represents '}'.
	RBrace
	// Comma represents ','.
	Comma
	// Colon represents ':'.
	Colon
	// Semicolon represents ';'.
	Semicolon
	// Dot represents '.'.
	Dot
	// Arrow represents '->'.
	Arrow
	// At represents '@' (decorators).
	At
	// Pipe represents '|' (PEP 604 unions).
	Pipe
	// Amp represents '&'.
	Amp
	// Caret represents '^'.
	Caret
	// Tilde represents '~'.
	Tilde
)

var kindNames = map[Kind]string{
	Invalid:     "invalid",
	EOF:         "eof",
	Newline:     "newline",
	Indent:      "indent",
	Dedent:      "dedent",
	Ident:       "ident",
	IntLit:      "int",
	FloatLit:    "float",
	StringLit:   "string",
	KwDef:       "def",
	KwClass:     "class",
	KwReturn:    "return",
	KwIf:        "if",
	KwElif:      "elif",
	KwElse:      "else",
	KwWhile:     "while",
	KwFor:       "for",
	KwIn:        "in",
	KwImport:    "import",
	KwFrom:      "from",
	KwAs:        "as",
	KwPass:      "pass",
	KwBreak:     "break",
	KwContinue:  "continue",
	KwLambda:    "lambda",
	KwTry:       "try",
	KwExcept:    "except",
	KwFinally:   "finally",
	KwRaise:     "raise",
	KwGlobal:    "global",
	KwNonlocal:  "nonlocal",
	KwNot:       "not",
	KwAnd:       "and",
	KwOr:        "or",
	KwIs:        "is",
	KwNone:      "None",
	KwTrue:      "True",
	KwFalse:     "False",
	KwDel:       "del",
	KwAssert:    "assert",
	KwWith:      "with",
	KwYield:     "yield",
	Plus:        "+",
	Minus:       "-",
	Star:        "*",
	DoubleStar:  "**",
	Slash:       "/",
	DoubleSlash: "//",
	Percent:     "%",
	Assign:      "=",
	PlusAssign:  "+=",
	MinusAssign: "-=",
	StarAssign:  "*=",
	SlashAssign: "/=",
	EqEq:        "==",
	BangEq:      "!=",
	Lt:          "<",
	LtEq:        "<=",
	Gt:          ">",
	GtEq:        ">=",
	LParen:      "(",
	RParen:      ")",
	LBracket:    "[",
	RBracket:    "]",
	LBrace:      "{",
	RBrace:      "}",
	Comma:       ",",
	Colon:       ":",
	Semicolon:   ";",
	Dot:         ".",
	Arrow:       "->",
	At:          "@",
	Pipe:        "|",
	Amp:         "&",
	Caret:       "^",
	Tilde:       "~",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}
