package token

var keywords = map[string]Kind{
	"def":      KwDef,
	"class":    KwClass,
	"return":   KwReturn,
	"if":       KwIf,
	"elif":     KwElif,
	"else":     KwElse,
	"while":    KwWhile,
	"for":      KwFor,
	"in":       KwIn,
	"import":   KwImport,
	"from":     KwFrom,
	"as":       KwAs,
	"pass":     KwPass,
	"break":    KwBreak,
	"continue": KwContinue,
	"lambda":   KwLambda,
	"try":      KwTry,
	"except":   KwExcept,
	"finally":  KwFinally,
	"raise":    KwRaise,
	"global":   KwGlobal,
	"nonlocal": KwNonlocal,
	"not":      KwNot,
	"and":      KwAnd,
	"or":       KwOr,
	"is":       KwIs,
	"None":     KwNone,
	"True":     KwTrue,
	"False":    KwFalse,
	"del":      KwDel,
	"assert":   KwAssert,
	"with":     KwWith,
	"yield":    KwYield,
}

// LookupKeyword возвращает тип и bool если это ключевое слово.
// Ключевые слова регистрозависимые, как в Python.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}
