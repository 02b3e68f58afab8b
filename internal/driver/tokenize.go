package driver

import (
	"pythia/internal/diag"
	"pythia/internal/parser"
	"pythia/internal/source"
	"pythia/internal/token"
)

// TokenizeResult is the outcome of lexing one file standalone.
type TokenizeResult struct {
	Tokens  []token.Token
	Bag     *diag.Bag
	FileSet *source.FileSet
}

// Tokenize lexes a single file without building an analyzer. Lexical
// errors land in the bag; the token stream is always complete.
func Tokenize(path string, maxDiagnostics int) (*TokenizeResult, error) {
	if maxDiagnostics <= 0 {
		maxDiagnostics = 256
	}
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		return nil, err
	}

	bag := diag.NewBag(maxDiagnostics)
	toks := parser.TokenizeFile(fs.Get(id), diag.BagReporter{Bag: bag})
	bag.Sort()
	return &TokenizeResult{Tokens: toks, Bag: bag, FileSet: fs}, nil
}
