package fuzztests

import (
	"testing"

	"pythia/internal/lexer"
	"pythia/internal/source"
	"pythia/internal/token"
)

func FuzzLexerNeverPanics(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)

		fs := source.NewFileSet()
		fileID := fs.AddVirtual("fuzz.py", input)
		toks := lexer.Tokenize(fs.Get(fileID), lexer.Options{})

		if len(toks) == 0 {
			t.Fatal("token stream must at least carry EOF")
		}
		if toks[len(toks)-1].Kind != token.EOF {
			t.Fatalf("token stream must end with EOF, got %v", toks[len(toks)-1].Kind)
		}
	})
}
