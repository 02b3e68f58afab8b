package diagfmt

import (
	"encoding/json"
	"io"

	"pythia/internal/diag"
	"pythia/internal/source"
)

// Record is the machine-readable shape of one diagnostic. Positions are
// 1-based line/column pairs.
type Record struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Path     string       `json:"path,omitempty"`
	Line     uint32       `json:"line,omitempty"`
	Col      uint32       `json:"col,omitempty"`
	EndLine  uint32       `json:"end_line,omitempty"`
	EndCol   uint32       `json:"end_col,omitempty"`
	Notes    []NoteRecord `json:"notes,omitempty"`
}

type NoteRecord struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Line    uint32 `json:"line,omitempty"`
	Col     uint32 `json:"col,omitempty"`
}

// ToRecord flattens a diagnostic against the file set.
func ToRecord(d diag.Diagnostic, fs *source.FileSet) Record {
	rec := Record{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Message:  d.Message,
	}
	if path, start, end, ok := resolve(fs, d.Primary); ok {
		rec.Path = path
		rec.Line, rec.Col = start.Line, start.Col
		rec.EndLine, rec.EndCol = end.Line, end.Col
	}
	for _, n := range d.Notes {
		nr := NoteRecord{Message: n.Msg}
		if path, start, _, ok := resolve(fs, n.Span); ok {
			nr.Path = path
			nr.Line, nr.Col = start.Line, start.Col
		}
		rec.Notes = append(rec.Notes, nr)
	}
	return rec
}

// WriteJSON emits the diagnostics as one JSON array.
func WriteJSON(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet) error {
	records := make([]Record, 0, len(diags))
	for _, d := range diags {
		records = append(records, ToRecord(d, fs))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func resolve(fs *source.FileSet, sp source.Span) (string, source.LineCol, source.LineCol, bool) {
	if fs == nil || sp == (source.Span{}) {
		return "", source.LineCol{}, source.LineCol{}, false
	}
	f := fs.Get(sp.File)
	if f == nil {
		return "", source.LineCol{}, source.LineCol{}, false
	}
	start, end := fs.Resolve(sp)
	return f.Path, start, end, true
}
