package diag

import (
	"fmt"
	"strings"

	"pythia/internal/source"
)

// FormatLines renders a bag into a stable one-line-per-diagnostic form
// ("SEV CODE path:line:col message"), suitable for golden-file comparison.
// The bag is expected to be sorted; rendering preserves its order.
func FormatLines(b *Bag, fs *source.FileSet) string {
	if b == nil || b.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for i, d := range b.Items() {
		start, _ := fs.Resolve(d.Primary)
		path := "<unknown>"
		if f := fs.Get(d.Primary.File); f != nil {
			path = f.Path
		}
		fmt.Fprintf(&sb, "%s %s %s:%d:%d %s",
			d.Severity.String(), d.Code.ID(), path, start.Line, start.Col, d.Message)
		if i < b.Len()-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
