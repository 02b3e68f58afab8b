package diag

import (
	"fmt"
	"sort"

	"pythia/internal/source"
)

// Bag accumulates diagnostics for one analysis pass over one file.
type Bag struct {
	items []Diagnostic
	max   int
}

// NewBag creates a bag that keeps at most max diagnostics. The limit is
// user-supplied (manifest or flag), so it is taken as-is without
// narrowing; a non-positive limit drops everything.
func NewBag(max int) *Bag {
	if max < 0 {
		max = 0
	}
	prealloc := max
	if prealloc > 64 {
		prealloc = 64
	}
	return &Bag{
		items: make([]Diagnostic, 0, prealloc),
		max:   max,
	}
}

// Add добавляет диагностику, учитывая лимит.
// Возвращает false, если диагностика не добавлена (достигнут лимит).
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() int {
	return b.max
}

// HasErrors возвращает true, если есть хотя бы одна диагностика с Severity >= Error
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items возвращает read-only slice диагностик.
// ВАЖНО: не модифицируйте возвращаемый срез!
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Merge объединяет диагностики из другого Bag.
func (b *Bag) Merge(other *Bag) {
	if newTotal := len(b.items) + len(other.items); newTotal > b.max {
		b.max = newTotal
	}
	b.items = append(b.items, other.items...)
}

// Sort orders diagnostics by file, then start offset, then end offset,
// then severity (errors first), then code. The sort is stable so entries
// at the same position keep their discovery order.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// простая дедупликация (по Code+Primary)
func (b *Bag) Dedup() {
	seen := make(map[string]bool)
	newitems := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := fmt.Sprintf("%s:%s", d.Code.String(), d.Primary.String())
		if seen[key] {
			continue
		}
		seen[key] = true
		newitems = append(newitems, d)
	}
	b.items = newitems
}

// LineGroup holds diagnostics that share one source line, in discovery order.
type LineGroup struct {
	Line  uint32
	Items []Diagnostic
}

// GroupByLine sorts by line/column and groups same-line diagnostics together,
// preserving the relative order of same-line entries. Line-oriented test
// fixtures compare against these groups.
func (b *Bag) GroupByLine(fs *source.FileSet) []LineGroup {
	type positioned struct {
		d    Diagnostic
		line uint32
		col  uint32
		idx  int
	}
	entries := make([]positioned, 0, len(b.items))
	for i, d := range b.items {
		start, _ := fs.Resolve(d.Primary)
		entries = append(entries, positioned{d: d, line: start.Line, col: start.Col, idx: i})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].line != entries[j].line {
			return entries[i].line < entries[j].line
		}
		if entries[i].col != entries[j].col {
			return entries[i].col < entries[j].col
		}
		return entries[i].idx < entries[j].idx
	})

	var groups []LineGroup
	for _, e := range entries {
		if len(groups) == 0 || groups[len(groups)-1].Line != e.line {
			groups = append(groups, LineGroup{Line: e.line})
		}
		last := &groups[len(groups)-1]
		last.Items = append(last.Items, e.d)
	}
	return groups
}
