package diag

import (
	"testing"

	"pythia/internal/source"
)

func TestBagSortStable(t *testing.T) {
	b := NewBag(16)
	b.Add(NewError(SemaUnresolvedName, source.Span{File: 0, Start: 20, End: 21}, "third"))
	b.Add(NewError(SemaUnresolvedName, source.Span{File: 0, Start: 5, End: 6}, "first"))
	b.Add(NewWarning(SemaUnusedBinding, source.Span{File: 0, Start: 5, End: 6}, "second"))
	b.Sort()

	items := b.Items()
	if items[0].Message != "first" {
		t.Fatalf("expected error before warning at same span, got %q", items[0].Message)
	}
	if items[1].Message != "second" {
		t.Fatalf("expected warning second, got %q", items[1].Message)
	}
	if items[2].Message != "third" {
		t.Fatalf("expected later offset last, got %q", items[2].Message)
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(2)
	sp := source.Span{File: 0, Start: 0, End: 1}
	if !b.Add(NewError(SemaUnresolvedName, sp, "one")) || !b.Add(NewError(SemaUnresolvedName, sp, "two")) {
		t.Fatal("adds under the limit must succeed")
	}
	if b.Add(NewError(SemaUnresolvedName, sp, "three")) {
		t.Fatal("add over the limit must be rejected")
	}
	if b.Len() != 2 {
		t.Fatalf("len = %d, want 2", b.Len())
	}
}

func TestBagLargeLimit(t *testing.T) {
	// лимит приходит из манифеста и может быть любым int
	b := NewBag(65536)
	if b.Cap() != 65536 {
		t.Fatalf("cap = %d, want 65536", b.Cap())
	}
	sp := source.Span{File: 0, Start: 0, End: 1}
	if !b.Add(NewError(SemaUnresolvedName, sp, "kept")) {
		t.Fatal("a bag with a large limit dropped its first diagnostic")
	}
	if b.Len() != 1 {
		t.Fatalf("len = %d, want 1", b.Len())
	}
}

func TestBagMergeRaisesLimit(t *testing.T) {
	sp := source.Span{File: 0, Start: 0, End: 1}
	a := NewBag(1)
	a.Add(NewError(SemaUnresolvedName, sp, "left"))
	other := NewBag(1)
	other.Add(NewError(SemaUnresolvedName, sp, "right"))

	a.Merge(other)
	if a.Len() != 2 {
		t.Fatalf("merged len = %d, want 2", a.Len())
	}
	if a.Cap() < 2 {
		t.Fatalf("merge must raise the limit to fit both sides, cap = %d", a.Cap())
	}
}

func TestGroupByLine(t *testing.T) {
	fs := source.NewFileSet()
	// две строки: "ab\ncd"
	id := fs.AddVirtual("two.py", []byte("ab\ncd"))

	b := NewBag(8)
	// discovery-порядок: строка 1, строка 2, снова строка 1
	b.Add(NewError(SemaUnresolvedName, source.Span{File: id, Start: 0, End: 1}, "one"))
	b.Add(NewError(SemaUnresolvedName, source.Span{File: id, Start: 3, End: 4}, "two"))
	b.Add(NewError(SemaUnresolvedName, source.Span{File: id, Start: 1, End: 2}, "three"))

	groups := b.GroupByLine(fs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Line != 1 || len(groups[0].Items) != 2 {
		t.Fatalf("group 0: expected line 1 with 2 items, got line %d with %d", groups[0].Line, len(groups[0].Items))
	}
	if groups[1].Line != 2 || len(groups[1].Items) != 1 {
		t.Fatalf("group 1: expected line 2 with 1 item, got line %d with %d", groups[1].Line, len(groups[1].Items))
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(8)
	r := NewDedupReporter(BagReporter{Bag: bag})
	sp := source.Span{File: 0, Start: 1, End: 2}
	r.Report(SemaUnresolvedName, SevError, sp, "x is not defined", nil)
	r.Report(SemaUnresolvedName, SevError, sp, "x is not defined", nil)
	r.Report(SemaUnresolvedName, SevError, sp, "y is not defined", nil)
	if bag.Len() != 2 {
		t.Fatalf("expected 2 unique diagnostics, got %d", bag.Len())
	}
}

func TestFormatLines(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("m.py", []byte("x\n"))
	b := NewBag(4)
	b.Add(NewError(SemaUnresolvedName, source.Span{File: id, Start: 0, End: 1}, "name 'x' is not defined"))
	got := FormatLines(b, fs)
	want := "ERROR PYT3001 m.py:1:1 name 'x' is not defined"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
