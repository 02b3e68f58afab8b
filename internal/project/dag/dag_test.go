package dag

import (
	"slices"
	"testing"
)

func pathsOf(idx Index, ids []NodeID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.IDToPath[int(id)])
	}
	return out
}

func TestToposortDependencyFirstBatches(t *testing.T) {
	// c импортирует b, b импортирует a; d независим
	files := []FileImports{
		{Path: "a.py"},
		{Path: "b.py", Imports: []string{"a.py"}},
		{Path: "c.py", Imports: []string{"b.py"}},
		{Path: "d.py"},
	}
	idx := BuildIndex(files)
	g := BuildGraph(idx, files)
	topo := ToposortKahn(g)

	if topo.Cyclic {
		t.Fatalf("acyclic graph reported cyclic: %+v", topo)
	}
	wantBatches := [][]string{
		{"a.py", "d.py"},
		{"b.py"},
		{"c.py"},
	}
	if len(topo.Batches) != len(wantBatches) {
		t.Fatalf("batches = %d, want %d", len(topo.Batches), len(wantBatches))
	}
	for i, want := range wantBatches {
		got := pathsOf(idx, topo.Batches[i])
		if !slices.Equal(got, want) {
			t.Fatalf("batch %d = %v, want %v", i, got, want)
		}
	}
	if len(topo.Order) != 4 {
		t.Fatalf("order covers %d nodes, want 4", len(topo.Order))
	}
}

func TestToposortDetectsCycle(t *testing.T) {
	files := []FileImports{
		{Path: "a.py", Imports: []string{"b.py"}},
		{Path: "b.py", Imports: []string{"a.py"}},
		{Path: "lone.py"},
	}
	idx := BuildIndex(files)
	g := BuildGraph(idx, files)
	topo := ToposortKahn(g)

	if !topo.Cyclic {
		t.Fatal("mutual import must be reported as a cycle")
	}
	if got := pathsOf(idx, topo.Cycles); !slices.Equal(got, []string{"a.py", "b.py"}) {
		t.Fatalf("cycle members = %v, want [a.py b.py]", got)
	}
	// независимый файл всё равно попадает в порядок
	if got := pathsOf(idx, topo.Order); !slices.Equal(got, []string{"lone.py"}) {
		t.Fatalf("order = %v, want [lone.py]", got)
	}
}

func TestAbsentDependencyDoesNotGate(t *testing.T) {
	// импорт за пределы проекта не задерживает импортёра
	files := []FileImports{
		{Path: "m.py", Imports: []string{"vendor/ext.py"}},
	}
	idx := BuildIndex(files)
	g := BuildGraph(idx, files)
	topo := ToposortKahn(g)

	if topo.Cyclic {
		t.Fatalf("absent dependency must not look like a cycle: %+v", topo)
	}
	if len(topo.Batches) != 1 || len(topo.Batches[0]) != 1 {
		t.Fatalf("want a single one-file batch, got %+v", topo.Batches)
	}
	if idx.IDToPath[int(topo.Batches[0][0])] != "m.py" {
		t.Fatalf("batch holds %q, want m.py", idx.IDToPath[int(topo.Batches[0][0])])
	}
}

func TestDuplicateAndSelfImportsIgnored(t *testing.T) {
	files := []FileImports{
		{Path: "a.py"},
		{Path: "b.py", Imports: []string{"a.py", "a.py", "b.py"}},
	}
	idx := BuildIndex(files)
	g := BuildGraph(idx, files)

	bID := idx.PathToID["b.py"]
	if g.Indeg[int(bID)] != 1 {
		t.Fatalf("indeg(b.py) = %d, want 1", g.Indeg[int(bID)])
	}
	aID := idx.PathToID["a.py"]
	if got := len(g.Edges[int(aID)]); got != 1 {
		t.Fatalf("edges from a.py = %d, want 1", got)
	}
}
