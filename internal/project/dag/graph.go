package dag

import "slices"

// Graph is the import graph of a project, with edges pointing from a
// dependency to its importer. Indegree of a node then counts its unmet
// dependencies, so a Kahn pass yields dependency-first batches.
type Graph struct {
	Edges   [][]NodeID // Edges[dep] = []importer
	Indeg   []int      // входящие степени для Kahn (учитывают только присутствующие узлы)
	Present []bool     // узел реально есть в проекте, а не только импортируется
}

func BuildGraph(idx Index, files []FileImports) Graph {
	nodeCount := len(idx.IDToPath)
	g := Graph{
		Edges:   make([][]NodeID, nodeCount),
		Indeg:   make([]int, nodeCount),
		Present: make([]bool, nodeCount),
	}

	for _, f := range files {
		if f.Path == "" {
			continue
		}
		id, ok := idx.PathToID[f.Path]
		if ok {
			g.Present[int(id)] = true
		}
	}

	for _, f := range files {
		importer, ok := idx.PathToID[f.Path]
		if !ok || len(f.Imports) == 0 {
			continue
		}
		seen := make(map[NodeID]struct{}, len(f.Imports))
		for _, dep := range f.Imports {
			depID, ok := idx.PathToID[dep]
			if !ok || depID == importer {
				continue
			}
			// отсутствующая зависимость не должна задерживать импортёра
			if !g.Present[int(depID)] {
				continue
			}
			if _, dup := seen[depID]; dup {
				continue
			}
			seen[depID] = struct{}{}

			g.Edges[int(depID)] = append(g.Edges[int(depID)], importer)
			g.Indeg[int(importer)]++
		}
	}

	for i := range g.Edges {
		if len(g.Edges[i]) > 1 {
			slices.Sort(g.Edges[i])
		}
	}

	return g
}
