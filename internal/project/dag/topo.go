package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

type Topo struct {
	Order   []NodeID   // линейный порядок (только реальные файлы)
	Batches [][]NodeID // волны независимых файлов
	Cyclic  bool
	Cycles  []NodeID // узлы, оставшиеся в цикле
}

// ToposortKahn orders the present nodes dependency-first. Every batch
// holds files whose project-local dependencies all sit in earlier
// batches, so the batches can be analyzed in parallel waves.
func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Edges)
	indeg := make([]int, len(g.Indeg))
	copy(indeg, g.Indeg)

	topo := &Topo{
		Order:   make([]NodeID, 0, nodeCount),
		Batches: make([][]NodeID, 0),
	}

	active := 0
	for i := range nodeCount {
		if g.Present[i] {
			active++
		}
	}

	current := make([]NodeID, 0, nodeCount)
	for i := range nodeCount {
		if !g.Present[i] {
			continue
		}
		if indeg[i] == 0 {
			id, err := safecast.Conv[NodeID](i)
			if err != nil {
				panic(fmt.Errorf("node id overflow: %w", err))
			}
			current = append(current, id)
		}
	}
	slices.Sort(current)

	visited := 0
	for len(current) > 0 {
		batch := make([]NodeID, len(current))
		copy(batch, current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]NodeID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, to := range g.Edges[int(id)] {
				indeg[int(to)]--
				if indeg[int(to)] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if visited != active {
		topo.Cyclic = true
		for i := range nodeCount {
			if !g.Present[i] {
				continue
			}
			if indeg[i] > 0 {
				id, err := safecast.Conv[NodeID](i)
				if err != nil {
					panic(fmt.Errorf("node id overflow: %w", err))
				}
				topo.Cycles = append(topo.Cycles, id)
			}
		}
		slices.Sort(topo.Cycles)
	}

	return topo
}
