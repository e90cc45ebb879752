package manifest

import (
	"sort"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
)

// TopoSort returns the pipeline's slot ids in dependency order
// (dependencies before dependents), via Kahn's algorithm over
// depends_on, grounded on the teacher's DFS-based dag validator
// generalised to a queue-based reduction so ties break in declaration
// order. A non-empty result is only returned when every slot was
// consumed; otherwise the remaining in-cycle slots are reported.
func TopoSort(p *Pipeline) ([]string, error) {
	indegree := make(map[string]int, len(p.Slots))
	dependents := make(map[string][]string, len(p.Slots))
	for _, s := range p.Slots {
		indegree[s.ID] = 0
	}
	for _, s := range p.Slots {
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.ID)
			indegree[s.ID]++
		}
	}

	var queue []string
	for _, s := range p.Slots {
		if indegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	order := make([]string, 0, len(p.Slots))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(p.Slots) {
		remaining := make([]string, 0, len(p.Slots)-len(order))
		for id, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &errs.Cycle{Nodes: remaining}
	}
	return order, nil
}

// Layers groups TopoSort's order into dependency layers: layer i
// contains every slot whose depends_on set is fully contained in
// layers 0..i-1, so slots within one layer do not depend on each
// other.
func Layers(p *Pipeline) ([][]string, error) {
	order, err := TopoSort(p)
	if err != nil {
		return nil, err
	}
	layerOf := make(map[string]int, len(order))
	var layers [][]string
	for _, id := range order {
		slot := p.SlotByID(id)
		depth := 0
		for _, dep := range slot.DependsOn {
			if layerOf[dep]+1 > depth {
				depth = layerOf[dep] + 1
			}
		}
		layerOf[id] = depth
		for len(layers) <= depth {
			layers = append(layers, nil)
		}
		layers[depth] = append(layers[depth], id)
	}
	return layers, nil
}
