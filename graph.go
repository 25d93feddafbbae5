package pipeline

import "fmt"

// ValidateGraph checks that every edge of p addresses an existing node
// index and that the edges do not form a cycle.
func ValidateGraph(p Payload) error {
	n := len(p.Nodes)
	for i, e := range p.Edges {
		if e.NodeA < 0 || e.NodeA >= n || e.NodeB < 0 || e.NodeB >= n {
			return fmt.Errorf("%w: edge %d (%d -> %d) with %d nodes", ErrEdgeOutOfRange, i, e.NodeA, e.NodeB, n)
		}
	}
	return validateAcyclic(n, p.Edges)
}

// validateAcyclic runs a DFS over node indices.
func validateAcyclic(n int, edges []EdgeRef) error {
	adj := make([][]int, n)
	for _, e := range edges {
		adj[e.NodeA] = append(adj[e.NodeA], e.NodeB)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make([]int, n)

	var dfs func(i int) bool
	dfs = func(i int) bool {
		state[i] = visiting
		for _, next := range adj[i] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[i] = visited
		return false
	}

	for i := range state {
		if state[i] == unvisited && dfs(i) {
			return ErrCycleDetected
		}
	}
	return nil
}
