// Package layout computes cosmetic node positions for a pipeline graph.
//
// Graphs are laid out left to right: every edge points from a lower layer to
// a higher one, and layers are stacked horizontally. Cycles are broken by
// ignoring the edges a depth first walk finds pointing backwards.
package layout

import "context"

// Default box size used when a node has not been measured yet.
const (
	DefaultWidth  = 240
	DefaultHeight = 120
)

// Box is a node to place.
type Box struct {
	ID     string
	Width  float64
	Height float64
}

// Link is a directed connection between two boxes.
type Link struct {
	ID     string
	Source string
	Target string
}

// Point is the top left corner of a placed box.
type Point struct {
	X float64
	Y float64
}

// Engine places boxes. Implementations must return a position for each box
// and must not fail on links that reference unknown boxes.
type Engine interface {
	Layout(ctx context.Context, boxes []Box, links []Link) (map[string]Point, error)
}

// Options tune the layered engine.
type Options struct {
	// NodeSpacing separates boxes within a layer.
	NodeSpacing float64
	// LayerSpacing separates neighbouring layers.
	LayerSpacing float64
}

// DefaultOptions mirror the spacing the editor has always used.
func DefaultOptions() Options {
	return Options{NodeSpacing: 50, LayerSpacing: 20}
}

// Layered is a longest path layered layout.
type Layered struct {
	opts Options
}

// NewLayered creates a layered engine. Zero spacings take the defaults.
func NewLayered(opts Options) *Layered {
	def := DefaultOptions()
	if opts.NodeSpacing <= 0 {
		opts.NodeSpacing = def.NodeSpacing
	}
	if opts.LayerSpacing <= 0 {
		opts.LayerSpacing = def.LayerSpacing
	}
	return &Layered{opts: opts}
}

// Layout implements Engine.
func (l *Layered) Layout(ctx context.Context, boxes []Box, links []Link) (map[string]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(boxes))
	for i, b := range boxes {
		index[b.ID] = i
	}

	adj := make([][]int, len(boxes))
	for _, ln := range links {
		s, okS := index[ln.Source]
		t, okT := index[ln.Target]
		if !okS || !okT || s == t {
			continue
		}
		adj[s] = append(adj[s], t)
	}

	layers := assignLayers(adj)

	// Layer widths come from the widest box of each layer.
	depth := 0
	for _, d := range layers {
		depth = max(depth, d+1)
	}
	widths := make([]float64, depth)
	for i, b := range boxes {
		widths[layers[i]] = max(widths[layers[i]], size(b.Width, DefaultWidth))
	}
	xs := make([]float64, depth)
	for d := 1; d < depth; d++ {
		xs[d] = xs[d-1] + widths[d-1] + l.opts.LayerSpacing
	}

	// Boxes keep their input order inside a layer.
	ys := make([]float64, depth)
	out := make(map[string]Point, len(boxes))
	for i, b := range boxes {
		d := layers[i]
		out[b.ID] = Point{X: xs[d], Y: ys[d]}
		ys[d] += size(b.Height, DefaultHeight) + l.opts.NodeSpacing
	}
	return out, nil
}

// assignLayers gives each vertex the length of the longest path reaching it
// once back edges are dropped.
func assignLayers(adj [][]int) []int {
	n := len(adj)

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make([]int, n)
	order := make([]int, 0, n)
	dag := make([][]int, n)

	var dfs func(v int)
	dfs = func(v int) {
		state[v] = visiting
		for _, w := range adj[v] {
			switch state[w] {
			case visiting:
				// back edge, dropped
			case unvisited:
				dag[v] = append(dag[v], w)
				dfs(w)
			default:
				dag[v] = append(dag[v], w)
			}
		}
		state[v] = visited
		order = append(order, v)
	}
	for v := range n {
		if state[v] == unvisited {
			dfs(v)
		}
	}

	// order is a reverse topological order of dag.
	layers := make([]int, n)
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		for _, w := range dag[v] {
			layers[w] = max(layers[w], layers[v]+1)
		}
	}
	return layers
}

func size(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
