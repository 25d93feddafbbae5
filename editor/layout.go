package editor

import (
	"context"

	"github.com/meikuraledutech/pipeline/layout"
)

// AutoLayout places every node with the graph's layout engine. Edges with
// an endpoint outside the node set are left out of the computation. Only
// positions change; ids, edges and field values are untouched.
func (g *Graph) AutoLayout(ctx context.Context) error {
	g.mu.Lock()
	generation := g.generation
	boxes := make([]layout.Box, 0, len(g.nodes))
	present := make(map[string]bool, len(g.nodes))
	for _, e := range g.nodes {
		present[e.id] = true
		boxes = append(boxes, layout.Box{ID: e.id, Width: e.width, Height: e.height})
	}
	links := make([]layout.Link, 0, len(g.edges))
	for _, e := range g.edges {
		if present[e.Source] && present[e.Target] {
			links = append(links, layout.Link{ID: e.ID, Source: e.Source, Target: e.Target})
		}
	}
	g.mu.Unlock()

	positions, err := g.engine.Layout(ctx, boxes, links)
	if err != nil {
		g.logger.WarnContext(ctx, "Auto layout failed", "error", err)
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generation != generation {
		return nil
	}
	for _, e := range g.nodes {
		if p, ok := positions[e.id]; ok {
			e.position = p
		}
	}
	return nil
}
