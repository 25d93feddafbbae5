package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// listEdges returns the edges of a pipeline with endpoints translated to
// positions through index. Edges touching a node missing from index are
// skipped.
// Returns an empty slice (not nil) if none found.
func listEdges(ctx context.Context, q querier, pipelineID int64, index map[int64]int) ([]pipeline.Edge, error) {
	rows, err := q.Query(ctx,
		`SELECT id, node_a, node_b FROM pipeline_edges WHERE pipeline_id = $1 ORDER BY id`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list edges: %w", err)
	}
	defer rows.Close()

	edges := []pipeline.Edge{}
	for rows.Next() {
		var id, a, b int64
		if err := rows.Scan(&id, &a, &b); err != nil {
			return nil, fmt.Errorf("pipeline: scan edge: %w", err)
		}
		ia, okA := index[a]
		ib, okB := index[b]
		if !okA || !okB {
			continue
		}
		edges = append(edges, pipeline.Edge{ID: id, NodeA: ia, NodeB: ib})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows edges: %w", err)
	}
	return edges, nil
}
