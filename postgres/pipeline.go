package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meikuraledutech/pipeline"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreatePipeline inserts an empty pipeline.
func (s *PGStore) CreatePipeline(ctx context.Context, name string) (*pipeline.Pipeline, error) {
	p := &pipeline.Pipeline{Name: name, Nodes: []pipeline.Node{}, Edges: []pipeline.Edge{}}
	if err := s.db.QueryRow(ctx,
		`INSERT INTO pipelines (name) VALUES ($1) RETURNING id`, name,
	).Scan(&p.ID); err != nil {
		return nil, fmt.Errorf("pipeline: insert pipeline: %w", err)
	}
	return p, nil
}

// GetPipeline retrieves a full pipeline. Nodes come back in position order
// and edges address them by that order.
func (s *PGStore) GetPipeline(ctx context.Context, pipelineID int64) (*pipeline.Pipeline, error) {
	return getPipeline(ctx, s.db, pipelineID)
}

func getPipeline(ctx context.Context, q querier, pipelineID int64) (*pipeline.Pipeline, error) {
	p := &pipeline.Pipeline{ID: pipelineID}
	err := q.QueryRow(ctx, `SELECT name FROM pipelines WHERE id = $1`, pipelineID).Scan(&p.Name)
	if err != nil {
		if isNoRows(err) {
			return nil, pipeline.ErrPipelineNotFound
		}
		return nil, fmt.Errorf("pipeline: get pipeline: %w", err)
	}

	p.Nodes, err = listNodes(ctx, q, pipelineID)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(p.Nodes))
	for i, n := range p.Nodes {
		index[n.ID] = i
	}
	p.Edges, err = listEdges(ctx, q, pipelineID, index)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPipelines returns every pipeline without its graph, ordered by id.
// Returns an empty slice (not nil) if none exist.
func (s *PGStore) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM pipelines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list pipelines: %w", err)
	}
	defer rows.Close()

	out := []pipeline.Pipeline{}
	for rows.Next() {
		var p pipeline.Pipeline
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("pipeline: scan pipeline: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows pipelines: %w", err)
	}
	return out, nil
}

// ReplaceGraph saves a full graph (nodes + edges) in one transaction.
// Edge indices are resolved to the ids the inserted nodes receive.
// Returns the pipeline as stored.
func (s *PGStore) ReplaceGraph(ctx context.Context, pipelineID int64, p pipeline.Payload, dynamic [][]pipeline.Slot) (*pipeline.Pipeline, error) {
	if err := pipeline.ValidateGraph(p); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM pipelines WHERE id = $1 FOR UPDATE`, pipelineID).Scan(&locked); err != nil {
		if isNoRows(err) {
			return nil, pipeline.ErrPipelineNotFound
		}
		return nil, fmt.Errorf("pipeline: lock pipeline: %w", err)
	}

	// Replace semantics: edges go with their nodes through the cascade.
	if _, err := tx.Exec(ctx, `DELETE FROM pipeline_nodes WHERE pipeline_id = $1`, pipelineID); err != nil {
		return nil, fmt.Errorf("pipeline: delete nodes: %w", err)
	}

	ids := make([]int64, len(p.Nodes))
	for i, n := range p.Nodes {
		var slots []pipeline.Slot
		if i < len(dynamic) {
			slots = dynamic[i]
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO pipeline_nodes (pipeline_id, position, type_name, fields, dynamic_slots)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			pipelineID, i, n.TypeName, orEmptyFields(n.Fields), orEmptySlots(slots),
		).Scan(&ids[i]); err != nil {
			return nil, fmt.Errorf("pipeline: insert node %d: %w", i, err)
		}
	}

	for i, e := range p.Edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO pipeline_edges (pipeline_id, node_a, node_b) VALUES ($1, $2, $3)`,
			pipelineID, ids[e.NodeA], ids[e.NodeB],
		); err != nil {
			return nil, fmt.Errorf("pipeline: insert edge %d: %w", i, err)
		}
	}

	stored, err := getPipeline(ctx, tx, pipelineID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: commit: %w", err)
	}
	return stored, nil
}

// DeletePipeline removes a pipeline with all of its nodes and edges.
func (s *PGStore) DeletePipeline(ctx context.Context, pipelineID int64) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, pipelineID)
	if err != nil {
		return fmt.Errorf("pipeline: delete pipeline: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pipeline.ErrPipelineNotFound
	}
	return nil
}
