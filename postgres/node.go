package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// AddNode appends a node after the last node of a pipeline and returns
// its id.
func (s *PGStore) AddNode(ctx context.Context, pipelineID int64, in pipeline.NodeInput, dynamic []pipeline.Slot) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO pipeline_nodes (pipeline_id, position, type_name, fields, dynamic_slots)
		 SELECT p.id,
		        COALESCE((SELECT MAX(position) + 1 FROM pipeline_nodes WHERE pipeline_id = p.id), 0),
		        $2, $3, $4
		 FROM pipelines p WHERE p.id = $1
		 RETURNING id`,
		pipelineID, in.TypeName, orEmptyFields(in.Fields), orEmptySlots(dynamic),
	).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, pipeline.ErrPipelineNotFound
		}
		return 0, fmt.Errorf("pipeline: insert node: %w", err)
	}
	return id, nil
}

// GetNode fetches a single node of a pipeline.
// Returns ErrNodeNotFound if it doesn't exist.
func (s *PGStore) GetNode(ctx context.Context, pipelineID, nodeID int64) (*pipeline.Node, error) {
	var n pipeline.Node
	err := s.db.QueryRow(ctx,
		`SELECT id, type_name, fields, dynamic_slots FROM pipeline_nodes WHERE pipeline_id = $1 AND id = $2`,
		pipelineID, nodeID,
	).Scan(&n.ID, &n.TypeName, &n.Fields, &n.DynamicSlots)
	if err != nil {
		if isNoRows(err) {
			return nil, pipeline.ErrNodeNotFound
		}
		return nil, fmt.Errorf("pipeline: get node: %w", err)
	}
	return &n, nil
}

// UpdateNode replaces the kind, fields and dynamic slots of a node.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *PGStore) UpdateNode(ctx context.Context, pipelineID, nodeID int64, in pipeline.NodeInput, dynamic []pipeline.Slot) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE pipeline_nodes SET type_name = $1, fields = $2, dynamic_slots = $3
		 WHERE pipeline_id = $4 AND id = $5`,
		in.TypeName, orEmptyFields(in.Fields), orEmptySlots(dynamic), pipelineID, nodeID,
	)
	if err != nil {
		return fmt.Errorf("pipeline: update node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pipeline.ErrNodeNotFound
	}
	return nil
}

// DeleteNode deletes a node. Its edges are cascade-deleted by the DB.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *PGStore) DeleteNode(ctx context.Context, pipelineID, nodeID int64) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM pipeline_nodes WHERE pipeline_id = $1 AND id = $2`, pipelineID, nodeID)
	if err != nil {
		return fmt.Errorf("pipeline: delete node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pipeline.ErrNodeNotFound
	}
	return nil
}

// listNodes returns all nodes of a pipeline in position order.
// Returns an empty slice (not nil) if none found.
func listNodes(ctx context.Context, q querier, pipelineID int64) ([]pipeline.Node, error) {
	rows, err := q.Query(ctx,
		`SELECT id, type_name, fields, dynamic_slots FROM pipeline_nodes
		 WHERE pipeline_id = $1 ORDER BY position, id`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []pipeline.Node{}
	for rows.Next() {
		var n pipeline.Node
		if err := rows.Scan(&n.ID, &n.TypeName, &n.Fields, &n.DynamicSlots); err != nil {
			return nil, fmt.Errorf("pipeline: scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows nodes: %w", err)
	}
	return nodes, nil
}
