package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meikuraledutech/pipeline"
)

// NodeBackend is the part of the backend the lifecycle controller talks to.
type NodeBackend interface {
	CreateNode(ctx context.Context, pipelineID int64, in pipeline.NodeInput) (pipeline.NodeResult, error)
	UpdateNode(ctx context.Context, pipelineID, nodeID int64, in pipeline.NodeInput) (pipeline.NodeResult, error)
	GetNode(ctx context.Context, pipelineID, nodeID int64) (pipeline.NodeState, error)
	DeleteNode(ctx context.Context, pipelineID, nodeID int64) error
}

// Controller persists single nodes of a Graph. Saves are explicit: edits
// accumulate until Save is called. At most one lifecycle operation runs per
// node; operations on different nodes may run concurrently.
type Controller struct {
	graph    *Graph
	backend  NodeBackend
	notifier Notifier
	logger   *slog.Logger
}

// NewController wires a controller to graph and backend.
func NewController(graph *Graph, backend NodeBackend, notifier Notifier, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Controller{graph: graph, backend: backend, notifier: notifier, logger: logger}
}

// Save creates a draft node or updates a persisted one, then reloads it to
// pick up dynamic slots. A failing reload is reported as a warning and does
// not undo the save. Saving a node whose save or follow-up reload is in
// flight returns pipeline.ErrSaveInFlight without calling the backend.
func (c *Controller) Save(ctx context.Context, id string) error {
	t, err := c.graph.beginSave(id)
	if err != nil {
		c.logger.DebugContext(ctx, "Save rejected", "node_id", id, "error", err)
		c.notifier.Notify(ctx, Notification{Level: LevelWarning, NodeID: id, Message: "Node cannot be saved right now", Err: err})
		return err
	}

	var res pipeline.NodeResult
	if t.backendID == 0 {
		res, err = c.backend.CreateNode(ctx, t.pipelineID, t.input)
		if err == nil && res.ID == 0 {
			err = errors.New("create response carries no node id")
		}
	} else {
		res, err = c.backend.UpdateNode(ctx, t.pipelineID, t.backendID, t.input)
	}
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", pipeline.ErrSaveFailed, id, err)
		c.graph.saveFailed(t, err)
		c.logger.ErrorContext(ctx, "Failed to save node", "node_id", id, "kind", t.input.TypeName, "error", err)
		c.notifier.Notify(ctx, Notification{Level: LevelError, NodeID: id, Message: "Failed to save node", Err: err})
		return err
	}

	newID, ok, err := c.graph.saveSucceeded(t, res)
	if !ok {
		c.logger.WarnContext(ctx, "Saved node is no longer in the graph", "node_id", id, "backend_id", res.ID)
		return nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Saved node keeps its placeholder id", "node_id", newID, "backend_id", res.ID, "error", err)
		c.notifier.Notify(ctx, Notification{Level: LevelWarning, NodeID: newID, Message: "Node saved, but its id clashes with another node", Err: err})
		return err
	}
	c.logger.InfoContext(ctx, "Node saved", "node_id", newID, "kind", t.input.TypeName)
	c.notifier.Notify(ctx, Notification{Level: LevelSuccess, NodeID: newID, Message: "Node saved successfully"})

	if err := c.reload(ctx, newID, true); err != nil {
		c.logger.WarnContext(ctx, "Failed to reload node after save", "node_id", newID, "error", err)
		c.notifier.Notify(ctx, Notification{Level: LevelWarning, NodeID: newID, Message: "Node saved, but reloading it failed", Err: err})
	}
	return nil
}

// Reload replaces a persisted node's field values and dynamic slots with
// the server's, discarding unsaved local edits. pipeline.ErrNodeNotFound in
// the error chain means the node vanished on the server; it stays in the
// graph flagged inconsistent.
func (c *Controller) Reload(ctx context.Context, id string) error {
	err := c.reload(ctx, id, false)
	if err != nil {
		c.notifier.Notify(ctx, Notification{Level: LevelError, NodeID: id, Message: "Failed to reload node", Err: err})
		return err
	}
	c.notifier.Notify(ctx, Notification{Level: LevelSuccess, NodeID: id, Message: "Node reloaded successfully"})
	return nil
}

// reload with keepDirty is the read following a save: local edits of a
// dirty node stay in place and the node keeps reporting as saving.
func (c *Controller) reload(ctx context.Context, id string, keepDirty bool) error {
	begin := c.graph.beginReload
	if keepDirty {
		begin = c.graph.beginSaveReload
	}
	t, err := begin(id)
	if err != nil {
		return err
	}

	st, err := c.backend.GetNode(ctx, t.pipelineID, t.backendID)
	if err != nil {
		notFound := errors.Is(err, pipeline.ErrNodeNotFound)
		err = fmt.Errorf("%w: %s: %w", pipeline.ErrReloadFailed, id, err)
		c.graph.opFailed(t, err, (*lifecycle).reloadFailed, notFound)
		c.logger.ErrorContext(ctx, "Failed to reload node", "node_id", id, "not_found", notFound, "error", err)
		return err
	}

	applied, ok := c.graph.reloadSucceeded(t, st, keepDirty)
	switch {
	case !ok:
		c.logger.WarnContext(ctx, "Reloaded node is no longer in the graph", "node_id", id)
	case !applied:
		c.logger.InfoContext(ctx, "Kept local edits made during reload", "node_id", id)
	}
	return nil
}

// Delete removes a node. Drafts are dropped locally without a backend call.
// Persisted nodes are removed only once the backend confirms; on failure
// they stay, carrying the error. Deleting during a save returns
// pipeline.ErrSaveInFlight.
func (c *Controller) Delete(ctx context.Context, id string) error {
	t, local, err := c.graph.beginDelete(id)
	if err != nil {
		c.notifier.Notify(ctx, Notification{Level: LevelWarning, NodeID: id, Message: "Node cannot be deleted right now", Err: err})
		return err
	}
	if local {
		c.notifier.Notify(ctx, Notification{Level: LevelSuccess, NodeID: id, Message: "Node removed"})
		return nil
	}

	if err := c.backend.DeleteNode(ctx, t.pipelineID, t.backendID); err != nil {
		notFound := errors.Is(err, pipeline.ErrNodeNotFound)
		err = fmt.Errorf("%w: %s: %w", pipeline.ErrDeleteFailed, id, err)
		c.graph.opFailed(t, err, (*lifecycle).deleteFailed, notFound)
		c.logger.ErrorContext(ctx, "Failed to delete node", "node_id", id, "not_found", notFound, "error", err)
		c.notifier.Notify(ctx, Notification{Level: LevelError, NodeID: id, Message: "Failed to delete node", Err: err})
		return err
	}

	c.graph.deleteSucceeded(t)
	c.notifier.Notify(ctx, Notification{Level: LevelSuccess, NodeID: id, Message: "Node deleted successfully"})
	return nil
}
