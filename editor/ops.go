package editor

import (
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// ticket identifies the node an in-flight operation belongs to. It carries
// the values the request was built from; the node itself is looked up again
// by key when the operation completes.
type ticket struct {
	key        uint64
	generation uint64
	pipelineID int64
	id         string
	backendID  int64
	input      pipeline.NodeInput
}

func (g *Graph) ticketLocked(e *entry) ticket {
	return ticket{
		key:        e.key,
		generation: g.generation,
		pipelineID: g.pipelineID,
		id:         e.id,
		backendID:  e.backendID,
		input:      pipeline.NodeInput{TypeName: e.kind, Fields: e.fields.Clone()},
	}
}

// resolveLocked finds the node of t, or nil when the graph was hydrated
// again or the node was removed since t was issued.
func (g *Graph) resolveLocked(t ticket) *entry {
	if t.generation != g.generation {
		return nil
	}
	return g.findKeyLocked(t.key)
}

func (g *Graph) begin(id string, start func(*lifecycle) error) (ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.findLocked(id)
	if e == nil {
		return ticket{}, pipeline.ErrNodeNotFound
	}
	if err := start(&e.life); err != nil {
		return ticket{}, err
	}
	return g.ticketLocked(e), nil
}

func (g *Graph) beginSave(id string) (ticket, error) {
	return g.begin(id, (*lifecycle).beginSave)
}

func (g *Graph) beginReload(id string) (ticket, error) {
	return g.begin(id, (*lifecycle).beginReload)
}

func (g *Graph) beginSaveReload(id string) (ticket, error) {
	return g.begin(id, (*lifecycle).beginSaveReload)
}

// saveSucceeded records a committed save. Drafts take their backend id and
// the node-{id} visual id, with edges following. When another node already
// carries that visual id the draft keeps its placeholder, is flagged
// inconsistent and pipeline.ErrNodeIDConflict is returned. It also returns
// the node's current id and whether the node is still in the graph.
func (g *Graph) saveSucceeded(t ticket, res pipeline.NodeResult) (string, bool, error) {
	g.mu.Lock()
	e := g.resolveLocked(t)
	if e == nil {
		g.mu.Unlock()
		return "", false, nil
	}
	var err error
	if e.backendID == 0 {
		e.backendID = res.ID
		if ref := pipeline.NodeRef(res.ID); !g.remapLocked(e, ref) {
			err = fmt.Errorf("%w: %s", pipeline.ErrNodeIDConflict, ref)
			e.inconsistent = true
		}
	}
	if res.DynamicSlots != nil {
		e.dynamic = res.DynamicSlots
	}
	e.life.saveSucceeded()
	e.lastErr = err
	id := e.id
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return id, true, err
}

func (g *Graph) saveFailed(t ticket, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e := g.resolveLocked(t); e != nil {
		e.life.saveFailed()
		e.lastErr = err
	}
}

// reloadSucceeded resyncs a node from the server. Field values are replaced
// unless the operator edited the node while the read was in flight, or the
// node was dirty and keepDirty is set; dynamic slots are always taken. It
// reports whether the fields were replaced.
func (g *Graph) reloadSucceeded(t ticket, st pipeline.NodeState, keepDirty bool) (applied, found bool) {
	g.mu.Lock()
	e := g.resolveLocked(t)
	if e == nil {
		g.mu.Unlock()
		return false, false
	}
	applied = e.life.reloadSucceeded(keepDirty)
	if applied && st.Fields != nil {
		e.fields = st.Fields.Clone()
	}
	if st.DynamicSlots != nil {
		e.dynamic = st.DynamicSlots
	}
	e.inconsistent = false
	e.lastErr = nil
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return applied, true
}

// opFailed settles a failed reload or delete. A node the backend no longer
// knows is flagged inconsistent and stays in the graph.
func (g *Graph) opFailed(t ticket, err error, settle func(*lifecycle), notFound bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.resolveLocked(t)
	if e == nil {
		return
	}
	settle(&e.life)
	e.lastErr = err
	if notFound {
		e.inconsistent = true
	}
}

// beginDelete starts deleting id. Drafts are removed on the spot and local
// is true; the caller must not contact the backend for them.
func (g *Graph) beginDelete(id string) (t ticket, local bool, err error) {
	g.mu.Lock()
	e := g.findLocked(id)
	if e == nil {
		g.mu.Unlock()
		return ticket{}, false, pipeline.ErrNodeNotFound
	}
	if err := e.life.beginDelete(); err != nil {
		g.mu.Unlock()
		return ticket{}, false, err
	}
	t = g.ticketLocked(e)
	if e.life.state != StateDeleted {
		g.mu.Unlock()
		return t, false, nil
	}
	g.removeLocked(e)
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return t, true, nil
}

func (g *Graph) deleteSucceeded(t ticket) bool {
	g.mu.Lock()
	e := g.resolveLocked(t)
	if e == nil {
		g.mu.Unlock()
		return false
	}
	e.life.deleteSucceeded()
	g.removeLocked(e)
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return true
}
