package editor

import (
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// State is the lifecycle state of a node in the editor.
type State uint8

const (
	// StateDraft nodes were created locally and never saved.
	StateDraft State = iota
	// StateSaving nodes have a create or update call in flight.
	StateSaving
	// StateClean nodes match what the backend last confirmed.
	StateClean
	// StateDirty nodes carry local edits the backend has not seen.
	StateDirty
	// StateReloading nodes have a read call in flight.
	StateReloading
	// StateDeleting nodes have a delete call in flight.
	StateDeleting
	// StateDeleted nodes are gone from the graph.
	StateDeleted
)

var stateNames = [...]string{
	StateDraft:     "draft",
	StateSaving:    "saving",
	StateClean:     "clean",
	StateDirty:     "dirty",
	StateReloading: "reloading",
	StateDeleting:  "deleting",
	StateDeleted:   "deleted",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// lifecycle is the per node state machine. Every local edit bumps revision;
// an operation records the revision it started from so that its completion
// can tell whether newer edits happened meanwhile.
type lifecycle struct {
	state    State
	prior    State
	revision uint64
	opRev    uint64

	// afterSave marks a reload issued by Save itself.
	afterSave bool
}

func draftLifecycle() lifecycle     { return lifecycle{state: StateDraft} }
func persistedLifecycle() lifecycle { return lifecycle{state: StateClean} }

func (l lifecycle) inFlight() bool {
	switch l.state {
	case StateSaving, StateReloading, StateDeleting:
		return true
	}
	return false
}

// saving is true while a save or its follow-up reload is in flight.
func (l lifecycle) saving() bool {
	return l.state == StateSaving || (l.state == StateReloading && l.afterSave)
}

func (l lifecycle) editedDuringOp() bool { return l.revision != l.opRev }

func (l lifecycle) dirty() bool {
	switch l.state {
	case StateDraft, StateDirty:
		return true
	case StateClean, StateDeleted:
		return false
	default:
		return l.prior == StateDraft || l.prior == StateDirty || l.editedDuringOp()
	}
}

func (l *lifecycle) edit() error {
	switch l.state {
	case StateDeleted:
		return pipeline.ErrNodeNotFound
	case StateClean:
		l.state = StateDirty
	}
	l.revision++
	return nil
}

func (l *lifecycle) begin(next State) {
	l.prior = l.state
	l.state = next
	l.opRev = l.revision
	l.afterSave = false
}

// settle returns to the pre-operation state after a failed operation.
func (l *lifecycle) settle() {
	l.state = l.prior
	if l.state == StateClean && l.editedDuringOp() {
		l.state = StateDirty
	}
}

func (l *lifecycle) busyErr() error {
	if l.saving() {
		return pipeline.ErrSaveInFlight
	}
	switch l.state {
	case StateReloading, StateDeleting:
		return pipeline.ErrNodeBusy
	case StateDeleted:
		return pipeline.ErrNodeNotFound
	}
	return nil
}

func (l *lifecycle) beginSave() error {
	switch l.state {
	case StateDraft, StateClean, StateDirty:
		l.begin(StateSaving)
		return nil
	}
	return l.busyErr()
}

func (l *lifecycle) saveSucceeded() {
	if l.editedDuringOp() {
		l.state = StateDirty
		return
	}
	l.state = StateClean
}

func (l *lifecycle) saveFailed() { l.settle() }

// beginSaveReload starts the read that completes a save. Until it settles
// the node still reports as saving.
func (l *lifecycle) beginSaveReload() error {
	if err := l.beginReload(); err != nil {
		return err
	}
	l.afterSave = true
	return nil
}

func (l *lifecycle) beginReload() error {
	switch l.state {
	case StateClean, StateDirty:
		l.begin(StateReloading)
		return nil
	case StateDraft:
		return pipeline.ErrNodeNotPersisted
	}
	return l.busyErr()
}

// reloadSucceeded reports whether the server's field values may replace the
// local ones. They may not when the operator edited during the read, nor
// when keepDirty is set and the node already carried unsaved edits.
func (l *lifecycle) reloadSucceeded(keepDirty bool) bool {
	if l.editedDuringOp() || (keepDirty && l.prior == StateDirty) {
		l.state = StateDirty
		return false
	}
	l.state = StateClean
	return true
}

func (l *lifecycle) reloadFailed() { l.settle() }

func (l *lifecycle) beginDelete() error {
	switch l.state {
	case StateDraft:
		l.state = StateDeleted
		return nil
	case StateClean, StateDirty:
		l.begin(StateDeleting)
		return nil
	}
	return l.busyErr()
}

func (l *lifecycle) deleteSucceeded() { l.state = StateDeleted }

func (l *lifecycle) deleteFailed() { l.settle() }
