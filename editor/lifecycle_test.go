package editor

import (
	"testing"

	"github.com/meikuraledutech/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleSave(t *testing.T) {
	tests := []struct {
		name      string
		start     lifecycle
		editMid   bool
		fail      bool
		wantState State
		wantDirty bool
	}{
		{name: "draft saved", start: draftLifecycle(), wantState: StateClean},
		{name: "draft save failed", start: draftLifecycle(), fail: true, wantState: StateDraft, wantDirty: true},
		{name: "dirty saved", start: lifecycle{state: StateDirty}, wantState: StateClean},
		{name: "edited during save", start: draftLifecycle(), editMid: true, wantState: StateDirty, wantDirty: true},
		{name: "clean edited during failed save", start: persistedLifecycle(), editMid: true, fail: true, wantState: StateDirty, wantDirty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := tt.start
			require.NoError(t, l.beginSave())
			assert.Equal(t, StateSaving, l.state)
			assert.ErrorIs(t, l.beginSave(), pipeline.ErrSaveInFlight)

			if tt.editMid {
				require.NoError(t, l.edit())
				assert.True(t, l.dirty())
			}
			if tt.fail {
				l.saveFailed()
			} else {
				l.saveSucceeded()
			}
			assert.Equal(t, tt.wantState, l.state)
			assert.Equal(t, tt.wantDirty, l.dirty())
		})
	}
}

func TestLifecycleDirtyWhileSaving(t *testing.T) {
	l := draftLifecycle()
	require.NoError(t, l.beginSave())
	assert.True(t, l.dirty(), "a draft stays dirty until the save commits")

	l = persistedLifecycle()
	require.NoError(t, l.beginSave())
	assert.False(t, l.dirty())
}

func TestLifecycleReload(t *testing.T) {
	assert.ErrorIs(t, func() error { l := draftLifecycle(); return l.beginReload() }(), pipeline.ErrNodeNotPersisted)

	l := lifecycle{state: StateDirty}
	require.NoError(t, l.beginReload())
	assert.True(t, l.reloadSucceeded(false))
	assert.Equal(t, StateClean, l.state)

	require.NoError(t, l.beginReload())
	require.NoError(t, l.edit())
	assert.False(t, l.reloadSucceeded(false))
	assert.Equal(t, StateDirty, l.state)

	require.NoError(t, l.beginReload())
	assert.False(t, l.reloadSucceeded(true), "keepDirty protects unsaved edits")
	assert.Equal(t, StateDirty, l.state)

	require.NoError(t, l.beginReload())
	assert.ErrorIs(t, l.beginSave(), pipeline.ErrNodeBusy)
	l.reloadFailed()
	assert.Equal(t, StateDirty, l.state)
}

func TestLifecycleSaveReload(t *testing.T) {
	l := draftLifecycle()
	require.NoError(t, l.beginSave())
	l.saveSucceeded()

	require.NoError(t, l.beginSaveReload())
	assert.True(t, l.saving())
	assert.ErrorIs(t, l.beginSave(), pipeline.ErrSaveInFlight)
	assert.ErrorIs(t, l.beginDelete(), pipeline.ErrSaveInFlight)
	assert.True(t, l.reloadSucceeded(true))
	assert.False(t, l.saving())

	require.NoError(t, l.beginReload())
	assert.False(t, l.saving(), "an explicit reload is not a save")
}

func TestLifecycleDelete(t *testing.T) {
	l := draftLifecycle()
	require.NoError(t, l.beginDelete())
	assert.Equal(t, StateDeleted, l.state)
	assert.ErrorIs(t, l.edit(), pipeline.ErrNodeNotFound)

	l = persistedLifecycle()
	require.NoError(t, l.beginDelete())
	assert.Equal(t, StateDeleting, l.state)
	assert.ErrorIs(t, l.beginDelete(), pipeline.ErrNodeBusy)
	l.deleteFailed()
	assert.Equal(t, StateClean, l.state)

	require.NoError(t, l.beginSave())
	assert.ErrorIs(t, l.beginDelete(), pipeline.ErrSaveInFlight)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reloading", StateReloading.String())
	assert.Equal(t, "State(42)", State(42).String())
}
