package memory_test

import (
	"context"
	"testing"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/memory"
	"github.com/meikuraledutech/pipeline/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) pipeline.Store {
		return memory.New()
	})
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p, err := s.CreatePipeline(ctx, "studio")
	require.NoError(t, err)

	fields := pipeline.Fields{"db": 1.0}
	id, err := s.AddNode(ctx, p.ID, pipeline.NodeInput{TypeName: "Gain", Fields: fields}, nil)
	require.NoError(t, err)
	fields["db"] = 2.0

	n, err := s.GetNode(ctx, p.ID, id)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n.Fields["db"])

	n.Fields["db"] = 3.0
	again, _ := s.GetNode(ctx, p.ID, id)
	assert.Equal(t, 1.0, again.Fields["db"])
}
