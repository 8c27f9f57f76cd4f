package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndo_RestoresParent(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	nodes := chain("s1", 2)
	for _, n := range nodes {
		require.NoError(t, s.InsertTimeNode(ctx, n))
	}

	parent, err := Undo(ctx, s, "s1")
	require.NoError(t, err)
	assert.Equal(t, nodes[1].ID, parent.ID)

	active, err := s.GetActiveNode(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, nodes[1].ID, active.ID)

	// the undone node stays addressable
	undone, err := s.GetNode(ctx, nodes[2].ID)
	require.NoError(t, err)
	assert.Equal(t, nodes[2].Summary, undone.Summary)
}

func TestUndo_NoParent(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	nodes := chain("s1", 2)

	require.NoError(t, s.InsertTimeNode(ctx, nodes[0]))
	_, err := Undo(ctx, s, "s1")
	assert.ErrorIs(t, err, ErrNoParent)

	require.NoError(t, s.InsertTimeNode(ctx, nodes[1]))
	_, err = Undo(ctx, s, "s1")
	assert.ErrorIs(t, err, ErrNoParent)

	active, err := s.GetActiveNode(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, nodes[1].ID, active.ID)
}

func TestUndo_UnknownScenario(t *testing.T) {
	s := openTempStore(t)
	_, err := Undo(context.Background(), s, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
