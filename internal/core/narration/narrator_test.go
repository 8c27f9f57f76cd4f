package narration

import (
	"context"
	"errors"
	"testing"

	"github.com/agenthands/texty/internal/config"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrompts = config.NarrationPrompts{
	Act:     "ACT %s %s %s %s %s",
	Inspect: "INSPECT %s %s %s %s %s",
	Other:   "OTHER %s %s %s %s %s",
}

func TestNarrateStreamsText(t *testing.T) {
	mock := &MockStreamer{Chunks: []string{"The door ", "creaks open."}}
	n := NewNarrator(mock, "RULES", testPrompts)

	stream, err := n.Narrate(context.Background(), model.NarrationRequest{
		Intent:  model.IntentAct,
		Input:   "open the door",
		Premise: "A haunted manor",
		EventLog: []model.LogItem{
			{Role: model.RoleInternal, Type: model.LogTypePlan, Text: "The door opens onto a hall."},
		},
	})
	require.NoError(t, err)

	text, err := llm.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "The door creaks open.", text)
	assert.Contains(t, mock.LastPrompt, "RULES")
	assert.Contains(t, mock.LastPrompt, "ACT A haunted manor")
	assert.Contains(t, mock.LastPrompt, "The door opens onto a hall.")
}

func TestNarrateChoosesTemplateByIntent(t *testing.T) {
	mock := &MockStreamer{}
	n := NewNarrator(mock, "", testPrompts)

	cases := map[model.Intent]string{
		model.IntentAct:       "ACT",
		model.IntentInspect:   "INSPECT",
		model.IntentOther:     "OTHER",
		model.IntentAmbiguous: "OTHER",
	}
	for intent, want := range cases {
		_, err := n.Narrate(context.Background(), model.NarrationRequest{Intent: intent})
		require.NoError(t, err)
		assert.Contains(t, mock.LastPrompt, want, "intent %s", intent)
	}
}

func TestNarrateError(t *testing.T) {
	boom := errors.New("offline")
	n := NewNarrator(&MockStreamer{Err: boom}, "", testPrompts)

	_, err := n.Narrate(context.Background(), model.NarrationRequest{})
	assert.ErrorIs(t, err, boom)
}
