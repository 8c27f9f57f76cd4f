// Package narration streams the player-visible text for a step.
package narration

import (
	"context"
	"fmt"

	"github.com/agenthands/texty/internal/config"
	"github.com/agenthands/texty/internal/core/common"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/llm"
)

type Narrator struct {
	LLM      llm.Streamer
	Preamble string
	Prompts  config.NarrationPrompts
}

func NewNarrator(llmClient llm.Streamer, preamble string, prompts config.NarrationPrompts) *Narrator {
	return &Narrator{
		LLM:      llmClient,
		Preamble: preamble,
		Prompts:  prompts,
	}
}

func (n *Narrator) template(intent model.Intent) string {
	switch intent {
	case model.IntentAct:
		return n.Prompts.Act
	case model.IntentInspect:
		return n.Prompts.Inspect
	default:
		return n.Prompts.Other
	}
}

// Narrate starts streaming the response text. For act steps the request
// already holds the updated elements and the plan in its event log.
func (n *Narrator) Narrate(ctx context.Context, req model.NarrationRequest) (llm.TextStream, error) {
	prompt := n.Preamble + "\n" + fmt.Sprintf(n.template(req.Intent),
		req.Premise,
		common.ToJSON(req.Elements),
		common.ToJSON(req.Retired),
		common.ToJSON(req.EventLog),
		req.Input,
	)

	stream, err := n.LLM.Stream(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to start narration: %w", err)
	}
	return stream, nil
}
