// Package intent classifies player input with an LLM.
package intent

import (
	"context"
	"fmt"

	"github.com/agenthands/texty/internal/config"
	"github.com/agenthands/texty/internal/core/common"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/llm"
)

type Classifier struct {
	LLM      llm.LLMClient
	Preamble string
	Prompts  config.IntentPrompts
}

func NewClassifier(llmClient llm.LLMClient, preamble string, prompts config.IntentPrompts) *Classifier {
	return &Classifier{
		LLM:      llmClient,
		Preamble: preamble,
		Prompts:  prompts,
	}
}

// Classify asks the LLM for the intent of req.Input. An "ambiguous" answer
// must carry the clarifying question in early_response.
func (c *Classifier) Classify(ctx context.Context, req model.ClassifyRequest) (model.IntentDecision, error) {
	prompt := c.Preamble + "\n" + fmt.Sprintf(c.Prompts.Classify,
		req.Premise,
		common.ToJSON(req.Elements),
		req.Input,
	)

	response, err := c.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.IntentDecision{}, fmt.Errorf("failed to generate intent: %w", err)
	}

	decision, err := common.ParseValid[model.IntentDecision](response)
	if err != nil {
		return model.IntentDecision{}, fmt.Errorf("failed to parse intent: %w", err)
	}
	if decision.Intent == model.IntentAmbiguous && decision.EarlyResponse == "" {
		return model.IntentDecision{}, fmt.Errorf("failed to parse intent: %w: ambiguous intent without early_response", common.ErrMalformed)
	}
	return decision, nil
}
