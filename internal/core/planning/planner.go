// Package planning turns an "act" input into a validated batch of events.
package planning

import (
	"context"
	"fmt"

	"github.com/agenthands/texty/internal/config"
	"github.com/agenthands/texty/internal/core/common"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/llm"
)

type Planner struct {
	LLM      llm.LLMClient
	Preamble string
	Prompts  config.PlanningPrompts
}

func NewPlanner(llmClient llm.LLMClient, preamble string, prompts config.PlanningPrompts) *Planner {
	return &Planner{
		LLM:      llmClient,
		Preamble: preamble,
		Prompts:  prompts,
	}
}

// Plan returns the planner's response plan, events and summary. Unknown
// event types and invalid payloads are reported as common.ErrMalformed.
func (p *Planner) Plan(ctx context.Context, req model.PlanRequest) (model.Plan, error) {
	prompt := p.Preamble + "\n" + fmt.Sprintf(p.Prompts.Plan,
		req.Premise,
		common.ToJSON(req.Elements),
		common.ToJSON(req.Retired),
		common.ToJSON(req.EventLog),
		req.Input,
	)

	response, err := p.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.Plan{}, fmt.Errorf("failed to generate plan: %w", err)
	}

	plan, err := common.ParseValid[model.Plan](response)
	if err != nil {
		return model.Plan{}, fmt.Errorf("failed to parse plan: %w", err)
	}
	return plan, nil
}
