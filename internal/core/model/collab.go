package model

import (
	"errors"
	"fmt"
	"slices"
)

type Intent string

const (
	IntentAct       Intent = "act"
	IntentInspect   Intent = "inspect"
	IntentAmbiguous Intent = "ambiguous"
	IntentOther     Intent = "other"
)

func (i Intent) IsValid() bool {
	return slices.Contains([]Intent{IntentAct, IntentInspect, IntentAmbiguous, IntentOther}, i)
}

// IntentDecision is the intent classifier's answer.
type IntentDecision struct {
	Thought       string `json:"thought"`
	Intent        Intent `json:"intent"`
	EarlyResponse string `json:"early_response,omitempty"`
}

func (d IntentDecision) Validate() error {
	if !d.Intent.IsValid() {
		return fmt.Errorf("unknown intent %q", d.Intent)
	}
	return nil
}

// Plan is the planner's answer: the events to apply and a one-line summary.
type Plan struct {
	ResponsePlan string    `json:"response_plan"`
	Events       EventList `json:"events"`
	Summary      string    `json:"summary"`
}

func (p Plan) Validate() error {
	var errs []error
	if p.Summary == "" {
		errs = append(errs, errors.New("summary is required"))
	}
	for i, evt := range p.Events {
		if err := validateEvent(evt); err != nil {
			errs = append(errs, fmt.Errorf("events[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateEvent(evt Event) error {
	switch e := evt.(type) {
	case AddGameElement:
		return e.Element.Validate()
	case RetireGameElement:
		if e.ElementID == "" {
			return errors.New("retire_game_element: element_id is required")
		}
	case UpdateGameElement:
		if e.ElementID == "" {
			return errors.New("update_game_element: element_id is required")
		}
	case EndGame:
	case nil:
		return errors.New("missing event")
	default:
		return &UnknownEventError{Type: string(evt.Kind())}
	}
	return nil
}

// ClassifyRequest is the input to intent classification.
type ClassifyRequest struct {
	Input    string
	Premise  string
	Elements []GameElement
}

// PlanRequest is the input to planning.
type PlanRequest struct {
	Input    string
	Intent   Intent
	Premise  string
	EventLog []LogItem
	Retired  []RetiredGameElement
	Elements []GameElement
}

// NarrationRequest is the context handed to the narrator. For act steps
// Elements are already updated and EventLog already carries the plan.
type NarrationRequest struct {
	Intent   Intent
	Input    string
	Premise  string
	EventLog []LogItem
	Elements []GameElement
	Retired  []RetiredGameElement
}
