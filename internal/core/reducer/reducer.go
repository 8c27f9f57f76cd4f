// Package reducer applies planner events to a TimeNode snapshot.
package reducer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agenthands/texty/internal/core/model"
)

// ErrUnknownEvent is returned for an event value outside the closed set.
var ErrUnknownEvent = errors.New("unknown event")

// Warning describes an event that was skipped because it did not fit the
// snapshot (duplicate add, retire/update of a missing element, ...).
type Warning struct {
	Index     int
	Kind      model.EventKind
	ElementID string
	Reason    string
}

func (w Warning) String() string {
	if w.ElementID == "" {
		return fmt.Sprintf("events[%d] %s: %s", w.Index, w.Kind, w.Reason)
	}
	return fmt.Sprintf("events[%d] %s %q: %s", w.Index, w.Kind, w.ElementID, w.Reason)
}

type Result struct {
	Node     model.TimeNode
	Applied  int
	Warnings []Warning
}

// WarningText joins the warnings into one diagnostic line.
func (r Result) WarningText() string {
	parts := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		parts[i] = w.String()
	}
	return strings.Join(parts, "; ")
}

// Apply applies events to node in order and returns the updated node. The
// input node and everything reachable from it is left untouched. Inconsistent
// events are skipped and reported as warnings; an unknown event kind aborts.
func Apply(node model.TimeNode, events []model.Event) (Result, error) {
	res := Result{Node: node}
	for i, evt := range events {
		var (
			warn string
			id   string
		)
		switch e := evt.(type) {
		case model.AddGameElement:
			id = e.Element.ElementID
			warn = addElement(&res.Node, e)
		case model.RetireGameElement:
			id = e.ElementID
			warn = retireElement(&res.Node, e)
		case model.UpdateGameElement:
			id = e.ElementID
			warn = updateElement(&res.Node, e)
		case model.EndGame:
			warn = endGame(&res.Node, e)
		default:
			return Result{}, fmt.Errorf("events[%d] (%T): %w", i, evt, ErrUnknownEvent)
		}

		if warn != "" {
			res.Warnings = append(res.Warnings, Warning{Index: i, Kind: evt.Kind(), ElementID: id, Reason: warn})
			continue
		}
		res.Applied++
	}

	if dups := res.Node.DuplicateElementIDs(); len(dups) > 0 {
		return Result{}, fmt.Errorf("duplicate element ids after reduction: %s", strings.Join(dups, ", "))
	}
	return res, nil
}

func addElement(node *model.TimeNode, e model.AddGameElement) string {
	if node.ElementIndex(e.Element.ElementID) >= 0 {
		return "element already exists"
	}
	node.GameElements = append(slices.Clip(node.GameElements), e.Element)
	return ""
}

func retireElement(node *model.TimeNode, e model.RetireGameElement) string {
	i := node.ElementIndex(e.ElementID)
	if i < 0 {
		return "element not found"
	}
	retired := model.RetiredGameElement{GameElement: node.GameElements[i], RetiredReason: e.RetiredReason}
	node.GameElements = slices.Delete(slices.Clone(node.GameElements), i, i+1)
	node.RetiredGameElements = append(slices.Clip(node.RetiredGameElements), retired)
	return ""
}

func updateElement(node *model.TimeNode, e model.UpdateGameElement) string {
	i := node.ElementIndex(e.ElementID)
	if i < 0 {
		return "element not found"
	}
	el := node.GameElements[i]
	el.Past = applyFacts(el.Past, e.Replace.Past, e.Add.Past)
	el.Present = applyFacts(el.Present, e.Replace.Present, e.Add.Present)
	el.Future = applyFacts(el.Future, e.Replace.Future, e.Add.Future)

	node.GameElements = slices.Clone(node.GameElements)
	node.GameElements[i] = el
	return ""
}

// applyFacts replaces current when replace is non-nil, then appends add when
// add is non-nil. The returned slice never shares a backing array with its
// inputs when it differs from current.
func applyFacts(current, replace, add []string) []string {
	out := current
	if replace != nil {
		out = slices.Clone(replace)
		if out == nil {
			out = []string{}
		}
	}
	if add != nil {
		out = append(slices.Clip(out), add...)
	}
	return out
}

func endGame(node *model.TimeNode, e model.EndGame) string {
	if node.Ending != nil {
		return "game already ended"
	}
	node.Ending = &model.Ending{IsSuccess: e.IsSuccess, Description: e.Description, Timestep: node.Timestep}
	return ""
}
