package model

import (
	"fmt"
	"slices"
)

type ElementType string

const (
	ElementCharacter   ElementType = "character"
	ElementObject      ElementType = "object"
	ElementPlace       ElementType = "place"
	ElementEventuality ElementType = "eventuality"
	ElementTheme       ElementType = "theme"
	ElementEvent       ElementType = "event"
	ElementGoal        ElementType = "goal"
	ElementIdea        ElementType = "idea"
)

var elementTypes = []ElementType{
	ElementCharacter, ElementObject, ElementPlace, ElementEventuality,
	ElementTheme, ElementEvent, ElementGoal, ElementIdea,
}

func (t ElementType) IsValid() bool {
	return slices.Contains(elementTypes, t)
}

// GameElement is a piece of story state. Past holds backstory, Present the
// currently observable facts and Future the latent directions the story may
// take (which other elements may realize or contradict).
type GameElement struct {
	ElementID   string      `json:"element_id"`
	Name        string      `json:"name"`
	ElementType ElementType `json:"element_type"`
	Past        []string    `json:"past"`
	Present     []string    `json:"present"`
	Future      []string    `json:"future"`
}

func (e GameElement) Validate() error {
	if e.ElementID == "" {
		return fmt.Errorf("element_id is required")
	}
	if e.Name == "" {
		return fmt.Errorf("element %q: name is required", e.ElementID)
	}
	if !e.ElementType.IsValid() {
		return fmt.Errorf("element %q: unknown element_type %q", e.ElementID, e.ElementType)
	}
	return nil
}

// RetiredGameElement is an element removed from play. It is kept so later
// steps can stay consistent with what happened to it.
type RetiredGameElement struct {
	GameElement
	RetiredReason string `json:"retired_reason"`
}

type LogRole string

const (
	RolePlayer   LogRole = "player"
	RoleGame     LogRole = "game"
	RoleInternal LogRole = "internal"
)

// Log item types besides the player intents.
const (
	LogTypeGameResponse = "game-response"
	LogTypePlan         = "plan"
)

type LogItem struct {
	Role     LogRole `json:"role"`
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	Timestep int     `json:"timestep"`
}

// Ending is recorded on a node by an EndGame event.
type Ending struct {
	IsSuccess   bool   `json:"is_success"`
	Description string `json:"description"`
	Timestep    int    `json:"timestep"`
}

// TimeNode is an immutable snapshot of the story after one step. Each step
// spawns a child whose Previous is the parent's Previous plus the parent's ID.
type TimeNode struct {
	ID                  string               `json:"id"`
	Timestep            int                  `json:"timestep"`
	Premise             string               `json:"premise"`
	Summary             string               `json:"summary"`
	Previous            []string             `json:"previous"`
	EventLog            []LogItem            `json:"event_log"`
	GameElements        []GameElement        `json:"game_elements"`
	RetiredGameElements []RetiredGameElement `json:"retired_game_elements"`
	LastUpdate          *Plan                `json:"last_update,omitempty"`
	Ending              *Ending              `json:"ending,omitempty"`
}

// ScenarioID is the id of the root node of the chain this node belongs to.
func (n TimeNode) ScenarioID() string {
	if len(n.Previous) > 0 {
		return n.Previous[0]
	}
	return n.ID
}

// ParentID returns the id of the immediate ancestor, or "" for a root.
func (n TimeNode) ParentID() string {
	if len(n.Previous) == 0 {
		return ""
	}
	return n.Previous[len(n.Previous)-1]
}

func (n TimeNode) IsRoot() bool {
	return len(n.Previous) == 0
}

func (n TimeNode) IsEnded() bool {
	return n.Ending != nil
}

// Element looks up a live element by id.
func (n TimeNode) Element(id string) (GameElement, bool) {
	if i := n.ElementIndex(id); i >= 0 {
		return n.GameElements[i], true
	}
	return GameElement{}, false
}

// ElementIndex returns the position of a live element, or -1.
func (n TimeNode) ElementIndex(id string) int {
	return slices.IndexFunc(n.GameElements, func(e GameElement) bool {
		return e.ElementID == id
	})
}

// Child returns the next node in the chain under a fresh id. Slices are
// clipped so appends on the child never write into the parent's arrays.
func (n TimeNode) Child(id string) TimeNode {
	child := n
	child.ID = id
	child.Previous = append(slices.Clip(n.Previous), n.ID)
	child.EventLog = slices.Clip(n.EventLog)
	child.GameElements = slices.Clip(n.GameElements)
	child.RetiredGameElements = slices.Clip(n.RetiredGameElements)
	return child
}

// DuplicateElementIDs reports ids that appear more than once among the live
// elements.
func (n TimeNode) DuplicateElementIDs() []string {
	seen := make(map[string]int, len(n.GameElements))
	var dups []string
	for _, e := range n.GameElements {
		seen[e.ElementID]++
		if seen[e.ElementID] == 2 {
			dups = append(dups, e.ElementID)
		}
	}
	return dups
}

// PlayerLog returns the log entries visible to the player.
func (n TimeNode) PlayerLog() []LogItem {
	var items []LogItem
	for _, item := range n.EventLog {
		if item.Role != RoleInternal {
			items = append(items, item)
		}
	}
	return items
}
