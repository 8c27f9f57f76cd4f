package model

import (
	"encoding/json"
	"fmt"
)

// EventKind is the JSON discriminator of an Event.
type EventKind string

const (
	KindAddGameElement    EventKind = "add_game_element"
	KindRetireGameElement EventKind = "retire_game_element"
	KindUpdateGameElement EventKind = "update_game_element"
	KindEndGame           EventKind = "end_game"
)

// Event is a declarative change produced by the planner. The set of
// implementations is closed: only the types in this file satisfy it.
type Event interface {
	Kind() EventKind
	isEvent()
}

type AddGameElement struct {
	Element GameElement `json:"element"`
}

type RetireGameElement struct {
	ElementID     string `json:"element_id"`
	RetiredReason string `json:"retired_reason"`
}

// FactLists carries optional past/present/future lists. A nil list means the
// field is absent, which is distinct from an empty list.
type FactLists struct {
	Past    []string `json:"past"`
	Present []string `json:"present"`
	Future  []string `json:"future"`
}

// UpdateGameElement overwrites each non-nil Replace list and then appends
// each non-nil Add list.
type UpdateGameElement struct {
	ElementID string    `json:"element_id"`
	Add       FactLists `json:"add"`
	Replace   FactLists `json:"replace"`
}

type EndGame struct {
	IsSuccess   bool   `json:"is_success"`
	Description string `json:"description"`
}

func (AddGameElement) Kind() EventKind    { return KindAddGameElement }
func (RetireGameElement) Kind() EventKind { return KindRetireGameElement }
func (UpdateGameElement) Kind() EventKind { return KindUpdateGameElement }
func (EndGame) Kind() EventKind           { return KindEndGame }

func (AddGameElement) isEvent()    {}
func (RetireGameElement) isEvent() {}
func (UpdateGameElement) isEvent() {}
func (EndGame) isEvent()           {}

func (e AddGameElement) MarshalJSON() ([]byte, error) {
	type payload AddGameElement
	return json.Marshal(struct {
		Type EventKind `json:"type"`
		payload
	}{e.Kind(), payload(e)})
}

func (e RetireGameElement) MarshalJSON() ([]byte, error) {
	type payload RetireGameElement
	return json.Marshal(struct {
		Type EventKind `json:"type"`
		payload
	}{e.Kind(), payload(e)})
}

func (e UpdateGameElement) MarshalJSON() ([]byte, error) {
	type payload UpdateGameElement
	return json.Marshal(struct {
		Type EventKind `json:"type"`
		payload
	}{e.Kind(), payload(e)})
}

func (e EndGame) MarshalJSON() ([]byte, error) {
	type payload EndGame
	return json.Marshal(struct {
		Type EventKind `json:"type"`
		payload
	}{e.Kind(), payload(e)})
}

// UnknownEventError reports an event tag outside the closed set.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// DecodeEvent decodes a single tagged event.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var (
		evt Event
		err error
	)
	switch EventKind(head.Type) {
	case KindAddGameElement:
		var e AddGameElement
		err = json.Unmarshal(data, &e)
		evt = e
	case KindRetireGameElement:
		var e RetireGameElement
		err = json.Unmarshal(data, &e)
		evt = e
	case KindUpdateGameElement:
		var e UpdateGameElement
		err = json.Unmarshal(data, &e)
		evt = e
	case KindEndGame:
		var e EndGame
		err = json.Unmarshal(data, &e)
		evt = e
	default:
		return nil, &UnknownEventError{Type: head.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Type, err)
	}
	return evt, nil
}

// EventList is a JSON-decodable list of events.
type EventList []Event

func (l *EventList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	events := make(EventList, 0, len(raw))
	for i, r := range raw {
		evt, err := DecodeEvent(r)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, evt)
	}
	*l = events
	return nil
}
