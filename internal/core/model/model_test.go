package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNode() TimeNode {
	return TimeNode{
		ID:       "node-3",
		Timestep: 2,
		Premise:  "A futuristic detective mystery in Neo-Angeles about Zantar, a junior detective",
		Summary:  "Zantar dismisses Jimbo",
		Previous: []string{"root", "node-1", "node-2"},
		EventLog: []LogItem{
			{Role: RoleGame, Type: LogTypeGameResponse, Text: "The rain taps gently.", Timestep: 1},
			{Role: RolePlayer, Type: string(IntentAct), Text: "tell jimbo to leave", Timestep: 2},
			{Role: RoleGame, Type: LogTypeGameResponse, Text: "Jimbo storms out.", Timestep: 2},
		},
		GameElements: []GameElement{
			{ElementID: "zantar", Name: "Zantar", ElementType: ElementCharacter, Present: []string{"Zantar is a junior detective"}},
			{ElementID: "oatmeal-killer", Name: "Oatmeal Killer", ElementType: ElementEventuality, Past: []string{"Strange killings"}, Future: []string{}},
		},
		RetiredGameElements: []RetiredGameElement{
			{GameElement: GameElement{ElementID: "jimbo", Name: "Jimbo", ElementType: ElementCharacter}, RetiredReason: "left town"},
		},
		LastUpdate: &Plan{
			ResponsePlan: "Jimbo withholds information",
			Summary:      "Zantar dismisses Jimbo",
			Events: EventList{
				AddGameElement{Element: GameElement{ElementID: "grudge", Name: "Grudge", ElementType: ElementIdea}},
				RetireGameElement{ElementID: "jimbo", RetiredReason: "left town"},
				UpdateGameElement{ElementID: "zantar", Add: FactLists{Present: []string{"alone"}}, Replace: FactLists{Future: []string{}}},
				EndGame{IsSuccess: false, Description: "never"},
			},
		},
		Ending: &Ending{IsSuccess: true, Description: "solved", Timestep: 2},
	}
}

func TestTimeNodeRoundTrip(t *testing.T) {
	node := sampleNode()

	data, err := json.Marshal(node)
	require.NoError(t, err)

	var decoded TimeNode
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, node, decoded)
}

func TestEventTagsOnTheWire(t *testing.T) {
	data, err := json.Marshal(RetireGameElement{ElementID: "npc-1", RetiredReason: "died"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"retire_game_element","element_id":"npc-1","retired_reason":"died"}`, string(data))
}

func TestDecodePlannerOutput(t *testing.T) {
	input := `{
	  "response_plan": "Zantar steps into the streets.",
	  "events": [
	    {
	      "type": "update_game_element",
	      "element_id": "zantar",
	      "add": {"present": ["Jimbo hands Zantar a data chip."]},
	      "replace": {"past": null, "present": null, "future": null}
	    },
	    {"type": "add_game_element", "element": {"element_id": "data-chip", "name": "Data Chip", "element_type": "object", "past": [], "present": ["In Zantar's pocket"], "future": []}}
	  ],
	  "summary": "Zantar receives a lead on the Oatmeal Killer"
	}`

	var plan Plan
	require.NoError(t, json.Unmarshal([]byte(input), &plan))
	require.NoError(t, plan.Validate())
	require.Len(t, plan.Events, 2)

	update, ok := plan.Events[0].(UpdateGameElement)
	require.True(t, ok)
	assert.Equal(t, []string{"Jimbo hands Zantar a data chip."}, update.Add.Present)
	assert.Nil(t, update.Add.Past)
	assert.Nil(t, update.Replace.Present)

	add, ok := plan.Events[1].(AddGameElement)
	require.True(t, ok)
	assert.Equal(t, ElementObject, add.Element.ElementType)
}

func TestDecodeUnknownEvent(t *testing.T) {
	var plan Plan
	err := json.Unmarshal([]byte(`{"summary":"x","events":[{"type":"teleport_player"}]}`), &plan)
	require.Error(t, err)

	var unknown *UnknownEventError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "teleport_player", unknown.Type)
}

func TestPlanValidate(t *testing.T) {
	plan := Plan{
		Events: EventList{
			AddGameElement{Element: GameElement{ElementID: "x", Name: "X", ElementType: "spaceship"}},
			UpdateGameElement{},
			nil,
		},
	}
	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary is required")
	assert.Contains(t, err.Error(), `unknown element_type "spaceship"`)
	assert.Contains(t, err.Error(), "events[1]")
	assert.Contains(t, err.Error(), "events[2]: missing event")
}

func TestIntentDecisionValidate(t *testing.T) {
	assert.NoError(t, IntentDecision{Intent: IntentInspect}.Validate())
	assert.Error(t, IntentDecision{Intent: "dance"}.Validate())
}

func TestScenarioID(t *testing.T) {
	root := TimeNode{ID: "root"}
	assert.Equal(t, "root", root.ScenarioID())
	assert.True(t, root.IsRoot())
	assert.Equal(t, "", root.ParentID())

	child := root.Child("c1")
	assert.Equal(t, "root", child.ScenarioID())
	assert.Equal(t, "root", child.ParentID())
	assert.Equal(t, []string{"root"}, child.Previous)
}

func TestChildDoesNotAliasParent(t *testing.T) {
	parent := TimeNode{
		ID:       "p",
		Previous: make([]string, 1, 8),
		EventLog: make([]LogItem, 0, 8),
	}
	parent.Previous[0] = "root"

	a := parent.Child("a")
	b := parent.Child("b")
	a.EventLog = append(a.EventLog, LogItem{Text: "a"})
	b.EventLog = append(b.EventLog, LogItem{Text: "b"})

	assert.Equal(t, []string{"root", "p"}, a.Previous)
	assert.Equal(t, []string{"root", "p"}, b.Previous)
	assert.Equal(t, "a", a.EventLog[0].Text)
	assert.Equal(t, "b", b.EventLog[0].Text)
	assert.Empty(t, parent.EventLog)
}

func TestDuplicateElementIDs(t *testing.T) {
	node := TimeNode{GameElements: []GameElement{{ElementID: "a"}, {ElementID: "b"}, {ElementID: "a"}, {ElementID: "a"}}}
	assert.Equal(t, []string{"a"}, node.DuplicateElementIDs())
}

func TestPlayerLogSkipsInternal(t *testing.T) {
	node := TimeNode{EventLog: []LogItem{
		{Role: RolePlayer, Text: "look"},
		{Role: RoleInternal, Text: "plan"},
		{Role: RoleGame, Text: "a room"},
	}}
	log := node.PlayerLog()
	require.Len(t, log, 2)
	assert.Equal(t, "a room", log[1].Text)
}
