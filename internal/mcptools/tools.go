// Package mcptools exposes the game as Model Context Protocol tools so an
// agent can play a scenario.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agenthands/texty/internal/core"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/seeds"
)

// GameTools holds the handlers. Every handler reports game failures as tool
// errors rather than protocol errors.
type GameTools struct {
	Game *core.Game
}

// New creates an MCP server with every game tool registered.
func New(game *core.Game, version string) *mcp.Server {
	gt := &GameTools{Game: game}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "texty",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_seeds",
		Description: "List the built-in scenario premises that can be started",
	}, gt.ListSeeds)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_scenarios",
		Description: "List saved scenarios with their current timestep and summary",
	}, gt.ListScenarios)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "start_scenario",
		Description: "Start a scenario from a seed, or reload it if it is already running",
	}, gt.StartScenario)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "step",
		Description: "Send one player message to a running scenario and get the narration",
	}, gt.Step)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "undo",
		Description: "Go back to the state before the last step",
	}, gt.Undo)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "history",
		Description: "Show the player and game messages of the active branch",
	}, gt.History)

	return srv
}

// --- Input types ---

type ListSeedsInput struct{}

type ListScenariosInput struct{}

type StartScenarioInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"Id of the scenario to start or reload"`
	Seed       string `json:"seed" jsonschema:"Name of the seed premise, see list_seeds"`
}

type StepInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"Id of a started scenario"`
	Input      string `json:"input" jsonschema:"What the player says or does"`
	Resume     bool   `json:"resume,omitempty" jsonschema:"Continue playing after the story has ended"`
}

type ScenarioInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"Id of a started scenario"`
}

// StepResult is what start_scenario and step report back.
type StepResult struct {
	ScenarioID string       `json:"scenario_id"`
	NodeID     string       `json:"node_id"`
	Timestep   int          `json:"timestep"`
	Intent     model.Intent `json:"intent,omitempty"`
	Summary    string       `json:"summary"`
	Text       string       `json:"text"`
	Ended      bool         `json:"ended,omitempty"`
}

type scenarioSummary struct {
	ScenarioID string `json:"scenario_id"`
	Timestep   int    `json:"timestep"`
	Summary    string `json:"summary"`
	Ended      bool   `json:"ended,omitempty"`
}

// --- Handlers ---

func (t *GameTools) ListSeeds(_ context.Context, _ *mcp.CallToolRequest, _ ListSeedsInput) (*mcp.CallToolResult, any, error) {
	return toolJSON(seeds.Names())
}

func (t *GameTools) ListScenarios(ctx context.Context, _ *mcp.CallToolRequest, _ ListScenariosInput) (*mcp.CallToolResult, any, error) {
	games, err := t.Game.ListGames(ctx)
	if err != nil {
		return toolError("Failed to list scenarios: %v", err), nil, nil
	}
	out := make([]scenarioSummary, 0, len(games))
	for _, g := range games {
		out = append(out, scenarioSummary{
			ScenarioID: g.ScenarioID,
			Timestep:   g.Node.Timestep,
			Summary:    g.Node.Summary,
			Ended:      g.Node.IsEnded(),
		})
	}
	return toolJSON(out)
}

func (t *GameTools) StartScenario(ctx context.Context, _ *mcp.CallToolRequest, input StartScenarioInput) (*mcp.CallToolResult, any, error) {
	if input.ScenarioID == "" {
		return toolError("scenario_id is required"), nil, nil
	}
	seed, err := seeds.Load(input.Seed)
	if err != nil {
		return toolError("Failed to load seed: %v", err), nil, nil
	}
	out, err := core.Wait(t.Game.StartIfNotStarted(ctx, input.ScenarioID, seed))
	if err != nil {
		return toolError("Failed to start scenario: %v", err), nil, nil
	}
	if out.Text == "" {
		out.Text = lastGameText(out.Node)
	}
	return toolJSON(stepResult(input.ScenarioID, out))
}

func (t *GameTools) Step(ctx context.Context, _ *mcp.CallToolRequest, input StepInput) (*mcp.CallToolResult, any, error) {
	if input.ScenarioID == "" || input.Input == "" {
		return toolError("scenario_id and input are required"), nil, nil
	}
	var opts []core.StepOption
	if input.Resume {
		opts = append(opts, core.WithResume())
	}
	out, err := core.Wait(t.Game.Step(ctx, input.ScenarioID, input.Input, opts...))
	if err != nil {
		return toolError("Step failed: %v", err), nil, nil
	}
	return toolJSON(stepResult(input.ScenarioID, out))
}

func (t *GameTools) Undo(ctx context.Context, _ *mcp.CallToolRequest, input ScenarioInput) (*mcp.CallToolResult, any, error) {
	node, ok, err := t.Game.Undo(ctx, input.ScenarioID)
	if err != nil {
		return toolError("Undo failed: %v", err), nil, nil
	}
	if !ok {
		return toolText("Nothing to undo."), nil, nil
	}
	return toolText(fmt.Sprintf("Went back to timestep %d: %s", node.Timestep, node.Summary)), nil, nil
}

func (t *GameTools) History(ctx context.Context, _ *mcp.CallToolRequest, input ScenarioInput) (*mcp.CallToolResult, any, error) {
	active, err := t.Game.Active(ctx, input.ScenarioID)
	if err != nil {
		return toolError("Failed to load scenario: %v", err), nil, nil
	}
	return toolJSON(active.PlayerLog())
}

func stepResult(scenarioID string, out core.Outcome) StepResult {
	return StepResult{
		ScenarioID: scenarioID,
		NodeID:     out.Node.ID,
		Timestep:   out.Node.Timestep,
		Intent:     out.Intent,
		Summary:    out.Node.Summary,
		Text:       out.Text,
		Ended:      out.Node.IsEnded(),
	}
}

// lastGameText recovers the latest narration of an already running scenario.
func lastGameText(node model.TimeNode) string {
	items := node.PlayerLog()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Role == model.RoleGame {
			return items[i].Text
		}
	}
	return ""
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
