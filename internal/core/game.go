// Package core runs game steps: it classifies player input, plans and
// applies world changes, streams the narration and persists the new node.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"

	"github.com/agenthands/texty/internal/core/common"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/core/reducer"
	"github.com/agenthands/texty/internal/llm"
	"github.com/agenthands/texty/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrContract           = errors.New("collaborator contract violation")
	ErrScenarioNotStarted = errors.New("scenario not started")
	ErrScenarioEnded      = errors.New("scenario has ended")
)

const tracerName = "github.com/agenthands/texty/internal/core"

const (
	// BootstrapInput is the synthetic message that opens a scenario. It is
	// never written to the event log.
	BootstrapInput = "Begin the story. Set the scene and introduce the player character's situation."

	ClarifyFallback = "I'm not sure what you mean. Could you say that another way?"
)

type Classifier interface {
	Classify(ctx context.Context, req model.ClassifyRequest) (model.IntentDecision, error)
}

type Planner interface {
	Plan(ctx context.Context, req model.PlanRequest) (model.Plan, error)
}

type Narrator interface {
	Narrate(ctx context.Context, req model.NarrationRequest) (llm.TextStream, error)
}

type Game struct {
	Store         store.Store
	Classifier    Classifier
	Planner       Planner
	Narrator      Narrator
	UUIDGenerator func() string

	tracer trace.Tracer
	locks  scenarioLocks
}

func NewGame(s store.Store, classifier Classifier, planner Planner, narrator Narrator) *Game {
	return &Game{
		Store:         s,
		Classifier:    classifier,
		Planner:       planner,
		Narrator:      narrator,
		UUIDGenerator: uuid.NewString,
		tracer:        otel.Tracer(tracerName),
	}
}

type stepOptions struct {
	resume bool
}

type StepOption func(*stepOptions)

// WithResume lets an act step continue a scenario that has ended. The new
// node no longer carries the ending.
func WithResume() StepOption {
	return func(o *stepOptions) { o.resume = true }
}

// StartIfNotStarted makes sure scenarioID has a bootstrapped active node.
// A started scenario is left untouched and reported as loaded. Otherwise the
// seed is stored as the root (id scenarioID, timestep 0) and the opening act
// step runs against it.
func (g *Game) StartIfNotStarted(ctx context.Context, scenarioID string, seed model.TimeNode) <-chan Progress {
	r := newReporter(ctx)
	go func() {
		out, err := g.start(ctx, r, scenarioID, seed)
		r.finish(out, err)
	}()
	return r.ch
}

func (g *Game) start(ctx context.Context, r *reporter, scenarioID string, seed model.TimeNode) (out Outcome, err error) {
	unlock := g.locks.lock(scenarioID)
	defer unlock()

	ctx, span := g.startSpan(ctx, "game.start", scenarioID)
	defer func() { endSpan(span, err) }()

	active, err := g.Store.GetActiveNode(ctx, scenarioID)
	switch {
	case err == nil && !active.IsRoot():
		r.status(StatusLoaded, "")
		return Outcome{Node: active}, nil
	case err == nil:
		// The root was stored but its opening step never committed.
	case errors.Is(err, store.ErrNotFound):
		active = seed
		active.ID = scenarioID
		active.Previous = nil
		active.Timestep = 0
		if dups := active.DuplicateElementIDs(); len(dups) > 0 {
			return Outcome{}, fmt.Errorf("seed has duplicate element ids: %s", strings.Join(dups, ", "))
		}
		if err := g.Store.InsertTimeNode(ctx, active); err != nil {
			return Outcome{}, fmt.Errorf("store root node: %w", err)
		}
	default:
		return Outcome{}, fmt.Errorf("load scenario %s: %w", scenarioID, err)
	}

	r.status(StatusStarting, "")
	log.Printf("starting scenario=%s", scenarioID)
	decision := model.IntentDecision{Intent: model.IntentAct, Thought: "opening step"}
	return g.advance(ctx, r, active, BootstrapInput, decision, stepOptions{}, true)
}

// Step runs one player turn against the active node of scenarioID.
func (g *Game) Step(ctx context.Context, scenarioID, input string, opts ...StepOption) <-chan Progress {
	var o stepOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := newReporter(ctx)
	go func() {
		out, err := g.step(ctx, r, scenarioID, input, o)
		r.finish(out, err)
	}()
	return r.ch
}

func (g *Game) step(ctx context.Context, r *reporter, scenarioID, input string, o stepOptions) (out Outcome, err error) {
	unlock := g.locks.lock(scenarioID)
	defer unlock()

	ctx, span := g.startSpan(ctx, "game.step", scenarioID)
	defer func() { endSpan(span, err) }()

	active, err := g.activeNode(ctx, scenarioID)
	if err != nil {
		return Outcome{}, err
	}

	r.status(StatusClassifying, "")
	decision, err := g.Classifier.Classify(ctx, model.ClassifyRequest{
		Input:    input,
		Premise:  active.Premise,
		Elements: active.GameElements,
	})
	if err != nil {
		return Outcome{}, collaboratorError("classify", err)
	}
	if err := decision.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("%w: classify: %w", ErrContract, err)
	}
	span.SetAttributes(attribute.String("step.intent", string(decision.Intent)))
	r.status(StatusClassifying, fmt.Sprintf("intent=%s thought=%s", decision.Intent, decision.Thought))

	return g.advance(ctx, r, active, input, decision, o, false)
}

// advance builds the child of parent for the classified input and commits it.
func (g *Game) advance(ctx context.Context, r *reporter, parent model.TimeNode, input string, decision model.IntentDecision, o stepOptions, bootstrap bool) (Outcome, error) {
	child := parent.Child(g.UUIDGenerator())
	child.LastUpdate = nil
	out := Outcome{Intent: decision.Intent}

	var err error
	switch decision.Intent {
	case model.IntentAct:
		child, out.Text, err = g.act(ctx, r, parent, child, input, o, bootstrap)
	case model.IntentInspect, model.IntentOther:
		r.status(StatusNarrating, "")
		out.Text, err = g.narrate(ctx, r, model.NarrationRequest{
			Intent:   decision.Intent,
			Input:    input,
			Premise:  child.Premise,
			EventLog: child.EventLog,
			Elements: child.GameElements,
			Retired:  child.RetiredGameElements,
		})
	case model.IntentAmbiguous:
		out.Text = decision.EarlyResponse
		if out.Text == "" {
			out.Text = ClarifyFallback
		}
		r.delta(out.Text, out.Text)
	default:
		err = fmt.Errorf("%w: unknown intent %q", ErrContract, decision.Intent)
	}
	if err != nil {
		return Outcome{}, err
	}

	if !bootstrap {
		child.EventLog = append(child.EventLog, model.LogItem{
			Role: model.RolePlayer, Type: string(decision.Intent), Text: input, Timestep: child.Timestep,
		})
	}
	child.EventLog = append(child.EventLog, model.LogItem{
		Role: model.RoleGame, Type: model.LogTypeGameResponse, Text: out.Text, Timestep: child.Timestep,
	})

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	r.status(StatusSaving, "")
	if err := g.Store.InsertTimeNode(ctx, child); err != nil {
		return Outcome{}, fmt.Errorf("save node: %w", err)
	}
	log.Printf("step committed scenario=%s node=%s intent=%s timestep=%d", child.ScenarioID(), child.ID, decision.Intent, child.Timestep)

	out.Node = child
	return out, nil
}

func (g *Game) act(ctx context.Context, r *reporter, parent, child model.TimeNode, input string, o stepOptions, bootstrap bool) (model.TimeNode, string, error) {
	if parent.IsEnded() && !o.resume {
		return child, "", ErrScenarioEnded
	}
	if o.resume {
		child.Ending = nil
	}
	child.Timestep++

	r.status(StatusPlanning, "")
	plan, err := g.Planner.Plan(ctx, model.PlanRequest{
		Input:    input,
		Intent:   model.IntentAct,
		Premise:  parent.Premise,
		EventLog: parent.EventLog,
		Retired:  parent.RetiredGameElements,
		Elements: parent.GameElements,
	})
	if err != nil {
		return child, "", collaboratorError("plan", err)
	}
	if err := plan.Validate(); err != nil {
		return child, "", fmt.Errorf("%w: plan: %w", ErrContract, err)
	}

	res, err := reducer.Apply(child, plan.Events)
	if errors.Is(err, reducer.ErrUnknownEvent) {
		return child, "", fmt.Errorf("%w: %w", ErrContract, err)
	}
	if err != nil {
		return child, "", err
	}
	if len(res.Warnings) > 0 {
		log.Printf("reducer warnings scenario=%s node=%s: %s", child.ScenarioID(), child.ID, res.WarningText())
	}
	r.status(StatusReducing, fmt.Sprintf("applied=%d %s", res.Applied, res.WarningText()))

	child = res.Node
	child.Summary = plan.Summary
	child.LastUpdate = &plan

	// The narrator sees the plan; the stored log does not.
	working := slices.Clip(child.EventLog)
	if !bootstrap {
		working = append(working, model.LogItem{
			Role: model.RolePlayer, Type: string(model.IntentAct), Text: input, Timestep: child.Timestep,
		})
	}
	working = append(working, model.LogItem{
		Role: model.RoleInternal, Type: model.LogTypePlan, Text: plan.ResponsePlan, Timestep: child.Timestep,
	})

	r.status(StatusNarrating, "")
	text, err := g.narrate(ctx, r, model.NarrationRequest{
		Intent:   model.IntentAct,
		Input:    input,
		Premise:  child.Premise,
		EventLog: working,
		Elements: child.GameElements,
		Retired:  child.RetiredGameElements,
	})
	return child, text, err
}

func (g *Game) narrate(ctx context.Context, r *reporter, req model.NarrationRequest) (string, error) {
	stream, err := g.Narrator.Narrate(ctx, req)
	if err != nil {
		return "", collaboratorError("narrate", err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("narrate: %w", err)
		}
		text.WriteString(chunk)
		if !r.delta(chunk, text.String()) {
			return "", ctx.Err()
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%w: narrator returned no text", ErrContract)
	}
	return text.String(), nil
}

// Undo moves the scenario back to the node before the last step. It reports
// false, with a nil error, when there is nothing to go back to.
func (g *Game) Undo(ctx context.Context, scenarioID string) (node model.TimeNode, ok bool, err error) {
	unlock := g.locks.lock(scenarioID)
	defer unlock()

	ctx, span := g.startSpan(ctx, "game.undo", scenarioID)
	defer func() { endSpan(span, err) }()

	parent, err := store.Undo(ctx, g.Store, scenarioID)
	switch {
	case errors.Is(err, store.ErrNoParent):
		return model.TimeNode{}, false, nil
	case errors.Is(err, store.ErrNotFound):
		return model.TimeNode{}, false, fmt.Errorf("%w: %s", ErrScenarioNotStarted, scenarioID)
	case err != nil:
		return model.TimeNode{}, false, err
	}
	log.Printf("undo scenario=%s node=%s timestep=%d", scenarioID, parent.ID, parent.Timestep)
	return parent, true, nil
}

// Active returns the current node of a started scenario.
func (g *Game) Active(ctx context.Context, scenarioID string) (model.TimeNode, error) {
	return g.activeNode(ctx, scenarioID)
}

// History returns the nodes on the active branch, root first. Nodes left
// behind by an undo are not included.
func (g *Game) History(ctx context.Context, scenarioID string) ([]model.TimeNode, error) {
	active, err := g.activeNode(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	all, err := g.Store.ListAllTimeNodes(ctx, scenarioID)
	if err != nil {
		return nil, err
	}

	onBranch := make(map[string]int, len(active.Previous)+1)
	for i, id := range active.Previous {
		onBranch[id] = i
	}
	onBranch[active.ID] = len(active.Previous)

	branch := make([]model.TimeNode, len(onBranch))
	for _, n := range all {
		if i, ok := onBranch[n.ID]; ok {
			branch[i] = n
		}
	}
	return branch, nil
}

// Nodes returns every node ever stored for the scenario.
func (g *Game) Nodes(ctx context.Context, scenarioID string) ([]model.TimeNode, error) {
	return g.Store.ListAllTimeNodes(ctx, scenarioID)
}

func (g *Game) Node(ctx context.Context, id string) (model.TimeNode, error) {
	return g.Store.GetNode(ctx, id)
}

// ListGames lists every scenario with its active node. A scenario whose opening
// step failed is listed with its root node so it can be started again.
func (g *Game) ListGames(ctx context.Context) ([]store.ActiveGame, error) {
	return g.Store.ListGames(ctx)
}

// Delete removes a scenario with its whole history.
func (g *Game) Delete(ctx context.Context, scenarioID string) error {
	unlock := g.locks.lock(scenarioID)
	defer unlock()
	return g.Store.DeleteGame(ctx, scenarioID)
}

func (g *Game) activeNode(ctx context.Context, scenarioID string) (model.TimeNode, error) {
	active, err := g.Store.GetActiveNode(ctx, scenarioID)
	if errors.Is(err, store.ErrNotFound) {
		return model.TimeNode{}, fmt.Errorf("%w: %s", ErrScenarioNotStarted, scenarioID)
	}
	if err != nil {
		return model.TimeNode{}, err
	}
	if active.IsRoot() {
		return model.TimeNode{}, fmt.Errorf("%w: %s has not been bootstrapped", ErrScenarioNotStarted, scenarioID)
	}
	return active, nil
}

// collaboratorError marks malformed collaborator answers as contract
// violations and passes transport errors through.
func collaboratorError(op string, err error) error {
	if errors.Is(err, common.ErrMalformed) {
		return fmt.Errorf("%w: %s: %w", ErrContract, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (g *Game) startSpan(ctx context.Context, name, scenarioID string) (context.Context, trace.Span) {
	tracer := g.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("scenario.id", scenarioID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
