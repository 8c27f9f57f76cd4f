// Package store persists TimeNodes and the per-scenario active pointer.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/texty/internal/core/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateNode = errors.New("time node already exists")
	ErrNoParent      = errors.New("no parent node")
	ErrPoolClosed    = errors.New("connection pool closed")
)

// ActiveGame is one row of the saved-games listing.
type ActiveGame struct {
	ScenarioID  string         `json:"scenario_id"`
	LastUpdated time.Time      `json:"last_updated"`
	Node        model.TimeNode `json:"node"`
}

// Store is append-only node storage plus one mutable active pointer per
// scenario. Implementations must make InsertTimeNode atomic: a reader never
// observes the node without the pointer having moved to it.
type Store interface {
	// InsertTimeNode appends node and points its scenario at it.
	InsertTimeNode(ctx context.Context, node model.TimeNode) error
	GetActiveNode(ctx context.Context, scenarioID string) (model.TimeNode, error)
	GetNode(ctx context.Context, id string) (model.TimeNode, error)
	// SetActiveNode repoints a scenario at one of its existing nodes.
	SetActiveNode(ctx context.Context, scenarioID, nodeID string) error
	ListAllTimeNodes(ctx context.Context, scenarioID string) ([]model.TimeNode, error)
	// ListGames returns the active node of every scenario, newest first.
	ListGames(ctx context.Context) ([]ActiveGame, error)
	DeleteGame(ctx context.Context, scenarioID string) error
	Close() error
}

// Undo moves the active pointer of scenarioID back to the parent of the
// current active node and returns that parent. A node whose chain holds fewer
// than two ids has nothing to go back to and yields ErrNoParent; the pointer
// is left as it was.
func Undo(ctx context.Context, s Store, scenarioID string) (model.TimeNode, error) {
	active, err := s.GetActiveNode(ctx, scenarioID)
	if err != nil {
		return model.TimeNode{}, err
	}
	if len(active.Previous) < 2 {
		return model.TimeNode{}, ErrNoParent
	}

	parent, err := s.GetNode(ctx, active.ParentID())
	if err != nil {
		return model.TimeNode{}, fmt.Errorf("load parent %s: %w", active.ParentID(), err)
	}
	if err := s.SetActiveNode(ctx, scenarioID, parent.ID); err != nil {
		return model.TimeNode{}, err
	}
	return parent, nil
}
