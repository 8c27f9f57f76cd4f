package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/driver"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore keeps nodes as (:TimeNode) vertices chained by [:PREVIOUS]
// edges and the active pointer on a (:Scenario) vertex. Each operation is a
// single Cypher statement, so the driver runs it in one transaction.
type GraphStore struct {
	Driver driver.GraphDriver
	now    func() time.Time
}

func NewGraphStore(d driver.GraphDriver) *GraphStore {
	return &GraphStore{Driver: d, now: time.Now}
}

// ChildLister is implemented by stores that index nodes by parent.
type ChildLister interface {
	ListChildren(ctx context.Context, nodeID string) ([]string, error)
}

func (g *GraphStore) InsertTimeNode(ctx context.Context, node model.TimeNode) error {
	if node.ID == "" {
		return fmt.Errorf("time node id is required")
	}
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal time node %s: %w", node.ID, err)
	}

	params := map[string]interface{}{
		"id":          node.ID,
		"parent_id":   node.ParentID(),
		"scenario_id": node.ScenarioID(),
		"timestep":    int64(node.Timestep),
		"summary":     node.Summary,
		"data":        string(data),
		"created_at":  toMillis(g.now()),
	}
	if _, err := g.Driver.ExecuteQuery(ctx, driver.InsertTimeNodeQuery, params); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("insert time node %s: %w", node.ID, ErrDuplicateNode)
		}
		return fmt.Errorf("insert time node %s: %w", node.ID, err)
	}
	return nil
}

func (g *GraphStore) GetActiveNode(ctx context.Context, scenarioID string) (model.TimeNode, error) {
	return g.getNode(ctx, driver.GetActiveNodeQuery, map[string]interface{}{"scenario_id": scenarioID})
}

func (g *GraphStore) GetNode(ctx context.Context, id string) (model.TimeNode, error) {
	return g.getNode(ctx, driver.GetTimeNodeQuery, map[string]interface{}{"id": id})
}

func (g *GraphStore) getNode(ctx context.Context, query string, params map[string]interface{}) (model.TimeNode, error) {
	res, err := g.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return model.TimeNode{}, err
	}
	if len(res.Records) == 0 {
		return model.TimeNode{}, ErrNotFound
	}
	var node model.TimeNode
	if err := decodeRecordNode(res.Records[0], &node); err != nil {
		return model.TimeNode{}, err
	}
	return node, nil
}

func (g *GraphStore) SetActiveNode(ctx context.Context, scenarioID, nodeID string) error {
	params := map[string]interface{}{
		"scenario_id":  scenarioID,
		"node_id":      nodeID,
		"last_updated": toMillis(g.now()),
	}
	res, err := g.Driver.ExecuteQuery(ctx, driver.SetActiveNodeQuery, params)
	if err != nil {
		return fmt.Errorf("set active node of %s: %w", scenarioID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("node %s in scenario %s: %w", nodeID, scenarioID, ErrNotFound)
	}
	return nil
}

func (g *GraphStore) ListAllTimeNodes(ctx context.Context, scenarioID string) ([]model.TimeNode, error) {
	res, err := g.Driver.ExecuteQuery(ctx, driver.ListTimeNodesQuery, map[string]interface{}{"scenario_id": scenarioID})
	if err != nil {
		return nil, fmt.Errorf("list time nodes: %w", err)
	}
	nodes := make([]model.TimeNode, 0, len(res.Records))
	for _, rec := range res.Records {
		var node model.TimeNode
		if err := decodeRecordNode(rec, &node); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (g *GraphStore) ListGames(ctx context.Context) ([]ActiveGame, error) {
	res, err := g.Driver.ExecuteQuery(ctx, driver.ListGamesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	games := make([]ActiveGame, 0, len(res.Records))
	for _, rec := range res.Records {
		var game ActiveGame
		if id, ok := rec.Get("scenario_id"); ok {
			game.ScenarioID, _ = id.(string)
		}
		if updated, ok := rec.Get("last_updated"); ok {
			if ms, ok := updated.(int64); ok {
				game.LastUpdated = fromMillis(ms)
			}
		}
		if err := decodeRecordNode(rec, &game.Node); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, nil
}

func (g *GraphStore) DeleteGame(ctx context.Context, scenarioID string) error {
	res, err := g.Driver.ExecuteQuery(ctx, driver.DeleteGameQuery, map[string]interface{}{"scenario_id": scenarioID})
	if err != nil {
		return fmt.Errorf("delete game %s: %w", scenarioID, err)
	}
	if len(res.Records) > 0 {
		if n, ok := res.Records[0].Get("deleted"); ok && n == int64(0) {
			return fmt.Errorf("scenario %s: %w", scenarioID, ErrNotFound)
		}
	}
	return nil
}

// ListChildren returns the ids of nodes whose parent is nodeID, oldest
// first. More than one child means the scenario branched after an undo.
func (g *GraphStore) ListChildren(ctx context.Context, nodeID string) ([]string, error) {
	res, err := g.Driver.ExecuteQuery(ctx, driver.ListChildrenQuery, map[string]interface{}{"id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", nodeID, err)
	}
	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		if id, ok := rec.Get("id"); ok {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
	}
	return ids, nil
}

func (g *GraphStore) Close() error {
	return g.Driver.Close(context.Background())
}

func decodeRecordNode(rec *neo4j.Record, node *model.TimeNode) error {
	raw, ok := rec.Get("data")
	if !ok {
		return fmt.Errorf("record has no data column")
	}
	data, ok := raw.(string)
	if !ok {
		return fmt.Errorf("unexpected data column type %T", raw)
	}
	return decodeNode(data, node)
}

func isConstraintViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint") && (strings.Contains(msg, "unique") || strings.Contains(msg, "already exists"))
}

var (
	_ Store       = (*GraphStore)(nil)
	_ ChildLister = (*GraphStore)(nil)
)
