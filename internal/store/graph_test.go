package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/driver"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	MockResult    neo4j.EagerResult
	Err           error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *MockDriver) Close(ctx context.Context) error { return nil }

func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func nodeJSON(t *testing.T, n model.TimeNode) string {
	t.Helper()
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return string(data)
}

func TestGraphStore_InsertTimeNode(t *testing.T) {
	m := &MockDriver{}
	g := NewGraphStore(m)
	node := chain("s1", 1)[1]

	require.NoError(t, g.InsertTimeNode(context.Background(), node))
	assert.Equal(t, driver.InsertTimeNodeQuery, m.QueryExecuted)
	assert.Equal(t, "s1-a", m.QueryParams["id"])
	assert.Equal(t, "s1", m.QueryParams["parent_id"])
	assert.Equal(t, "s1", m.QueryParams["scenario_id"])
	assert.Equal(t, int64(1), m.QueryParams["timestep"])
	assert.JSONEq(t, nodeJSON(t, node), m.QueryParams["data"].(string))
}

func TestGraphStore_InsertDuplicate(t *testing.T) {
	m := &MockDriver{Err: errors.New("failed to execute query: Unable to commit due to unique constraint violation on :TimeNode(id)")}
	g := NewGraphStore(m)

	err := g.InsertTimeNode(context.Background(), model.TimeNode{ID: "s1"})
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestGraphStore_GetActiveNode(t *testing.T) {
	node := chain("s1", 1)[1]
	m := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record([]string{"data"}, nodeJSON(t, node)),
	}}}
	g := NewGraphStore(m)

	got, err := g.GetActiveNode(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, node, got)
	assert.Equal(t, driver.GetActiveNodeQuery, m.QueryExecuted)

	m.MockResult = neo4j.EagerResult{}
	_, err = g.GetActiveNode(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGraphStore_SetActiveNodeNotInScenario(t *testing.T) {
	m := &MockDriver{}
	g := NewGraphStore(m)

	err := g.SetActiveNode(context.Background(), "s1", "elsewhere")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "elsewhere", m.QueryParams["node_id"])
}

func TestGraphStore_ListGames(t *testing.T) {
	node := chain("s1", 1)[1]
	keys := []string{"scenario_id", "last_updated", "data"}
	m := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record(keys, "s1", int64(1767225600000), nodeJSON(t, node)),
	}}}
	g := NewGraphStore(m)

	games, err := g.ListGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "s1", games[0].ScenarioID)
	assert.Equal(t, int64(1767225600000), games[0].LastUpdated.UnixMilli())
	assert.Equal(t, "s1-a", games[0].Node.ID)
}

func TestGraphStore_DeleteGame(t *testing.T) {
	m := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
		record([]string{"deleted"}, int64(0)),
	}}}
	g := NewGraphStore(m)
	assert.ErrorIs(t, g.DeleteGame(context.Background(), "s1"), ErrNotFound)

	m.MockResult.Records[0] = record([]string{"deleted"}, int64(3))
	assert.NoError(t, g.DeleteGame(context.Background(), "s1"))
}

func TestGraphStore_UndoThroughGeneric(t *testing.T) {
	nodes := chain("s1", 2)
	g := NewGraphStore(&scriptedDriver{results: map[string]neo4j.EagerResult{
		driver.GetActiveNodeQuery: {Records: []*neo4j.Record{record([]string{"data"}, nodeJSON(t, nodes[2]))}},
		driver.GetTimeNodeQuery:   {Records: []*neo4j.Record{record([]string{"data"}, nodeJSON(t, nodes[1]))}},
		driver.SetActiveNodeQuery: {Records: []*neo4j.Record{record([]string{"id"}, nodes[1].ID)}},
	}})

	parent, err := Undo(context.Background(), g, "s1")
	require.NoError(t, err)
	assert.Equal(t, nodes[1].ID, parent.ID)
}

// scriptedDriver answers each query constant with a fixed result.
type scriptedDriver struct {
	MockDriver
	results map[string]neo4j.EagerResult
}

func (s *scriptedDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	return s.results[query], nil
}
