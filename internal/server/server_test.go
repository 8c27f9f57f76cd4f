package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/texty/internal/config"
	"github.com/agenthands/texty/internal/core"
	"github.com/agenthands/texty/internal/core/intent"
	"github.com/agenthands/texty/internal/core/narration"
	"github.com/agenthands/texty/internal/core/planning"
	"github.com/agenthands/texty/internal/store"
)

type testEnv struct {
	router     *gin.Engine
	classifier *intent.MockLLMClient
	planner    *planning.MockLLMClient
	narrator   *narration.MockStreamer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "server.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	env := &testEnv{
		classifier: &intent.MockLLMClient{Response: `{"thought": "moving on", "intent": "act"}`},
		planner:    &planning.MockLLMClient{Response: `{"response_plan": "Rain falls.", "events": [], "summary": "Time passes"}`},
		narrator:   &narration.MockStreamer{Chunks: []string{"The rain ", "taps gently."}},
	}
	game := core.NewGame(s,
		intent.NewClassifier(env.classifier, cfg.Prompts.Preamble, cfg.Prompts.Intent),
		planning.NewPlanner(env.planner, cfg.Prompts.Preamble, cfg.Prompts.Planning),
		narration.NewNarrator(env.narrator, cfg.Prompts.Preamble, cfg.Prompts.Narration),
	)
	env.router = NewServer(game).SetupRouter()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestListSeeds(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/seeds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "zantar")
}

func TestScenarioLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/scenarios", StartRequest{ScenarioID: "s1", Seed: "zantar"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decode[StepResponse](t, w)
	assert.Equal(t, "s1", started.ScenarioID)
	assert.Equal(t, "The rain taps gently.", started.Text)
	assert.Equal(t, []string{"s1"}, started.Node.Previous)

	w = env.do(t, http.MethodPost, "/scenarios/s1/steps", StepRequest{Input: "look around"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stepped := decode[StepResponse](t, w)
	assert.Len(t, stepped.Node.Previous, 2)
	assert.Equal(t, started.Node.Timestep+1, stepped.Node.Timestep)

	w = env.do(t, http.MethodGet, "/scenarios/s1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Nodes []json.RawMessage `json:"nodes"`
	}](t, w).Nodes, 3)

	w = env.do(t, http.MethodGet, "/nodes/s1/children", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{started.Node.ID}, decode[struct {
		Children []string `json:"children"`
	}](t, w).Children)

	w = env.do(t, http.MethodPost, "/scenarios/s1/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/scenarios/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), started.Node.ID)

	w = env.do(t, http.MethodPost, "/scenarios/s1/undo", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/scenarios", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"s1"`)

	w = env.do(t, http.MethodDelete, "/scenarios/s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/scenarios/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateScenarioGeneratesID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/scenarios", StartRequest{Seed: "blackwood_manor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[StepResponse](t, w).ScenarioID)
}

func TestErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/scenarios", StartRequest{Seed: "atlantis"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/scenarios", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/scenarios/missing/steps", StepRequest{Input: "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/scenarios/missing/nodes", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/nodes/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMalformedPlanIsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/scenarios", StartRequest{ScenarioID: "s1", Seed: "zantar"})
	require.Equal(t, http.StatusOK, w.Code)

	env.planner.Response = `not json`
	w = env.do(t, http.MethodPost, "/scenarios/s1/steps", StepRequest{Input: "open the door"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = env.do(t, http.MethodGet, "/scenarios/s1/nodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Nodes []json.RawMessage `json:"nodes"`
	}](t, w).Nodes, 2)
}

func TestStreamingStep(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	post := func(path string, body any) string {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(out)
	}

	body := post("/scenarios", StartRequest{ScenarioID: "s1", Seed: "zantar", Stream: true})
	assert.Contains(t, body, "event:status-update")
	assert.Contains(t, body, "event:text-delta")
	assert.Equal(t, 1, strings.Count(body, "event:final"))

	body = post("/scenarios/s1/steps", StepRequest{Input: "wait", Stream: true})
	assert.Contains(t, body, `"delta":"taps gently."`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "}"))
	assert.Equal(t, 1, strings.Count(body, "event:final"))
}
