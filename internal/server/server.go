package server

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenthands/texty/internal/core"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/seeds"
	"github.com/agenthands/texty/internal/store"
)

type Server struct {
	Game *core.Game
	// NewScenarioID names scenarios created without an explicit id.
	NewScenarioID func() string
}

func NewServer(game *core.Game) *Server {
	return &Server{
		Game:          game,
		NewScenarioID: uuid.NewString,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/seeds", s.ListSeeds)

	r.GET("/scenarios", s.ListScenarios)
	r.POST("/scenarios", s.CreateScenario)
	r.GET("/scenarios/:id", s.GetScenario)
	r.DELETE("/scenarios/:id", s.DeleteScenario)
	r.POST("/scenarios/:id/start", s.StartScenario)
	r.POST("/scenarios/:id/steps", s.Step)
	r.POST("/scenarios/:id/undo", s.Undo)
	r.GET("/scenarios/:id/history", s.History)
	r.GET("/scenarios/:id/nodes", s.Nodes)

	r.GET("/nodes/:id", s.GetNode)
	r.GET("/nodes/:id/children", s.Children)

	return r
}

type StartRequest struct {
	ScenarioID string `json:"scenario_id"`
	Seed       string `json:"seed" binding:"required"`
	Stream     bool   `json:"stream"`
}

type StepRequest struct {
	Input  string `json:"input" binding:"required"`
	Resume bool   `json:"resume"`
	Stream bool   `json:"stream"`
}

// StepResponse is the non-streaming answer to a start or step request.
type StepResponse struct {
	ScenarioID string         `json:"scenario_id"`
	Intent     model.Intent   `json:"intent,omitempty"`
	Text       string         `json:"text"`
	Node       model.TimeNode `json:"node"`
}

func (s *Server) ListSeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"seeds": seeds.Names()})
}

func (s *Server) ListScenarios(c *gin.Context) {
	games, err := s.Game.ListGames(c.Request.Context())
	if err != nil {
		s.fail(c, "list scenarios", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": games})
}

// CreateScenario starts a new scenario from a seed under a fresh id unless
// the request names one.
func (s *Server) CreateScenario(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.ScenarioID == "" {
		req.ScenarioID = s.NewScenarioID()
	}
	s.start(c, req)
}

func (s *Server) StartScenario(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.ScenarioID = c.Param("id")
	s.start(c, req)
}

func (s *Server) start(c *gin.Context, req StartRequest) {
	seed, err := seeds.Load(req.Seed)
	if err != nil {
		s.fail(c, "load seed", err)
		return
	}
	ch := s.Game.StartIfNotStarted(c.Request.Context(), req.ScenarioID, seed)
	s.respond(c, req.ScenarioID, ch, req.Stream)
}

func (s *Server) Step(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	var opts []core.StepOption
	if req.Resume {
		opts = append(opts, core.WithResume())
	}
	id := c.Param("id")
	ch := s.Game.Step(c.Request.Context(), id, req.Input, opts...)
	s.respond(c, id, ch, req.Stream)
}

func (s *Server) Undo(c *gin.Context) {
	id := c.Param("id")
	node, ok, err := s.Game.Undo(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "undo", err)
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "Nothing to undo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario_id": id, "node": node})
}

func (s *Server) GetScenario(c *gin.Context) {
	node, err := s.Game.Active(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "get scenario", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario_id": c.Param("id"), "node": node})
}

func (s *Server) DeleteScenario(c *gin.Context) {
	if err := s.Game.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, "delete scenario", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) History(c *gin.Context) {
	nodes, err := s.Game.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (s *Server) Nodes(c *gin.Context) {
	nodes, err := s.Game.Nodes(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "list nodes", err)
		return
	}
	if len(nodes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scenario not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (s *Server) GetNode(c *gin.Context) {
	node, err := s.Game.Node(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "get node", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node": node})
}

func (s *Server) Children(c *gin.Context) {
	lister, ok := s.Game.Store.(store.ChildLister)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Storage backend does not index children"})
		return
	}
	children, err := lister.ListChildren(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "list children", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children})
}

// respond either relays every progress notification as a server-sent event
// or waits for the final one and answers with plain JSON.
func (s *Server) respond(c *gin.Context, scenarioID string, ch <-chan core.Progress, stream bool) {
	if !stream {
		out, err := core.Wait(ch)
		if err != nil {
			s.fail(c, "step", err)
			return
		}
		c.JSON(http.StatusOK, StepResponse{ScenarioID: scenarioID, Intent: out.Intent, Text: out.Text, Node: out.Node})
		return
	}

	c.Stream(func(w io.Writer) bool {
		p, ok := <-ch
		if !ok {
			return false
		}
		event := string(p.Kind)
		if p.Final {
			event = "final"
		}
		c.SSEvent(event, p)
		return !p.Final
	})
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Failed to %s: %v", op, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, seeds.ErrUnknownSeed):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrScenarioNotStarted), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrScenarioEnded):
		return http.StatusConflict
	case errors.Is(err, core.ErrContract):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
