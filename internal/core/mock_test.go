package core

import (
	"context"
	"errors"
	"sync"

	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/llm"
)

type MockClassifier struct {
	mu       sync.Mutex
	Decision model.IntentDecision
	Queue    []model.IntentDecision
	Err      error
	Calls    int
}

func (m *MockClassifier) Classify(ctx context.Context, req model.ClassifyRequest) (model.IntentDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return model.IntentDecision{}, m.Err
	}
	if len(m.Queue) > 0 {
		d := m.Queue[0]
		m.Queue = m.Queue[1:]
		return d, nil
	}
	return m.Decision, nil
}

type MockPlanner struct {
	mu       sync.Mutex
	Result   model.Plan
	Queue    []model.Plan
	Err      error
	Requests []model.PlanRequest
}

func (m *MockPlanner) Plan(ctx context.Context, req model.PlanRequest) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return model.Plan{}, m.Err
	}
	if len(m.Queue) > 0 {
		p := m.Queue[0]
		m.Queue = m.Queue[1:]
		return p, nil
	}
	return m.Result, nil
}

func (m *MockPlanner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

type MockNarrator struct {
	mu       sync.Mutex
	Chunks   []string
	Err      error
	Requests []model.NarrationRequest
	// OnNarrate, when set, replaces the static stream.
	OnNarrate func(ctx context.Context) llm.TextStream
}

func (m *MockNarrator) Narrate(ctx context.Context, req model.NarrationRequest) (llm.TextStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.OnNarrate != nil {
		return m.OnNarrate(ctx), nil
	}
	return llm.NewStaticStream(m.Chunks...), nil
}

func (m *MockNarrator) last() model.NarrationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[len(m.Requests)-1]
}

// cancellingStream cancels the step's context once the first chunk is read.
type cancellingStream struct {
	cancel context.CancelFunc
	sent   bool
}

func (s *cancellingStream) Recv() (string, error) {
	if s.sent {
		return "", errors.New("stream aborted")
	}
	s.sent = true
	s.cancel()
	return "half a sent", nil
}

func (s *cancellingStream) Close() error { return nil }
