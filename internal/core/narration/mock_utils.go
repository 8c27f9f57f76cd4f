package narration

import (
	"context"

	"github.com/agenthands/texty/internal/llm"
)

type MockStreamer struct {
	Chunks     []string
	Err        error
	LastPrompt string
}

func (m *MockStreamer) Stream(ctx context.Context, prompt string) (llm.TextStream, error) {
	m.LastPrompt = prompt
	if m.Err != nil {
		return nil, m.Err
	}
	return llm.NewStaticStream(m.Chunks...), nil
}
