package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextStream yields generated text in chunks. Recv returns io.EOF once the
// generation is complete.
type TextStream interface {
	Recv() (string, error)
	Close() error
}

type Streamer interface {
	Stream(ctx context.Context, prompt string) (TextStream, error)
}

// Client is a provider that can both generate and stream.
type Client interface {
	LLMClient
	Streamer
}

// ReadAll drains s and returns the concatenated text.
func ReadAll(s TextStream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

// chanStream adapts a producer running in its own goroutine to TextStream.
type chanStream struct {
	deltas <-chan string
	done   <-chan error
	cancel context.CancelFunc
	err    error
}

// startStream runs produce in a goroutine. produce calls emit for every
// chunk; emit reports false once the consumer has gone away.
func startStream(ctx context.Context, produce func(ctx context.Context, emit func(string) bool) error) TextStream {
	ctx, cancel := context.WithCancel(ctx)
	deltas := make(chan string)
	done := make(chan error, 1)

	go func() {
		err := produce(ctx, func(chunk string) bool {
			select {
			case deltas <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		})
		close(deltas)
		done <- err
	}()

	return &chanStream{deltas: deltas, done: done, cancel: cancel}
}

func (s *chanStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if chunk, ok := <-s.deltas; ok {
		return chunk, nil
	}
	s.err = <-s.done
	if s.err == nil {
		s.err = io.EOF
	}
	return "", s.err
}

func (s *chanStream) Close() error {
	s.cancel()
	return nil
}

// NewStaticStream returns a stream over fixed chunks.
func NewStaticStream(chunks ...string) TextStream {
	return &staticStream{chunks: chunks}
}

type staticStream struct {
	chunks []string
}

func (s *staticStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *staticStream) Close() error { return nil }
