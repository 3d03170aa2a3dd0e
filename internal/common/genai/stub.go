package genai

import (
	"context"
	"sync"
)

// Scripted replays canned completions keyed by operation, with "*" as the catch-all.
// Packages that depend on a Generator use it in their tests.
type Scripted struct {
	mu      sync.Mutex
	Replies map[string]string
	Err     error
	calls   []CompletionRequest
}

func (s *Scripted) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	if reply, ok := s.Replies[req.Operation]; ok {
		return reply, nil
	}
	return s.Replies["*"], nil
}

// Calls returns a copy of every request seen so far.
func (s *Scripted) Calls() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionRequest(nil), s.calls...)
}
