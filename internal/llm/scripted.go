package llm

import (
	"context"
	"sync"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Scripted answers calls from per-role queues. When a role's queue has a
// single entry left it is repeated. Safe for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	replies  map[Role][]Reply
	fallback Reply
	calls    []Call
}

func NewScripted() *Scripted {
	return &Scripted{replies: make(map[Role][]Reply)}
}

func (s *Scripted) On(role Role, texts ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range texts {
		s.replies[role] = append(s.replies[role], Reply{Text: t})
	}
	return s
}

func (s *Scripted) Fail(role Role, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[role] = append(s.replies[role], Reply{Err: err})
	return s
}

// Default answers roles without a script.
func (s *Scripted) Default(text string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = Reply{Text: text}
	return s
}

func (s *Scripted) Reason(ctx context.Context, call Call) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)

	queue := s.replies[call.Role]
	if len(queue) == 0 {
		return s.fallback.Text, s.fallback.Err
	}
	r := queue[0]
	if len(queue) > 1 {
		s.replies[call.Role] = queue[1:]
	}
	return r.Text, r.Err
}

func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns the number of calls made for role.
func (s *Scripted) Count(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Role == role {
			n++
		}
	}
	return n
}
