package testutils

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ScriptedReasoner answers prompts from a table of substring rules.
type ScriptedReasoner struct {
	mu      sync.Mutex
	rules   []rule
	prompts []string

	// Default is returned when no rule matches.
	Default string

	// Delay is waited (or the context cancelled) before answering.
	Delay time.Duration

	// Err, when set, is returned by every call.
	Err error
}

type rule struct {
	contains string
	answer   string
}

func NewScriptedReasoner(def string) *ScriptedReasoner {
	return &ScriptedReasoner{Default: def}
}

// On answers answer to prompts containing substr. Earlier rules win.
func (s *ScriptedReasoner) On(substr, answer string) *ScriptedReasoner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{contains: substr, answer: answer})
	return s
}

// Prompts returns every prompt received so far.
func (s *ScriptedReasoner) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *ScriptedReasoner) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.Err != nil {
		return "", s.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if strings.Contains(prompt, r.contains) {
			return r.answer, nil
		}
	}
	return s.Default, nil
}
