// Package reasoning defines the text-completion capability used to grade
// memories.
package reasoning

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Reasoner turns a single prompt into a single text completion.
type Reasoner interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts an ordinary function to a Reasoner.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
