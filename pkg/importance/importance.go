// Package importance grades memories on a 1 to 10 scale with a reasoning
// model. Scoring never fails: any problem yields DefaultScore.
package importance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/metrics"
	"github.com/papercomputeco/tiermem/pkg/reasoning"
)

const (
	// DefaultScore is returned whenever a score cannot be obtained.
	DefaultScore = memory.ProvisionalImportance

	// DefaultTimeout bounds a single scoring call.
	DefaultTimeout = 5 * time.Second
)

// ErrNotInteger is returned by Parse for responses that are not a bare integer.
var ErrNotInteger = errors.New("response is not an integer")

const rubric = `Rate the importance of the following text as a single integer from 1 to 10.
Criteria:
- emotional intensity
- informational value
- need to remember

Text: %s

Answer with the number only.
Importance (1-10):`

// Scorer grades content. Implementations always return a value in [1, 10].
type Scorer interface {
	Score(ctx context.Context, content string) int
}

// Config configures an LLM-backed scorer.
type Config struct {
	// Reasoner answers the rubric prompt. Required.
	Reasoner reasoning.Reasoner

	// Timeout bounds each call, including any rate-limit wait.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	// RatePerSecond limits outgoing calls. Zero disables limiting.
	RatePerSecond float64

	// Burst is the limiter bucket size. Defaults to 1.
	Burst int

	Logger *slog.Logger
}

// LLMScorer grades content with a reasoning model.
type LLMScorer struct {
	reasoner reasoning.Reasoner
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Ensure LLMScorer implements Scorer.
var _ Scorer = (*LLMScorer)(nil)

// New creates an LLM-backed scorer.
func New(cfg Config) (*LLMScorer, error) {
	if cfg.Reasoner == nil {
		return nil, errors.New("reasoner is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &LLMScorer{
		reasoner: cfg.Reasoner,
		timeout:  timeout,
		logger:   logger.With("component", "importance"),
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return s, nil
}

// Score returns the model's grade for content, clamped to [1, 10], or
// DefaultScore when the call errors, times out or answers with anything other
// than an integer.
func (s *LLMScorer) Score(ctx context.Context, content string) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.fallback("rate_limited", err)
		}
	}

	resp, err := s.reasoner.Complete(ctx, Prompt(content))
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		return s.fallback(reason, err)
	}

	score, err := Parse(resp)
	if err != nil {
		return s.fallback("unparseable", err)
	}

	metrics.RecordScore(score)
	return score
}

func (s *LLMScorer) fallback(reason string, err error) int {
	metrics.RecordScoreFailure(reason)
	s.logger.Warn("importance scoring failed, using default",
		"reason", reason,
		"score", DefaultScore,
		"error", err,
	)
	return DefaultScore
}

// Prompt renders the fixed rubric around content.
func Prompt(content string) string {
	return fmt.Sprintf(rubric, content)
}

// Parse reads a model response as an integer score and clamps it to [1, 10].
func Parse(resp string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotInteger, resp)
	}
	return memory.ClampImportance(n), nil
}

// ScorerFunc adapts a function to the Scorer interface. Results are clamped.
type ScorerFunc func(ctx context.Context, content string) int

func (f ScorerFunc) Score(ctx context.Context, content string) int {
	return memory.ClampImportance(f(ctx, content))
}

// Fixed returns a Scorer that always answers n, clamped to [1, 10].
func Fixed(n int) Scorer {
	return fixed(memory.ClampImportance(n))
}

type fixed int

func (f fixed) Score(context.Context, string) int {
	return int(f)
}
