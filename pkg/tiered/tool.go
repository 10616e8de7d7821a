package tiered

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/papercomputeco/tiermem/pkg/memory"
)

// NoMemories is the tool output when nothing was recalled.
const NoMemories = "No memories found."

// ErrInvalidRequest wraps every recall tool input problem.
var ErrInvalidRequest = errors.New("invalid recall request")

// ParseRecallRequest decodes the recall tool's JSON input and validates it.
func ParseRecallRequest(text string) (RecallRequest, error) {
	var req RecallRequest

	text = strings.TrimSpace(text)
	if text == "" {
		return req, fmt.Errorf("%w: empty input", ErrInvalidRequest)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if dec.More() {
		return req, fmt.Errorf("%w: trailing data after request", ErrInvalidRequest)
	}

	return req, req.Validate()
}

// Validate checks the owner and the limit range. Zero limits mean default.
func (r RecallRequest) Validate() error {
	switch {
	case r.OwnerID == "":
		return fmt.Errorf("%w: %v", ErrInvalidRequest, memory.ErrOwnerRequired)
	case r.Limit < 0 || r.Limit > memory.MaxQueryLimit:
		return fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidRequest, memory.MaxQueryLimit)
	}
	return nil
}

// RecallTool validates req and recalls with the tool default limit.
func (m *Memory) RecallTool(ctx context.Context, req RecallRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Limit == 0 {
		req.Limit = m.toolLimit
	}
	return m.Recall(ctx, req)
}

// InvokeTool runs the recall tool on serialized input. Failures are returned
// as descriptive text rather than errors.
func (m *Memory) InvokeTool(ctx context.Context, input string) string {
	req, err := ParseRecallRequest(input)
	if err != nil {
		return "Error: " + err.Error()
	}
	lines, err := m.RecallTool(ctx, req)
	if err != nil {
		return "Error: " + err.Error()
	}
	if len(lines) == 0 {
		return NoMemories
	}
	return strings.Join(lines, "\n")
}
