package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/tiered"
)

var (
	memoryRecallToolName    = "memory_recall"
	memoryRecallDescription = "Recall what a user has said before. Returns the recent conversation with the given actor (when actor_id is set) followed by the long-term memories most similar to the query, one line per memory."

	shortTermToolName    = "short_term_memory"
	shortTermDescription = "Read one short-term memory window (recent, today or weekly) for a user and actor, newest first."
)

// MemoryRecallInput represents the input arguments for the MCP memory_recall tool.
type MemoryRecallInput struct {
	OwnerID  string `json:"owner_id" jsonschema:"the user whose memories are recalled"`
	Query    string `json:"query" jsonschema:"what to look for in long-term memory"`
	ActorID  string `json:"actor_id,omitempty" jsonschema:"persona id; includes the recent conversation with this actor"`
	Type     string `json:"type,omitempty" jsonschema:"only return memories of this type, e.g. chat or debate"`
	TopicTag string `json:"topic_tag,omitempty" jsonschema:"conversation topic scoping the recent windows"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum long-term memories, 1 to 20"`
}

// ShortTermInput represents the input arguments for the MCP short_term_memory tool.
type ShortTermInput struct {
	OwnerID  string `json:"owner_id" jsonschema:"the user whose memories are read"`
	ActorID  string `json:"actor_id" jsonschema:"persona id the conversation is with"`
	Window   string `json:"window,omitempty" jsonschema:"recent (default), today or weekly"`
	TopicTag string `json:"topic_tag,omitempty" jsonschema:"conversation topic scoping the window"`
}

// LinesOutput is the structured output of both tools.
type LinesOutput struct {
	Lines []string `json:"lines"`
}

func (s *Server) handleMemoryRecall(ctx context.Context, _ *mcp.CallToolRequest, input MemoryRecallInput) (*mcp.CallToolResult, LinesOutput, error) {
	lines, err := s.config.Memory.RecallTool(ctx, tiered.RecallRequest{
		OwnerID:  input.OwnerID,
		Query:    input.Query,
		ActorID:  input.ActorID,
		Type:     input.Type,
		TopicTag: input.TopicTag,
		Limit:    input.Limit,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Memory recall failed: %v", err)), LinesOutput{Lines: []string{}}, nil
	}

	return linesResult(lines), LinesOutput{Lines: lines}, nil
}

func (s *Server) handleShortTerm(ctx context.Context, _ *mcp.CallToolRequest, input ShortTermInput) (*mcp.CallToolResult, LinesOutput, error) {
	records, err := s.config.Memory.ShortTerm(ctx, tiered.ShortTermRequest{
		OwnerID:  input.OwnerID,
		ActorID:  input.ActorID,
		Window:   input.Window,
		TopicTag: input.TopicTag,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Short-term memory read failed: %v", err)), LinesOutput{Lines: []string{}}, nil
	}

	lines := memory.FormatAll(records)
	return linesResult(lines), LinesOutput{Lines: lines}, nil
}

func linesResult(lines []string) *mcp.CallToolResult {
	text := tiered.NoMemories
	if len(lines) > 0 {
		text = strings.Join(lines, "\n")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
