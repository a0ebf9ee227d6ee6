// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the language-model completion service behind a small
// request/response boundary so the verification stages can be tested with
// scripted clients.
package llm

import "context"

// Role identifies the author of a conversational turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversational turn. Tool results are keyed back to the
// originating call via ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is a model request to invoke a named tool with JSON arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDef describes a tool offered to the model. Parameters is a JSON
// Schema object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Options tunes a single completion request.
type Options struct {
	// JSONOnly constrains the model to emit a single JSON object.
	JSONOnly bool

	// Tools offered to the model for this request.
	Tools []ToolDef
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is the model's reply: free text, tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Client is the completion-service capability contract. Callers always
// validate returned text against an expected shape before trusting it and
// treat non-conforming output as a retryable failure.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (Completion, error)
}
