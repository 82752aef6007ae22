package ai

import (
	"context"
	"errors"
)

var ErrEmptyResponse = errors.New("llm returned no choices")

type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the arguments as the raw JSON string the model produced.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec describes a callable tool; Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (c ChatConfig) Valid() bool {
	return c.APIKey != "" && c.Model != ""
}

type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// ChatClient is implemented by every LLM provider.
type ChatClient interface {
	Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error)
	Chat(ctx context.Context, cfg ChatConfig, messages []ChatMessage, tools []ToolSpec) (*ChatResponse, error)
}
