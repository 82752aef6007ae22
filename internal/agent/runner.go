package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"qwery/internal/ai"
	"qwery/internal/apperr"
	"qwery/internal/metrics"
	"qwery/internal/model"
)

const (
	EventTypeState      = "state"
	EventTypeToolCall   = "tool_call"
	EventTypeToolResult = "tool_result"
	EventTypeAnswer     = "answer"
)

// Event is emitted while a run progresses.
type Event struct {
	Type       string `json:"type"`
	State      string `json:"state,omitempty"`
	Tool       string `json:"tool,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	Content    string `json:"content,omitempty"`
}

// EmitFunc receives run events. Returning an error aborts the run.
type EmitFunc func(Event) error

type RunInput struct {
	Prompt  string
	History []model.Message
}

// RunResult holds the final answer and the tool exchanges that led to it,
// as messages ready to be stored.
type RunResult struct {
	Answer     string
	Steps      int
	StepLimit  bool
	ToolTraces []model.Message
}

type RunnerOptions struct {
	MaxSteps   int
	RunTimeout time.Duration
	RowLimit   int
}

type Runner struct {
	llm      ai.ChatClient
	llmCfg   ai.ChatConfig
	tools    map[string]tool
	maxSteps int
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewRunner(llm ai.ChatClient, llmCfg ai.ChatConfig, exec QueryExecutor, opts RunnerOptions, logger zerolog.Logger) *Runner {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 8
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	return &Runner{
		llm:      llm,
		llmCfg:   llmCfg,
		tools:    newToolset(exec, opts.RowLimit),
		maxSteps: opts.MaxSteps,
		timeout:  opts.RunTimeout,
		logger:   logger,
	}
}

// Run drives the agent from a user prompt to an answer. Tool calls requested
// in one model turn run concurrently. After MaxSteps tool rounds the model is
// asked once more, without tools, for a final answer.
func (r *Runner) Run(ctx context.Context, a *Agent, input RunInput, emit EmitFunc) (*RunResult, error) {
	if emit == nil {
		emit = func(Event) error { return nil }
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.run(ctx, a, input, emit)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = apperr.Wrap(apperr.CodeLLMUnavailable, "agent run timed out", err)
		}
		a.fail(ctx, err)
		metrics.AgentRunsTotal.WithLabelValues("failed").Inc()
		a.logger.Warn().Err(err).Int("steps", a.Session.Steps).Msg("agent run failed")
		return nil, err
	}

	outcome := "answered"
	if result.StepLimit {
		outcome = "step_limit"
	}
	metrics.AgentRunsTotal.WithLabelValues(outcome).Inc()
	return result, nil
}

func (r *Runner) run(ctx context.Context, a *Agent, input RunInput, emit EmitFunc) (*RunResult, error) {
	a.Session.LastError = ""
	a.Session.Steps = 0
	if err := r.step(ctx, a, EventStart, emit); err != nil {
		return nil, err
	}

	messages := r.buildPrompt(a, input)
	specs := toolSpecs(r.tools)
	result := &RunResult{}

	for result.Answer == "" && a.Session.Steps < r.maxSteps {
		a.Session.Steps++
		resp, err := r.llm.Chat(ctx, r.llmCfg, messages, specs)
		if err != nil {
			return nil, llmError(err)
		}

		if len(resp.ToolCalls) == 0 {
			result.Answer = strings.TrimSpace(resp.Content)
			if result.Answer == "" {
				result.Answer = "The model returned an empty response."
			}
			break
		}

		if err := r.step(ctx, a, EventCallTools, emit); err != nil {
			return nil, err
		}
		outputs, err := r.callTools(ctx, a, resp.ToolCalls, emit)
		if err != nil {
			return nil, err
		}

		messages = append(messages, ai.ChatMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for i, call := range resp.ToolCalls {
			messages = append(messages, ai.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    outputs[i],
			})
			result.ToolTraces = append(result.ToolTraces, toolTrace(a.Conversation.ID, call, outputs[i]))
		}

		if err := r.step(ctx, a, EventToolsDone, emit); err != nil {
			return nil, err
		}
	}

	if result.Answer == "" {
		result.StepLimit = true
		messages = append(messages, ai.ChatMessage{
			Role:    "system",
			Content: "Tool budget exhausted. Answer the user now using only the results gathered so far.",
		})
		answer, err := r.llm.Complete(ctx, r.llmCfg, messages)
		if err != nil {
			return nil, llmError(err)
		}
		result.Answer = strings.TrimSpace(answer)
	}
	result.Steps = a.Session.Steps

	if err := r.step(ctx, a, EventRespond, emit); err != nil {
		return nil, err
	}
	if err := emit(Event{Type: EventTypeAnswer, Content: result.Answer}); err != nil {
		return nil, err
	}

	snapshot, _ := json.Marshal(map[string]any{
		"last_input":  input.Prompt,
		"last_answer": result.Answer,
		"tool_calls":  len(result.ToolTraces),
		"step_limit":  result.StepLimit,
	})
	a.Session.Context = datatypes.JSON(snapshot)
	if err := r.step(ctx, a, EventFinish, emit); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) step(ctx context.Context, a *Agent, event string, emit EmitFunc) error {
	if err := a.transition(ctx, event); err != nil {
		return err
	}
	return emit(Event{Type: EventTypeState, State: a.State()})
}

// callTools runs every call concurrently. Tool failures are reported to the
// model; only cancellation or an emit failure stops the run.
func (r *Runner) callTools(ctx context.Context, a *Agent, calls []ai.ToolCall, emit EmitFunc) ([]string, error) {
	for _, call := range calls {
		if err := emit(Event{Type: EventTypeToolCall, Tool: call.Function.Name, ToolCallID: call.ID, Arguments: call.Function.Arguments}); err != nil {
			return nil, err
		}
	}

	outputs := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			out, err := r.invoke(gctx, a, call)
			metrics.AgentToolCallsTotal.WithLabelValues(call.Function.Name, metrics.Outcome(err)).Inc()
			if err != nil {
				a.logger.Debug().Err(err).Str("tool", call.Function.Name).Msg("tool call failed")
			}
			outputs[i] = encodeToolOutput(out, err)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, call := range calls {
		if err := emit(Event{Type: EventTypeToolResult, Tool: call.Function.Name, ToolCallID: call.ID, Content: outputs[i]}); err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

func (r *Runner) invoke(ctx context.Context, a *Agent, call ai.ToolCall) (any, error) {
	t, ok := r.tools[call.Function.Name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", call.Function.Name)
	}
	return t.run(ctx, a, json.RawMessage(call.Function.Arguments))
}

func (r *Runner) buildPrompt(a *Agent, input RunInput) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(input.History)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: systemPrompt(a)})
	for _, item := range input.History {
		// Stored tool traces lack the assistant turn that requested them.
		if item.Role == model.RoleTool || item.Role == model.RoleSystem {
			continue
		}
		messages = append(messages, ai.ChatMessage{Role: item.Role, Content: item.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: strings.TrimSpace(input.Prompt)})
	return messages
}

func systemPrompt(a *Agent) string {
	var b strings.Builder
	b.WriteString("You are Qwery, a data analyst assistant. Answer questions about the user's data. ")
	b.WriteString("Use the tools to inspect schemas and run read-only SQL before answering; never invent numbers.\n")
	if len(a.Datasources) == 0 {
		b.WriteString("No datasources are attached to this conversation.\n")
		return b.String()
	}
	b.WriteString("Available datasources:\n")
	for _, ds := range a.Datasources {
		fmt.Fprintf(&b, "- %s (id %s, %s)", ds.Name, ds.ID, ds.Provider)
		if ds.Description != "" {
			b.WriteString(": " + ds.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func toolTrace(conversationID string, call ai.ToolCall, output string) model.Message {
	return model.Message{
		ConversationID: conversationID,
		Role:           model.RoleTool,
		Content:        output,
		Metadata: datatypes.JSONMap{
			"tool":         call.Function.Name,
			"tool_call_id": call.ID,
			"arguments":    call.Function.Arguments,
		},
	}
}

func llmError(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Wrap(apperr.CodeLLMUnavailable, "language model request failed", err)
}
