package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiona/folio/pkg/toolexecutor"
)

// scriptedProvider replays a fixed sequence of responses and records every
// request it receives.
type scriptedProvider struct {
	responses []*ChatResponse
	err       error
	requests  []ChatRequest
}

func (p *scriptedProvider) Converse(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	p.requests = append(p.requests, request)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &ChatResponse{Answer: "done"}, nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func newEchoRegistry(t *testing.T) *toolexecutor.Registry {
	t.Helper()
	reg := toolexecutor.NewRegistry()
	require.NoError(t, reg.Register(toolexecutor.Definition{
		Name:        "move_block",
		Description: "Moves a block",
		Handler: func(args map[string]any) map[string]any {
			return map[string]any{"status": "success", "args": args}
		},
	}))
	return reg
}

func newTestRunner(t *testing.T, provider ChatProvider, dispatcher ToolDispatcher, maxTurns int) *Runner {
	t.Helper()
	runner, err := NewRunner(RunnerConfig{
		Provider:   provider,
		Dispatcher: dispatcher,
		MaxTurns:   maxTurns,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return runner
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(RunnerConfig{Dispatcher: newEchoRegistry(t)})
	assert.Error(t, err)

	_, err = NewRunner(RunnerConfig{Provider: &scriptedProvider{}})
	assert.Error(t, err)
}

func TestRunner_Run_PlainAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*ChatResponse{
		{Answer: "  The layout looks balanced.  ", Reasoning: "checked the grid"},
	}}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	result, err := runner.Run(context.Background(), RunParams{
		Model:        "qvq-plus",
		SystemPrompt: "You are a layout assistant.",
		Prompt:       "Assess the layout.",
	})

	require.NoError(t, err)
	assert.Equal(t, "The layout looks balanced.", result.Answer)
	assert.Equal(t, "checked the grid", result.Reasoning)
	assert.Equal(t, 1, result.Turns)
	assert.False(t, result.Exhausted)
	assert.Empty(t, result.ToolCalls)

	require.Len(t, provider.requests, 1)
	request := provider.requests[0]
	require.Len(t, request.Messages, 2)
	assert.Equal(t, RoleSystem, request.Messages[0].Role)
	assert.Equal(t, RoleUser, request.Messages[1].Role)
	require.Len(t, request.Tools, 1)
	assert.Equal(t, "move_block", request.Tools[0].Name)
}

func TestRunner_Run_EmptyAnswerPlaceholder(t *testing.T) {
	provider := &scriptedProvider{responses: []*ChatResponse{{Answer: "   "}}}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	result, err := runner.Run(context.Background(), RunParams{Model: "qvq-plus", Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "No response received.", result.Answer)
}

func TestRunner_Run_ToolLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []*ChatResponse{
		{
			Reasoning: "the headline should move",
			ToolCalls: []ToolCall{{ID: "call-1", Name: "move_block", RawArguments: `{"id":"headline"}`}},
		},
		{Answer: "Moved it.", Reasoning: "done"},
	}}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	result, err := runner.Run(context.Background(), RunParams{Model: "qvq-plus", Prompt: "improve"})

	require.NoError(t, err)
	assert.Equal(t, "Moved it.", result.Answer)
	assert.Equal(t, "the headline should move\ndone", result.Reasoning)
	assert.Equal(t, 2, result.Turns)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "call-1", result.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"id": "headline"}, result.ToolCalls[0].Arguments)
	assert.Equal(t, "success", result.ToolCalls[0].Result["status"])

	// Second request carries the assistant echo and the tool result.
	require.Len(t, provider.requests, 2)
	transcript := provider.requests[1].Messages
	require.Len(t, transcript, 3)
	assert.Equal(t, RoleAssistant, transcript[1].Role)
	require.Len(t, transcript[1].ToolCalls, 1)
	assert.Equal(t, `{"id":"headline"}`, transcript[1].ToolCalls[0].RawArguments)
	assert.Equal(t, RoleTool, transcript[2].Role)
	assert.Equal(t, "call-1", transcript[2].ToolCallID)
	assert.Contains(t, transcript[2].Content, `"status":"success"`)
}

func TestRunner_Run_InvalidToolArguments(t *testing.T) {
	provider := &scriptedProvider{responses: []*ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "move_block", RawArguments: `{"id":`}}},
		{Answer: "recovered"},
	}}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	result, err := runner.Run(context.Background(), RunParams{Model: "qvq-plus", Prompt: "go"})

	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, map[string]any{"__raw": `{"id":`, "error": "invalid json"}, result.ToolCalls[0].Arguments)
}

func TestRunner_Run_NullArgumentsBecomeEmptyMap(t *testing.T) {
	provider := &scriptedProvider{responses: []*ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "move_block", RawArguments: "null"}}},
		{Answer: "ok"},
	}}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	result, err := runner.Run(context.Background(), RunParams{Model: "qvq-plus", Prompt: "go"})

	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, map[string]any{}, result.ToolCalls[0].Arguments)
}

func TestRunner_Run_UnknownToolForwardedToModel(t *testing.T) {
	provider := &scriptedProvider{responses: []*ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "fold_page", RawArguments: "{}"}}},
		{Answer: "never mind"},
	}}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	result, err := runner.Run(context.Background(), RunParams{Model: "qvq-plus", Prompt: "go"})

	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "error", result.ToolCalls[0].Result["status"])
	assert.Equal(t, "unknown tool 'fold_page'", result.ToolCalls[0].Result["error"])
	assert.Equal(t, "never mind", result.Answer)
}

func TestRunner_Run_Exhausted(t *testing.T) {
	relentless := make([]*ChatResponse, 5)
	for i := range relentless {
		relentless[i] = &ChatResponse{
			ToolCalls: []ToolCall{{ID: "call", Name: "move_block", RawArguments: "{}"}},
		}
	}
	provider := &scriptedProvider{responses: relentless}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 3)

	result, err := runner.Run(context.Background(), RunParams{Model: "qvq-plus", Prompt: "go"})

	require.ErrorIs(t, err, ErrMaxTurnsExceeded)
	assert.True(t, result.Exhausted)
	assert.Equal(t, 3, result.Turns)
	assert.Len(t, result.ToolCalls, 3)
}

func TestRunner_Run_BackendError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("rate limited")}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	result, err := runner.Run(context.Background(), RunParams{Model: "qvq-plus", Prompt: "go"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.NotNil(t, result)
	assert.False(t, result.Exhausted)
}

func TestRunner_Run_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider := &scriptedProvider{}
	runner := newTestRunner(t, provider, newEchoRegistry(t), 0)

	_, err := runner.Run(ctx, RunParams{Model: "qvq-plus", Prompt: "go"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.requests)
}

func TestDecodeArguments(t *testing.T) {
	assert.Equal(t, map[string]any{}, decodeArguments(""))
	assert.Equal(t, map[string]any{}, decodeArguments("null"))
	assert.Equal(t, map[string]any{"a": 1.0}, decodeArguments(`{"a":1}`))
	assert.Equal(t, map[string]any{"__raw": "[1,2]", "error": "invalid json"}, decodeArguments("[1,2]"))
}
