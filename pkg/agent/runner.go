package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fiona/folio/pkg/toolexecutor"
)

// ErrMaxTurnsExceeded is returned when the model keeps requesting tools
// past the configured turn budget.
var ErrMaxTurnsExceeded = errors.New("agent exceeded maximum turns")

// DefaultMaxTurns bounds the tool loop when no explicit cap is configured.
const DefaultMaxTurns = 12

// ToolDispatcher executes tool calls and exposes the catalog sent to the
// model. *toolexecutor.Registry satisfies it.
type ToolDispatcher interface {
	Execute(name string, args map[string]any) map[string]any
	Definitions() []toolexecutor.Definition
}

// Runner drives the conversation loop for one agent run.
type Runner struct {
	provider   ChatProvider
	dispatcher ToolDispatcher
	maxTurns   int
	logger     zerolog.Logger
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Provider   ChatProvider
	Dispatcher ToolDispatcher
	MaxTurns   int
	Logger     zerolog.Logger
}

// NewRunner creates a runner. MaxTurns defaults to DefaultMaxTurns.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("chat provider is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Runner{
		provider:   cfg.Provider,
		dispatcher: cfg.Dispatcher,
		maxTurns:   maxTurns,
		logger:     cfg.Logger.With().Str("component", "agent_runner").Logger(),
	}, nil
}

// RunParams are the inputs to one agent run.
type RunParams struct {
	Model           string
	SystemPrompt    string
	Prompt          string
	SnapshotDataURL string
	EnableThinking  bool
	ThinkingBudget  int
	MaxTokens       int
}

// RunResult is the outcome of one agent run. When Exhausted is set the
// tool calls executed so far are still included, so the caller can decide
// whether to keep the mutated state.
type RunResult struct {
	Answer    string             `json:"answer"`
	Reasoning string             `json:"reasoning"`
	ToolCalls []ExecutedToolCall `json:"tool_calls"`
	Turns     int                `json:"turns"`
	Exhausted bool               `json:"exhausted"`
}

// Run executes the conversation loop: converse, execute requested tools,
// feed results back, repeat until the model answers in plain text or the
// turn budget runs out.
func (r *Runner) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	messages := []Message{}
	if params.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: params.SystemPrompt})
	}
	messages = append(messages, Message{
		Role:     RoleUser,
		Content:  params.Prompt,
		ImageURL: params.SnapshotDataURL,
	})

	tools := r.dispatcher.Definitions()
	result := &RunResult{}
	reasoning := []string{}

	for turn := 1; turn <= r.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Turns = turn

		response, err := r.provider.Converse(ctx, ChatRequest{
			Model:          params.Model,
			Messages:       messages,
			Tools:          tools,
			EnableThinking: params.EnableThinking,
			ThinkingBudget: params.ThinkingBudget,
			MaxTokens:      params.MaxTokens,
		})
		if err != nil {
			result.Reasoning = joinReasoning(reasoning)
			return result, fmt.Errorf("chat backend error: %w", err)
		}

		if trimmed := strings.TrimSpace(response.Reasoning); trimmed != "" {
			reasoning = append(reasoning, trimmed)
		}

		if len(response.ToolCalls) == 0 {
			result.Answer = strings.TrimSpace(response.Answer)
			if result.Answer == "" {
				result.Answer = "No response received."
			}
			result.Reasoning = joinReasoning(reasoning)
			return result, nil
		}

		// Echo the assistant turn verbatim so the transcript the model
		// sees next round contains its own tool requests.
		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   response.Answer,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			args := decodeArguments(call.RawArguments)
			executed := ExecutedToolCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: args,
				Result:    r.safeExecute(call.Name, args),
			}
			result.ToolCalls = append(result.ToolCalls, executed)

			r.logger.Debug().
				Str("tool", call.Name).
				Str("call_id", call.ID).
				Interface("status", executed.Result["status"]).
				Msg("Tool call executed")

			content, err := json.Marshal(executed.Result)
			if err != nil {
				content = []byte(`{"status":"error","error":"unencodable tool result"}`)
			}
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    string(content),
				ToolCallID: call.ID,
			})
		}
	}

	result.Reasoning = joinReasoning(reasoning)
	result.Exhausted = true
	r.logger.Warn().Int("turns", result.Turns).Msg("Agent run exhausted turn budget")
	return result, ErrMaxTurnsExceeded
}

// decodeArguments parses the raw tool-call arguments once, at the dispatch
// boundary. Invalid JSON becomes a marker payload the model can see; a
// JSON null becomes an empty map.
func decodeArguments(raw string) map[string]any {
	if raw == "" {
		raw = "{}"
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"__raw": raw, "error": "invalid json"}
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}

// safeExecute shields the loop from dispatcher panics; the model sees an
// error result instead.
func (r *Runner) safeExecute(name string, args map[string]any) (result map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("tool", name).Interface("panic", rec).Msg("Tool dispatch panicked")
			result = map[string]any{"status": "error", "error": fmt.Sprintf("%v", rec)}
		}
	}()
	return r.dispatcher.Execute(name, args)
}

func joinReasoning(chunks []string) string {
	return strings.Join(chunks, "\n")
}
