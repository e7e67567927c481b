package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicProvider implements ChatProvider for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Converse makes a single messages call.
func (p *AnthropicProvider) Converse(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	anthropicMessages := []anthropic.MessageParam{}
	system := ""

	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleSystem:
			system = msg.Content
		case RoleTool:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(rawOrEmptyObject(tc.RawArguments)), tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case RoleUser:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.ImageURL != "" {
				if mediaType, data, ok := splitDataURL(msg.ImageURL); ok {
					blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
				}
			}
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
		}
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  anthropicMessages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		reqParams.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if request.EnableThinking && request.ThinkingBudget > 0 {
		reqParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(request.ThinkingBudget))
	}

	for _, def := range request.Tools {
		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: def.Parameters["properties"],
			},
		}
		if required, ok := def.Parameters["required"].([]any); ok {
			names := make([]string, 0, len(required))
			for _, v := range required {
				if name, ok := v.(string); ok {
					names = append(names, name)
				}
			}
			toolParam.InputSchema.Required = names
		}
		reqParams.Tools = append(reqParams.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return nil, err
	}

	result := &ChatResponse{}
	reasoning := []string{}
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Answer += b.Text
		case anthropic.ThinkingBlock:
			reasoning = append(reasoning, b.Thinking)
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:           b.ID,
				Name:         b.Name,
				RawArguments: b.JSON.Input.Raw(),
			})
		}
	}
	result.Reasoning = strings.TrimSpace(strings.Join(reasoning, "\n"))
	return result, nil
}

func rawOrEmptyObject(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "{}"
	}
	return raw
}

// splitDataURL breaks a data URL into media type and base64 payload.
func splitDataURL(url string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	return mediaType, payload, mediaType != ""
}
