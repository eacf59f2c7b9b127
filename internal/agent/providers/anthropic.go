// Package providers implements ModelProvider adapters for concrete LLM APIs.
//
// Adapters translate between the engine's provider-neutral request format and
// each vendor's SDK, and pass streamed output through without interpretation:
// tool-call argument fragments are forwarded as they arrive and the
// orchestrator's assembler reconstructs the calls.
package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/orbit-agents/orbit/internal/agent"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider adapts Anthropic's Messages API. Safe for concurrent use;
// each Complete call owns an independent stream and goroutine.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures an AnthropicProvider. Only APIKey is required.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider creates the adapter.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	model := config.DefaultModel
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		defaultModel: model,
	}, nil
}

// Name implements agent.ModelProvider.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete implements agent.ModelProvider.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	chunks := make(chan *agent.CompletionChunk)
	go func() {
		defer close(chunks)
		defer stream.Close()

		// Anthropic numbers content blocks per message; the block index keys
		// the fragment slot.
		var inputTokens, outputTokens int
		toolBlocks := map[int64]bool{}

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				start := event.AsMessageStart()
				inputTokens = int(start.Message.Usage.InputTokens)

			case "content_block_start":
				blockStart := event.AsContentBlockStart()
				if blockStart.ContentBlock.Type != "tool_use" {
					continue
				}
				toolUse := blockStart.ContentBlock.AsToolUse()
				toolBlocks[blockStart.Index] = true
				chunks <- &agent.CompletionChunk{ToolFragment: &agent.ToolCallFragment{
					Index: int(blockStart.Index),
					ID:    toolUse.ID,
					Name:  toolUse.Name,
				}}

			case "content_block_delta":
				blockDelta := event.AsContentBlockDelta()
				switch blockDelta.Delta.Type {
				case "text_delta":
					if blockDelta.Delta.Text != "" {
						chunks <- &agent.CompletionChunk{Text: blockDelta.Delta.Text}
					}
				case "input_json_delta":
					if blockDelta.Delta.PartialJSON != "" && toolBlocks[blockDelta.Index] {
						chunks <- &agent.CompletionChunk{ToolFragment: &agent.ToolCallFragment{
							Index: int(blockDelta.Index),
							Args:  blockDelta.Delta.PartialJSON,
						}}
					}
				}

			case "message_delta":
				messageDelta := event.AsMessageDelta()
				if messageDelta.Usage.OutputTokens > 0 {
					outputTokens = int(messageDelta.Usage.OutputTokens)
				}

			case "message_stop":
				chunks <- &agent.CompletionChunk{
					Done:         true,
					InputTokens:  inputTokens,
					OutputTokens: outputTokens,
				}
				return
			}
		}
		if err := stream.Err(); err != nil {
			chunks <- &agent.CompletionChunk{Error: fmt.Errorf("anthropic stream: %w", err), Done: true}
			return
		}
		chunks <- &agent.CompletionChunk{
			Done:         true,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		}
	}()
	return chunks, nil
}

func (p *AnthropicProvider) buildParams(req *agent.CompletionRequest) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  convertAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// convertAnthropicMessages maps the neutral history to Anthropic's format.
// Tool results travel in user-role messages per the Messages API contract.
func convertAnthropicMessages(messages []agent.CompletionMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			var input any
			if err := json.Unmarshal(tc.Input, &input); err != nil {
				input = map[string]any{}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		for _, tr := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		if len(content) == 0 {
			continue
		}
		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out
}

func convertAnthropicTools(tools []agent.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid schema for tool %q: %w", tool.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" && param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Description)
		}
		out = append(out, param)
	}
	return out, nil
}
