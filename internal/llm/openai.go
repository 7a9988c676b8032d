package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OpenAI streams chat completions from an OpenAI-compatible endpoint with
// function calling resolved against the tool executor.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	log     zerolog.Logger
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(baseURL, apiKey, model string, log zerolog.Logger) *OpenAI {
	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		log:     log.With().Str("provider", "openai").Logger(),
	}
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// openAIMessage is a wire message. Content is a pointer so an assistant
// message carrying only tool calls serializes content as null.
type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIRequest struct {
	Model    string                   `json:"model"`
	Messages []openAIMessage          `json:"messages"`
	Tools    []map[string]interface{} `json:"tools,omitempty"`
	Stream   bool                     `json:"stream"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamResponse streams the model response for the given history, running
// tool calls until the model produces a final text answer.
func (o *OpenAI) StreamResponse(ctx context.Context, messages []Message, tools ToolExecutor, onChunk func(string)) error {
	wireMessages := []openAIMessage{{Role: "system", Content: ptr(SystemPrompt)}}
	for _, msg := range messages {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		wireMessages = append(wireMessages, openAIMessage{Role: msg.Role, Content: ptr(msg.Content)})
	}

	wireTools := openAITools(tools.Definitions())

	for range maxToolIterations {
		text, calls, err := o.streamOnce(ctx, wireMessages, wireTools, onChunk)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}

		assistant := openAIMessage{Role: "assistant", ToolCalls: calls}
		if text != "" {
			assistant.Content = ptr(text)
		}
		wireMessages = append(wireMessages, assistant)

		for _, call := range calls {
			args := map[string]interface{}{}
			if call.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
					o.log.Warn().Err(err).Str("tool", call.Function.Name).Msg("Failed to parse tool arguments")
				}
			}
			o.log.Info().Str("tool", call.Function.Name).Interface("args", args).Msg("Executing tool")
			result := tools.Execute(ctx, call.Function.Name, args)
			wireMessages = append(wireMessages, openAIMessage{
				Role:       "tool",
				Content:    ptr(result),
				ToolCallID: call.ID,
			})
		}
	}
	return fmt.Errorf("tool call loop exceeded %d iterations", maxToolIterations)
}

// streamOnce performs one streaming completion, returning the collected
// text and any tool calls reassembled from argument deltas.
func (o *OpenAI) streamOnce(ctx context.Context, messages []openAIMessage, tools []map[string]interface{}, onChunk func(string)) (string, []openAIToolCall, error) {
	body, err := json.Marshal(openAIRequest{
		Model:    o.model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, fmt.Errorf("completion request returned status %d: %s", resp.StatusCode, payload)
	}

	var text strings.Builder
	callsByIndex := map[int]*openAIToolCall{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk openAIChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil || len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			text.WriteString(delta.Content)
			onChunk(delta.Content)
		}
		for _, tc := range delta.ToolCalls {
			call, ok := callsByIndex[tc.Index]
			if !ok {
				call = &openAIToolCall{Type: "function"}
				callsByIndex[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Function.Name = tc.Function.Name
			}
			call.Function.Arguments += tc.Function.Arguments
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("stream read failed: %w", err)
	}

	indexes := make([]int, 0, len(callsByIndex))
	for idx := range callsByIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	calls := make([]openAIToolCall, 0, len(indexes))
	for _, idx := range indexes {
		calls = append(calls, *callsByIndex[idx])
	}
	return text.String(), calls, nil
}

// openAITools converts neutral tool definitions to the function-calling
// wire format.
func openAITools(defs []ToolDefinition) []map[string]interface{} {
	tools := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  def.jsonSchema(),
			},
		})
	}
	return tools
}

func ptr(s string) *string {
	return &s
}
