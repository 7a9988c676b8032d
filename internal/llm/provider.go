// Package llm abstracts the chat model providers. Providers stream text
// chunks and drive tool calls against a caller-supplied executor, so the
// chat service never deals with provider wire formats.
package llm

import "context"

// SystemPrompt frames every chat session.
const SystemPrompt = "You are VeraScore, a financial research assistant. You help users analyze stocks using " +
	"real data, explain VeraScore ratings, and manage investment portfolios. Always use the " +
	"provided tools to look up real data — never fabricate numbers or scores. Be concise and " +
	"data-driven."

// maxToolIterations bounds the tool-call loop per user turn.
const maxToolIterations = 10

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolParam describes one parameter of a tool in provider-neutral terms.
type ToolParam struct {
	Name        string
	Type        string // "string", "integer" or "number"
	Description string
	Required    bool
}

// ToolDefinition describes a callable tool in provider-neutral terms.
type ToolDefinition struct {
	Name        string
	Description string
	Params      []ToolParam
}

// ToolExecutor supplies tool definitions and executes calls. Execute
// returns a JSON string; execution failures are encoded in the payload so
// the model can react to them.
type ToolExecutor interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args map[string]interface{}) string
}

// Provider streams a chat completion. Text chunks are delivered to onChunk
// as they arrive; tool calls are resolved internally via tools.
type Provider interface {
	StreamResponse(ctx context.Context, messages []Message, tools ToolExecutor, onChunk func(text string)) error
}

// jsonSchema renders a tool definition as a JSON-schema parameters object.
func (d ToolDefinition) jsonSchema() map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}
	for _, p := range d.Params {
		properties[p.Name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
