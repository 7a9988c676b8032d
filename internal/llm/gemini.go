package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Gemini streams chat completions from the Gemini API with function
// calling resolved against the tool executor.
type Gemini struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  model,
		log:    log.With().Str("provider", "gemini").Logger(),
	}, nil
}

// StreamResponse streams the model response for the given history, running
// tool calls until the model produces a final text answer.
func (g *Gemini) StreamResponse(ctx context.Context, messages []Message, tools ToolExecutor, onChunk func(string)) error {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
	}
	if decls := geminiDeclarations(tools.Definitions()); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	for range maxToolIterations {
		var text strings.Builder
		var calls []*genai.FunctionCall

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				return fmt.Errorf("gemini stream failed: %w", err)
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
					onChunk(part.Text)
				}
				if part.FunctionCall != nil {
					calls = append(calls, part.FunctionCall)
				}
			}
		}

		if len(calls) == 0 {
			return nil
		}

		modelParts := []*genai.Part{}
		if text.Len() > 0 {
			modelParts = append(modelParts, &genai.Part{Text: text.String()})
		}
		for _, call := range calls {
			modelParts = append(modelParts, &genai.Part{FunctionCall: call})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: modelParts})

		responseParts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			g.log.Info().Str("tool", call.Name).Interface("args", call.Args).Msg("Executing tool")
			result := tools.Execute(ctx, call.Name, call.Args)
			responseParts = append(responseParts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       call.ID,
					Name:     call.Name,
					Response: map[string]any{"output": result},
				},
			})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responseParts})
	}
	return fmt.Errorf("tool call loop exceeded %d iterations", maxToolIterations)
}

// geminiDeclarations converts neutral tool definitions to the genai schema.
func geminiDeclarations(defs []ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		properties := map[string]*genai.Schema{}
		required := []string{}
		for _, p := range def.Params {
			properties[p.Name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			},
		})
	}
	return decls
}

func geminiType(paramType string) genai.Type {
	switch paramType {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}
