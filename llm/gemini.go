package llm

import (
	"context"
	"os"
	"strings"

	"google.golang.org/genai"
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingGeminiAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) Chat(ctx context.Context, prompt string) (*Response, error) {
	return g.ChatWithConfig(ctx, prompt, DefaultConfig())
}

func (g *GeminiClient) ChatWithConfig(ctx context.Context, prompt string, config *Config) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	if config == nil {
		config = DefaultConfig()
	}

	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: config.MaxTokens,
		Temperature:     genai.Ptr(config.Temperature),
	}

	if config.System != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: config.System}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, config.Model, genai.Text(prompt), genConfig)
	if err != nil {
		return nil, err
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, ErrNoResponse
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	resp := &Response{
		Text:         text,
		FinishReason: string(result.Candidates[0].FinishReason),
	}
	addGeminiUsage(resp, result.UsageMetadata)
	return resp, nil
}

func (g *GeminiClient) ChatWithTools(ctx context.Context, message string, history []*Message, tools []*Tool, executor ToolExecutor) (*Response, []*Message, error) {
	if strings.TrimSpace(message) == "" {
		return nil, history, ErrEmptyPrompt
	}

	config := DefaultConfig()

	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: config.MaxTokens,
		Temperature:     genai.Ptr(config.Temperature),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: getToolSystemPrompt()}},
		},
		Tools: []*genai.Tool{
			{FunctionDeclarations: convertToolsToGemini(tools)},
		},
	}

	// Build conversation contents from history plus new message
	contents := convertHistoryToGemini(history)
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	newHistory := append(history, &Message{Role: "user", Content: message})
	resp := &Response{}

	// Tool calling loop
	for round := 0; round < maxToolRounds; round++ {
		result, err := g.client.Models.GenerateContent(ctx, config.Model, contents, genConfig)
		if err != nil {
			return nil, newHistory, err
		}

		addGeminiUsage(resp, result.UsageMetadata)

		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
			return nil, newHistory, ErrNoResponse
		}

		candidate := result.Candidates[0]

		// Check for function calls
		var functionCalls []*genai.FunctionCall
		var textParts []string

		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				functionCalls = append(functionCalls, part.FunctionCall)
			}
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
		}

		// Add model's response to the conversation
		contents = append(contents, candidate.Content)

		// If no function calls, return the text response
		if len(functionCalls) == 0 {
			resp.Text = strings.Join(textParts, "")
			resp.FinishReason = string(candidate.FinishReason)
			newHistory = append(newHistory, &Message{Role: "assistant", Content: resp.Text})
			return resp, newHistory, nil
		}

		assistantMsg := &Message{
			Role:      "assistant",
			Content:   strings.Join(textParts, ""),
			ToolCalls: make([]ToolCall, len(functionCalls)),
		}
		for i, fc := range functionCalls {
			assistantMsg.ToolCalls[i] = ToolCall{ID: fc.ID, Name: fc.Name, Arguments: fc.Args}
		}
		newHistory = append(newHistory, assistantMsg)

		// Execute function calls and build responses
		var functionResponses []*genai.Part
		for _, fc := range functionCalls {
			result := executor(fc.Name, fc.Args)
			functionResponses = append(functionResponses, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       fc.ID,
					Name:     fc.Name,
					Response: map[string]any{"result": result},
				},
			})
			newHistory = append(newHistory, &Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: fc.ID,
				Name:       fc.Name,
			})
		}

		// Add function responses to the conversation
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: functionResponses,
		})
	}

	return nil, newHistory, ErrTooManyToolRounds
}

func (g *GeminiClient) Close() error {
	// The genai client doesn't have a Close method, but we implement it
	// for the interface to support potential future cleanup needs
	return nil
}

func addGeminiUsage(resp *Response, usage *genai.GenerateContentResponseUsageMetadata) {
	if usage == nil {
		return
	}
	resp.TokensUsed += int64(usage.TotalTokenCount)
	resp.InputTokens += int64(usage.PromptTokenCount)
	resp.OutputTokens += int64(usage.CandidatesTokenCount)
}

func convertToolsToGemini(tools []*Tool) []*genai.FunctionDeclaration {
	var result []*genai.FunctionDeclaration

	for _, t := range tools {
		fd := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}

		if t.Parameters != nil {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema),
				Required:   t.Parameters.Required,
			}
			for name, prop := range t.Parameters.Properties {
				schema.Properties[name] = &genai.Schema{
					Type:        genai.Type(strings.ToUpper(prop.Type)),
					Description: prop.Description,
				}
			}
			fd.Parameters = schema
		}

		result = append(result, fd)
	}

	return result
}

// convertHistoryToGemini maps neutral messages onto Gemini contents.
// Gemini has no system role inside contents, so system messages become
// user context.
func convertHistoryToGemini(history []*Message) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range history {
		switch msg.Role {
		case "user", "system":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			content := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case "tool":
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       msg.ToolCallID,
						Name:     msg.Name,
						Response: map[string]any{"result": msg.Content},
					},
				}},
			})
		}
	}

	return contents
}
