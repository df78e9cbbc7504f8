package llm

import (
	"context"
	"errors"
)

var (
	ErrMissingAPIKey       = errors.New("OPENROUTER_API_KEY environment variable not set")
	ErrMissingGeminiAPIKey = errors.New("GEMINI_API_KEY environment variable not set")
	ErrEmptyPrompt         = errors.New("prompt cannot be empty")
	ErrNoResponse          = errors.New("no response from model")
)

// ToolExecutor is called when the LLM wants to execute a tool.
// It receives the function name and arguments, and returns the result string.
type ToolExecutor func(name string, args map[string]any) string

type Client interface {
	Chat(ctx context.Context, prompt string) (*Response, error)
	ChatWithConfig(ctx context.Context, prompt string, config *Config) (*Response, error)
	ChatWithTools(ctx context.Context, message string, history []*Message, tools []*Tool, executor ToolExecutor) (*Response, []*Message, error)
	Close() error
}

// maxToolRounds bounds the tool calling loop
const maxToolRounds = 10

// ErrTooManyToolRounds is returned when the model keeps calling tools
var ErrTooManyToolRounds = errors.New("model did not finish after too many tool calls")

// NewFromEnv returns the OpenRouter client if OPENROUTER_API_KEY is set,
// otherwise the Gemini client if GEMINI_API_KEY is set.
func NewFromEnv(ctx context.Context) (Client, error) {
	if c, err := NewOpenRouterClient(ctx); err == nil {
		return c, nil
	} else if !errors.Is(err, ErrMissingAPIKey) {
		return nil, err
	}
	return NewGeminiClient(ctx)
}

func getToolSystemPrompt() string {
	return `You are a helpful task list assistant for taskpad.

IMPORTANT RULES:
1. When a user refers to a task by TITLE (not ID), FIRST call "tasks" to find the ID, then use that ID.
2. "tasks" only shows tasks matching the current filter. Call "filter" with "all" first if a task may be hidden.
3. NEVER ask the user for an ID. Always look it up using available tools.
4. Task IDs are numbers like 1718000000000.
5. "done" may refuse a task that was already marked complete once. Report that to the user instead of retrying.

EXAMPLES:
- "add buy milk, 2% organic" -> call add with title "buy milk" and description "2% organic"
- "mark the milk task done" -> call tasks, find the ID, then call done
- "what's left?" -> call filter with "active", then call tasks`
}
