package model

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// GenerationSettings are the sampling parameters a tier applies to every call.
// Zero TopP or TopK leaves the provider default in place.
type GenerationSettings struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

type CompletionRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	GenerationSettings
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type CompletionResponse struct {
	Content    string
	Usage      Usage
	Model      string
	StopReason string
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func validateRequest(req CompletionRequest) error {
	if req.Model == "" {
		return errModelRequired
	}
	if req.MaxTokens <= 0 {
		return errMaxTokens
	}
	if len(req.Messages) == 0 {
		return errNoMessages
	}
	return nil
}
