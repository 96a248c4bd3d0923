package summarizer

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/rundown/internal/news"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI summarizes with a chat completion model.
type OpenAI struct {
	client chatClient
	model  string
}

var _ news.Summarizer = (*OpenAI)(nil)

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model}
}

func (o *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: Prompt + "\n\n" + text,
			},
		},
		Temperature: 0.6,
		TopP:        0.95,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return Sanitize(resp.Choices[0].Message.Content), nil
}
