package gpt

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
)

// Client calls the chat completions API. Its own retries are off, so a
// governed run sees the first transport failure; InvokeModelWithRetry
// opts back in per request.
type Client struct {
	Client  openai.Client
	ModelID string
}

func NewClient(apiKey string, model string, opts ...option.RequestOption) (*Client, error) {
	switch {
	case apiKey == "":
		return nil, fmt.Errorf("OpenAI API key is required")
	case model == "":
		return nil, fmt.Errorf("OpenAI model ID is required")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &Client{Client: openai.NewClient(opts...), ModelID: model}, nil
}

func (c *Client) params(request llm.LLMRequest) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(request.Prompt),
		},
		MaxCompletionTokens: openai.Int(int64(request.MaxTokens)),
		Temperature:         openai.Float(request.Temperature),
		Model:               openai.ChatModel(c.ModelID),
	}
}

func (c *Client) InvokeModel(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	return c.invoke(ctx, request)
}

// InvokeModelWithRetry lets the SDK retry transient failures.
func (c *Client) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	return c.invoke(ctx, request, option.WithMaxRetries(3))
}

func (c *Client) invoke(ctx context.Context, request llm.LLMRequest, opts ...option.RequestOption) (*llm.LLMResponse, error) {
	output, err := c.Client.Chat.Completions.New(ctx, c.params(request), opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to invoke gpt model. Error: %w", err)
	}

	if len(output.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := output.Choices[0]
	return &llm.LLMResponse{
		Content:      choice.Message.Content,
		StopReason:   fmt.Sprint(choice.FinishReason),
		ModelID:      c.ModelID,
		InputTokens:  int(output.Usage.PromptTokens),
		OutputTokens: int(output.Usage.CompletionTokens),
	}, nil
}
