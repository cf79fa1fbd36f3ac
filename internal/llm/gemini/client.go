package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"google.golang.org/genai"
)

type Client struct {
	client  *genai.Client
	ModelID string
	Retry   llm.RetryPolicy
}

func NewClient(ctx context.Context, apiKey string, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if modelID == "" {
		return nil, fmt.Errorf("Gemini model ID is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:  client,
		ModelID: modelID,
		Retry:   llm.DefaultRetryPolicy(),
	}, nil
}

// generateConfig enables the Google Search tool for grounded requests.
func generateConfig(request llm.LLMRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(request.Temperature)),
		MaxOutputTokens: int32(request.MaxTokens),
	}
	if request.Grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

func (c *Client) InvokeModel(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.ModelID, genai.Text(request.Prompt), generateConfig(request))
	if err != nil {
		return nil, fmt.Errorf("unable to invoke gemini model. Error: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	out := &llm.LLMResponse{
		Content:    strings.TrimSpace(resp.Text()),
		StopReason: string(resp.Candidates[0].FinishReason),
		ModelID:    c.ModelID,
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (c *Client) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	return llm.Retry(ctx, c.Retry, func(ctx context.Context) (*llm.LLMResponse, error) {
		return c.InvokeModel(ctx, request)
	})
}
