package llm

import (
	"context"
	"fmt"
)

// LLMClient is implemented by every provider package. InvokeModel is a
// single call; InvokeModelWithRetry wraps it in the provider's backoff.
type LLMClient interface {
	InvokeModel(ctx context.Context, request LLMRequest) (*LLMResponse, error)
	InvokeModelWithRetry(ctx context.Context, request LLMRequest) (*LLMResponse, error)
}

// Invoker adapts an LLMClient to the single-shot call the orchestrator
// makes. It never retries.
type Invoker struct {
	client      LLMClient
	modelID     string
	maxTokens   int
	temperature float64
}

func NewInvoker(client LLMClient, modelID string, maxTokens int, temperature float64) *Invoker {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Invoker{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (i *Invoker) Invoke(ctx context.Context, prompt string, grounded bool) (*LLMResponse, error) {
	resp, err := i.client.InvokeModel(ctx, LLMRequest{
		Prompt:      prompt,
		MaxTokens:   i.maxTokens,
		Temperature: i.temperature,
		Grounded:    grounded,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("model %s returned no response", i.modelID)
	}
	if resp.ModelID == "" {
		resp.ModelID = i.modelID
	}
	return resp, nil
}

func (i *Invoker) ModelID() string {
	return i.modelID
}
