package llm

type LLMRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Grounded lets providers with a native search tool enable it.
	Grounded bool
}

type LLMResponse struct {
	Content      string
	StopReason   string
	ModelID      string
	InputTokens  int
	OutputTokens int
}
