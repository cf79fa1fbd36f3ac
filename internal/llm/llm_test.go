package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClient struct {
	calls   int
	request LLMRequest
	resp    *LLMResponse
	err     error
}

func (s *stubClient) InvokeModel(_ context.Context, request LLMRequest) (*LLMResponse, error) {
	s.calls++
	s.request = request
	return s.resp, s.err
}

func (s *stubClient) InvokeModelWithRetry(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	return s.InvokeModel(ctx, request)
}

func TestInvoker_PassesGroundingAndDefaults(t *testing.T) {
	stub := &stubClient{resp: &LLMResponse{Content: "{}"}}
	inv := NewInvoker(stub, "model-a", 0, 0.1)

	resp, err := inv.Invoke(context.Background(), "hello", true)
	if err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}
	if !stub.request.Grounded || stub.request.MaxTokens != 2048 || stub.request.Prompt != "hello" {
		t.Errorf("unexpected request: %+v", stub.request)
	}
	if resp.ModelID != "model-a" || inv.ModelID() != "model-a" {
		t.Errorf("expected model id to be filled, got %q", resp.ModelID)
	}
}

func TestInvoker_NeverRetries(t *testing.T) {
	stub := &stubClient{err: errors.New("503 service unavailable")}
	inv := NewInvoker(stub, "model-a", 128, 0)

	if _, err := inv.Invoke(context.Background(), "hello", false); err == nil {
		t.Fatal("expected error")
	}
	if stub.calls != 1 {
		t.Errorf("expected exactly one call, got %d", stub.calls)
	}
}

func TestInvoker_NilResponse(t *testing.T) {
	inv := NewInvoker(&stubClient{}, "model-a", 128, 0)
	if _, err := inv.Invoke(context.Background(), "hello", false); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("retryable then success", func(t *testing.T) {
		calls := 0
		resp, err := Retry(context.Background(), policy, func(context.Context) (*LLMResponse, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("ThrottlingException: slow down")
			}
			return &LLMResponse{Content: "ok"}, nil
		})
		if err != nil || resp.Content != "ok" || calls != 2 {
			t.Errorf("expected success on second call, got resp=%v err=%v calls=%d", resp, err, calls)
		}
	})

	t.Run("non retryable stops", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), policy, func(context.Context) (*LLMResponse, error) {
			calls++
			return nil, errors.New("ValidationException: bad input")
		})
		if err == nil || calls != 1 {
			t.Errorf("expected one call and an error, got calls=%d err=%v", calls, err)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), policy, func(context.Context) (*LLMResponse, error) {
			calls++
			return nil, errors.New("connection reset by peer")
		})
		if err == nil || calls != 3 {
			t.Errorf("expected 3 calls and an error, got calls=%d err=%v", calls, err)
		}
	})
}

func TestCalculateBackoff_Capped(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := CalculateBackoff(attempt, 100*time.Millisecond, time.Second)
		if d > 1200*time.Millisecond {
			t.Errorf("attempt %d: backoff %v exceeds cap plus jitter", attempt, d)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := map[string]int{"": 0, "abc": 1, "abcd": 1, "abcde": 2}
	for in, want := range tests {
		if got := EstimateTokens(in); got != want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
}
