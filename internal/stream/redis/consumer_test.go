package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/executor"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ackRecorder implements only the XAck part of redis.Cmdable.
type ackRecorder struct {
	redis.Cmdable
	acked []string
}

func (a *ackRecorder) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	a.acked = append(a.acked, ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

type stubRuns struct {
	requests []models.RunRequest
	err      error
}

func (s *stubRuns) Run(_ context.Context, req models.RunRequest) (*models.RunRecord, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &models.RunRecord{RunID: "run-1", Status: models.RunCompleted}, nil
}

func newTestConsumer(runs RunService) (*Consumer, *ackRecorder) {
	logger := zerolog.Nop()
	client := &ackRecorder{}
	return NewConsumer(client, Options{}, runs, &logger), client
}

func TestConsumer_Process(t *testing.T) {
	tests := []struct {
		name      string
		values    map[string]any
		runErr    error
		wantRuns  int
		wantAcked bool
	}{
		{
			name:      "valid payload",
			values:    map[string]any{PayloadField: `{"prompt":"hello","mode":"hybrid"}`},
			wantRuns:  1,
			wantAcked: true,
		},
		{
			name:      "missing payload",
			values:    map[string]any{"other": "x"},
			wantAcked: true,
		},
		{
			name:      "bad json",
			values:    map[string]any{PayloadField: `{not json`},
			wantAcked: true,
		},
		{
			name:      "invalid request is dropped",
			values:    map[string]any{PayloadField: `{"prompt":""}`},
			runErr:    fmt.Errorf("%w: prompt is empty", executor.ErrInvalidRequest),
			wantRuns:  1,
			wantAcked: true,
		},
		{
			name:     "model failure left unacked",
			values:   map[string]any{PayloadField: `{"prompt":"hello"}`},
			runErr:   fmt.Errorf("%w: throttled", executor.ErrModelInvocation),
			wantRuns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &stubRuns{err: tt.runErr}
			consumer, client := newTestConsumer(runs)

			consumer.process(context.Background(), redis.XMessage{ID: "1-0", Values: tt.values})

			if len(runs.requests) != tt.wantRuns {
				t.Errorf("expected %d runs, got %d", tt.wantRuns, len(runs.requests))
			}
			if acked := len(client.acked) == 1; acked != tt.wantAcked {
				t.Errorf("acked = %v, want %v", acked, tt.wantAcked)
			}
		})
	}
}

func TestConsumer_DecodesRequest(t *testing.T) {
	runs := &stubRuns{}
	consumer, _ := newTestConsumer(runs)

	consumer.process(context.Background(), redis.XMessage{
		ID:     "1-0",
		Values: map[string]any{PayloadField: `{"prompt":"p","mode":"baseline","grounded":true,"correction_mode":false}`},
	})

	if len(runs.requests) != 1 {
		t.Fatalf("expected one run, got %d", len(runs.requests))
	}
	req := runs.requests[0]
	if req.Mode != models.ModeBaseline || !req.Grounded || req.CorrectionMode == nil || *req.CorrectionMode {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestConsumer_StopRunsHooks(t *testing.T) {
	consumer, _ := newTestConsumer(&stubRuns{})
	called := 0
	consumer.OnStop(func() error { called++; return nil })
	consumer.OnStop(func() error { called++; return errors.New("close failed") })

	if err := consumer.Stop(); err == nil {
		t.Error("expected hook error to be returned")
	}
	if called != 2 {
		t.Errorf("expected both hooks to run, got %d", called)
	}
}

func TestOptions_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "empty",
			in:   Options{},
			want: Options{Stream: DefaultStream, Group: DefaultGroup, Consumer: "consumer-1", BatchSize: 1, Block: 2 * time.Second},
		},
		{
			name: "explicit values kept",
			in:   Options{Stream: "s", Group: "g", Consumer: "c", BatchSize: 10, Block: time.Second},
			want: Options{Stream: "s", Group: "g", Consumer: "c", BatchSize: 10, Block: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
