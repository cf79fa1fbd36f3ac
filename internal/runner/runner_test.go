package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/audit"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/executor"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/history"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
)

const answer = `{
  "canonical_answer": ["Size the pool to twice the core count."],
  "three_perspectives": {
    "optimizer": ["Fewer handshakes."],
    "skeptic": ["Too many connections hurt the database."],
    "operator": ["Watch the wait time metric."]
  },
  "unknowns_and_checks": [],
  "next_steps": ["Measure under load."],
  "sources": {"used": false, "items": [], "note": "Sources: None (no external sources consulted)."},
  "risk": {"level": "low", "safe_mode_applied": false},
  "diff_note": []
}`

type scriptedInvoker struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (s *scriptedInvoker) Invoke(context.Context, string, bool) (*llm.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return &llm.LLMResponse{Content: r}, nil
}

func (s *scriptedInvoker) ModelID() string { return "scripted" }

type auditClient struct{}

func (auditClient) InvokeModel(context.Context, llm.LLMRequest) (*llm.LLMResponse, error) {
	return &llm.LLMResponse{Content: `{"score": 0.9, "reason": "consistent"}`}, nil
}

func (a auditClient) InvokeModelWithRetry(ctx context.Context, req llm.LLMRequest) (*llm.LLMResponse, error) {
	return a.InvokeModel(ctx, req)
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func newRunner(t *testing.T, invoker executor.ModelInvoker, settings config.Settings) (*Runner, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore()
	provider := config.StaticSettings(settings)
	orch := executor.NewOrchestrator(invoker, store, provider, nil, nil, newTestLogger())

	cfg := config.AuditorConfiguration{Name: "faithfulness", Enabled: true, Prompt: "{{.Answer}}", Model: &config.ModelConfig{MaxTokens: 64}}
	auditors, err := audit.BuildFromConfig(&config.AuditorsConfig{Auditors: config.Auditors{Evaluators: []config.AuditorConfiguration{cfg}}}, auditClient{}, newTestLogger())
	if err != nil {
		t.Fatalf("BuildFromConfig: %v", err)
	}
	pipeline := audit.NewPipeline(auditors, "auditor-model", newTestLogger())

	return New(orch, store, provider, nil, nil, pipeline, newTestLogger()), store
}

func TestRunner_AttachesTelemetry(t *testing.T) {
	r, store := newRunner(t, &scriptedInvoker{replies: []string{answer}}, config.Settings{
		RepairCap: 1,
		Audit:     config.AuditSettings{Enabled: true, Depth: config.AuditDepthQuick},
	})

	first, err := r.Run(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.Telemetry == nil {
		t.Fatal("expected telemetry on the returned record")
	}
	if first.Telemetry.Drift.Stability != nil {
		t.Errorf("first run has no prior to compare with")
	}
	if first.Telemetry.Audit == nil || first.Telemetry.Audit.Verdict != models.VerdictPass {
		t.Errorf("expected a passing audit, got %+v", first.Telemetry.Audit)
	}

	second, err := r.Run(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := second.Telemetry.Drift.Stability; s == nil || *s != 1 {
		t.Errorf("identical answers must be fully stable, got %v", s)
	}

	stored, err := store.Get(context.Background(), second.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Telemetry == nil || stored.Telemetry.Drift.StabilityPriorRun != first.RunID {
		t.Errorf("stored telemetry must reference the prior run, got %+v", stored.Telemetry)
	}
	if stored.Status != models.RunCompleted || stored.Output == nil {
		t.Errorf("core fields must be unchanged by annotation")
	}
}

func TestRunner_AuditDisabled(t *testing.T) {
	r, _ := newRunner(t, &scriptedInvoker{replies: []string{answer}}, config.Settings{RepairCap: 1})
	rec, err := r.Run(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Telemetry.Audit != nil {
		t.Errorf("audit must not run when disabled")
	}
}

func TestRunner_FailedRunHasNoTelemetry(t *testing.T) {
	r, store := newRunner(t, &scriptedInvoker{err: errors.New("dial tcp: refused")}, config.Settings{RepairCap: 1})

	rec, err := r.Run(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if !errors.Is(err, executor.ErrModelInvocation) {
		t.Fatalf("expected model invocation error, got %v", err)
	}
	if rec == nil || rec.Telemetry != nil {
		t.Fatalf("failed runs are returned without telemetry, got %+v", rec)
	}

	runs, _ := store.ListByPrompt(context.Background(), rec.PromptHash)
	if len(runs) != 1 || runs[0].Status != models.RunFailed {
		t.Errorf("the failed run must still be recorded, got %+v", runs)
	}
}

func TestRunner_ModeDivergence(t *testing.T) {
	r, _ := newRunner(t, &scriptedInvoker{replies: []string{"Size the pool to twice the core count.", answer}}, config.Settings{RepairCap: 0})

	if _, err := r.Run(context.Background(), models.RunRequest{Prompt: "pool size?", Mode: models.ModeBaseline}); err != nil {
		t.Fatalf("baseline run: %v", err)
	}
	rec, err := r.Run(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if err != nil {
		t.Fatalf("governed run: %v", err)
	}
	div := rec.Telemetry.Drift.ModeDivergence
	if len(div) != 1 || div[0].ModeA != models.ModeBaseline || div[0].ModeB != models.ModeGoverned {
		t.Errorf("expected one baseline/governed pair, got %+v", div)
	}
}
