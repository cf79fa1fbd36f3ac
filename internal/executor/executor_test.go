package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/config"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/events"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/executor/mocks"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/llm"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

const validOutput = `{
  "canonical_answer": ["Use a bounded connection pool."],
  "three_perspectives": {
    "optimizer": ["Pooling removes handshake latency."],
    "skeptic": ["An oversized pool can exhaust the database."],
    "operator": ["Start at twice the core count and measure."]
  },
  "unknowns_and_checks": ["Peak concurrency is unknown."],
  "next_steps": ["Load test with the production traffic shape."],
  "sources": {"used": false, "items": [], "note": "Sources: None (no external sources consulted)."},
  "risk": {"level": "low", "safe_mode_applied": false},
  "diff_note": ["Rewrote the answer after validation feedback."]
}`

const invalidOutput = `{"canonical_answer": [], "risk": {"level": "extreme"}}`

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type countingObserver struct {
	events.NopObserver
	modelCalls  int
	validations int
	repairs     int
	completed   []*models.RunRecord
}

func (c *countingObserver) OnModelCall(events.ModelCall)         { c.modelCalls++ }
func (c *countingObserver) OnValidation(events.Validation)       { c.validations++ }
func (c *countingObserver) OnRepairAttempt(events.RepairAttempt) { c.repairs++ }
func (c *countingObserver) OnRunCompleted(r *models.RunRecord) {
	c.completed = append(c.completed, r)
}

type fixture struct {
	invoker  *mocks.MockModelInvoker
	history  *mocks.MockHistoryStore
	settings *mocks.MockSettingsProvider
	observer *countingObserver
	orch     *Orchestrator
}

func newFixture(t *testing.T, repairCap int) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		invoker:  mocks.NewMockModelInvoker(ctrl),
		history:  mocks.NewMockHistoryStore(ctrl),
		settings: mocks.NewMockSettingsProvider(ctrl),
		observer: &countingObserver{},
	}
	f.invoker.EXPECT().ModelID().Return("test-model").AnyTimes()
	f.settings.EXPECT().Load().Return(config.Settings{RepairCap: repairCap}, nil).AnyTimes()
	f.orch = NewOrchestrator(f.invoker, f.history, f.settings, nil, f.observer, newTestLogger())
	return f
}

func reply(content string) *llm.LLMResponse {
	return &llm.LLMResponse{Content: content, InputTokens: 10, OutputTokens: 20}
}

func TestExecute_CallBoundPerRepairCap(t *testing.T) {
	for _, repairCap := range []int{0, 1, 2} {
		t.Run(fmt.Sprintf("repair_cap_%d", repairCap), func(t *testing.T) {
			f := newFixture(t, repairCap)
			f.invoker.EXPECT().
				Invoke(gomock.Any(), gomock.Any(), false).
				Return(reply(invalidOutput), nil).
				Times(repairCap + 1)
			f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

			rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "How big should my pool be?"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rec.Attempts) != repairCap+1 {
				t.Errorf("expected %d attempts, got %d", repairCap+1, len(rec.Attempts))
			}
			if rec.Repairs != repairCap {
				t.Errorf("expected %d repairs, got %d", repairCap, rec.Repairs)
			}
			if !rec.SafeModeApplied || rec.Status != models.RunSafeMode {
				t.Errorf("expected safe mode, got status %s", rec.Status)
			}
			if f.observer.repairs != repairCap {
				t.Errorf("expected %d repair events, got %d", repairCap, f.observer.repairs)
			}
			if rec.Metrics.BillableCalls != repairCap+1 || rec.Metrics.RepairCalls != repairCap {
				t.Errorf("unexpected metrics %+v", rec.Metrics)
			}
		})
	}
}

func TestExecute_SafeModeOutputIsValid(t *testing.T) {
	f := newFixture(t, 0)
	f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(reply("not json at all"), nil)
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "Explain retries", Grounded: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Output == nil {
		t.Fatal("expected safe mode output")
	}
	v := contract.NewValidator(nil)
	res := v.ValidateOutput(*rec.Output, contract.ValidationContext{Grounded: true, CorrectionMode: true, HadRepairs: true})
	if !res.Passed {
		t.Errorf("safe mode output must validate, got %v", res.Errors)
	}
	if !strings.HasPrefix(rec.Attempts[0].Errors[0], "response is not valid JSON") {
		t.Errorf("unexpected attempt errors %v", rec.Attempts[0].Errors)
	}
}

func TestExecute_RepairSucceeds(t *testing.T) {
	f := newFixture(t, 2)
	gomock.InOrder(
		f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), false).Return(reply(invalidOutput), nil),
		f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), false).DoAndReturn(
			func(_ context.Context, prompt string, _ bool) (*llm.LLMResponse, error) {
				if !strings.Contains(prompt, "risk.level must be one of low, medium, high") {
					t.Errorf("repair prompt must carry the validation errors")
				}
				if !strings.Contains(prompt, invalidOutput) {
					t.Errorf("repair prompt must carry the previous output")
				}
				return reply(validOutput), nil
			}),
	)
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "How big should my pool be?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != models.RunCompleted || rec.SafeModeApplied {
		t.Fatalf("expected completed run, got %s", rec.Status)
	}
	if rec.Repairs != 1 || len(rec.Attempts) != 2 {
		t.Errorf("expected 1 repair and 2 attempts, got %d and %d", rec.Repairs, len(rec.Attempts))
	}
	if rec.Attempts[1].Kind != models.AttemptRepair || !rec.Attempts[1].OK {
		t.Errorf("unexpected repair attempt %+v", rec.Attempts[1])
	}
	if !rec.FinalValidation.Passed {
		t.Errorf("final validation must pass")
	}
	if rec.Output.CanonicalAnswer[0] != "Use a bounded connection pool." {
		t.Errorf("unexpected output %+v", rec.Output)
	}
}

func TestExecute_OneParagraphNoSources(t *testing.T) {
	f := newFixture(t, 1)
	f.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), false).
		DoAndReturn(func(_ context.Context, prompt string, _ bool) (*llm.LLMResponse, error) {
			if !strings.Contains(prompt, contract.NoteNoSources) {
				t.Errorf("contract prompt must embed the no-sources note")
			}
			return reply("```json\n" + validOutput + "\n```"), nil
		})
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{
		Prompt:   "Explain connection pooling in one paragraph only, no sources.",
		Grounded: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Grounded {
		t.Errorf("a prompt forbidding sources must not run grounded")
	}
	if rec.Status != models.RunCompleted || len(rec.Attempts) != 1 {
		t.Fatalf("expected single passing attempt, got %s with %d attempts", rec.Status, len(rec.Attempts))
	}
	if rec.Output.Sources.Used || rec.Output.Sources.Note != contract.NoteNoSources {
		t.Errorf("unexpected sources %+v", rec.Output.Sources)
	}
	if got := rec.Attempts[0].RepairsApplied; len(got) == 0 || got[0] != "strip_code_fences" {
		t.Errorf("expected code fences to be stripped locally, got %v", got)
	}
}

func TestExecute_LocalRepairDoesNotSpendBudget(t *testing.T) {
	f := newFixture(t, 0)
	messy := "Here you go:\n" + strings.Replace(validOutput, `"low", "safe_mode_applied": false}`, `"low", "safe_mode_applied": false,}`, 1)
	f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(reply(messy), nil).Times(1)
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != models.RunCompleted || rec.Repairs != 0 {
		t.Fatalf("expected local repair to succeed without model repairs, got %s / %d", rec.Status, rec.Repairs)
	}
	if len(rec.Attempts[0].RepairsApplied) < 2 {
		t.Errorf("expected several local repairs, got %v", rec.Attempts[0].RepairsApplied)
	}
}

func TestExecute_SynthesizedFieldsRequireDiffNote(t *testing.T) {
	f := newFixture(t, 0)
	partial := `{
  "canonical_answer": ["Use a bounded connection pool."],
  "three_perspectives": {"optimizer": ["Fast."], "skeptic": ["Risky."], "operator": ["Measure."]},
  "next_steps": ["Load test."],
  "sources": {"used": false, "items": [], "note": "Sources: None (no external sources consulted)."}
}`
	f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(reply(partial), nil)
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != models.RunCompleted {
		t.Fatalf("expected completed run, got %s: %v", rec.Status, rec.FinalValidation.Errors)
	}
	if len(rec.Attempts[0].SynthesizedFields) == 0 {
		t.Errorf("expected synthesized fields to be recorded")
	}
	if len(rec.Output.DiffNote) == 0 {
		t.Errorf("synthesized output must carry a diff note")
	}
}

func TestExecute_ModelErrorIsFatal(t *testing.T) {
	f := newFixture(t, 2)
	transport := errors.New("connection reset")
	f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, transport).Times(1)
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *models.RunRecord) error {
			if rec.Status != models.RunFailed {
				t.Errorf("failed run must be recorded as failed, got %s", rec.Status)
			}
			return nil
		})

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if !errors.Is(err, ErrModelInvocation) || !errors.Is(err, transport) {
		t.Fatalf("expected wrapped model invocation error, got %v", err)
	}
	if rec == nil || rec.SafeModeApplied || rec.Output != nil {
		t.Errorf("a transport failure must not produce safe mode output: %+v", rec)
	}
	if len(f.observer.completed) != 1 {
		t.Errorf("observers must see the failed run")
	}
}

func TestExecute_SettingsErrorIsContractBuildFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	invoker := mocks.NewMockModelInvoker(ctrl)
	history := mocks.NewMockHistoryStore(ctrl)
	settings := mocks.NewMockSettingsProvider(ctrl)
	invoker.EXPECT().ModelID().Return("test-model").AnyTimes()
	settings.EXPECT().Load().Return(config.Settings{}, errors.New("bad yaml"))
	history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	orch := NewOrchestrator(invoker, history, settings, nil, nil, newTestLogger())
	_, err := orch.Execute(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if !errors.Is(err, ErrContractBuild) {
		t.Fatalf("expected contract build error, got %v", err)
	}
}

func TestExecute_HistoryFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, 1)
	f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(reply(validOutput), nil)
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "pool size?"})
	if err != nil {
		t.Fatalf("history errors must not surface: %v", err)
	}
	if rec.Status != models.RunCompleted {
		t.Errorf("expected completed, got %s", rec.Status)
	}
}

func TestExecute_Baseline(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected models.ResponseType
	}{
		{name: "plain text", content: "Use a pool of about twenty connections.", expected: models.ResponseText},
		{name: "html error page", content: "<!DOCTYPE html><html><body>502 Bad Gateway</body></html>", expected: models.ResponseNonJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			prompt := "How big should my pool be?"
			f.invoker.EXPECT().Invoke(gomock.Any(), prompt, false).Return(reply(tt.content), nil).Times(1)
			f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

			rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: prompt, Mode: models.ModeBaseline})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.ResponseType != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, rec.ResponseType)
			}
			if rec.RawOutput != tt.content || rec.Output != nil || rec.FinalValidation != nil {
				t.Errorf("baseline must keep the raw output only: %+v", rec)
			}
			if f.observer.validations != 0 {
				t.Errorf("baseline must not validate")
			}
		})
	}
}

func TestExecute_HybridNeverSpendsRepairCalls(t *testing.T) {
	f := newFixture(t, 2)
	f.invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(reply(invalidOutput), nil).Times(1)
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "pool size?", Mode: models.ModeHybrid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.RepairCap != 0 || rec.Repairs != 0 || !rec.SafeModeApplied {
		t.Errorf("hybrid must fall to safe mode without repair calls: %+v", rec)
	}
}

func TestExecute_InvalidRequest(t *testing.T) {
	f := newFixture(t, 1)
	for _, req := range []models.RunRequest{
		{Prompt: "   "},
		{Prompt: "hi", Mode: "turbo"},
	} {
		if _, err := f.orch.Execute(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("expected invalid request for %+v, got %v", req, err)
		}
	}
}

func TestExecute_CorrectionModeDetected(t *testing.T) {
	f := newFixture(t, 0)
	f.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, prompt string, _ bool) (*llm.LLMResponse, error) {
			if !strings.Contains(prompt, "Correction mode") {
				t.Errorf("contract prompt must flag correction mode")
			}
			return reply(validOutput), nil
		})
	f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "That's wrong, the pool was too small."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.CorrectionMode || rec.Status != models.RunCompleted {
		t.Errorf("expected correction mode completed run, got %+v", rec)
	}
}

func TestClassifyBaseline(t *testing.T) {
	tests := []struct {
		in       string
		expected models.ResponseType
	}{
		{"hello", models.ResponseText},
		{`{"a": 1}`, models.ResponseText},
		{"  <html><head></head></html>", models.ResponseNonJSON},
		{"<?xml version=\"1.0\"?><error/>", models.ResponseNonJSON},
	}
	for _, tt := range tests {
		if got := ClassifyBaseline(tt.in); got != tt.expected {
			t.Errorf("ClassifyBaseline(%q) = %s, want %s", tt.in, got, tt.expected)
		}
	}
}

func TestExecuteWith_UsesSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	invoker := mocks.NewMockModelInvoker(ctrl)
	history := mocks.NewMockHistoryStore(ctrl)
	settings := mocks.NewMockSettingsProvider(ctrl)
	invoker.EXPECT().ModelID().Return("test-model").AnyTimes()
	settings.EXPECT().Load().Times(0)
	invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(reply(invalidOutput), nil).Times(3)
	history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	orch := NewOrchestrator(invoker, history, settings, nil, nil, newTestLogger())
	rec, err := orch.ExecuteWith(context.Background(), models.RunRequest{Prompt: "pool size?"}, config.Settings{RepairCap: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.RepairCap != 2 || rec.Repairs != 2 {
		t.Errorf("expected the snapshot repair cap, got %d / %d", rec.RepairCap, rec.Repairs)
	}
}

func TestExecute_UngroundedSourcesTriggerRepair(t *testing.T) {
	sourced := strings.Replace(validOutput,
		`"sources": {"used": false, "items": [], "note": "Sources: None (no external sources consulted)."}`,
		`"sources": {"used": true, "items": [{"title": "Pool guide", "url": "https://example.com/pool"}], "note": "Sources: See listed sources."}`, 1)

	tests := []struct {
		name       string
		repairCap  int
		replies    []string
		wantStatus models.RunStatus
	}{
		{name: "repair drops the sources", repairCap: 1, replies: []string{sourced, validOutput}, wantStatus: models.RunCompleted},
		{name: "no budget ends in safe mode", repairCap: 0, replies: []string{sourced}, wantStatus: models.RunSafeMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.repairCap)
			calls := 0
			f.invoker.EXPECT().
				Invoke(gomock.Any(), gomock.Any(), false).
				DoAndReturn(func(context.Context, string, bool) (*llm.LLMResponse, error) {
					calls++
					return reply(tt.replies[calls-1]), nil
				}).
				Times(len(tt.replies))
			f.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

			rec, err := f.orch.Execute(context.Background(), models.RunRequest{Prompt: "Answer without sources: how big should my pool be?"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Grounded {
				t.Fatalf("run must not be grounded")
			}
			if rec.Status != tt.wantStatus {
				t.Fatalf("expected status %s, got %s", tt.wantStatus, rec.Status)
			}
			found := false
			for _, e := range rec.Attempts[0].Errors {
				if e == "sources.used must be false when grounding is disabled" {
					found = true
				}
			}
			if !found {
				t.Errorf("expected grounding error on first attempt, got %v", rec.Attempts[0].Errors)
			}
			if rec.Output.Sources.Used {
				t.Errorf("final output must not claim sources, got %+v", rec.Output.Sources)
			}
		})
	}
}

func TestExecuteWith_RejectsOutOfRangeSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	invoker := mocks.NewMockModelInvoker(ctrl)
	history := mocks.NewMockHistoryStore(ctrl)
	settings := mocks.NewMockSettingsProvider(ctrl)
	invoker.EXPECT().ModelID().Return("test-model").AnyTimes()
	invoker.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	settings.EXPECT().Load().Times(0)
	history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	orch := NewOrchestrator(invoker, history, settings, nil, nil, newTestLogger())
	for _, repairCap := range []int{-1, config.MaxRepairCap + 1, 7} {
		t.Run(fmt.Sprintf("repair_cap_%d", repairCap), func(t *testing.T) {
			rec, err := orch.ExecuteWith(context.Background(), models.RunRequest{Prompt: "pool size?"}, config.Settings{RepairCap: repairCap})
			if !errors.Is(err, ErrContractBuild) {
				t.Fatalf("expected contract build error, got %v", err)
			}
			if len(rec.Attempts) != 0 {
				t.Errorf("expected no model calls, got %d attempts", len(rec.Attempts))
			}
		})
	}
}
