package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/api"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/setup"
	"github.com/rs/zerolog"
)

// Custom flag for running integration tests with real LLM calls
var runIntegration = flag.Bool("integration", false, "Run integration tests with real LLM API calls")

/*
TEST 1: Governed run end to end
Purpose: A real model call must come back as a contract-valid record
*/
func TestAPI_GovernedRun(t *testing.T) {
	container := setupTestAPI(t)

	body, _ := json.Marshal(models.RunRequest{
		Prompt: "Give three practical tips for reviewing a Go pull request.",
		Mode:   models.ModeGoverned,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	container.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}

	var rec models.RunRecord
	if err := json.Unmarshal(recorder.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if rec.FinalValidation == nil || !rec.FinalValidation.Passed {
		t.Errorf("Expected a passing final validation, got %+v", rec.FinalValidation)
	}
	if rec.Output == nil {
		t.Fatal("Expected structured output")
	}
	if rec.Metrics.BillableCalls > 1+rec.RepairCap {
		t.Errorf("Billable calls %d exceed repair cap %d", rec.Metrics.BillableCalls, rec.RepairCap)
	}
}

/*
TEST 2: Baseline run
Purpose: Baseline mode returns raw text without contract enforcement
*/
func TestAPI_BaselineRun(t *testing.T) {
	container := setupTestAPI(t)

	body, _ := json.Marshal(models.RunRequest{
		Prompt: "What is a goroutine?",
		Mode:   models.ModeBaseline,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	container.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}

	var rec models.RunRecord
	if err := json.Unmarshal(recorder.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if rec.RawOutput == "" {
		t.Error("Expected raw output for baseline run")
	}
	if rec.FinalValidation != nil {
		t.Error("Baseline runs are never validated")
	}
}

// setupTestAPI wires the API against a REAL LLM provider
func setupTestAPI(t *testing.T) *restful.Container {
	if !*runIntegration {
		t.Skip("Skipping integration test - use 'go test -integration' to run with real LLM API calls")
	}

	if err := godotenv.Load("../../.env"); err != nil {
		t.Logf("Warning: No .env file found, using environment variables")
	}

	os.Setenv("SETTINGS_CONFIG_PATH", "../../configs/settings.yaml")
	os.Setenv("PATTERNS_CONFIG_PATH", "../../configs/patterns.yaml")
	os.Setenv("AUDITORS_CONFIG_PATH", "../../configs/auditors.yaml")
	os.Setenv("HISTORY_BACKEND", setup.HistoryMemory)
	// every test wires again; collectors may only register once per process
	os.Setenv("METRICS_ENABLED", "false")

	cfg := setup.LoadConfig()
	if cfg.ModelID() == "" {
		t.Skipf("Skipping integration - no model configured for provider %s", cfg.DefaultProvider)
	}

	logger := zerolog.Nop()
	deps, err := setup.Wire(context.Background(), cfg, &logger)
	if err != nil {
		t.Fatalf("Failed to wire dependencies: %v", err)
	}
	t.Cleanup(deps.Close)
	t.Logf("Using REAL provider=%s model=%s", cfg.DefaultProvider, cfg.ModelID())

	handler := api.NewHandler(deps.Runner, deps.Store, deps.Validator, &logger)
	container := restful.NewContainer()
	api.RegisterRoutes(container, handler)
	return container
}
