package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/api"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/contract"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// RunService executes one governed run. *runner.Runner satisfies it.
type RunService interface {
	Run(ctx context.Context, req models.RunRequest) (*models.RunRecord, error)
}

// GovernedRunInput is the MCP tool input schema (matches HTTP API field names).
type GovernedRunInput struct {
	Prompt         string `json:"prompt" jsonschema:"user prompt to execute"`
	Mode           string `json:"mode,omitempty" jsonschema:"baseline, governed or hybrid (default: governed)"`
	Grounded       bool   `json:"grounded,omitempty" jsonschema:"allow the model to consult external sources"`
	CorrectionMode *bool  `json:"correction_mode,omitempty" jsonschema:"force correction mode on or off"`
}

// ValidateInput is the MCP tool input schema for contract validation.
type ValidateInput struct {
	Candidate      string `json:"candidate" jsonschema:"JSON text of the object to validate"`
	Grounded       bool   `json:"grounded,omitempty" jsonschema:"validate as a grounded run"`
	CorrectionMode bool   `json:"correction_mode,omitempty" jsonschema:"validate as a correction-mode run"`
	HadRepairs     bool   `json:"had_repairs,omitempty" jsonschema:"the candidate was repaired, so diff_note must be non-empty"`
}

// RepairInput is the MCP tool input schema for local repair.
type RepairInput struct {
	Raw            string `json:"raw" jsonschema:"raw model text to repair into the output contract"`
	Grounded       bool   `json:"grounded,omitempty" jsonschema:"validate the repaired object as a grounded run"`
	CorrectionMode bool   `json:"correction_mode,omitempty" jsonschema:"validate the repaired object as a correction-mode run"`
}

// NewGovernedRunHandler returns a tool handler that uses the given run service.
// Pass the returned function to mcp.AddTool.
func NewGovernedRunHandler(runs RunService) func(context.Context, *mcp.CallToolRequest, GovernedRunInput) (*mcp.CallToolResult, models.RunRecord, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GovernedRunInput) (*mcp.CallToolResult, models.RunRecord, error) {
		return GovernedRun(ctx, runs, req, input)
	}
}

// GovernedRun executes the run and returns its record.
func GovernedRun(
	ctx context.Context,
	runs RunService,
	req *mcp.CallToolRequest,
	input GovernedRunInput,
) (*mcp.CallToolResult, models.RunRecord, error) {
	rec, err := runs.Run(ctx, models.RunRequest{
		Prompt:         input.Prompt,
		Mode:           models.Mode(input.Mode),
		Grounded:       input.Grounded,
		CorrectionMode: input.CorrectionMode,
	})
	if err != nil {
		return nil, models.RunRecord{}, err
	}
	return nil, *rec, nil
}

// NewValidateHandler returns a tool handler for contract validation.
func NewValidateHandler(v *contract.Validator) func(context.Context, *mcp.CallToolRequest, ValidateInput) (*mcp.CallToolResult, models.ValidationResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ValidateInput) (*mcp.CallToolResult, models.ValidationResult, error) {
		var candidate any
		if err := json.Unmarshal([]byte(input.Candidate), &candidate); err != nil {
			return nil, models.ValidationResult{}, fmt.Errorf("candidate is not valid JSON: %w", err)
		}
		result := v.Validate(candidate, contract.ValidationContext{
			Grounded:       input.Grounded,
			CorrectionMode: input.CorrectionMode,
			HadRepairs:     input.HadRepairs,
		})
		return nil, result, nil
	}
}

// NewRepairHandler returns a tool handler for local repair. It never calls
// a model.
func NewRepairHandler(v *contract.Validator) func(context.Context, *mcp.CallToolRequest, RepairInput) (*mcp.CallToolResult, api.RepairResponse, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RepairInput) (*mcp.CallToolResult, api.RepairResponse, error) {
		return nil, api.RepairAndValidate(v, api.RepairRequest{
			Raw:            input.Raw,
			Grounded:       input.Grounded,
			CorrectionMode: input.CorrectionMode,
		}), nil
	}
}

// Register adds every governed-runtime tool to server.
func Register(server *mcp.Server, runs RunService, v *contract.Validator) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "governed_run",
		Description: "Execute a prompt under the governed output contract (baseline, governed or hybrid mode) and return the full run record",
	}, NewGovernedRunHandler(runs))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_contract",
		Description: "Validate a JSON object against the governed output contract and list every violation",
	}, NewValidateHandler(v))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "local_repair",
		Description: "Repair raw model text into the output contract without calling a model, then validate it",
	}, NewRepairHandler(v))
}
