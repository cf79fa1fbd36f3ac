package executor

import (
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// state is one node of the run state machine. Each concrete type carries
// only the data its step needs.
type state interface {
	name() string
}

type stateBuildContract struct{}

type stateCallModel struct {
	kind   models.AttemptKind
	prompt string
}

type stateLocalRepair struct {
	attempt models.Attempt
	raw     string
}

type stateValidate struct {
	attempt     models.Attempt
	candidate   any
	parseError  string
	synthesized bool
	localMs     float64
}

type stateRepairLoop struct{}

type stateSafeMode struct{}

type stateEmitEvidence struct{}

type stateDone struct{}

type stateFailed struct {
	err error
}

func (stateBuildContract) name() string { return "BUILD_CONTRACT" }
func (stateCallModel) name() string     { return "CALL_MODEL" }
func (stateLocalRepair) name() string   { return "LOCAL_REPAIR" }
func (stateValidate) name() string      { return "VALIDATE" }
func (stateRepairLoop) name() string    { return "REPAIR_LOOP" }
func (stateSafeMode) name() string      { return "SAFE_MODE" }
func (stateEmitEvidence) name() string  { return "EMIT_EVIDENCE" }
func (stateDone) name() string          { return "DONE" }
func (stateFailed) name() string        { return "FAILED" }

func terminal(s state) bool {
	_, ok := s.(stateDone)
	return ok
}
