package audit

import (
	"context"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

// Subject is the template data every auditor prompt can reference.
type Subject struct {
	RunID    string
	Prompt   string
	Mode     models.Mode
	Grounded bool
	Answer   string
	Sources  []models.SourceItem
}

type Auditor interface {
	Audit(ctx context.Context, subject Subject) models.AuditFinding
	Name() string
}
