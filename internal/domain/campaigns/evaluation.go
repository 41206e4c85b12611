package campaigns

import "fmt"

// EvaluationContext collects per-prompt suppression reasons for one evaluation pass.
// It is created per request and returned with the decisions.
type EvaluationContext struct {
	Reasons map[string][]string `json:"reasons"`
}

// NewEvaluationContext returns an empty context.
func NewEvaluationContext() *EvaluationContext {
	return &EvaluationContext{Reasons: make(map[string][]string)}
}

// Suppress records a reason against a prompt.
func (e *EvaluationContext) Suppress(promptID, format string, args ...any) {
	if e == nil {
		return
	}
	e.Reasons[promptID] = append(e.Reasons[promptID], fmt.Sprintf(format, args...))
}

// ReasonsFor returns the reasons recorded against a prompt.
func (e *EvaluationContext) ReasonsFor(promptID string) []string {
	if e == nil {
		return nil
	}
	return e.Reasons[promptID]
}

// Decision is the outcome for one prompt.
type Decision struct {
	PromptID string `json:"prompt_id"`
	Visible  bool   `json:"visible"`
}

// EvaluationResult is the outcome of one evaluation pass over the prompts of a page.
type EvaluationResult struct {
	Decisions             []Decision
	BestPrioritySegmentID string
	ClientIDs             []string
	Context               *EvaluationContext
}

// Visibility returns the decisions as {promptId: visible}.
func (r *EvaluationResult) Visibility() map[string]bool {
	out := make(map[string]bool, len(r.Decisions))
	for _, d := range r.Decisions {
		out[d.PromptID] = d.Visible
	}
	return out
}
