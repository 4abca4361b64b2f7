package agents

import (
	"fmt"

	"github.com/alanmaizon/slidebuddy/internal/domain"
)

// Plan lays out the steps for one directive. A mutating directive always
// snapshots before it executes; everything else only responds.
func Plan(d domain.Directive) ([]domain.PlanStep, error) {
	steps := make([]domain.PlanStep, 0, 3)

	switch {
	case d.NeedsClarification, d.Operation == domain.OpUnclear:
		steps = append(steps, domain.PlanStep{ID: "step-1", Role: domain.RoleResponder, Action: "clarify"})
	case d.Operation == domain.OpUndo:
		steps = append(steps,
			domain.PlanStep{ID: "step-1", Role: domain.RoleReverter, Action: "revert_latest"},
			domain.PlanStep{ID: "step-2", Role: domain.RoleResponder, Action: "report_revert"},
		)
	case d.Mutates():
		steps = append(steps,
			domain.PlanStep{ID: "step-1", Role: domain.RoleSnapshot, Action: "capture_scope"},
			domain.PlanStep{ID: "step-2", Role: domain.RoleExecutor, Action: string(d.Operation)},
			domain.PlanStep{ID: "step-3", Role: domain.RoleResponder, Action: "report_result"},
		)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", d.Operation)
	}

	return steps, nil
}
