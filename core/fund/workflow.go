package fund

import (
	"fmt"
	"time"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

// Seed returns the initial status and approval stages of a transaction of `amount`.
// Amounts at or above the threshold go through District, State and Central sign-off;
// smaller ones start approved with no stages.
func Seed(amount, threshold float64) (string, []Stage) {
	if amount < threshold {
		return StatusApproved, []Stage{}
	}
	return StatusPending, pendingStages()
}

func pendingStages() []Stage {
	stages := make([]Stage, 0, len(Levels))
	for _, lvl := range Levels {
		stages = append(stages, Stage{Level: lvl, Status: StatusPending})
	}
	return stages
}

// LevelFor maps a role to the approval stage it signs ("" when it signs none).
func LevelFor(role string) string {
	switch role {
	case user.RoleDistrictCollector, user.RoleDistrictPACCAdmin:
		return LevelDistrict
	case user.RoleStateNodalAdmin, user.RoleStateSCCorporationAdmin:
		return LevelState
	case user.RoleCentralAdmin, user.RoleSuperAdmin:
		return LevelCentral
	default:
		return ""
	}
}

func (tx Transaction) IsTerminal() bool {
	return tx.Status != StatusPending
}

// NextLevel is the level of the stage the transaction is waiting on ("" when settled).
func (tx Transaction) NextLevel() string {
	if tx.IsTerminal() {
		return ""
	}
	for _, st := range tx.ApprovalWorkflow {
		if st.Status == StatusPending {
			return st.Level
		}
	}
	return ""
}

// Act records the decision of approver on the stage of `level`.
// Stages are signed in order; a rejection settles the transaction as Rejected and leaves
// later stages untouched, the last approval settles it as Approved.
// Nothing is changed when an error is returned.
func (tx *Transaction) Act(level, approver, action, comments string, at time.Time) error {
	if tx.IsTerminal() {
		return core.NewStateError("transaction is already %s", tx.Status)
	}
	if level == "" {
		return core.NewForbiddenError("your role has no fund approval level")
	}
	if action != StatusApproved && action != StatusRejected {
		return core.NewValidationError(nil, core.FieldError{Field: "action", Error: "must be Approved or Rejected"})
	}

	idx := -1
	for i, st := range tx.ApprovalWorkflow {
		if st.Level == level {
			idx = i
			break
		}
		if st.Status != StatusApproved {
			return core.NewStateError("the %s approval is still %s", st.Level, st.Status)
		}
	}
	if idx < 0 {
		return core.NewStateError("transaction has no %s approval stage", level)
	}
	st := &tx.ApprovalWorkflow[idx]
	if st.Status != StatusPending {
		return core.NewStateError("the %s approval has already been %s", level, st.Status)
	}

	st.Status = action
	st.Approver = approver
	st.Comments = comments
	st.Timestamp = &at

	auditAction := AuditStageApproved
	if action == StatusRejected {
		auditAction = AuditStageRejected
	}
	details := fmt.Sprintf("%s stage %s", level, action)
	if comments != "" {
		details += ": " + comments
	}
	tx.audit(auditAction, approver, details, at)

	tx.aggregate(approver)
	tx.UpdatedAt = at
	return nil
}

// aggregate derives the overall status from the stages.
func (tx *Transaction) aggregate(lastApprover string) {
	allApproved := true
	for _, st := range tx.ApprovalWorkflow {
		if st.Status == StatusRejected {
			tx.Status = StatusRejected
			return
		}
		if st.Status != StatusApproved {
			allApproved = false
		}
	}
	if allApproved {
		tx.Status = StatusApproved
		tx.ApprovedBy = lastApprover
	}
}

// Advance moves an approved transaction to In Transit and then Completed.
func (tx *Transaction) Advance(status, by, details string, at time.Time) error {
	var from string
	switch status {
	case StatusInTransit:
		from = StatusApproved
	case StatusCompleted:
		from = StatusInTransit
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be In Transit or Completed"})
	}
	if tx.Status != from {
		return core.NewStateError("a %s transaction cannot move to %s", tx.Status, status)
	}

	msg := fmt.Sprintf("%s -> %s", tx.Status, status)
	if details != "" {
		msg += ": " + details
	}
	tx.Status = status
	tx.audit(AuditStatusChanged, by, msg, at)
	tx.UpdatedAt = at
	return nil
}

func (tx *Transaction) audit(action, by, details string, at time.Time) {
	tx.AuditTrail = append(tx.AuditTrail, AuditEntry{
		Action:      action,
		PerformedBy: by,
		Timestamp:   at,
		Details:     details,
	})
}

// FinancialDeltas returns how much settling tx as approved adds to the project's released and
// utilized counters.
func (tx Transaction) FinancialDeltas() (released, utilized float64) {
	switch tx.TransactionType {
	case TypeRelease:
		return tx.Amount, 0
	case TypeUtilization:
		return 0, tx.Amount
	default:
		return 0, 0
	}
}
