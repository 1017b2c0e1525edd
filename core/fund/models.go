package fund

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pmajay/core"
)

// Transaction types
const (
	TypeRelease     = "Release"
	TypeUtilization = "Utilization"
	TypeRefund      = "Refund"
	TypeTransfer    = "Transfer"
)

// Transaction statuses
const (
	StatusPending   = "Pending"
	StatusApproved  = "Approved"
	StatusRejected  = "Rejected"
	StatusInTransit = "In Transit"
	StatusCompleted = "Completed"
)

// Approval levels, in workflow order
const (
	LevelDistrict = "District"
	LevelState    = "State"
	LevelCentral  = "Central"
)

// Audit actions
const (
	AuditCreated       = "created"
	AuditStageApproved = "stage_approved"
	AuditStageRejected = "stage_rejected"
	AuditStatusChanged = "status_changed"
)

const (
	DefaultSourceAgency      = "State Treasury"
	DefaultDestinationAgency = "Implementing Agency"
)

// Levels lists the approval stages in the order they must be signed.
var Levels = []string{LevelDistrict, LevelState, LevelCentral}

type (
	Stage struct {
		Level     string     `json:"level" bson:"level"`
		Approver  string     `json:"approver,omitempty" bson:"approver,omitempty"`
		Status    string     `json:"status" bson:"status"`
		Comments  string     `json:"comments,omitempty" bson:"comments,omitempty"`
		Timestamp *time.Time `json:"timestamp" bson:"timestamp,omitempty"`
	}

	AuditEntry struct {
		Action      string    `json:"action" bson:"action"`
		PerformedBy string    `json:"performed_by" bson:"performed_by"`
		Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
		Details     string    `json:"details,omitempty" bson:"details,omitempty"`
	}

	Transaction struct {
		ID                string       `json:"id" bson:"_id"`
		TransactionID     string       `json:"transaction_id" bson:"transaction_id"`
		ProjectID         string       `json:"project_id" bson:"project_id"`
		MilestoneID       string       `json:"milestone_id,omitempty" bson:"milestone_id,omitempty"`
		ProgressUpdateID  string       `json:"progress_update_id,omitempty" bson:"progress_update_id,omitempty"`
		TransactionType   string       `json:"transaction_type" bson:"transaction_type"`
		Amount            float64      `json:"amount" bson:"amount"`
		SourceAgency      string       `json:"source_agency" bson:"source_agency"`
		DestinationAgency string       `json:"destination_agency" bson:"destination_agency"`
		Purpose           string       `json:"purpose" bson:"purpose"`
		ApprovedBy        string       `json:"approved_by,omitempty" bson:"approved_by,omitempty"`
		Status            string       `json:"status" bson:"status"`
		ApprovalWorkflow  []Stage      `json:"approval_workflow" bson:"approval_workflow"`
		AuditTrail        []AuditEntry `json:"audit_trail" bson:"audit_trail"`
		Version           int          `json:"version" bson:"version"`
		CreatedBy         string       `json:"created_by" bson:"created_by"`
		CreatedAt         time.Time    `json:"created_at" bson:"created_at"`
		UpdatedAt         time.Time    `json:"updated_at" bson:"updated_at"`
	}
)

// NewTransaction contains information needed to create a new fund Transaction.
type NewTransaction struct {
	ProjectID         string  `json:"project_id" validate:"required"`
	MilestoneID       string  `json:"milestone_id"`
	TransactionType   string  `json:"transaction_type" validate:"required,oneof=Release Utilization Refund Transfer"`
	Amount            float64 `json:"amount" validate:"required,gt=0"`
	SourceAgency      string  `json:"source_agency" validate:"required,notblank"`
	DestinationAgency string  `json:"destination_agency" validate:"required,notblank"`
	Purpose           string  `json:"purpose" validate:"required,notblank"`
}

func (nt *NewTransaction) Validate(validate *validator.Validate) error {
	nt.ProjectID = core.CleanString(nt.ProjectID)
	nt.MilestoneID = core.CleanString(nt.MilestoneID)
	nt.SourceAgency = core.CleanString(nt.SourceAgency)
	nt.DestinationAgency = core.CleanString(nt.DestinationAgency)
	nt.Purpose = core.CleanString(nt.Purpose)
	return validate.Struct(nt)
}

// Decision is an approver's action on their workflow stage.
type Decision struct {
	Action   string `json:"action" validate:"required,oneof=Approved Rejected"`
	Comments string `json:"comments"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Comments = core.CleanString(d.Comments)
	return validate.Struct(d)
}

// StatusChange moves an approved transaction along the disbursement path.
type StatusChange struct {
	Status  string `json:"status" validate:"required,oneof='In Transit' Completed"`
	Details string `json:"details"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Details = core.CleanString(sc.Details)
	return validate.Struct(sc)
}

type QueryFilter struct {
	ProjectID       string   `query:"project_id"`
	TransactionType string   `query:"transaction_type"`
	Status          []string `query:"status"`

	// set by the services
	ProjectIDs   []string `query:"-"`
	PendingLevel string   `query:"-"` // transactions waiting on this approval level
}

func (qf *QueryFilter) Clean() {
	qf.ProjectID = core.CleanString(qf.ProjectID)
	qf.TransactionType = core.CleanString(qf.TransactionType)
}

// Matches is used by in-memory repositories.
func (qf QueryFilter) Matches(tx Transaction) bool {
	if qf.ProjectID != "" && qf.ProjectID != tx.ProjectID {
		return false
	}
	if qf.ProjectIDs != nil && !core.ContainsString(qf.ProjectIDs, tx.ProjectID) {
		return false
	}
	if qf.TransactionType != "" && qf.TransactionType != tx.TransactionType {
		return false
	}
	if len(qf.Status) > 0 && !core.ContainsString(qf.Status, tx.Status) {
		return false
	}
	return qf.PendingLevel == "" || qf.PendingLevel == tx.NextLevel()
}
