package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/milestone"
)

// Update types
const (
	TypeDaily     = "Daily"
	TypeWeekly    = "Weekly"
	TypeMonthly   = "Monthly"
	TypeMilestone = "Milestone"
	TypeIssue     = "Issue"
)

// Issue severities & resolution statuses
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"

	IssueOpen       = "Open"
	IssueInProgress = "In Progress"
	IssueResolved   = "Resolved"
)

type (
	QuantitativeMetrics struct {
		PercentageCompleted float64 `json:"percentage_completed" bson:"percentage_completed" validate:"gte=0,lte=100"`
		UnitsCompleted      float64 `json:"units_completed" bson:"units_completed" validate:"gte=0"`
		UnitOfMeasurement   string  `json:"unit_of_measurement,omitempty" bson:"unit_of_measurement,omitempty"`
	}

	WorkCompleted struct {
		Description         string              `json:"description" bson:"description" validate:"required,notblank"`
		QuantitativeMetrics QuantitativeMetrics `json:"quantitative_metrics" bson:"quantitative_metrics"`
	}

	Issue struct {
		Type             string `json:"type" bson:"type" validate:"required,notblank"`
		Description      string `json:"description,omitempty" bson:"description,omitempty"`
		Severity         string `json:"severity" bson:"severity" validate:"required,oneof=Low Medium High Critical"`
		ResolutionStatus string `json:"resolution_status" bson:"resolution_status" validate:"omitempty,oneof=Open 'In Progress' Resolved"`
		AssignedTo       string `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	}

	QualityParameters struct {
		MaterialQuality   string `json:"material_quality,omitempty" bson:"material_quality,omitempty" validate:"omitempty,oneof=Poor Average Good Excellent"`
		WorkmanshipRating int    `json:"workmanship_rating,omitempty" bson:"workmanship_rating,omitempty" validate:"omitempty,gte=1,lte=5"`
		SafetyCompliance  bool   `json:"safety_compliance" bson:"safety_compliance"`
		Remarks           string `json:"remarks,omitempty" bson:"remarks,omitempty"`
	}

	Update struct {
		ID                     string            `json:"id" bson:"_id"`
		UpdateID               string            `json:"update_id" bson:"update_id"`
		ProjectID              string            `json:"project_id" bson:"project_id"`
		MilestoneID            string            `json:"milestone_id,omitempty" bson:"milestone_id,omitempty"`
		UpdateType             string            `json:"update_type" bson:"update_type"`
		WorkCompleted          WorkCompleted     `json:"work_completed" bson:"work_completed"`
		Issues                 []Issue           `json:"issues" bson:"issues"`
		QualityParameters      QualityParameters `json:"quality_parameters" bson:"quality_parameters"`
		TriggeredTransactionID string            `json:"triggered_transaction_id,omitempty" bson:"triggered_transaction_id,omitempty"`
		CreatedBy              string            `json:"created_by" bson:"created_by"`
		CreatedAt              time.Time         `json:"created_at" bson:"created_at"`
		UpdatedAt              time.Time         `json:"updated_at" bson:"updated_at"`
	}
)

func (u Update) Percentage() float64 {
	return u.WorkCompleted.QuantitativeMetrics.PercentageCompleted
}

// NewUpdate contains information needed to report progress.
type NewUpdate struct {
	UpdateID          string            `json:"update_id" validate:"omitempty,max=32"`
	ProjectID         string            `json:"project_id" validate:"required"`
	MilestoneID       string            `json:"milestone_id"`
	UpdateType        string            `json:"update_type" validate:"required,oneof=Daily Weekly Monthly Milestone Issue"`
	WorkCompleted     WorkCompleted     `json:"work_completed"`
	Issues            []Issue           `json:"issues" validate:"dive"`
	QualityParameters QualityParameters `json:"quality_parameters"`
}

func (nu *NewUpdate) Validate(validate *validator.Validate) error {
	nu.UpdateID = core.CleanString(nu.UpdateID)
	nu.ProjectID = core.CleanString(nu.ProjectID)
	nu.MilestoneID = core.CleanString(nu.MilestoneID)
	nu.WorkCompleted.Description = core.CleanString(nu.WorkCompleted.Description)
	cleanIssues(nu.Issues)
	return validate.Struct(nu)
}

func cleanIssues(issues []Issue) {
	for i := range issues {
		issues[i].Type = core.CleanString(issues[i].Type)
		issues[i].Description = core.CleanString(issues[i].Description)
		if issues[i].ResolutionStatus == "" {
			issues[i].ResolutionStatus = IssueOpen
		}
	}
}

// UpdateUpdate defines what may change on a reported update. The completion percentage is
// immutable once reported since it may already have triggered a release.
type UpdateUpdate struct {
	Description       *string            `json:"description" validate:"omitempty,notblank"`
	UnitsCompleted    *float64           `json:"units_completed" validate:"omitempty,gte=0"`
	Issues            []Issue            `json:"issues" validate:"omitempty,dive"`
	QualityParameters *QualityParameters `json:"quality_parameters"`
}

func (uu *UpdateUpdate) Validate(validate *validator.Validate) error {
	cleanIssues(uu.Issues)
	return validate.Struct(uu)
}

func (uu UpdateUpdate) apply(u Update) Update {
	if uu.Description != nil {
		u.WorkCompleted.Description = core.CleanString(*uu.Description)
	}
	if uu.UnitsCompleted != nil {
		u.WorkCompleted.QuantitativeMetrics.UnitsCompleted = *uu.UnitsCompleted
	}
	if uu.Issues != nil {
		u.Issues = uu.Issues
	}
	if uu.QualityParameters != nil {
		u.QualityParameters = *uu.QualityParameters
	}
	return u
}

// Result is what reporting progress produced: the update and, when the report completed a
// milestone, the completed milestone and the release it triggered.
type Result struct {
	Update      Update               `json:"update"`
	Milestone   *milestone.Milestone `json:"milestone,omitempty"`
	FundRelease *fund.Transaction    `json:"fund_release,omitempty"`
}

type QueryFilter struct {
	ProjectID   string `query:"project_id"`
	MilestoneID string `query:"milestone_id"`
	UpdateType  string `query:"update_type"`
	CreatedBy   string `query:"created_by"`

	// set by the services
	ProjectIDs []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.ProjectID = core.CleanString(qf.ProjectID)
	qf.MilestoneID = core.CleanString(qf.MilestoneID)
	qf.UpdateType = core.CleanString(qf.UpdateType)
	qf.CreatedBy = core.CleanString(qf.CreatedBy)
}

// Matches is used by in-memory repositories.
func (qf QueryFilter) Matches(u Update) bool {
	if qf.ProjectIDs != nil && !core.ContainsString(qf.ProjectIDs, u.ProjectID) {
		return false
	}
	return (qf.ProjectID == "" || qf.ProjectID == u.ProjectID) &&
		(qf.MilestoneID == "" || qf.MilestoneID == u.MilestoneID) &&
		(qf.UpdateType == "" || qf.UpdateType == u.UpdateType) &&
		(qf.CreatedBy == "" || qf.CreatedBy == u.CreatedBy)
}
