package project

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
)

// Statuses
const (
	StatusPlanned      = "Planned"
	StatusAwaitingPACC = "Awaiting PACC Approval"
	StatusInProgress   = "In Progress"
	StatusCompleted    = "Completed"
	StatusOnHold       = "On Hold"
	StatusCancelled    = "Cancelled"
)

// Scheme types (PM-AJAY components)
const (
	SchemeAdarshGram = "Adarsh Gram"
	SchemeGIA        = "GIA"
	SchemeHostel     = "Hostel"
)

// Priorities
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Approval levels & statuses
const (
	LevelDistrict = "district"
	LevelState    = "state"
	LevelCentral  = "central"
	LevelPACC     = "pacc"

	ApprovalPending  = "Pending"
	ApprovalApproved = "Approved"
	ApprovalRejected = "Rejected"
)

var Statuses = []string{StatusPlanned, StatusAwaitingPACC, StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled}

type (
	Coordinates struct {
		Latitude  float64 `json:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
		Longitude float64 `json:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
	}

	Location struct {
		core.Location `bson:",inline"`
		Coordinates   *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	}

	Financials struct {
		EstimatedCost    float64 `json:"estimated_cost" bson:"estimated_cost"`
		SanctionedAmount float64 `json:"sanctioned_amount" bson:"sanctioned_amount"`
		TotalReleased    float64 `json:"total_released" bson:"total_released"`
		TotalUtilized    float64 `json:"total_utilized" bson:"total_utilized"`
	}

	Timeline struct {
		StartDate        time.Time  `json:"start_date" bson:"start_date"`
		ScheduledEndDate time.Time  `json:"scheduled_end_date" bson:"scheduled_end_date"`
		ActualEndDate    *time.Time `json:"actual_end_date" bson:"actual_end_date,omitempty"`
	}

	Approval struct {
		Status     string     `json:"status" bson:"status"`
		Date       *time.Time `json:"date" bson:"date,omitempty"`
		ApprovedBy string     `json:"approved_by,omitempty" bson:"approved_by,omitempty"`
		Remarks    string     `json:"remarks,omitempty" bson:"remarks,omitempty"`
	}

	Approvals struct {
		District Approval `json:"district" bson:"district"`
		State    Approval `json:"state" bson:"state"`
		Central  Approval `json:"central" bson:"central"`
		PACC     Approval `json:"pacc" bson:"pacc"`
	}
)

type Project struct {
	ID                 string     `json:"id" bson:"_id"`
	ProjectID          string     `json:"project_id" bson:"project_id"`
	Name               string     `json:"name" bson:"name"`
	Description        string     `json:"description,omitempty" bson:"description,omitempty"`
	SchemeType         string     `json:"scheme_type" bson:"scheme_type"`
	Location           Location   `json:"location" bson:"location"`
	ImplementingAgency string     `json:"implementing_agency,omitempty" bson:"implementing_agency,omitempty"`
	Financials         Financials `json:"financials" bson:"financials"`
	Timeline           Timeline   `json:"timeline" bson:"timeline"`
	Status             string     `json:"status" bson:"status"`
	Priority           string     `json:"priority" bson:"priority"`
	Approvals          Approvals  `json:"approvals" bson:"approvals"`
	OverallProgress    float64    `json:"overall_progress" bson:"overall_progress"`
	CreatedBy          string     `json:"created_by" bson:"created_by"`
	CreatedAt          time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" bson:"updated_at"`
}

// ProgressPercentage is the share of the sanctioned amount already utilized.
func (p Project) ProgressPercentage() float64 {
	if p.Financials.SanctionedAmount <= 0 {
		return 0
	}
	return p.Financials.TotalUtilized / p.Financials.SanctionedAmount * 100
}

// Target is what access checks compare the caller's jurisdiction against.
func (p Project) Target() access.Target {
	return access.Target{Location: p.Location.Location, Agency: p.ImplementingAgency}
}

func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return json.Marshal(struct {
		plain
		ProgressPercentage float64 `json:"progress_percentage"`
	}{plain(p), p.ProgressPercentage()})
}

// CheckFinancials verifies totalUtilized <= totalReleased <= sanctionedAmount once the deltas are applied.
func (f Financials) CheckFinancials(releasedDelta, utilizedDelta float64) error {
	released := f.TotalReleased + releasedDelta
	utilized := f.TotalUtilized + utilizedDelta
	if released > f.SanctionedAmount {
		return core.NewValidationError(nil, core.FieldError{
			Field: "amount", Error: "total released would exceed the sanctioned amount",
		})
	}
	if utilized > released {
		return core.NewValidationError(nil, core.FieldError{
			Field: "amount", Error: "total utilized would exceed the total released",
		})
	}
	return nil
}

// NewProject contains information needed to create a new Project.
type NewProject struct {
	ProjectID          string     `json:"project_id" validate:"required,max=32"`
	Name               string     `json:"name" validate:"required,notblank"`
	Description        string     `json:"description"`
	SchemeType         string     `json:"scheme_type" validate:"required,oneof='Adarsh Gram' GIA Hostel"`
	Location           Location   `json:"location"`
	ImplementingAgency string     `json:"implementing_agency"`
	EstimatedCost      float64    `json:"estimated_cost" validate:"gte=0"`
	SanctionedAmount   float64    `json:"sanctioned_amount" validate:"gte=0"`
	StartDate          time.Time  `json:"start_date" validate:"required"`
	ScheduledEndDate   time.Time  `json:"scheduled_end_date" validate:"required,gtfield=StartDate"`
	Priority           string     `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	Status             string     `json:"status" validate:"omitempty,oneof=Planned 'Awaiting PACC Approval'"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.ProjectID = core.CleanString(np.ProjectID)
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	np.ImplementingAgency = core.CleanString(np.ImplementingAgency)
	np.Location.Location = np.Location.Location.Clean()
	if np.Priority == "" {
		np.Priority = PriorityMedium
	}
	if np.Status == "" {
		np.Status = StatusPlanned
	}

	if err := validate.Struct(np); err != nil {
		return err
	}
	var flds []core.FieldError
	if np.Location.State == "" {
		flds = append(flds, core.FieldError{Field: "location.state", Error: "this field is required"})
	}
	if np.Location.District == "" {
		flds = append(flds, core.FieldError{Field: "location.district", Error: "this field is required"})
	}
	if np.SanctionedAmount > 0 && np.EstimatedCost > 0 && np.SanctionedAmount > np.EstimatedCost {
		flds = append(flds, core.FieldError{Field: "sanctioned_amount", Error: "cannot exceed the estimated cost"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// UpdateProject defines what information may be provided to modify an existing Project.
type UpdateProject struct {
	Name               *string    `json:"name" validate:"omitempty,notblank"`
	Description        *string    `json:"description"`
	ImplementingAgency *string    `json:"implementing_agency"`
	Location           *Location  `json:"location"`
	EstimatedCost      *float64   `json:"estimated_cost" validate:"omitempty,gte=0"`
	SanctionedAmount   *float64   `json:"sanctioned_amount" validate:"omitempty,gte=0"`
	StartDate          *time.Time `json:"start_date"`
	ScheduledEndDate   *time.Time `json:"scheduled_end_date"`
	Status             *string    `json:"status" validate:"omitempty,oneof=Planned 'Awaiting PACC Approval' 'In Progress' Completed 'On Hold' Cancelled"`
	Priority           *string    `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
}

func (up *UpdateProject) Validate(orig Project, validate *validator.Validate) error {
	if err := validate.Struct(up); err != nil {
		return err
	}
	updated := up.apply(orig)
	var flds []core.FieldError
	if updated.Location.State == "" || updated.Location.District == "" {
		flds = append(flds, core.FieldError{Field: "location", Error: "state and district are required"})
	}
	if !updated.Timeline.ScheduledEndDate.After(updated.Timeline.StartDate) {
		flds = append(flds, core.FieldError{Field: "scheduled_end_date", Error: "must be after the start date"})
	}
	if updated.Financials.SanctionedAmount < updated.Financials.TotalReleased {
		flds = append(flds, core.FieldError{Field: "sanctioned_amount", Error: "cannot be lower than the total released"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (up UpdateProject) apply(p Project) Project {
	if up.Name != nil {
		p.Name = core.CleanString(*up.Name)
	}
	if up.Description != nil {
		p.Description = core.CleanString(*up.Description)
	}
	if up.ImplementingAgency != nil {
		p.ImplementingAgency = core.CleanString(*up.ImplementingAgency)
	}
	if up.Location != nil {
		loc := *up.Location
		loc.Location = loc.Location.Clean()
		p.Location = loc
	}
	if up.EstimatedCost != nil {
		p.Financials.EstimatedCost = *up.EstimatedCost
	}
	if up.SanctionedAmount != nil {
		p.Financials.SanctionedAmount = *up.SanctionedAmount
	}
	if up.StartDate != nil {
		p.Timeline.StartDate = *up.StartDate
	}
	if up.ScheduledEndDate != nil {
		p.Timeline.ScheduledEndDate = *up.ScheduledEndDate
	}
	if up.Status != nil {
		p.Status = *up.Status
	}
	if up.Priority != nil {
		p.Priority = *up.Priority
	}
	return p
}

// ApprovalDecision is posted by an approver at their own level.
type ApprovalDecision struct {
	Action  string `json:"action" validate:"required,oneof=Approved Rejected"`
	Remarks string `json:"remarks"`
}

func (ad *ApprovalDecision) Validate(validate *validator.Validate) error {
	ad.Remarks = core.CleanString(ad.Remarks)
	return validate.Struct(ad)
}

type QueryFilter struct {
	Search     string   `query:"search"`
	Status     []string `query:"status"`
	SchemeType string   `query:"scheme_type"`
	State      string   `query:"state"`
	District   string   `query:"district"`
	Village    string   `query:"village"`
	Agency     string   `query:"agency"`
	Priority   string   `query:"priority"`

	// set by the service
	Scope access.Filter `query:"-"`
	IDs   []string      `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SchemeType = core.CleanString(qf.SchemeType)
	qf.State = core.CleanString(qf.State)
	qf.District = core.CleanString(qf.District)
	qf.Village = core.CleanString(qf.Village)
	qf.Agency = core.CleanString(qf.Agency)
	qf.Priority = core.CleanString(qf.Priority)
}

// Matches is used by in-memory repositories.
func (qf QueryFilter) Matches(p Project) bool {
	if !qf.Scope.Matches(p.Location.Location, p.ImplementingAgency) {
		return false
	}
	if qf.IDs != nil && !core.ContainsString(qf.IDs, p.ID) {
		return false
	}
	if qf.Search != "" && !core.ContainsFold(p.Name, qf.Search) && !core.ContainsFold(p.ProjectID, qf.Search) {
		return false
	}
	if len(qf.Status) > 0 && !core.ContainsString(qf.Status, p.Status) {
		return false
	}
	return (qf.SchemeType == "" || qf.SchemeType == p.SchemeType) &&
		(qf.State == "" || qf.State == p.Location.State) &&
		(qf.District == "" || qf.District == p.Location.District) &&
		(qf.Village == "" || qf.Village == p.Location.Village) &&
		(qf.Agency == "" || qf.Agency == p.ImplementingAgency) &&
		(qf.Priority == "" || qf.Priority == p.Priority)
}
