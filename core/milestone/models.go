package milestone

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pmajay/core"
)

// Categories
const (
	CategoryPlanning   = "Planning"
	CategoryExecution  = "Execution"
	CategoryCompletion = "Completion"
)

// Statuses
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusDelayed    = "Delayed"
)

type Milestone struct {
	ID                   string     `json:"id" bson:"_id"`
	MilestoneID          string     `json:"milestone_id" bson:"milestone_id"`
	ProjectID            string     `json:"project_id" bson:"project_id"`
	Title                string     `json:"title" bson:"title"`
	Description          string     `json:"description,omitempty" bson:"description,omitempty"`
	Category             string     `json:"category" bson:"category"`
	ScheduledDate        time.Time  `json:"scheduled_date" bson:"scheduled_date"`
	ActualCompletionDate *time.Time `json:"actual_completion_date" bson:"actual_completion_date,omitempty"`
	Status               string     `json:"status" bson:"status"`
	CompletionPercentage float64    `json:"completion_percentage" bson:"completion_percentage"`
	AllocatedAmount      float64    `json:"allocated_amount" bson:"allocated_amount"`
	Dependencies         []string   `json:"dependencies" bson:"dependencies"`
	VerifiedBy           string     `json:"verified_by,omitempty" bson:"verified_by,omitempty"`
	VerificationDate     *time.Time `json:"verification_date" bson:"verification_date,omitempty"`
	Remarks              string     `json:"remarks,omitempty" bson:"remarks,omitempty"`
	CreatedBy            string     `json:"created_by" bson:"created_by"`
	CreatedAt            time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" bson:"updated_at"`
}

func (m Milestone) IsCompleted() bool { return m.Status == StatusCompleted }

// IsDelayed reports whether the milestone is flagged delayed or is past its scheduled date unfinished.
func (m Milestone) IsDelayed(now time.Time) bool {
	if m.Status == StatusDelayed {
		return true
	}
	return !m.IsCompleted() && !m.ScheduledDate.IsZero() && now.After(m.ScheduledDate)
}

// Complete marks the milestone completed at `at`.
func (m *Milestone) Complete(at time.Time) {
	m.Status = StatusCompleted
	m.CompletionPercentage = 100
	m.ActualCompletionDate = &at
	m.UpdatedAt = at
}

// RecordProgress raises the completion percentage. Lower or equal values are ignored.
func (m *Milestone) RecordProgress(pct float64, at time.Time) bool {
	if pct <= m.CompletionPercentage || pct >= 100 || pct <= 0 {
		return false
	}
	m.CompletionPercentage = pct
	if m.Status == StatusPending {
		m.Status = StatusInProgress
	}
	m.UpdatedAt = at
	return true
}

// NewMilestone contains information needed to create a new Milestone.
type NewMilestone struct {
	MilestoneID     string    `json:"milestone_id" validate:"required,max=32"`
	ProjectID       string    `json:"project_id" validate:"required"`
	Title           string    `json:"title" validate:"required,notblank"`
	Description     string    `json:"description"`
	Category        string    `json:"category" validate:"required,oneof=Planning Execution Completion"`
	ScheduledDate   time.Time `json:"scheduled_date" validate:"required"`
	AllocatedAmount float64   `json:"allocated_amount" validate:"gte=0"`
	Dependencies    []string  `json:"dependencies" validate:"omitempty,unique,dive,required"`
}

func (nm *NewMilestone) Validate(validate *validator.Validate) error {
	nm.MilestoneID = core.CleanString(nm.MilestoneID)
	nm.ProjectID = core.CleanString(nm.ProjectID)
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// UpdateMilestone defines what information may be provided to modify an existing Milestone.
type UpdateMilestone struct {
	Title                *string    `json:"title" validate:"omitempty,notblank"`
	Description          *string    `json:"description"`
	Category             *string    `json:"category" validate:"omitempty,oneof=Planning Execution Completion"`
	ScheduledDate        *time.Time `json:"scheduled_date"`
	Status               *string    `json:"status" validate:"omitempty,oneof=Pending 'In Progress' Delayed"`
	CompletionPercentage *float64   `json:"completion_percentage" validate:"omitempty,gte=0,lt=100"`
	AllocatedAmount      *float64   `json:"allocated_amount" validate:"omitempty,gte=0"`
	Dependencies         []string   `json:"dependencies" validate:"omitempty,unique,dive,required"`
	Remarks              *string    `json:"remarks"`
}

func (um *UpdateMilestone) Validate(validate *validator.Validate) error {
	return validate.Struct(um)
}

func (um UpdateMilestone) apply(m Milestone) Milestone {
	if um.Title != nil {
		m.Title = core.CleanString(*um.Title)
	}
	if um.Description != nil {
		m.Description = core.CleanString(*um.Description)
	}
	if um.Category != nil {
		m.Category = *um.Category
	}
	if um.ScheduledDate != nil {
		m.ScheduledDate = um.ScheduledDate.UTC()
	}
	if um.Status != nil {
		m.Status = *um.Status
	}
	if um.CompletionPercentage != nil {
		m.CompletionPercentage = *um.CompletionPercentage
	}
	if um.AllocatedAmount != nil {
		m.AllocatedAmount = *um.AllocatedAmount
	}
	if um.Dependencies != nil {
		m.Dependencies = um.Dependencies
	}
	if um.Remarks != nil {
		m.Remarks = core.CleanString(*um.Remarks)
	}
	return m
}

type Verification struct {
	Remarks string `json:"remarks"`
}

type QueryFilter struct {
	ProjectID string   `query:"project_id"`
	Status    []string `query:"status"`
	Category  string   `query:"category"`

	// set by the services
	ProjectIDs []string `query:"-"`
	DependsOn  string   `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.ProjectID = core.CleanString(qf.ProjectID)
	qf.Category = core.CleanString(qf.Category)
}

// Matches is used by in-memory repositories.
func (qf QueryFilter) Matches(m Milestone) bool {
	if qf.ProjectID != "" && qf.ProjectID != m.ProjectID {
		return false
	}
	if qf.ProjectIDs != nil && !core.ContainsString(qf.ProjectIDs, m.ProjectID) {
		return false
	}
	if len(qf.Status) > 0 && !core.ContainsString(qf.Status, m.Status) {
		return false
	}
	if qf.DependsOn != "" && !core.ContainsString(m.Dependencies, qf.DependsOn) {
		return false
	}
	return qf.Category == "" || qf.Category == m.Category
}
