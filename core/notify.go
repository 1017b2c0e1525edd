package core

import (
	"context"
	"time"
)

// Notification kinds
const (
	NotificationMessage         = "message"
	NotificationApprovalRequest = "approval_request"
	NotificationFundStatus      = "fund_status"
	NotificationMilestone       = "milestone_completed"
)

// Notification is an out-of-band push to one user.
type Notification struct {
	ID             string            `json:"id"`
	RecipientID    string            `json:"recipient_id"`
	RecipientName  string            `json:"-"`
	RecipientEmail string            `json:"-"`
	Kind           string            `json:"kind"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Link           string            `json:"link,omitempty"`
	ProjectID      string            `json:"project_id,omitempty"`
	Urgent         bool              `json:"urgent"`
	Data           map[string]string `json:"data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Notifier delivers notifications. Delivery failures never roll back the action that caused them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
