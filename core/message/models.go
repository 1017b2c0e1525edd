package message

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pmajay/core"
)

// Priorities
const (
	PriorityLow    = "Low"
	PriorityNormal = "Normal"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)

// Related actions
const (
	ActionGeneral         = "general"
	ActionProjectApproval = "project_approval"
	ActionFundRequest     = "fund_request"
	ActionIssueReport     = "issue_report"
	ActionDocumentRequest = "document_request"
)

type Message struct {
	ID             string     `json:"id" bson:"_id"`
	MessageID      string     `json:"message_id" bson:"message_id"`
	ConversationID string     `json:"conversation_id" bson:"conversation_id"`
	ProjectID      string     `json:"project_id" bson:"project_id"`
	SenderID       string     `json:"sender_id" bson:"sender_id"`
	SenderRole     string     `json:"sender_role" bson:"sender_role"`
	ReceiverID     string     `json:"receiver_id" bson:"receiver_id"`
	ReceiverRole   string     `json:"receiver_role" bson:"receiver_role"`
	Content        string     `json:"content" bson:"content"`
	IsRead         bool       `json:"is_read" bson:"is_read"`
	ReadAt         *time.Time `json:"read_at" bson:"read_at,omitempty"`
	Priority       string     `json:"priority" bson:"priority"`
	RelatedAction  string     `json:"related_action" bson:"related_action"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

// Counterpart returns the other participant of the message, seen from userID.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationID derives the identifier of the conversation between a and b about a project.
// It does not depend on the order of the participants.
func ConversationID(projectID, a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join([]string{projectID, ids[0], ids[1]}, "_")
}

// NewMessage contains information needed to send a Message.
type NewMessage struct {
	ProjectID     string `json:"project_id" validate:"required"`
	ReceiverID    string `json:"receiver_id" validate:"required"`
	Content       string `json:"content" validate:"required,notblank,max=5000"`
	Priority      string `json:"priority" validate:"omitempty,oneof=Low Normal High Urgent"`
	RelatedAction string `json:"related_action" validate:"omitempty,oneof=general project_approval fund_request issue_report document_request"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.ProjectID = core.CleanString(nm.ProjectID)
	nm.ReceiverID = core.CleanString(nm.ReceiverID)
	nm.Content = core.CleanString(nm.Content)
	if nm.Priority == "" {
		nm.Priority = PriorityNormal
	}
	if nm.RelatedAction == "" {
		nm.RelatedAction = ActionGeneral
	}
	return validate.Struct(nm)
}

// Conversation summarizes the exchanges of a user with one counterpart about one project.
type Conversation struct {
	ConversationID string  `json:"conversation_id"`
	ProjectID      string  `json:"project_id"`
	CounterpartID  string  `json:"counterpart_id"`
	LastMessage    Message `json:"last_message"`
	UnreadCount    int     `json:"unread_count"`
}

type QueryFilter struct {
	ID             string
	ConversationID string
	ProjectID      string
	ReceiverID     string
	Participant    string // sender or receiver
	Unread         bool
}

// Matches is used by in-memory repositories.
func (qf QueryFilter) Matches(m Message) bool {
	if qf.Participant != "" && m.SenderID != qf.Participant && m.ReceiverID != qf.Participant {
		return false
	}
	if qf.Unread && m.IsRead {
		return false
	}
	return (qf.ID == "" || qf.ID == m.ID) &&
		(qf.ConversationID == "" || qf.ConversationID == m.ConversationID) &&
		(qf.ProjectID == "" || qf.ProjectID == m.ProjectID) &&
		(qf.ReceiverID == "" || qf.ReceiverID == m.ReceiverID)
}
