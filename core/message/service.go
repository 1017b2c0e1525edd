package message

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("message")
)

// Roles lists the only roles allowed to exchange messages.
var Roles = []string{user.RoleGramPanchayatUser, user.RoleDistrictPACCAdmin}

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		// QueryMessages returns matching messages, newest first unless ordering says otherwise.
		QueryMessages(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Message, int, error)
		// MarkRead flags the unread messages matching filter as read at `at` and returns how many changed.
		MarkRead(ctx context.Context, filter QueryFilter, at time.Time) (int, error)
	}

	Service struct {
		repo     Repository
		users    user.Repository
		projects project.Repository
		notifier core.Notifier
		logger   core.Logger
	}
)

func NewService(repo Repository, users user.Repository, projects project.Repository, notifier core.Notifier, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, projects: projects, notifier: notifier, logger: logger}
}

// IsMessagingRole reports whether role may send and receive messages.
func IsMessagingRole(role string) bool {
	return core.ContainsString(Roles, role)
}

// Send delivers a message from actor to the receiver about a project both can see,
// then pushes a notification to the receiver.
func (svc *Service) Send(ctx context.Context, actor user.User, nm NewMessage) (Message, error) {
	if !access.Allowed(actor, access.ResourceMessage, access.ActionCreate) {
		return Message{}, core.NewForbiddenError("role %s cannot send messages", actor.Role)
	}
	if nm.ReceiverID == actor.ID {
		return Message{}, core.NewValidationError(nil, core.FieldError{Field: "receiver_id", Error: "you cannot message yourself"})
	}
	receiver, err := svc.users.GetUser(ctx, user.GetFilter{ID: nm.ReceiverID})
	if err != nil {
		if core.IsNotFound(err) {
			return Message{}, core.NewNotFoundError("receiver")
		}
		return Message{}, err
	}
	if !IsMessagingRole(receiver.Role) || !receiver.Active() {
		return Message{}, core.NewForbiddenError("role %s cannot receive messages", receiver.Role)
	}

	p, err := svc.projects.GetProject(ctx, nm.ProjectID)
	if err != nil {
		return Message{}, err
	}
	if !access.CanAccess(actor, p.Target()) {
		return Message{}, core.NewForbiddenError("project is outside your jurisdiction")
	}
	if !access.CanAccess(receiver, p.Target()) {
		return Message{}, core.NewForbiddenError("project is outside the receiver's jurisdiction")
	}

	now := time.Now().UTC()
	m, err := svc.repo.CreateMessage(ctx, Message{
		ID:             uuid.New().String(),
		MessageID:      "MSG-" + now.Format("20060102") + "-" + strings.ToUpper(uuid.New().String()[:8]),
		ConversationID: ConversationID(p.ID, actor.ID, receiver.ID),
		ProjectID:      p.ID,
		SenderID:       actor.ID,
		SenderRole:     actor.Role,
		ReceiverID:     receiver.ID,
		ReceiverRole:   receiver.Role,
		Content:        nm.Content,
		Priority:       nm.Priority,
		RelatedAction:  nm.RelatedAction,
		CreatedAt:      now,
	})
	if err != nil {
		return Message{}, err
	}

	svc.notify(ctx, actor, receiver, p, m)
	return m, nil
}

func (svc *Service) notify(ctx context.Context, sender, receiver user.User, p project.Project, m Message) {
	body := m.Content
	if r := []rune(body); len(r) > 140 {
		body = string(r[:137]) + "..."
	}
	n := core.Notification{
		ID:             uuid.New().String(),
		RecipientID:    receiver.ID,
		RecipientName:  receiver.Name,
		RecipientEmail: receiver.Email,
		Kind:           core.NotificationMessage,
		Title:          fmt.Sprintf("New message from %s (%s)", sender.Name, p.Name),
		Body:           body,
		Link:           "/messages/" + m.ConversationID,
		ProjectID:      p.ID,
		Urgent:         m.Priority == PriorityHigh || m.Priority == PriorityUrgent,
		Data:           map[string]string{"message_id": m.ID, "conversation_id": m.ConversationID, "sender_id": sender.ID},
		CreatedAt:      time.Now().UTC(),
	}
	if err := svc.notifier.Notify(ctx, n); err != nil {
		// the message is stored; a lost push is not a failed send
		svc.logger.Error("message notification", errors.Wrap(err, "message notification"), sender)
	}
}

// Conversation returns the messages exchanged by actor and the counterpart about a project, newest first.
func (svc *Service) Conversation(ctx context.Context, actor user.User, projectID, counterpartID string, page core.Pagination) ([]Message, int, error) {
	filter := QueryFilter{ConversationID: ConversationID(projectID, actor.ID, counterpartID)}
	return svc.repo.QueryMessages(ctx, filter, nil, page)
}

// Conversations summarizes every conversation actor takes part in, most recent first.
func (svc *Service) Conversations(ctx context.Context, actor user.User) ([]Conversation, error) {
	msgs, _, err := svc.repo.QueryMessages(ctx, QueryFilter{Participant: actor.ID}, []core.DBOrdering{{Field: "created_at"}}, core.Pagination{})
	if err != nil {
		return nil, err
	}
	return Summarize(actor.ID, msgs), nil
}

// Summarize groups msgs (newest first) into conversations as seen by userID.
func Summarize(userID string, msgs []Message) []Conversation {
	convs := make([]Conversation, 0)
	index := make(map[string]int)
	for _, m := range msgs {
		i, ok := index[m.ConversationID]
		if !ok {
			i = len(convs)
			index[m.ConversationID] = i
			convs = append(convs, Conversation{
				ConversationID: m.ConversationID,
				ProjectID:      m.ProjectID,
				CounterpartID:  m.Counterpart(userID),
				LastMessage:    m,
			})
		}
		if m.ReceiverID == userID && !m.IsRead {
			convs[i].UnreadCount++
		}
	}
	return convs
}

// MarkRead flags a message read. Only its receiver may do so; marking a read message is a no-op.
func (svc *Service) MarkRead(ctx context.Context, actor user.User, id string) (Message, error) {
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if m.ReceiverID != actor.ID {
		return Message{}, core.NewForbiddenError("only the receiver can mark a message as read")
	}
	if m.IsRead {
		return m, nil
	}
	if _, err := svc.repo.MarkRead(ctx, QueryFilter{ID: m.ID, Unread: true}, time.Now().UTC()); err != nil {
		return Message{}, err
	}
	return svc.repo.GetMessage(ctx, id)
}

// MarkConversationRead flags every message actor received in a conversation as read.
func (svc *Service) MarkConversationRead(ctx context.Context, actor user.User, projectID, counterpartID string) (int, error) {
	filter := QueryFilter{
		ConversationID: ConversationID(projectID, actor.ID, counterpartID),
		ReceiverID:     actor.ID,
		Unread:         true,
	}
	return svc.repo.MarkRead(ctx, filter, time.Now().UTC())
}

func (svc *Service) UnreadCount(ctx context.Context, actor user.User) (int, error) {
	_, total, err := svc.repo.QueryMessages(ctx, QueryFilter{ReceiverID: actor.ID, Unread: true}, nil, core.Pagination{Limit: 1})
	return total, err
}

// Contacts lists the active users of the counterpart role in the actor's district.
func (svc *Service) Contacts(ctx context.Context, actor user.User) ([]user.User, error) {
	var counterpart string
	switch actor.Role {
	case user.RoleGramPanchayatUser:
		counterpart = user.RoleDistrictPACCAdmin
	case user.RoleDistrictPACCAdmin:
		counterpart = user.RoleGramPanchayatUser
	default:
		return nil, core.NewForbiddenError("role %s cannot send messages", actor.Role)
	}
	active := true
	users, _, err := svc.users.QueryUsers(ctx, user.QueryFilter{
		Roles:    []string{counterpart},
		IsActive: &active,
		State:    actor.Jurisdiction.State,
		District: actor.Jurisdiction.District,
	}, []core.DBOrdering{{Field: "name", Ascending: true}}, core.Pagination{})
	return users, err
}
