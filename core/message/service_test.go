package message_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/testutil"
)

type fixture struct {
	env                  *testutil.Env
	project              project.Project
	gramPanch, pacc      user.User
	otherGP, puriPACC    user.User
	collector, retiredGP user.User
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv()
	cuttack := testutil.Loc("Odisha", "Cuttack", "Athagarh")
	f := fixture{env: env}
	f.gramPanch = testutil.CreateUser(t, env.Users, "Athagarh GP", "gp@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	f.pacc = testutil.CreateUser(t, env.Users, "Cuttack PACC", "pacc@cuttack.gov.in", "", user.RoleDistrictPACCAdmin, cuttack)
	f.otherGP = testutil.CreateUser(t, env.Users, "Banki GP", "gp@banki.in", "", user.RoleGramPanchayatUser, testutil.Loc("Odisha", "Cuttack", "Banki"))
	f.puriPACC = testutil.CreateUser(t, env.Users, "Puri PACC", "pacc@puri.gov.in", "", user.RoleDistrictPACCAdmin, testutil.Loc("Odisha", "Puri"))
	f.collector = testutil.CreateUser(t, env.Users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, cuttack)

	f.retiredGP = testutil.CreateUser(t, env.Users, "Old GP", "old@athagarh.in", "", user.RoleGramPanchayatUser, cuttack)
	f.retiredGP.SetActive(false)
	usr, err := env.Users.UpdateUser(context.Background(), f.retiredGP)
	require.NoError(t, err)
	f.retiredGP = usr

	f.project = testutil.CreateProject(t, env.Projects, f.collector, "PMAJAY-OD-001", cuttack, 1000000)
	return f
}

func send(projectID, receiverID, content string) message.NewMessage {
	nm := message.NewMessage{ProjectID: projectID, ReceiverID: receiverID, Content: content}
	_ = nm.Validate(testutil.Validate)
	return nm
}

func TestConversationID_isSymmetric(t *testing.T) {
	assert.Equal(t, message.ConversationID("p1", "alice", "bob"), message.ConversationID("p1", "bob", "alice"))
	assert.Equal(t, "p1_alice_bob", message.ConversationID("p1", "bob", "alice"))
	assert.NotEqual(t, message.ConversationID("p1", "alice", "bob"), message.ConversationID("p2", "alice", "bob"))
}

func TestNewMessage_Validate(t *testing.T) {
	nm := message.NewMessage{ProjectID: " p1 ", ReceiverID: "u1", Content: "  Site visit on Monday  "}
	require.NoError(t, nm.Validate(testutil.Validate))
	assert.Equal(t, "p1", nm.ProjectID)
	assert.Equal(t, "Site visit on Monday", nm.Content)
	assert.Equal(t, message.PriorityNormal, nm.Priority)
	assert.Equal(t, message.ActionGeneral, nm.RelatedAction)

	nm = message.NewMessage{ProjectID: "p1", ReceiverID: "u1", Content: "   "}
	assert.Error(t, nm.Validate(testutil.Validate))

	nm = message.NewMessage{ProjectID: "p1", ReceiverID: "u1", Content: "hi", Priority: "Whenever"}
	assert.Error(t, nm.Validate(testutil.Validate))
}

func TestService_Send(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.env.MessageSvc.Send(ctx, f.gramPanch, send(f.project.ID, f.pacc.ID, "Beneficiary list uploaded"))
	require.NoError(t, err)
	assert.Equal(t, message.ConversationID(f.project.ID, f.gramPanch.ID, f.pacc.ID), m.ConversationID)
	assert.Equal(t, user.RoleGramPanchayatUser, m.SenderRole)
	assert.Equal(t, user.RoleDistrictPACCAdmin, m.ReceiverRole)
	assert.False(t, m.IsRead)
	assert.Regexp(t, `^MSG-\d{8}-[0-9A-F]{8}$`, m.MessageID)

	ns := f.env.Notifier.For(f.pacc.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, core.NotificationMessage, ns[0].Kind)
	assert.Equal(t, "Beneficiary list uploaded", ns[0].Body)
	assert.Equal(t, "pacc@cuttack.gov.in", ns[0].RecipientEmail)
	assert.False(t, ns[0].Urgent)
	assert.Empty(t, f.env.Notifier.For(f.gramPanch.ID))
}

func TestService_Send_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor user.User
		nm    message.NewMessage
		check func(error) bool
	}{
		{name: "sender role", actor: f.collector, nm: send(f.project.ID, f.pacc.ID, "hi"), check: core.IsForbidden},
		{name: "receiver role", actor: f.gramPanch, nm: send(f.project.ID, f.collector.ID, "hi"), check: core.IsForbidden},
		{name: "inactive receiver", actor: f.pacc, nm: send(f.project.ID, f.retiredGP.ID, "hi"), check: core.IsForbidden},
		{name: "yourself", actor: f.gramPanch, nm: send(f.project.ID, f.gramPanch.ID, "hi"), check: core.IsValidationError},
		{name: "unknown receiver", actor: f.gramPanch, nm: send(f.project.ID, "nobody", "hi"), check: core.IsNotFound},
		{name: "unknown project", actor: f.gramPanch, nm: send("nope", f.pacc.ID, "hi"), check: core.IsNotFound},
		{name: "sender outside jurisdiction", actor: f.otherGP, nm: send(f.project.ID, f.pacc.ID, "hi"), check: core.IsForbidden},
		{name: "receiver outside jurisdiction", actor: f.gramPanch, nm: send(f.project.ID, f.puriPACC.ID, "hi"), check: core.IsForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.MessageSvc.Send(ctx, tt.actor, tt.nm)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	count, err := f.env.MessageSvc.UnreadCount(ctx, f.pacc)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing was stored")
}

func TestService_readFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.env.MessageSvc.Send(ctx, f.gramPanch, send(f.project.ID, f.pacc.ID, "Need approval"))
	require.NoError(t, err)
	_, err = f.env.MessageSvc.Send(ctx, f.gramPanch, send(f.project.ID, f.pacc.ID, "Any update?"))
	require.NoError(t, err)
	_, err = f.env.MessageSvc.Send(ctx, f.pacc, send(f.project.ID, f.gramPanch.ID, "Looking into it"))
	require.NoError(t, err)

	count, err := f.env.MessageSvc.UnreadCount(ctx, f.pacc)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// both sides see the same conversation
	msgs, total, err := f.env.MessageSvc.Conversation(ctx, f.pacc, f.project.ID, f.gramPanch.ID, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	_, total, err = f.env.MessageSvc.Conversation(ctx, f.gramPanch, f.project.ID, f.pacc.ID, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, msgs, 3)

	convs, err := f.env.MessageSvc.Conversations(ctx, f.pacc)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, f.gramPanch.ID, convs[0].CounterpartID)
	assert.Equal(t, 2, convs[0].UnreadCount)

	_, err = f.env.MessageSvc.MarkRead(ctx, f.gramPanch, first.ID)
	assert.True(t, core.IsForbidden(err), "the sender cannot mark it read")

	read, err := f.env.MessageSvc.MarkRead(ctx, f.pacc, first.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	readAt := *read.ReadAt

	again, err := f.env.MessageSvc.MarkRead(ctx, f.pacc, first.ID)
	require.NoError(t, err)
	assert.Equal(t, readAt, *again.ReadAt, "marking twice keeps the first read time")

	n, err := f.env.MessageSvc.MarkConversationRead(ctx, f.pacc, f.project.ID, f.gramPanch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err = f.env.MessageSvc.UnreadCount(ctx, f.pacc)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = f.env.MessageSvc.UnreadCount(ctx, f.gramPanch)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "messages the pacc sent are untouched")
}

func TestService_Contacts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	contacts, err := f.env.MessageSvc.Contacts(ctx, f.pacc)
	require.NoError(t, err)
	names := make([]string, 0, len(contacts))
	for _, c := range contacts {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Athagarh GP", "Banki GP"}, names, "active gram panchayats of the district, by name")

	contacts, err = f.env.MessageSvc.Contacts(ctx, f.gramPanch)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, f.pacc.ID, contacts[0].ID)

	_, err = f.env.MessageSvc.Contacts(ctx, f.collector)
	assert.True(t, core.IsForbidden(err))
}

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	msgs := []message.Message{
		{ID: "3", ConversationID: "p1_a_b", ProjectID: "p1", SenderID: "b", ReceiverID: "a", CreatedAt: base.Add(3 * time.Minute)},
		{ID: "2", ConversationID: "p1_a_c", ProjectID: "p1", SenderID: "a", ReceiverID: "c", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "1", ConversationID: "p1_a_b", ProjectID: "p1", SenderID: "b", ReceiverID: "a", IsRead: true, CreatedAt: base},
	}

	convs := message.Summarize("a", msgs)
	require.Len(t, convs, 2)
	assert.Equal(t, "3", convs[0].LastMessage.ID)
	assert.Equal(t, "b", convs[0].CounterpartID)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, "c", convs[1].CounterpartID)
	assert.Zero(t, convs[1].UnreadCount, "a sent it")
}
