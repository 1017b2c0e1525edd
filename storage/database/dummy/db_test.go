package dummydb_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/storage/database/dummy"
	"github.com/trezcool/pmajay/testutil"
)

func TestDB_WithinTransaction(t *testing.T) {
	ctx := context.Background()
	db := dummydb.Open()
	users := dummydb.NewUserRepository(db)
	projects := dummydb.NewProjectRepository(db)

	creator := testutil.CreateUser(t, users, "Cuttack Collector", "dc@cuttack.gov.in", "", user.RoleDistrictCollector, testutil.Loc("Odisha", "Cuttack"))
	p := testutil.CreateProject(t, projects, creator, "OD-CTC-001", testutil.Loc("Odisha", "Cuttack"), 1000000)

	t.Run("rollback", func(t *testing.T) {
		errBoom := errors.New("boom")
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := projects.IncrementFinancials(ctx, p.ID, 250000, 0); err != nil {
				return err
			}
			gp := user.User{ID: "gp-1", Name: "Athagarh GP", Email: "gp@athagarh.in", Role: user.RoleGramPanchayatUser}
			if _, err := users.CreateUser(ctx, gp); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)

		got, err := projects.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Financials.TotalReleased)
		_, err = users.GetUser(ctx, user.GetFilter{Email: "gp@athagarh.in"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("rollback keeps writes made outside the transaction", func(t *testing.T) {
		other := testutil.CreateProject(t, projects, creator, "OD-CTC-002", testutil.Loc("Odisha", "Cuttack"), 500000)

		started, written := make(chan struct{}), make(chan struct{})
		var renameErr, createErr error
		go func() {
			defer close(written)
			<-started
			renamed := other
			renamed.Name = "Adarsh Gram Cuttack"
			_, renameErr = projects.UpdateProject(context.Background(), renamed)
			_, createErr = users.CreateUser(context.Background(), user.User{ID: "dc-puri", Name: "Puri Collector", Email: "dc@puri.gov.in", Role: user.RoleDistrictCollector})
		}()

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := projects.IncrementFinancials(ctx, p.ID, 100000, 0); err != nil {
				return err
			}
			close(started)
			<-written
			return errors.New("boom")
		})
		require.Error(t, err)
		require.NoError(t, renameErr)
		require.NoError(t, createErr)

		got, err := projects.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Financials.TotalReleased)
		got, err = projects.GetProject(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, "Adarsh Gram Cuttack", got.Name)
		_, err = users.GetUser(ctx, user.GetFilter{Email: "dc@puri.gov.in"})
		assert.NoError(t, err)
	})

	t.Run("nested calls join the running transaction", func(t *testing.T) {
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			err := db.WithinTransaction(ctx, func(ctx context.Context) error {
				_, err := projects.IncrementFinancials(ctx, p.ID, 100000, 0)
				return err
			})
			require.NoError(t, err)
			return errors.New("boom")
		})
		require.Error(t, err)

		got, err := projects.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Financials.TotalReleased)
	})

	t.Run("commit", func(t *testing.T) {
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := projects.IncrementFinancials(ctx, p.ID, 250000, 100000)
			return err
		})
		require.NoError(t, err)

		got, err := projects.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, float64(250000), got.Financials.TotalReleased)
		assert.Equal(t, float64(100000), got.Financials.TotalUtilized)
	})
}

func TestDB_Flush(t *testing.T) {
	db := dummydb.Open()
	users := dummydb.NewUserRepository(db)
	testutil.CreateUser(t, users, "Asha Das", "asha@pmajay.gov.in", "", user.RoleSuperAdmin, core.Location{})

	db.Flush()
	_, total, err := users.QueryUsers(context.Background(), user.QueryFilter{}, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	users := dummydb.NewUserRepository(dummydb.Open())

	zoe := testutil.CreateUser(t, users, "Zoe Kujur", "zoe@pmajay.gov.in", "", user.RoleStateNodalAdmin, testutil.Loc("Odisha", ""))
	testutil.CreateUser(t, users, "Asha Das", "asha@pmajay.gov.in", "", user.RoleSuperAdmin, core.Location{})
	testutil.CreateUser(t, users, "Mira Patel", "mira@pmajay.gov.in", "", user.RoleStateNodalAdmin, testutil.Loc("Gujarat", ""))

	t.Run("email uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrEmailExists, users.CheckEmailUniqueness(ctx, "zoe@pmajay.gov.in"))
		assert.NoError(t, users.CheckEmailUniqueness(ctx, "zoe@pmajay.gov.in", zoe.ID))

		dup := zoe
		dup.ID = "another-id"
		_, err := users.CreateUser(ctx, dup)
		assert.Equal(t, user.ErrEmailExists, err)
	})

	t.Run("get", func(t *testing.T) {
		got, err := users.GetUser(ctx, user.GetFilter{Email: zoe.Email})
		require.NoError(t, err)
		assert.Equal(t, zoe.ID, got.ID)

		_, err = users.GetUser(ctx, user.GetFilter{ID: zoe.ID, Email: "asha@pmajay.gov.in"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		got, total, err := users.QueryUsers(ctx, user.QueryFilter{}, nil, core.Pagination{})
		require.NoError(t, err)
		require.Equal(t, 3, total)
		assert.Equal(t, []string{"Asha Das", "Mira Patel", "Zoe Kujur"}, []string{got[0].Name, got[1].Name, got[2].Name})

		got, total, err = users.QueryUsers(ctx, user.QueryFilter{Roles: []string{user.RoleStateNodalAdmin}},
			[]core.DBOrdering{{Field: "email"}}, core.Pagination{Page: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, got, 1)
		assert.Equal(t, "Zoe Kujur", got[0].Name)
	})

	t.Run("last login", func(t *testing.T) {
		at := time.Now().UTC()
		require.NoError(t, users.SetLastLogin(ctx, zoe.ID, at))
		got, err := users.GetUser(ctx, user.GetFilter{ID: zoe.ID})
		require.NoError(t, err)
		if assert.NotNil(t, got.LastLogin) {
			assert.True(t, at.Equal(*got.LastLogin))
		}
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, users.DeleteUser(ctx, zoe.ID))
		assert.Equal(t, user.ErrNotFound, users.DeleteUser(ctx, zoe.ID))
		_, err := users.UpdateUser(ctx, zoe)
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestProjectRepository(t *testing.T) {
	ctx := context.Background()
	db := dummydb.Open()
	users := dummydb.NewUserRepository(db)
	projects := dummydb.NewProjectRepository(db)
	creator := testutil.CreateUser(t, users, "Asha Das", "asha@pmajay.gov.in", "", user.RoleSuperAdmin, core.Location{})

	p1 := testutil.CreateProject(t, projects, creator, "OD-CTC-001", testutil.Loc("Odisha", "Cuttack"), 500000)
	p2 := testutil.CreateProject(t, projects, creator, "OD-PUR-001", testutil.Loc("Odisha", "Puri"), 900000)
	testutil.CreateProject(t, projects, creator, "GJ-AMD-001", testutil.Loc("Gujarat", "Ahmedabad"), 700000)

	t.Run("duplicate project_id", func(t *testing.T) {
		dup := p1
		dup.ID = "another-id"
		_, err := projects.CreateProject(ctx, dup)
		assert.Equal(t, project.ErrProjectExists, err)

		p2.ProjectID = p1.ProjectID
		_, err = projects.UpdateProject(ctx, p2)
		assert.Equal(t, project.ErrProjectExists, err)
	})

	t.Run("query", func(t *testing.T) {
		got, total, err := projects.QueryProjects(ctx, project.QueryFilter{State: "Odisha"},
			[]core.DBOrdering{{Field: "sanctioned_amount"}}, core.Pagination{})
		require.NoError(t, err)
		require.Equal(t, 2, total)
		assert.Equal(t, "OD-PUR-001", got[0].ProjectID)
		assert.Equal(t, "OD-CTC-001", got[1].ProjectID)

		got, total, err = projects.QueryProjects(ctx, project.QueryFilter{},
			[]core.DBOrdering{{Field: "project_id", Ascending: true}}, core.Pagination{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, got, 1)
		assert.Equal(t, "OD-PUR-001", got[0].ProjectID)
	})

	t.Run("progress", func(t *testing.T) {
		end := time.Now().UTC()
		got, err := projects.SetProgress(ctx, p1.ID, 100, project.StatusCompleted, &end)
		require.NoError(t, err)
		assert.Equal(t, float64(100), got.OverallProgress)
		assert.Equal(t, project.StatusCompleted, got.Status)
		assert.NotNil(t, got.Timeline.ActualEndDate)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, projects.DeleteProject(ctx, p1.ID))
		_, err := projects.GetProject(ctx, p1.ID)
		assert.Equal(t, project.ErrNotFound, err)
		_, err = projects.IncrementFinancials(ctx, p1.ID, 1, 0)
		assert.Equal(t, project.ErrNotFound, err)
	})
}

func TestFundRepository_UpdateTransaction(t *testing.T) {
	ctx := context.Background()
	funds := dummydb.NewFundRepository(dummydb.Open())

	status, stages := fund.Seed(300000, 100000)
	tx, err := funds.CreateTransaction(ctx, fund.Transaction{
		ID:               "tx-1",
		TransactionID:    "FT-0001",
		ProjectID:        "p-1",
		Amount:           300000,
		Status:           status,
		ApprovalWorkflow: stages,
		CreatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tx.Version)

	_, err = funds.CreateTransaction(ctx, fund.Transaction{ID: "tx-2", TransactionID: "FT-0001"})
	assert.True(t, core.IsConflict(err))

	// returned rows do not alias the stored ones
	tx.ApprovalWorkflow[0].Status = "tampered"
	stored, err := funds.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", stored.ApprovalWorkflow[0].Status)

	stored.Status = fund.StatusApproved
	updated, err := funds.UpdateTransaction(ctx, stored, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	_, err = funds.UpdateTransaction(ctx, stored, 1)
	assert.Equal(t, fund.ErrStaleTransaction, err)
}

func TestMessageRepository_MarkRead(t *testing.T) {
	ctx := context.Background()
	msgs := dummydb.NewMessageRepository(dummydb.Open())
	conv := message.ConversationID("p-1", "gp", "pacc")
	now := time.Now().UTC()

	for i, m := range []message.Message{
		{ID: "m1", ConversationID: conv, ProjectID: "p-1", SenderID: "gp", ReceiverID: "pacc", Content: "first"},
		{ID: "m2", ConversationID: conv, ProjectID: "p-1", SenderID: "gp", ReceiverID: "pacc", Content: "second"},
		{ID: "m3", ConversationID: conv, ProjectID: "p-1", SenderID: "pacc", ReceiverID: "gp", Content: "reply"},
	} {
		m.CreatedAt = now.Add(time.Duration(i) * time.Second)
		_, err := msgs.CreateMessage(ctx, m)
		require.NoError(t, err)
	}

	n, err := msgs.MarkRead(ctx, message.QueryFilter{ConversationID: conv, ReceiverID: "pacc"}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// already read messages are left alone
	n, err = msgs.MarkRead(ctx, message.QueryFilter{ConversationID: conv, ReceiverID: "pacc"}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, total, err := msgs.QueryMessages(ctx, message.QueryFilter{Participant: "gp", Unread: true}, nil, core.Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "m3", unread[0].ID)

	m1, err := msgs.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, m1.IsRead)
	if assert.NotNil(t, m1.ReadAt) {
		assert.True(t, now.Equal(*m1.ReadAt))
	}
}
