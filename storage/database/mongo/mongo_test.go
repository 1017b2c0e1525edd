package mongodb_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/storage/database"
	mongodb "github.com/trezcool/pmajay/storage/database/mongo"
	"github.com/trezcool/pmajay/testutil"
)

// openDB connects to MONGO_TEST_URI on a throwaway database, skipping the test when it is unset.
func openDB(t *testing.T) *database.DB {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI is not set")
	}

	conf := core.NewTestConfig()
	conf.Database.URI = uri
	conf.Database.Name = "pmajay_test_" + uuid.New().String()[:8]
	conf.Database.Timeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := database.Open(ctx, conf)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db))
	require.NoError(t, database.Migrate(ctx, db), "migrations must be idempotent")

	t.Cleanup(func() {
		ctx := context.Background()
		_ = database.Drop(ctx, db)
		_ = db.Close(ctx)
	})
	return db
}

func TestUserRepository(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	users := mongodb.NewUserRepository(db)

	zoe := testutil.CreateUser(t, users, "Zoe Kujur", "zoe@pmajay.gov.in", "Str0ng!Pass", user.RoleStateNodalAdmin, testutil.Loc("Odisha", ""))
	testutil.CreateUser(t, users, "Asha Das", "asha@pmajay.gov.in", "", user.RoleSuperAdmin, core.Location{})

	dup := zoe
	dup.ID = uuid.New().String()
	_, err := users.CreateUser(ctx, dup)
	assert.Equal(t, user.ErrEmailExists, err)
	assert.Equal(t, user.ErrEmailExists, users.CheckEmailUniqueness(ctx, zoe.Email))
	assert.NoError(t, users.CheckEmailUniqueness(ctx, zoe.Email, zoe.ID))

	got, err := users.GetUser(ctx, user.GetFilter{Email: zoe.Email})
	require.NoError(t, err)
	assert.Equal(t, zoe.ID, got.ID)
	assert.NoError(t, got.CheckPassword("Str0ng!Pass"))

	list, total, err := users.QueryUsers(ctx, user.QueryFilter{State: "Odisha"}, nil, core.Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, zoe.ID, list[0].ID)

	require.NoError(t, users.DeleteUser(ctx, zoe.ID))
	_, err = users.GetUser(ctx, user.GetFilter{ID: zoe.ID})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestProjectRepository(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	users := mongodb.NewUserRepository(db)
	projects := mongodb.NewProjectRepository(db)

	creator := testutil.CreateUser(t, users, "Asha Das", "asha@pmajay.gov.in", "", user.RoleSuperAdmin, core.Location{})
	p1 := testutil.CreateProject(t, projects, creator, "OD-CTC-001", testutil.Loc("Odisha", "Cuttack"), 500000)
	testutil.CreateProject(t, projects, creator, "OD-PUR-001", testutil.Loc("Odisha", "Puri"), 900000)

	dup := p1
	dup.ID = uuid.New().String()
	_, err := projects.CreateProject(ctx, dup)
	assert.Equal(t, project.ErrProjectExists, err)

	list, total, err := projects.QueryProjects(ctx, project.QueryFilter{State: "Odisha"},
		[]core.DBOrdering{{Field: "sanctioned_amount"}}, core.Pagination{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 1)
	assert.Equal(t, "OD-PUR-001", list[0].ProjectID)

	updated, err := projects.IncrementFinancials(ctx, p1.ID, 200000, 50000)
	require.NoError(t, err)
	assert.Equal(t, float64(200000), updated.Financials.TotalReleased)
	assert.Equal(t, float64(50000), updated.Financials.TotalUtilized)

	require.NoError(t, projects.DeleteProject(ctx, p1.ID))
	assert.Equal(t, project.ErrNotFound, projects.DeleteProject(ctx, p1.ID))
}

func TestFundRepository_UpdateTransaction(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	funds := mongodb.NewFundRepository(db)

	status, stages := fund.Seed(300000, 100000)
	tx, err := funds.CreateTransaction(ctx, fund.Transaction{
		ID:               uuid.New().String(),
		TransactionID:    "FT-0001",
		ProjectID:        "p-1",
		Amount:           300000,
		Status:           status,
		ApprovalWorkflow: stages,
		CreatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tx.Version)

	tx.Status = fund.StatusApproved
	updated, err := funds.UpdateTransaction(ctx, tx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	_, err = funds.UpdateTransaction(ctx, tx, 1)
	assert.Equal(t, fund.ErrStaleTransaction, err)

	pending, total, err := funds.QueryTransactions(ctx, fund.QueryFilter{ProjectID: "p-1", Status: []string{fund.StatusApproved}}, nil, core.Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Len(t, pending[0].ApprovalWorkflow, 3)
}

func TestMessageRepository_MarkRead(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	msgs := mongodb.NewMessageRepository(db)
	conv := message.ConversationID("p-1", "gp", "pacc")
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i, content := range []string{"first", "second"} {
		_, err := msgs.CreateMessage(ctx, message.Message{
			ID:             uuid.New().String(),
			MessageID:      uuid.New().String(),
			ConversationID: conv,
			ProjectID:      "p-1",
			SenderID:       "gp",
			ReceiverID:     "pacc",
			Content:        content,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	n, err := msgs.MarkRead(ctx, message.QueryFilter{ConversationID: conv, ReceiverID: "pacc"}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, total, err := msgs.QueryMessages(ctx, message.QueryFilter{ReceiverID: "pacc", Unread: true}, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
