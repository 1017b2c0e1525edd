package mongodb

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/storage/database"
)

var errTransactionExists = core.NewConflictError("a transaction with this transaction_id already exists")

type fundRepository struct {
	coll *mongo.Collection
}

var _ fund.Repository = (*fundRepository)(nil)

func NewFundRepository(db *database.DB) fund.Repository {
	return &fundRepository{coll: db.Collection(database.FundCollection)}
}

var fundSortFields = map[string]string{
	"transaction_id": "transaction_id",
	"amount":         "amount",
	"status":         "status",
	"created_at":     "created_at",
}

func (repo *fundRepository) CreateTransaction(ctx context.Context, tx fund.Transaction) (fund.Transaction, error) {
	tx.Version = 1
	if _, err := repo.coll.InsertOne(ctx, tx); err != nil {
		if isDuplicate(err, database.IdxTransactionID) {
			return fund.Transaction{}, errTransactionExists
		}
		return fund.Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	return tx, nil
}

func (repo *fundRepository) GetTransaction(ctx context.Context, id string) (fund.Transaction, error) {
	return findOne[fund.Transaction](ctx, repo.coll, bson.M{"_id": id}, fund.ErrNotFound)
}

// pendingAt matches transactions whose next stage to act on is `level`: every earlier stage approved
// and the stage at `level` still pending.
func pendingAt(q bson.M, level string) {
	pos := -1
	for i, l := range fund.Levels {
		if l == level {
			pos = i
		}
	}
	if pos < 0 {
		q["_id"] = in([]string{})
		return
	}
	q["status"] = fund.StatusPending
	for i := 0; i < pos; i++ {
		q[stageField(i)] = fund.StatusApproved
	}
	q[stageField(pos)] = fund.StatusPending
}

func stageField(i int) string {
	return "approval_workflow." + strconv.Itoa(i) + ".status"
}

func (repo *fundRepository) QueryTransactions(ctx context.Context, filter fund.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]fund.Transaction, int, error) {
	q := bson.M{}
	projectCond(q, filter.ProjectID, filter.ProjectIDs)
	if filter.TransactionType != "" {
		q["transaction_type"] = filter.TransactionType
	}
	if len(filter.Status) > 0 {
		q["status"] = in(filter.Status)
	}
	if filter.PendingLevel != "" {
		if len(filter.Status) > 0 && !core.ContainsString(filter.Status, fund.StatusPending) {
			return []fund.Transaction{}, 0, nil
		}
		pendingAt(q, filter.PendingLevel)
	}
	sort := sortDoc(ordering, fundSortFields, core.DBOrdering{Field: "created_at"})
	return findPage[fund.Transaction](ctx, repo.coll, q, sort, page)
}

// UpdateTransaction replaces the stored transaction only if it is still at expectedVersion.
func (repo *fundRepository) UpdateTransaction(ctx context.Context, tx fund.Transaction, expectedVersion int) (fund.Transaction, error) {
	tx.Version = expectedVersion + 1
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": tx.ID, "version": expectedVersion}, tx)
	if err != nil {
		if isDuplicate(err, database.IdxTransactionID) {
			return fund.Transaction{}, errTransactionExists
		}
		return fund.Transaction{}, errors.Wrap(err, "updating transaction")
	}
	if res.MatchedCount == 0 {
		n, err := repo.coll.CountDocuments(ctx, bson.M{"_id": tx.ID})
		if err != nil {
			return fund.Transaction{}, errors.Wrap(err, "updating transaction")
		}
		if n == 0 {
			return fund.Transaction{}, fund.ErrNotFound
		}
		return fund.Transaction{}, fund.ErrStaleTransaction
	}
	return tx, nil
}
