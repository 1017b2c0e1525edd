package dummydb

import (
	"context"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/fund"
)

type fundRepository struct {
	db *table[fund.Transaction]
}

var _ fund.Repository = (*fundRepository)(nil)

func NewFundRepository(db *DB) fund.Repository {
	return &fundRepository{db: db.fund}
}

var fundFields = map[string]lessFunc[fund.Transaction]{
	"transaction_id": func(a, b fund.Transaction) bool { return a.TransactionID < b.TransactionID },
	"amount":         func(a, b fund.Transaction) bool { return a.Amount < b.Amount },
	"status":         func(a, b fund.Transaction) bool { return a.Status < b.Status },
	"created_at":     func(a, b fund.Transaction) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

func (repo *fundRepository) CreateTransaction(ctx context.Context, tx fund.Transaction) (fund.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.rows {
		if other.TransactionID == tx.TransactionID {
			return fund.Transaction{}, core.NewConflictError("a transaction with this transaction_id already exists")
		}
	}
	tx.Version = 1
	return repo.db.put(ctx, tx.ID, tx), nil
}

func (repo *fundRepository) GetTransaction(ctx context.Context, id string) (fund.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tx, ok := repo.db.get(id); ok {
		return tx, nil
	}
	return fund.Transaction{}, fund.ErrNotFound
}

func (repo *fundRepository) QueryTransactions(ctx context.Context, filter fund.QueryFilter, ordering []core.DBOrdering, p core.Pagination) ([]fund.Transaction, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	txs, total := page(repo.db.filter(filter.Matches), ordering, fundFields, core.DBOrdering{Field: "created_at"}, p)
	return txs, total, nil
}

func (repo *fundRepository) UpdateTransaction(ctx context.Context, tx fund.Transaction, expectedVersion int) (fund.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.rows[tx.ID]
	if !ok {
		return fund.Transaction{}, fund.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fund.Transaction{}, fund.ErrStaleTransaction
	}
	tx.Version = expectedVersion + 1
	return repo.db.put(ctx, tx.ID, tx), nil
}
