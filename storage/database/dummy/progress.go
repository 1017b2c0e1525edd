package dummydb

import (
	"context"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/progress"
)

type progressRepository struct {
	db *table[progress.Update]
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

var progressFields = map[string]lessFunc[progress.Update]{
	"update_id":  func(a, b progress.Update) bool { return a.UpdateID < b.UpdateID },
	"created_at": func(a, b progress.Update) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

func (repo *progressRepository) CreateUpdate(ctx context.Context, u progress.Update) (progress.Update, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.rows {
		if other.UpdateID == u.UpdateID {
			return progress.Update{}, progress.ErrUpdateExists
		}
	}
	return repo.db.put(ctx, u.ID, u), nil
}

func (repo *progressRepository) GetUpdate(ctx context.Context, id string) (progress.Update, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if u, ok := repo.db.get(id); ok {
		return u, nil
	}
	return progress.Update{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryUpdates(ctx context.Context, filter progress.QueryFilter, ordering []core.DBOrdering, p core.Pagination) ([]progress.Update, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	us, total := page(repo.db.filter(filter.Matches), ordering, progressFields, core.DBOrdering{Field: "created_at"}, p)
	return us, total, nil
}

func (repo *progressRepository) UpdateUpdate(ctx context.Context, u progress.Update) (progress.Update, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[u.ID]; !ok {
		return progress.Update{}, progress.ErrNotFound
	}
	return repo.db.put(ctx, u.ID, u), nil
}

func (repo *progressRepository) DeleteUpdate(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return progress.ErrNotFound
	}
	repo.db.del(ctx, id)
	return nil
}
