package dummydb

import (
	"context"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/milestone"
)

type milestoneRepository struct {
	db *table[milestone.Milestone]
}

var _ milestone.Repository = (*milestoneRepository)(nil)

func NewMilestoneRepository(db *DB) milestone.Repository {
	return &milestoneRepository{db: db.milestone}
}

var milestoneFields = map[string]lessFunc[milestone.Milestone]{
	"milestone_id":   func(a, b milestone.Milestone) bool { return a.MilestoneID < b.MilestoneID },
	"title":          func(a, b milestone.Milestone) bool { return a.Title < b.Title },
	"status":         func(a, b milestone.Milestone) bool { return a.Status < b.Status },
	"scheduled_date": func(a, b milestone.Milestone) bool { return a.ScheduledDate.Before(b.ScheduledDate) },
	"created_at":     func(a, b milestone.Milestone) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

func (repo *milestoneRepository) CreateMilestone(ctx context.Context, m milestone.Milestone) (milestone.Milestone, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.rows {
		if other.MilestoneID == m.MilestoneID {
			return milestone.Milestone{}, milestone.ErrMilestoneExists
		}
	}
	return repo.db.put(ctx, m.ID, m), nil
}

func (repo *milestoneRepository) GetMilestone(ctx context.Context, id string) (milestone.Milestone, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.get(id); ok {
		return m, nil
	}
	return milestone.Milestone{}, milestone.ErrNotFound
}

func (repo *milestoneRepository) QueryMilestones(ctx context.Context, filter milestone.QueryFilter, ordering []core.DBOrdering, p core.Pagination) ([]milestone.Milestone, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ms, total := page(repo.db.filter(filter.Matches), ordering, milestoneFields, core.DBOrdering{Field: "scheduled_date", Ascending: true}, p)
	return ms, total, nil
}

func (repo *milestoneRepository) UpdateMilestone(ctx context.Context, m milestone.Milestone) (milestone.Milestone, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[m.ID]; !ok {
		return milestone.Milestone{}, milestone.ErrNotFound
	}
	return repo.db.put(ctx, m.ID, m), nil
}

func (repo *milestoneRepository) DeleteMilestone(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return milestone.ErrNotFound
	}
	repo.db.del(ctx, id)
	return nil
}
