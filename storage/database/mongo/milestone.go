package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/storage/database"
)

type milestoneRepository struct {
	coll *mongo.Collection
}

var _ milestone.Repository = (*milestoneRepository)(nil)

func NewMilestoneRepository(db *database.DB) milestone.Repository {
	return &milestoneRepository{coll: db.Collection(database.MilestoneCollection)}
}

var milestoneSortFields = map[string]string{
	"milestone_id":   "milestone_id",
	"title":          "title",
	"status":         "status",
	"scheduled_date": "scheduled_date",
	"created_at":     "created_at",
}

func (repo *milestoneRepository) CreateMilestone(ctx context.Context, m milestone.Milestone) (milestone.Milestone, error) {
	if _, err := repo.coll.InsertOne(ctx, m); err != nil {
		if isDuplicate(err, database.IdxMilestoneID) {
			return milestone.Milestone{}, milestone.ErrMilestoneExists
		}
		return milestone.Milestone{}, errors.Wrap(err, "inserting milestone")
	}
	return m, nil
}

func (repo *milestoneRepository) GetMilestone(ctx context.Context, id string) (milestone.Milestone, error) {
	return findOne[milestone.Milestone](ctx, repo.coll, bson.M{"_id": id}, milestone.ErrNotFound)
}

func (repo *milestoneRepository) QueryMilestones(ctx context.Context, filter milestone.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]milestone.Milestone, int, error) {
	q := bson.M{}
	projectCond(q, filter.ProjectID, filter.ProjectIDs)
	if len(filter.Status) > 0 {
		q["status"] = in(filter.Status)
	}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if filter.DependsOn != "" {
		q["dependencies"] = filter.DependsOn
	}
	sort := sortDoc(ordering, milestoneSortFields, core.DBOrdering{Field: "scheduled_date", Ascending: true})
	return findPage[milestone.Milestone](ctx, repo.coll, q, sort, page)
}

func (repo *milestoneRepository) UpdateMilestone(ctx context.Context, m milestone.Milestone) (milestone.Milestone, error) {
	if err := replace(ctx, repo.coll, m.ID, m, milestone.ErrNotFound); err != nil {
		if isDuplicate(err, database.IdxMilestoneID) {
			return milestone.Milestone{}, milestone.ErrMilestoneExists
		}
		return milestone.Milestone{}, err
	}
	return m, nil
}

func (repo *milestoneRepository) DeleteMilestone(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, milestone.ErrNotFound)
}
