package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/progress"
	"github.com/trezcool/pmajay/storage/database"
)

type progressRepository struct {
	coll *mongo.Collection
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *database.DB) progress.Repository {
	return &progressRepository{coll: db.Collection(database.ProgressCollection)}
}

var progressSortFields = map[string]string{
	"update_id":  "update_id",
	"created_at": "created_at",
}

func (repo *progressRepository) CreateUpdate(ctx context.Context, u progress.Update) (progress.Update, error) {
	if _, err := repo.coll.InsertOne(ctx, u); err != nil {
		if isDuplicate(err, database.IdxUpdateID) {
			return progress.Update{}, progress.ErrUpdateExists
		}
		return progress.Update{}, errors.Wrap(err, "inserting progress update")
	}
	return u, nil
}

func (repo *progressRepository) GetUpdate(ctx context.Context, id string) (progress.Update, error) {
	return findOne[progress.Update](ctx, repo.coll, bson.M{"_id": id}, progress.ErrNotFound)
}

func (repo *progressRepository) QueryUpdates(ctx context.Context, filter progress.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]progress.Update, int, error) {
	q := bson.M{}
	projectCond(q, filter.ProjectID, filter.ProjectIDs)
	if filter.MilestoneID != "" {
		q["milestone_id"] = filter.MilestoneID
	}
	if filter.UpdateType != "" {
		q["update_type"] = filter.UpdateType
	}
	if filter.CreatedBy != "" {
		q["created_by"] = filter.CreatedBy
	}
	sort := sortDoc(ordering, progressSortFields, core.DBOrdering{Field: "created_at"})
	return findPage[progress.Update](ctx, repo.coll, q, sort, page)
}

func (repo *progressRepository) UpdateUpdate(ctx context.Context, u progress.Update) (progress.Update, error) {
	if err := replace(ctx, repo.coll, u.ID, u, progress.ErrNotFound); err != nil {
		return progress.Update{}, err
	}
	return u, nil
}

func (repo *progressRepository) DeleteUpdate(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, progress.ErrNotFound)
}
