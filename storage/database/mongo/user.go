package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/storage/database"
)

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *database.DB) user.Repository {
	return &userRepository{coll: db.Collection(database.UserCollection)}
}

var userSortFields = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"last_login": "last_login",
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	filter := bson.M{"email": email}
	if len(excludedIDs) > 0 {
		filter["_id"] = bson.M{"$nin": excludedIDs}
	}
	n, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := repo.coll.InsertOne(ctx, usr); err != nil {
		if isDuplicate(err, database.IdxUserEmail) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := bson.M{}
	if filter.ID != "" {
		q["_id"] = filter.ID
	}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	if len(q) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return findOne[user.User](ctx, repo.coll, q, user.ErrNotFound)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]user.User, int, error) {
	q := bson.M{}
	if filter.Search != "" {
		q["$or"] = bson.A{
			bson.M{"name": icontains(filter.Search)},
			bson.M{"email": icontains(filter.Search)},
		}
	}
	if len(filter.Roles) > 0 {
		q["role"] = in(filter.Roles)
	}
	if filter.IsActive != nil {
		if *filter.IsActive {
			// users stored before the flag existed count as active
			q["is_active"] = bson.M{"$ne": false}
		} else {
			q["is_active"] = false
		}
	}
	if filter.State != "" {
		q["jurisdiction.state"] = filter.State
	}
	if filter.District != "" {
		q["jurisdiction.district"] = filter.District
	}
	if filter.Village != "" {
		q["jurisdiction.village"] = filter.Village
	}
	if filter.Agency != "" {
		q["agency"] = filter.Agency
	}
	sort := sortDoc(ordering, userSortFields, core.DBOrdering{Field: "name", Ascending: true})
	return findPage[user.User](ctx, repo.coll, q, sort, page)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := replace(ctx, repo.coll, usr.ID, usr, user.ErrNotFound); err != nil {
		if isDuplicate(err, database.IdxUserEmail) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := repo.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, user.ErrNotFound)
}
