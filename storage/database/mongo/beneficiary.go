package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/beneficiary"
	"github.com/trezcool/pmajay/storage/database"
)

type beneficiaryRepository struct {
	coll *mongo.Collection
}

var _ beneficiary.Repository = (*beneficiaryRepository)(nil)

func NewBeneficiaryRepository(db *database.DB) beneficiary.Repository {
	return &beneficiaryRepository{coll: db.Collection(database.BeneficiaryCollection)}
}

var beneficiarySortFields = map[string]string{
	"beneficiary_id": "beneficiary_id",
	"name":           "personal_info.name",
	"created_at":     "created_at",
}

func uniqueBeneficiaryErr(err error) error {
	switch {
	case isDuplicate(err, database.IdxBeneficiaryAadhaar):
		return beneficiary.ErrAadhaarExists
	case isDuplicate(err, database.IdxBeneficiaryID):
		return beneficiary.ErrBeneficiaryIDExists
	}
	return err
}

func (repo *beneficiaryRepository) CreateBeneficiary(ctx context.Context, b beneficiary.Beneficiary) (beneficiary.Beneficiary, error) {
	if _, err := repo.coll.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return beneficiary.Beneficiary{}, uniqueBeneficiaryErr(err)
		}
		return beneficiary.Beneficiary{}, errors.Wrap(err, "inserting beneficiary")
	}
	return b, nil
}

func (repo *beneficiaryRepository) GetBeneficiary(ctx context.Context, id string) (beneficiary.Beneficiary, error) {
	return findOne[beneficiary.Beneficiary](ctx, repo.coll, bson.M{"_id": id}, beneficiary.ErrNotFound)
}

func (repo *beneficiaryRepository) QueryBeneficiaries(ctx context.Context, filter beneficiary.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]beneficiary.Beneficiary, int, error) {
	q := bson.M{}
	projectCond(q, filter.ProjectID, filter.ProjectIDs)
	if filter.VerificationStatus != "" {
		q["verification_status"] = filter.VerificationStatus
	}
	if filter.Category != "" {
		q["personal_info.category"] = filter.Category
	}
	if filter.Search != "" {
		q["$or"] = bson.A{
			bson.M{"personal_info.name": icontains(filter.Search)},
			bson.M{"beneficiary_id": icontains(filter.Search)},
		}
	}
	sort := sortDoc(ordering, beneficiarySortFields, core.DBOrdering{Field: "created_at"})
	return findPage[beneficiary.Beneficiary](ctx, repo.coll, q, sort, page)
}

func (repo *beneficiaryRepository) UpdateBeneficiary(ctx context.Context, b beneficiary.Beneficiary) (beneficiary.Beneficiary, error) {
	if err := replace(ctx, repo.coll, b.ID, b, beneficiary.ErrNotFound); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return beneficiary.Beneficiary{}, uniqueBeneficiaryErr(err)
		}
		return beneficiary.Beneficiary{}, err
	}
	return b, nil
}

func (repo *beneficiaryRepository) AddBenefit(ctx context.Context, id string, bn beneficiary.Benefit) (beneficiary.Beneficiary, error) {
	var b beneficiary.Beneficiary
	update := bson.M{
		"$push": bson.M{"benefits_received": bn},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return beneficiary.Beneficiary{}, beneficiary.ErrNotFound
		}
		return beneficiary.Beneficiary{}, errors.Wrap(err, "adding benefit")
	}
	return b, nil
}

func (repo *beneficiaryRepository) DeleteBeneficiary(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, beneficiary.ErrNotFound)
}
