package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/beneficiary"
)

type beneficiaryRepository struct {
	db *table[beneficiary.Beneficiary]
}

var _ beneficiary.Repository = (*beneficiaryRepository)(nil)

func NewBeneficiaryRepository(db *DB) beneficiary.Repository {
	return &beneficiaryRepository{db: db.beneficiary}
}

var beneficiaryFields = map[string]lessFunc[beneficiary.Beneficiary]{
	"beneficiary_id": func(a, b beneficiary.Beneficiary) bool { return a.BeneficiaryID < b.BeneficiaryID },
	"name":           func(a, b beneficiary.Beneficiary) bool { return a.PersonalInfo.Name < b.PersonalInfo.Name },
	"created_at":     func(a, b beneficiary.Beneficiary) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

// checkUnique expects the caller to hold the lock.
func (repo *beneficiaryRepository) checkUnique(b beneficiary.Beneficiary) error {
	for _, other := range repo.db.rows {
		if other.ID == b.ID {
			continue
		}
		if other.PersonalInfo.AadhaarNumber == b.PersonalInfo.AadhaarNumber {
			return beneficiary.ErrAadhaarExists
		}
		if other.BeneficiaryID == b.BeneficiaryID {
			return beneficiary.ErrBeneficiaryIDExists
		}
	}
	return nil
}

func (repo *beneficiaryRepository) CreateBeneficiary(ctx context.Context, b beneficiary.Beneficiary) (beneficiary.Beneficiary, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkUnique(b); err != nil {
		return beneficiary.Beneficiary{}, err
	}
	return repo.db.put(ctx, b.ID, b), nil
}

func (repo *beneficiaryRepository) GetBeneficiary(ctx context.Context, id string) (beneficiary.Beneficiary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.get(id); ok {
		return b, nil
	}
	return beneficiary.Beneficiary{}, beneficiary.ErrNotFound
}

func (repo *beneficiaryRepository) QueryBeneficiaries(ctx context.Context, filter beneficiary.QueryFilter, ordering []core.DBOrdering, p core.Pagination) ([]beneficiary.Beneficiary, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	bs, total := page(repo.db.filter(filter.Matches), ordering, beneficiaryFields, core.DBOrdering{Field: "created_at"}, p)
	return bs, total, nil
}

func (repo *beneficiaryRepository) UpdateBeneficiary(ctx context.Context, b beneficiary.Beneficiary) (beneficiary.Beneficiary, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[b.ID]; !ok {
		return beneficiary.Beneficiary{}, beneficiary.ErrNotFound
	}
	if err := repo.checkUnique(b); err != nil {
		return beneficiary.Beneficiary{}, err
	}
	return repo.db.put(ctx, b.ID, b), nil
}

func (repo *beneficiaryRepository) AddBenefit(ctx context.Context, id string, bn beneficiary.Benefit) (beneficiary.Beneficiary, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	b, ok := repo.db.get(id)
	if !ok {
		return beneficiary.Beneficiary{}, beneficiary.ErrNotFound
	}
	b.BenefitsReceived = append(b.BenefitsReceived, bn)
	b.UpdatedAt = time.Now().UTC()
	return repo.db.put(ctx, id, b), nil
}

func (repo *beneficiaryRepository) DeleteBeneficiary(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return beneficiary.ErrNotFound
	}
	repo.db.del(ctx, id)
	return nil
}
