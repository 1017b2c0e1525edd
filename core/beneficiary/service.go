package beneficiary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("beneficiary")
	ErrAadhaarExists       = core.NewConflictError("a beneficiary with this aadhaar number already exists")
	ErrBeneficiaryIDExists = core.NewConflictError("a beneficiary with this beneficiary_id already exists")
	ErrDisbursed           = core.NewConflictError("cannot delete a beneficiary who already received a disbursed benefit")
)

type (
	// Repository persists beneficiaries. Create and Update report duplicate aadhaar numbers
	// with ErrAadhaarExists and duplicate beneficiary ids with ErrBeneficiaryIDExists.
	Repository interface {
		CreateBeneficiary(ctx context.Context, b Beneficiary) (Beneficiary, error)
		GetBeneficiary(ctx context.Context, id string) (Beneficiary, error)
		QueryBeneficiaries(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Beneficiary, int, error)
		UpdateBeneficiary(ctx context.Context, b Beneficiary) (Beneficiary, error)
		AddBenefit(ctx context.Context, id string, bn Benefit) (Beneficiary, error)
		DeleteBeneficiary(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		projects project.Repository
		logger   core.Logger
	}
)

func NewService(repo Repository, projects project.Repository, logger core.Logger) *Service {
	return &Service{repo: repo, projects: projects, logger: logger}
}

func (svc *Service) Create(ctx context.Context, actor user.User, nb NewBeneficiary) (Beneficiary, error) {
	p, err := svc.projects.GetProject(ctx, nb.ProjectID)
	if err != nil {
		return Beneficiary{}, err
	}
	if err := access.Check(actor, access.ResourceBeneficiary, access.ActionCreate, p.Target()); err != nil {
		return Beneficiary{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateBeneficiary(ctx, Beneficiary{
		ID:                  uuid.New().String(),
		BeneficiaryID:       nb.BeneficiaryID,
		ProjectID:           p.ID,
		PersonalInfo:        nb.PersonalInfo,
		EligibilityCriteria: nb.EligibilityCriteria,
		BenefitsReceived:    []Benefit{},
		VerificationStatus:  VerificationPending,
		CreatedBy:           actor.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Beneficiary, error) {
	return svc.load(ctx, actor, id, access.ActionRead)
}

// Query lists the beneficiaries of the projects within the actor's jurisdiction.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Beneficiary, int, error) {
	if filter.ProjectID != "" {
		p, err := svc.projects.GetProject(ctx, filter.ProjectID)
		if err != nil {
			return nil, 0, err
		}
		if !access.CanAccess(actor, p.Target()) {
			return nil, 0, core.NewForbiddenError("project is outside your jurisdiction")
		}
	} else {
		ids, err := project.IDsInScope(ctx, svc.projects, actor)
		if err != nil {
			return nil, 0, err
		}
		if ids != nil && len(ids) == 0 {
			return []Beneficiary{}, 0, nil
		}
		filter.ProjectIDs = ids
	}
	return svc.repo.QueryBeneficiaries(ctx, filter, ordering, page)
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, ub UpdateBeneficiary) (Beneficiary, error) {
	b, err := svc.load(ctx, actor, id, access.ActionUpdate)
	if err != nil {
		return Beneficiary{}, err
	}
	b = ub.apply(b)
	b.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateBeneficiary(ctx, b)
}

// Verify records the verification decision of the actor.
func (svc *Service) Verify(ctx context.Context, actor user.User, id string, v Verification) (Beneficiary, error) {
	b, err := svc.load(ctx, actor, id, access.ActionVerify)
	if err != nil {
		return Beneficiary{}, err
	}
	if b.VerificationStatus != VerificationPending {
		return Beneficiary{}, core.NewStateError("beneficiary has already been %s", b.VerificationStatus)
	}

	now := time.Now().UTC()
	b.VerificationStatus = v.Status
	b.VerifiedBy = actor.ID
	b.VerificationDate = &now
	if v.Remarks != "" {
		b.Remarks = core.CleanString(v.Remarks)
	}
	b.UpdatedAt = now
	return svc.repo.UpdateBeneficiary(ctx, b)
}

// AddBenefit appends a benefit entry. Only verified beneficiaries receive benefits.
func (svc *Service) AddBenefit(ctx context.Context, actor user.User, id string, nb NewBenefit) (Beneficiary, error) {
	b, err := svc.load(ctx, actor, id, access.ActionUpdate)
	if err != nil {
		return Beneficiary{}, err
	}
	if b.VerificationStatus != VerificationVerified {
		return Beneficiary{}, core.NewStateError("benefits can only be added to verified beneficiaries")
	}
	bn := Benefit(nb)
	if bn.Date.IsZero() {
		bn.Date = time.Now().UTC()
	}
	return svc.repo.AddBenefit(ctx, b.ID, bn)
}

// Delete removes a beneficiary unless a benefit was already disbursed to them.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	b, err := svc.load(ctx, actor, id, access.ActionDelete)
	if err != nil {
		return err
	}
	if b.HasDisbursed() {
		return ErrDisbursed
	}
	return svc.repo.DeleteBeneficiary(ctx, id)
}

func (svc *Service) load(ctx context.Context, actor user.User, id string, act access.Action) (Beneficiary, error) {
	b, err := svc.repo.GetBeneficiary(ctx, id)
	if err != nil {
		return Beneficiary{}, err
	}
	p, err := svc.projects.GetProject(ctx, b.ProjectID)
	if err != nil {
		return Beneficiary{}, err
	}
	if err := access.Check(actor, access.ResourceBeneficiary, act, p.Target()); err != nil {
		return Beneficiary{}, err
	}
	return b, nil
}
