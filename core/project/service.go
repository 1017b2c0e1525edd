package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/user"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("project")
	ErrProjectExists = core.NewConflictError("a project with this project_id already exists")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, p Project) (Project, error)
		GetProject(ctx context.Context, id string) (Project, error)
		QueryProjects(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Project, int, error)
		UpdateProject(ctx context.Context, p Project) (Project, error)
		// IncrementFinancials atomically adds the deltas to the released/utilized counters.
		IncrementFinancials(ctx context.Context, id string, released, utilized float64) (Project, error)
		// SetProgress stores the overall progress and status computed from the milestones.
		SetProgress(ctx context.Context, id string, overall float64, status string, actualEnd *time.Time) (Project, error)
		DeleteProject(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create stores a new project. The project location must be within the actor's jurisdiction.
func (svc *Service) Create(ctx context.Context, actor user.User, np NewProject) (Project, error) {
	now := time.Now().UTC()
	p := Project{
		ID:                 uuid.New().String(),
		ProjectID:          np.ProjectID,
		Name:               np.Name,
		Description:        np.Description,
		SchemeType:         np.SchemeType,
		Location:           np.Location,
		ImplementingAgency: np.ImplementingAgency,
		Financials: Financials{
			EstimatedCost:    np.EstimatedCost,
			SanctionedAmount: np.SanctionedAmount,
		},
		Timeline: Timeline{
			StartDate:        np.StartDate.UTC(),
			ScheduledEndDate: np.ScheduledEndDate.UTC(),
		},
		Status:   np.Status,
		Priority: np.Priority,
		Approvals: Approvals{
			District: Approval{Status: ApprovalPending},
			State:    Approval{Status: ApprovalPending},
			Central:  Approval{Status: ApprovalPending},
			PACC:     Approval{Status: ApprovalPending},
		},
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := access.Check(actor, access.ResourceProject, access.ActionCreate, p.Target()); err != nil {
		return Project{}, err
	}
	return svc.repo.CreateProject(ctx, p)
}

// Get returns the project if the actor can read it.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if !access.CanAccess(actor, p.Target()) {
		return Project{}, core.NewForbiddenError("project is outside your jurisdiction")
	}
	return p, nil
}

// Query lists the projects within the actor's jurisdiction.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Project, int, error) {
	filter.Scope = access.ScopeOf(actor).Filter()
	if filter.Scope.Deny {
		return []Project{}, 0, nil
	}
	return svc.repo.QueryProjects(ctx, filter, ordering, page)
}

// InScope returns all the projects within the actor's jurisdiction (unpaginated).
func (svc *Service) InScope(ctx context.Context, actor user.User) ([]Project, error) {
	projects, _, err := svc.Query(ctx, actor, QueryFilter{}, nil, core.Pagination{})
	return projects, err
}

// Update applies an already validated update (see UpdateProject.Validate).
func (svc *Service) Update(ctx context.Context, actor user.User, id string, up UpdateProject) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if err := access.Check(actor, access.ResourceProject, access.ActionUpdate, p.Target()); err != nil {
		return Project{}, err
	}
	updated := up.apply(p)
	// moving the project elsewhere must keep it within the actor's jurisdiction
	if !access.CanAccess(actor, updated.Target()) {
		return Project{}, core.NewForbiddenError("new location is outside your jurisdiction")
	}
	if updated.Status == StatusCompleted && updated.Timeline.ActualEndDate == nil {
		now := time.Now().UTC()
		updated.Timeline.ActualEndDate = &now
	}
	updated.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProject(ctx, updated)
}

// Approve records the actor's decision at their approval level.
// A PACC approval starts a project awaiting it; any rejection puts the project on hold.
func (svc *Service) Approve(ctx context.Context, actor user.User, id string, decision ApprovalDecision) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if err := access.Check(actor, access.ResourceProject, access.ActionApprove, p.Target()); err != nil {
		return Project{}, err
	}

	level := ApprovalLevel(actor.Role)
	approval := p.Approvals.get(level)
	if approval == nil {
		return Project{}, core.NewForbiddenError("role %s has no project approval level", actor.Role)
	}
	if approval.Status != ApprovalPending {
		return Project{}, core.NewStateError("the %s approval has already been %s", level, approval.Status)
	}

	now := time.Now().UTC()
	*approval = Approval{Status: decision.Action, Date: &now, ApprovedBy: actor.ID, Remarks: decision.Remarks}
	switch {
	case decision.Action == ApprovalRejected:
		p.Status = StatusOnHold
	case level == LevelPACC && p.Status == StatusAwaitingPACC:
		p.Status = StatusInProgress
	}
	p.UpdatedAt = now

	p, err = svc.repo.UpdateProject(ctx, p)
	if err != nil {
		return Project{}, errors.Wrap(err, "updating project approvals")
	}
	return p, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Check(actor, access.ResourceProject, access.ActionDelete, p.Target()); err != nil {
		return err
	}
	return svc.repo.DeleteProject(ctx, id)
}

// ApprovalLevel maps a role to the project approval record it signs.
func ApprovalLevel(role string) string {
	switch role {
	case user.RoleDistrictPACCAdmin:
		return LevelPACC
	case user.RoleDistrictCollector:
		return LevelDistrict
	case user.RoleStateNodalAdmin, user.RoleStateSCCorporationAdmin:
		return LevelState
	case user.RoleCentralAdmin, user.RoleSuperAdmin:
		return LevelCentral
	default:
		return ""
	}
}

func (a *Approvals) get(level string) *Approval {
	switch level {
	case LevelDistrict:
		return &a.District
	case LevelState:
		return &a.State
	case LevelCentral:
		return &a.Central
	case LevelPACC:
		return &a.PACC
	default:
		return nil
	}
}

// IDsInScope returns the ids of the projects actor can read, or nil when the actor's scope is national
// (no constraint needed). Stores of project-owned resources filter on it.
func IDsInScope(ctx context.Context, repo Repository, actor user.User) ([]string, error) {
	scope := access.ScopeOf(actor)
	if scope.IsNational() {
		return nil, nil
	}
	filter := scope.Filter()
	if filter.Deny {
		return []string{}, nil
	}
	projects, _, err := repo.QueryProjects(ctx, QueryFilter{Scope: filter}, nil, core.Pagination{})
	if err != nil {
		return nil, errors.Wrap(err, "querying projects in scope")
	}
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return ids, nil
}
