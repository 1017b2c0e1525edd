package milestone

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("milestone")
	ErrMilestoneExists = core.NewConflictError("a milestone with this milestone_id already exists")
)

type (
	Repository interface {
		CreateMilestone(ctx context.Context, m Milestone) (Milestone, error)
		GetMilestone(ctx context.Context, id string) (Milestone, error)
		QueryMilestones(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Milestone, int, error)
		UpdateMilestone(ctx context.Context, m Milestone) (Milestone, error)
		DeleteMilestone(ctx context.Context, id string) error
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

// Create stores a new milestone under a project the actor may write to.
func (svc *Service) Create(ctx context.Context, actor user.User, nm NewMilestone) (Milestone, error) {
	p, err := svc.projects.GetProject(ctx, nm.ProjectID)
	if err != nil {
		return Milestone{}, err
	}
	if err := access.Check(actor, access.ResourceMilestone, access.ActionCreate, p.Target()); err != nil {
		return Milestone{}, err
	}

	now := time.Now().UTC()
	m := Milestone{
		ID:              uuid.New().String(),
		MilestoneID:     nm.MilestoneID,
		ProjectID:       p.ID,
		Title:           nm.Title,
		Description:     nm.Description,
		Category:        nm.Category,
		ScheduledDate:   nm.ScheduledDate.UTC(),
		Status:          StatusPending,
		AllocatedAmount: nm.AllocatedAmount,
		Dependencies:    nm.Dependencies,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if m.Dependencies == nil {
		m.Dependencies = []string{}
	}
	if err := svc.checkDependencies(ctx, m); err != nil {
		return Milestone{}, err
	}
	return svc.repo.CreateMilestone(ctx, m)
}

// Get returns the milestone if the actor can read its project.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Milestone, error) {
	m, _, err := svc.load(ctx, actor, id, access.ActionRead)
	return m, err
}

// Query lists the milestones of the projects within the actor's jurisdiction.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Milestone, int, error) {
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
			return []Milestone{}, 0, nil
		}
		filter.ProjectIDs = ids
	}
	return svc.repo.QueryMilestones(ctx, filter, ordering, page)
}

// Update applies an already validated update.
// Completion goes through progress updates, never through a direct edit.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, um UpdateMilestone) (Milestone, error) {
	m, _, err := svc.load(ctx, actor, id, access.ActionUpdate)
	if err != nil {
		return Milestone{}, err
	}
	if m.IsCompleted() && (um.Status != nil || um.CompletionPercentage != nil) {
		return Milestone{}, core.NewStateError("a completed milestone cannot change status or completion")
	}

	updated := um.apply(m)
	if um.Dependencies != nil {
		if err := svc.checkDependencies(ctx, updated); err != nil {
			return Milestone{}, err
		}
	}
	updated.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMilestone(ctx, updated)
}

// Verify stamps the actor as verifier of a completed milestone.
func (svc *Service) Verify(ctx context.Context, actor user.User, id string, v Verification) (Milestone, error) {
	m, _, err := svc.load(ctx, actor, id, access.ActionVerify)
	if err != nil {
		return Milestone{}, err
	}
	if !m.IsCompleted() {
		return Milestone{}, core.NewStateError("only completed milestones can be verified")
	}
	if m.VerifiedBy != "" {
		return Milestone{}, core.NewStateError("milestone has already been verified")
	}

	now := time.Now().UTC()
	m.VerifiedBy = actor.ID
	m.VerificationDate = &now
	if v.Remarks != "" {
		m.Remarks = core.CleanString(v.Remarks)
	}
	m.UpdatedAt = now
	return svc.repo.UpdateMilestone(ctx, m)
}

// Delete removes a milestone nothing depends on.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	m, _, err := svc.load(ctx, actor, id, access.ActionDelete)
	if err != nil {
		return err
	}
	_, dependents, err := svc.repo.QueryMilestones(ctx, QueryFilter{ProjectID: m.ProjectID, DependsOn: m.ID}, nil, core.Pagination{Limit: 1})
	if err != nil {
		return errors.Wrap(err, "counting dependent milestones")
	}
	if dependents > 0 {
		return core.NewStateError("%d milestone(s) depend on this milestone", dependents)
	}
	return svc.repo.DeleteMilestone(ctx, id)
}

func (svc *Service) load(ctx context.Context, actor user.User, id string, act access.Action) (Milestone, project.Project, error) {
	m, err := svc.repo.GetMilestone(ctx, id)
	if err != nil {
		return Milestone{}, project.Project{}, err
	}
	p, err := svc.projects.GetProject(ctx, m.ProjectID)
	if err != nil {
		return Milestone{}, project.Project{}, err
	}
	if err := access.Check(actor, access.ResourceMilestone, act, p.Target()); err != nil {
		return Milestone{}, project.Project{}, err
	}
	return m, p, nil
}

// checkDependencies ensures every dependency is another milestone of the same project
// and that the resulting graph has no cycle.
func (svc *Service) checkDependencies(ctx context.Context, m Milestone) error {
	if len(m.Dependencies) == 0 {
		return nil
	}
	siblings, _, err := svc.repo.QueryMilestones(ctx, QueryFilter{ProjectID: m.ProjectID}, nil, core.Pagination{})
	if err != nil {
		return errors.Wrap(err, "loading project milestones")
	}

	graph := make(map[string][]string, len(siblings)+1)
	for _, s := range siblings {
		graph[s.ID] = s.Dependencies
	}
	for _, dep := range m.Dependencies {
		if dep == m.ID {
			return core.NewValidationError(nil, core.FieldError{Field: "dependencies", Error: "a milestone cannot depend on itself"})
		}
		if _, ok := graph[dep]; !ok {
			return core.NewValidationError(nil, core.FieldError{Field: "dependencies", Error: "unknown milestone " + dep + " in this project"})
		}
	}
	graph[m.ID] = m.Dependencies

	if HasCycle(graph, m.ID) {
		return core.NewValidationError(nil, core.FieldError{Field: "dependencies", Error: "dependencies form a cycle"})
	}
	return nil
}

// HasCycle reports whether start can reach itself following the dependency edges.
func HasCycle(graph map[string][]string, start string) bool {
	seen := make(map[string]bool)
	stack := append([]string(nil), graph[start]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == start {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, graph[id]...)
	}
	return false
}
