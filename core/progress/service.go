package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("progress update")
	ErrUpdateExists = core.NewConflictError("a progress update with this update_id already exists")
)

type (
	Repository interface {
		CreateUpdate(ctx context.Context, u Update) (Update, error)
		GetUpdate(ctx context.Context, id string) (Update, error)
		QueryUpdates(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Update, int, error)
		UpdateUpdate(ctx context.Context, u Update) (Update, error)
		DeleteUpdate(ctx context.Context, id string) error
	}

	Service struct {
		repo         Repository
		projects     project.Repository
		milestones   milestone.Repository
		funds        *fund.Service
		txn          core.Transactor
		notifier     core.Notifier
		releaseRatio float64
		deleteWindow time.Duration
		logger       core.Logger
	}
)

func NewService(
	repo Repository,
	projects project.Repository,
	milestones milestone.Repository,
	funds *fund.Service,
	txn core.Transactor,
	notifier core.Notifier,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:         repo,
		projects:     projects,
		milestones:   milestones,
		funds:        funds,
		txn:          txn,
		notifier:     notifier,
		releaseRatio: conf.Workflow.MilestoneReleaseRatio,
		deleteWindow: conf.Workflow.ProgressDeleteWindow,
		logger:       logger,
	}
}

// Create stores a progress report. Reporting 100% on a milestone completes it, recomputes the
// project progress and creates a fund release for it, all in one storage transaction.
// A lower percentage only raises the milestone completion.
func (svc *Service) Create(ctx context.Context, actor user.User, nu NewUpdate) (Result, error) {
	p, err := svc.projects.GetProject(ctx, nu.ProjectID)
	if err != nil {
		return Result{}, err
	}
	if err := access.Check(actor, access.ResourceProgress, access.ActionCreate, p.Target()); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	if nu.UpdateID == "" {
		nu.UpdateID = newUpdateID(now)
	}
	if nu.Issues == nil {
		nu.Issues = []Issue{}
	}
	u := Update{
		ID:                uuid.New().String(),
		UpdateID:          nu.UpdateID,
		ProjectID:         p.ID,
		MilestoneID:       nu.MilestoneID,
		UpdateType:        nu.UpdateType,
		WorkCompleted:     nu.WorkCompleted,
		Issues:            nu.Issues,
		QualityParameters: nu.QualityParameters,
		CreatedBy:         actor.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var res Result
	err = svc.txn.WithinTransaction(ctx, func(ctx context.Context) error {
		res = Result{}
		if u.MilestoneID != "" {
			m, tx, err := svc.applyToMilestone(ctx, p, u, actor.ID, now)
			if err != nil {
				return err
			}
			res.Milestone = m
			if tx != nil {
				u.TriggeredTransactionID = tx.ID
				res.FundRelease = tx
			}
		}
		created, err := svc.repo.CreateUpdate(ctx, u)
		if err != nil {
			return err
		}
		res.Update = created
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.FundRelease != nil {
		svc.afterCompletion(ctx, p, *res.Milestone, *res.FundRelease)
	}
	return res, nil
}

// applyToMilestone runs the progress side effects on the milestone of u.
// It returns the updated milestone (nil when unchanged) and the release a completion created.
func (svc *Service) applyToMilestone(ctx context.Context, p project.Project, u Update, by string, now time.Time) (*milestone.Milestone, *fund.Transaction, error) {
	m, err := svc.milestones.GetMilestone(ctx, u.MilestoneID)
	if err != nil {
		return nil, nil, err
	}
	if m.ProjectID != p.ID {
		return nil, nil, core.NewValidationError(nil, core.FieldError{Field: "milestone_id", Error: "milestone belongs to another project"})
	}
	if m.IsCompleted() {
		return nil, nil, nil
	}

	pct := u.Percentage()
	if pct < 100 {
		if !m.RecordProgress(pct, now) {
			return nil, nil, nil
		}
		if m, err = svc.milestones.UpdateMilestone(ctx, m); err != nil {
			return nil, nil, errors.Wrap(err, "updating milestone progress")
		}
		return &m, nil, nil
	}

	m.Complete(now)
	if m, err = svc.milestones.UpdateMilestone(ctx, m); err != nil {
		return nil, nil, errors.Wrap(err, "completing milestone")
	}

	amount := ReleaseAmount(m, p, svc.releaseRatio)
	tx, err := svc.funds.Store(ctx, svc.funds.NewMilestoneRelease(p, m, u.ID, by, amount, now))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating milestone fund release")
	}

	if err := svc.recomputeProjectProgress(ctx, p, now); err != nil {
		return nil, nil, err
	}
	return &m, &tx, nil
}

// ReleaseAmount is the milestone allocation, or `ratio` of the project sanctioned amount when the
// milestone has none.
func ReleaseAmount(m milestone.Milestone, p project.Project, ratio float64) float64 {
	if m.AllocatedAmount > 0 {
		return m.AllocatedAmount
	}
	return p.Financials.SanctionedAmount * ratio
}

// recomputeProjectProgress sets the project progress to its share of completed milestones.
func (svc *Service) recomputeProjectProgress(ctx context.Context, p project.Project, now time.Time) error {
	milestones, total, err := svc.milestones.QueryMilestones(ctx, milestone.QueryFilter{ProjectID: p.ID}, nil, core.Pagination{})
	if err != nil {
		return errors.Wrap(err, "loading project milestones")
	}
	if total == 0 {
		return nil
	}
	completed := 0
	for _, m := range milestones {
		if m.IsCompleted() {
			completed++
		}
	}

	overall, status := OverallProgress(completed, total, p.Status)
	actualEnd := p.Timeline.ActualEndDate
	if status == project.StatusCompleted && actualEnd == nil {
		actualEnd = &now
	}
	if _, err := svc.projects.SetProgress(ctx, p.ID, overall, status, actualEnd); err != nil {
		return errors.Wrap(err, "updating project progress")
	}
	return nil
}

// OverallProgress returns the project progress percentage and the status it implies.
func OverallProgress(completed, total int, currentStatus string) (float64, string) {
	if total == 0 {
		return 0, currentStatus
	}
	overall := float64(completed) / float64(total) * 100
	switch {
	case completed == total:
		return 100, project.StatusCompleted
	case completed > 0:
		return overall, project.StatusInProgress
	default:
		return overall, currentStatus
	}
}

func (svc *Service) afterCompletion(ctx context.Context, p project.Project, m milestone.Milestone, tx fund.Transaction) {
	svc.funds.NotifyApprovers(ctx, tx, p)

	if p.CreatedBy == "" {
		return
	}
	n := core.Notification{
		ID:          uuid.New().String(),
		RecipientID: p.CreatedBy,
		Kind:        core.NotificationMilestone,
		Title:       fmt.Sprintf("Milestone %s completed", m.Title),
		Body:        fmt.Sprintf("A release of %.2f was raised for project %s", tx.Amount, p.Name),
		Link:        "/milestones/" + m.ID,
		ProjectID:   p.ID,
		Data:        map[string]string{"milestone_id": m.ID, "transaction_id": tx.ID},
		CreatedAt:   time.Now().UTC(),
	}
	if err := svc.notifier.Notify(ctx, n); err != nil {
		svc.logger.Error("notifying milestone completion", errors.Wrap(err, "notifying milestone completion"))
	}
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Update, error) {
	u, _, err := svc.load(ctx, actor, id)
	return u, err
}

// Query lists the progress updates of the projects within the actor's jurisdiction.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Update, int, error) {
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
			return []Update{}, 0, nil
		}
		filter.ProjectIDs = ids
	}
	return svc.repo.QueryUpdates(ctx, filter, ordering, page)
}

// Update lets the creator of the update or a project administrator amend it.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, uu UpdateUpdate) (Update, error) {
	u, _, err := svc.load(ctx, actor, id)
	if err != nil {
		return Update{}, err
	}
	if u.CreatedBy != actor.ID && !access.IsAdminTier(actor) {
		return Update{}, core.NewForbiddenError("only the reporter or a project administrator can modify this update")
	}
	u = uu.apply(u)
	u.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUpdate(ctx, u)
}

// Delete lets the creator remove their update within the delete window, and administrators at any time.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	u, _, err := svc.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !CanDelete(actor, u, svc.deleteWindow, time.Now().UTC()) {
		return core.NewForbiddenError("progress updates can only be deleted by their reporter within %s of creation", svc.deleteWindow)
	}
	return svc.repo.DeleteUpdate(ctx, id)
}

// CanDelete reports whether actor may delete u at `now`.
func CanDelete(actor user.User, u Update, window time.Duration, now time.Time) bool {
	if access.Allowed(actor, access.ResourceProgress, access.ActionDelete) {
		return true
	}
	return u.CreatedBy == actor.ID && now.Sub(u.CreatedAt) <= window
}

func (svc *Service) load(ctx context.Context, actor user.User, id string) (Update, project.Project, error) {
	u, err := svc.repo.GetUpdate(ctx, id)
	if err != nil {
		return Update{}, project.Project{}, err
	}
	p, err := svc.projects.GetProject(ctx, u.ProjectID)
	if err != nil {
		return Update{}, project.Project{}, err
	}
	if !access.CanAccess(actor, p.Target()) {
		return Update{}, project.Project{}, core.NewForbiddenError("progress update is outside your jurisdiction")
	}
	return u, p, nil
}

func newUpdateID(at time.Time) string {
	return "PU-" + at.Format("20060102") + "-" + strings.ToUpper(uuid.New().String()[:8])
}
