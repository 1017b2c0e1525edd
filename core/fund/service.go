package fund

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("fund transaction")
	ErrStaleTransaction = core.NewConflictError("the transaction was modified concurrently, reload and retry")
)

type (
	Repository interface {
		CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error)
		GetTransaction(ctx context.Context, id string) (Transaction, error)
		QueryTransactions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Transaction, int, error)
		// UpdateTransaction stores tx only if the stored version still equals expectedVersion,
		// otherwise it returns ErrStaleTransaction. The stored version is incremented.
		UpdateTransaction(ctx context.Context, tx Transaction, expectedVersion int) (Transaction, error)
	}

	Service struct {
		repo       Repository
		projects   project.Repository
		milestones milestone.Repository
		users      user.Repository
		txn        core.Transactor
		notifier   core.Notifier
		threshold  float64
		logger     core.Logger
	}
)

func NewService(
	repo Repository,
	projects project.Repository,
	milestones milestone.Repository,
	users user.Repository,
	txn core.Transactor,
	notifier core.Notifier,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:       repo,
		projects:   projects,
		milestones: milestones,
		users:      users,
		txn:        txn,
		notifier:   notifier,
		threshold:  conf.Workflow.ApprovalThreshold,
		logger:     logger,
	}
}

// Create records a new transaction. Amounts at or above the approval threshold wait for the
// District, State and Central sign-off; smaller ones are approved (and applied to the project
// financials) immediately.
func (svc *Service) Create(ctx context.Context, actor user.User, nt NewTransaction) (Transaction, error) {
	p, err := svc.projects.GetProject(ctx, nt.ProjectID)
	if err != nil {
		return Transaction{}, err
	}
	if err := access.Check(actor, access.ResourceFund, access.ActionCreate, p.Target()); err != nil {
		return Transaction{}, err
	}
	if nt.MilestoneID != "" {
		m, err := svc.milestones.GetMilestone(ctx, nt.MilestoneID)
		if err != nil {
			return Transaction{}, err
		}
		if m.ProjectID != p.ID {
			return Transaction{}, core.NewValidationError(nil, core.FieldError{Field: "milestone_id", Error: "milestone belongs to another project"})
		}
	}

	now := time.Now().UTC()
	status, stages := Seed(nt.Amount, svc.threshold)
	tx := Transaction{
		ID:                uuid.New().String(),
		TransactionID:     NewTransactionID(now),
		ProjectID:         p.ID,
		MilestoneID:       nt.MilestoneID,
		TransactionType:   nt.TransactionType,
		Amount:            nt.Amount,
		SourceAgency:      nt.SourceAgency,
		DestinationAgency: nt.DestinationAgency,
		Purpose:           nt.Purpose,
		Status:            status,
		ApprovalWorkflow:  stages,
		AuditTrail:        []AuditEntry{},
		CreatedBy:         actor.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	released, utilized := tx.FinancialDeltas()
	if err := p.Financials.CheckFinancials(released, utilized); err != nil {
		return Transaction{}, err
	}

	details := fmt.Sprintf("%s of %.2f created with status %s", tx.TransactionType, tx.Amount, tx.Status)
	tx.audit(AuditCreated, actor.ID, details, now)
	if status == StatusApproved {
		tx.ApprovedBy = actor.ID
	}

	err = svc.txn.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if tx, err = svc.repo.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		if tx.Status == StatusApproved {
			return svc.applyFinancials(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	svc.NotifyApprovers(ctx, tx, p)
	return tx, nil
}

// NewMilestoneRelease builds the release a completed milestone triggers. It always goes through
// the full approval workflow whatever the amount. The caller persists it with Store.
func (svc *Service) NewMilestoneRelease(p project.Project, m milestone.Milestone, progressUpdateID, by string, amount float64, at time.Time) Transaction {
	destination := p.ImplementingAgency
	if destination == "" {
		destination = DefaultDestinationAgency
	}
	tx := Transaction{
		ID:                uuid.New().String(),
		TransactionID:     NewTransactionID(at),
		ProjectID:         p.ID,
		MilestoneID:       m.ID,
		ProgressUpdateID:  progressUpdateID,
		TransactionType:   TypeRelease,
		Amount:            amount,
		SourceAgency:      DefaultSourceAgency,
		DestinationAgency: destination,
		Purpose:           fmt.Sprintf("Milestone completion: %s", m.Title),
		Status:            StatusPending,
		ApprovalWorkflow:  pendingStages(),
		AuditTrail:        []AuditEntry{},
		CreatedBy:         by,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
	tx.audit(AuditCreated, by, fmt.Sprintf("automatic release of %.2f on completion of milestone %s", amount, m.MilestoneID), at)
	return tx
}

// Store persists a transaction built by NewMilestoneRelease.
func (svc *Service) Store(ctx context.Context, tx Transaction) (Transaction, error) {
	return svc.repo.CreateTransaction(ctx, tx)
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Transaction, error) {
	tx, _, err := svc.load(ctx, actor, id, access.ActionRead)
	return tx, err
}

// Query lists the transactions of the projects within the actor's jurisdiction.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Transaction, int, error) {
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
			return []Transaction{}, 0, nil
		}
		filter.ProjectIDs = ids
	}
	return svc.repo.QueryTransactions(ctx, filter, ordering, page)
}

// Pending lists the in-scope transactions waiting on the actor's approval level.
func (svc *Service) Pending(ctx context.Context, actor user.User, ordering []core.DBOrdering, page core.Pagination) ([]Transaction, int, error) {
	level := LevelFor(actor.Role)
	if level == "" {
		return []Transaction{}, 0, nil
	}
	return svc.Query(ctx, actor, QueryFilter{PendingLevel: level}, ordering, page)
}

// Act applies the actor's decision to the stage of their approval level.
// The final approval increments the project financials by the transaction amount, in the same
// storage transaction as the status change.
func (svc *Service) Act(ctx context.Context, actor user.User, id string, d Decision) (Transaction, error) {
	tx, p, err := svc.load(ctx, actor, id, access.ActionApprove)
	if err != nil {
		return Transaction{}, err
	}

	version := tx.Version
	if err := tx.Act(LevelFor(actor.Role), actor.ID, d.Action, d.Comments, time.Now().UTC()); err != nil {
		return Transaction{}, err
	}

	err = svc.txn.WithinTransaction(ctx, func(ctx context.Context) error {
		if tx.Status == StatusApproved {
			// counters may have moved since the transaction was created
			p, err := svc.projects.GetProject(ctx, tx.ProjectID)
			if err != nil {
				return err
			}
			released, utilized := tx.FinancialDeltas()
			if err := p.Financials.CheckFinancials(released, utilized); err != nil {
				return core.NewStateError("cannot approve: %s", err.Error())
			}
		}

		var err error
		if tx, err = svc.repo.UpdateTransaction(ctx, tx, version); err != nil {
			return err
		}
		if tx.Status == StatusApproved {
			return svc.applyFinancials(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	if tx.Status == StatusPending {
		svc.NotifyApprovers(ctx, tx, p)
	} else {
		svc.notifyCreator(ctx, tx)
	}
	return tx, nil
}

// UpdateStatus moves an approved transaction to In Transit, then Completed.
func (svc *Service) UpdateStatus(ctx context.Context, actor user.User, id string, sc StatusChange) (Transaction, error) {
	tx, _, err := svc.load(ctx, actor, id, access.ActionRelease)
	if err != nil {
		return Transaction{}, err
	}
	version := tx.Version
	if err := tx.Advance(sc.Status, actor.ID, sc.Details, time.Now().UTC()); err != nil {
		return Transaction{}, err
	}
	if tx, err = svc.repo.UpdateTransaction(ctx, tx, version); err != nil {
		return Transaction{}, err
	}
	svc.notifyCreator(ctx, tx)
	return tx, nil
}

func (svc *Service) applyFinancials(ctx context.Context, tx Transaction) error {
	released, utilized := tx.FinancialDeltas()
	if released == 0 && utilized == 0 {
		return nil
	}
	if _, err := svc.projects.IncrementFinancials(ctx, tx.ProjectID, released, utilized); err != nil {
		return errors.Wrap(err, "updating project financials")
	}
	return nil
}

func (svc *Service) load(ctx context.Context, actor user.User, id string, act access.Action) (Transaction, project.Project, error) {
	tx, err := svc.repo.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, project.Project{}, err
	}
	p, err := svc.projects.GetProject(ctx, tx.ProjectID)
	if err != nil {
		return Transaction{}, project.Project{}, err
	}
	if err := access.Check(actor, access.ResourceFund, act, p.Target()); err != nil {
		return Transaction{}, project.Project{}, err
	}
	return tx, p, nil
}

// ApproverRoles returns the roles signing the stage of level, highest priority first.
// It is the inverse of LevelFor.
func ApproverRoles(level string) []string {
	if level == "" {
		return nil
	}
	out := make([]string, 0)
	for _, r := range user.AllRoles {
		if LevelFor(r) == level {
			out = append(out, r)
		}
	}
	return out
}

// NotifyApprovers tells the users of the level the transaction waits on that it needs their decision.
func (svc *Service) NotifyApprovers(ctx context.Context, tx Transaction, p project.Project) {
	level := tx.NextLevel()
	if level == "" {
		return
	}

	active := true
	filter := user.QueryFilter{Roles: ApproverRoles(level), IsActive: &active}
	switch level {
	case LevelDistrict:
		filter.State, filter.District = p.Location.State, p.Location.District
	case LevelState:
		filter.State = p.Location.State
	}
	approvers, _, err := svc.users.QueryUsers(ctx, filter, nil, core.Pagination{})
	if err != nil {
		svc.logger.Error("loading fund approvers", errors.Wrap(err, "loading fund approvers"))
		return
	}

	for _, usr := range approvers {
		n := core.Notification{
			ID:             uuid.New().String(),
			RecipientID:    usr.ID,
			RecipientName:  usr.Name,
			RecipientEmail: usr.Email,
			Kind:           core.NotificationApprovalRequest,
			Title:          fmt.Sprintf("%s approval needed for %s", level, tx.TransactionID),
			Body:           fmt.Sprintf("%s of %.2f for project %s (%s)", tx.TransactionType, tx.Amount, p.Name, tx.Purpose),
			Link:           "/funds/" + tx.ID,
			ProjectID:      tx.ProjectID,
			Urgent:         true,
			Data:           map[string]string{"transaction_id": tx.ID, "level": level},
			CreatedAt:      time.Now().UTC(),
		}
		if err := svc.notifier.Notify(ctx, n); err != nil {
			svc.logger.Error("notifying fund approver", errors.Wrap(err, "notifying fund approver"))
		}
	}
}

func (svc *Service) notifyCreator(ctx context.Context, tx Transaction) {
	creator, err := svc.users.GetUser(ctx, user.GetFilter{ID: tx.CreatedBy})
	if err != nil {
		svc.logger.Warn("fund status notification skipped", err)
		return
	}
	n := core.Notification{
		ID:             uuid.New().String(),
		RecipientID:    creator.ID,
		RecipientName:  creator.Name,
		RecipientEmail: creator.Email,
		Kind:           core.NotificationFundStatus,
		Title:          fmt.Sprintf("Transaction %s is %s", tx.TransactionID, tx.Status),
		Body:           fmt.Sprintf("%s of %.2f: %s", tx.TransactionType, tx.Amount, tx.Purpose),
		Link:           "/funds/" + tx.ID,
		ProjectID:      tx.ProjectID,
		Data:           map[string]string{"transaction_id": tx.ID, "status": tx.Status},
		CreatedAt:      time.Now().UTC(),
	}
	if err := svc.notifier.Notify(ctx, n); err != nil {
		svc.logger.Error("notifying fund creator", errors.Wrap(err, "notifying fund creator"))
	}
}

// NewTransactionID returns a human readable unique transaction reference (TXN-YYYYMMDD-XXXXXXXX).
func NewTransactionID(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "TXN-" + at.Format("20060102") + "-" + suffix
}
