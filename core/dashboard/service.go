// Package dashboard computes the read-only statistics shown on the role dashboards.
package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/beneficiary"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

type (
	ProjectStats struct {
		Total           int            `json:"total"`
		ByStatus        map[string]int `json:"by_status"`
		AverageProgress float64        `json:"average_progress"`
	}

	FinancialStats struct {
		Sanctioned      float64 `json:"sanctioned"`
		Released        float64 `json:"released"`
		Utilized        float64 `json:"utilized"`
		UtilizationRate float64 `json:"utilization_rate"`
	}

	MilestoneStats struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
		Delayed   int `json:"delayed"`
	}

	BeneficiaryStats struct {
		Total    int `json:"total"`
		Verified int `json:"verified"`
		Pending  int `json:"pending"`
	}

	Stats struct {
		Role             string           `json:"role"`
		Scope            string           `json:"scope"`
		DashboardRoute   string           `json:"dashboard_route"`
		Projects         ProjectStats     `json:"projects"`
		Financials       FinancialStats   `json:"financials"`
		Milestones       MilestoneStats   `json:"milestones"`
		Beneficiaries    BeneficiaryStats `json:"beneficiaries"`
		PendingApprovals int              `json:"pending_approvals"`
		UnreadMessages   int              `json:"unread_messages"`
		GeneratedAt      time.Time        `json:"generated_at"`
	}
)

type Service struct {
	projects      project.Repository
	milestones    milestone.Repository
	beneficiaries beneficiary.Repository
	funds         fund.Repository
	messages      message.Repository
	logger        core.Logger
}

func NewService(
	projects project.Repository,
	milestones milestone.Repository,
	beneficiaries beneficiary.Repository,
	funds fund.Repository,
	messages message.Repository,
	logger core.Logger,
) *Service {
	return &Service{
		projects:      projects,
		milestones:    milestones,
		beneficiaries: beneficiaries,
		funds:         funds,
		messages:      messages,
		logger:        logger,
	}
}

// Stats computes the rollups over the documents within the actor's jurisdiction.
func (svc *Service) Stats(ctx context.Context, actor user.User) (Stats, error) {
	scope := access.ScopeOf(actor)
	stats := Stats{
		Role:           actor.Role,
		Scope:          scope.String(),
		DashboardRoute: actor.DashboardRoute(),
		Projects:       ProjectStats{ByStatus: make(map[string]int)},
		GeneratedAt:    time.Now().UTC(),
	}
	if scope.IsDenied() {
		return stats, nil
	}

	projects, _, err := svc.projects.QueryProjects(ctx, project.QueryFilter{Scope: scope.Filter()}, nil, core.Pagination{})
	if err != nil {
		return Stats{}, errors.Wrap(err, "loading projects")
	}
	stats.Projects, stats.Financials = projectRollup(projects)
	if len(projects) == 0 {
		return stats, nil
	}

	var ids []string
	if !scope.IsNational() {
		ids = make([]string, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, _, err := svc.milestones.QueryMilestones(ctx, milestone.QueryFilter{ProjectIDs: ids}, nil, core.Pagination{})
		if err != nil {
			return errors.Wrap(err, "loading milestones")
		}
		stats.Milestones = milestoneRollup(ms, time.Now().UTC())
		return nil
	})
	g.Go(func() error {
		bs, _, err := svc.beneficiaries.QueryBeneficiaries(ctx, beneficiary.QueryFilter{ProjectIDs: ids}, nil, core.Pagination{})
		if err != nil {
			return errors.Wrap(err, "loading beneficiaries")
		}
		stats.Beneficiaries = beneficiaryRollup(bs)
		return nil
	})
	if level := fund.LevelFor(actor.Role); level != "" {
		g.Go(func() error {
			_, n, err := svc.funds.QueryTransactions(ctx, fund.QueryFilter{ProjectIDs: ids, PendingLevel: level}, nil, core.Pagination{Limit: 1})
			if err != nil {
				return errors.Wrap(err, "counting pending approvals")
			}
			stats.PendingApprovals = n
			return nil
		})
	}
	if message.IsMessagingRole(actor.Role) {
		g.Go(func() error {
			_, n, err := svc.messages.QueryMessages(ctx, message.QueryFilter{ReceiverID: actor.ID, Unread: true}, nil, core.Pagination{Limit: 1})
			if err != nil {
				return errors.Wrap(err, "counting unread messages")
			}
			stats.UnreadMessages = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func projectRollup(projects []project.Project) (ProjectStats, FinancialStats) {
	ps := ProjectStats{Total: len(projects), ByStatus: make(map[string]int)}
	var fs FinancialStats
	var progress float64
	for _, p := range projects {
		ps.ByStatus[p.Status]++
		progress += p.OverallProgress
		fs.Sanctioned += p.Financials.SanctionedAmount
		fs.Released += p.Financials.TotalReleased
		fs.Utilized += p.Financials.TotalUtilized
	}
	if len(projects) > 0 {
		ps.AverageProgress = progress / float64(len(projects))
	}
	if fs.Released > 0 {
		fs.UtilizationRate = fs.Utilized / fs.Released * 100
	}
	return ps, fs
}

func milestoneRollup(ms []milestone.Milestone, now time.Time) MilestoneStats {
	st := MilestoneStats{Total: len(ms)}
	for _, m := range ms {
		switch {
		case m.IsCompleted():
			st.Completed++
		case m.IsDelayed(now):
			st.Delayed++
		}
	}
	return st
}

func beneficiaryRollup(bs []beneficiary.Beneficiary) BeneficiaryStats {
	st := BeneficiaryStats{Total: len(bs)}
	for _, b := range bs {
		switch b.VerificationStatus {
		case beneficiary.VerificationVerified:
			st.Verified++
		case beneficiary.VerificationPending:
			st.Pending++
		}
	}
	return st
}
