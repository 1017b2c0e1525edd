// Package testutil builds in-memory fixtures shared by the package tests.
package testutil

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/beneficiary"
	"github.com/trezcool/pmajay/core/dashboard"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/progress"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/services/email"
	"github.com/trezcool/pmajay/services/logger"
	"github.com/trezcool/pmajay/storage/database/dummy"
)

// Logger discards everything below the error level.
var Logger core.Logger = logsvc.NewConsoleLogger(io.Discard, false)

var (
	// Translator renders validation errors in english.
	Translator = core.NewTranslator()

	// Validate has every custom validator registered.
	Validate = newValidate()
)

func newValidate() *validator.Validate {
	validate := core.NewValidator(Translator)
	user.InitValidators(validate, Translator)
	return validate
}

// Recorder is a core.Notifier that keeps what it was given.
type Recorder struct {
	mu  sync.Mutex
	all []core.Notification
}

func (r *Recorder) Notify(_ context.Context, n core.Notification) error {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
	return nil
}

// For returns the notifications sent to userID, oldest first.
func (r *Recorder) For(userID string) []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns := make([]core.Notification, 0)
	for _, n := range r.all {
		if n.RecipientID == userID {
			ns = append(ns, n)
		}
	}
	return ns
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.all = nil
	r.mu.Unlock()
}

// Env wires every service on one in-memory database.
type Env struct {
	Conf     *core.Config
	DB       *dummydb.DB
	Notifier *Recorder
	Mail     core.EmailService

	Users         user.Repository
	Projects      project.Repository
	Milestones    milestone.Repository
	Beneficiaries beneficiary.Repository
	Funds         fund.Repository
	Progress      progress.Repository
	Messages      message.Repository

	UserSvc        *user.Service
	ProjectSvc     *project.Service
	MilestoneSvc   *milestone.Service
	BeneficiarySvc *beneficiary.Service
	FundSvc        *fund.Service
	ProgressSvc    *progress.Service
	MessageSvc     *message.Service
	DashboardSvc   *dashboard.Service
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	db := dummydb.Open()
	env := &Env{
		Conf:          conf,
		DB:            db,
		Notifier:      &Recorder{},
		Mail:          emailsvc.NewConsoleServiceMock(conf, Logger),
		Users:         dummydb.NewUserRepository(db),
		Projects:      dummydb.NewProjectRepository(db),
		Milestones:    dummydb.NewMilestoneRepository(db),
		Beneficiaries: dummydb.NewBeneficiaryRepository(db),
		Funds:         dummydb.NewFundRepository(db),
		Progress:      dummydb.NewProgressRepository(db),
		Messages:      dummydb.NewMessageRepository(db),
	}
	env.UserSvc = user.NewService(env.Users, env.Mail, conf, Logger)
	env.ProjectSvc = project.NewService(env.Projects, Logger)
	env.MilestoneSvc = milestone.NewService(env.Milestones, env.Projects, Logger)
	env.BeneficiarySvc = beneficiary.NewService(env.Beneficiaries, env.Projects, Logger)
	env.FundSvc = fund.NewService(env.Funds, env.Projects, env.Milestones, env.Users, db, env.Notifier, conf, Logger)
	env.ProgressSvc = progress.NewService(env.Progress, env.Projects, env.Milestones, env.FundSvc, db, env.Notifier, conf, Logger)
	env.MessageSvc = message.NewService(env.Messages, env.Users, env.Projects, env.Notifier, Logger)
	env.DashboardSvc = dashboard.NewService(env.Projects, env.Milestones, env.Beneficiaries, env.Funds, env.Messages, Logger)
	return env
}

func Loc(state, district string, village ...string) core.Location {
	loc := core.Location{State: state, District: district}
	if len(village) > 0 {
		loc.Village = village[0]
	}
	return loc
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd, role string, jurisdiction core.Location) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Role:         role,
		Jurisdiction: jurisdiction,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	usr.SetActive(true)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProject(t *testing.T, repo project.Repository, creator user.User, projectID string, loc core.Location, sanctioned float64) project.Project {
	t.Helper()
	now := time.Now().UTC()
	p := project.Project{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		Name:       "Project " + projectID,
		SchemeType: project.SchemeAdarshGram,
		Location:   project.Location{Location: loc},
		Financials: project.Financials{EstimatedCost: sanctioned, SanctionedAmount: sanctioned},
		Timeline: project.Timeline{
			StartDate:        now.AddDate(0, -1, 0),
			ScheduledEndDate: now.AddDate(1, 0, 0),
		},
		Status:    project.StatusInProgress,
		Priority:  project.PriorityMedium,
		CreatedBy: creator.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p, err := repo.CreateProject(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return p
}

func CreateMilestone(t *testing.T, repo milestone.Repository, p project.Project, milestoneID string, allocated float64, deps ...string) milestone.Milestone {
	t.Helper()
	now := time.Now().UTC()
	if deps == nil {
		deps = []string{}
	}
	m := milestone.Milestone{
		ID:              uuid.New().String(),
		MilestoneID:     milestoneID,
		ProjectID:       p.ID,
		Title:           "Milestone " + milestoneID,
		Category:        milestone.CategoryExecution,
		ScheduledDate:   now.AddDate(0, 2, 0),
		Status:          milestone.StatusPending,
		AllocatedAmount: allocated,
		Dependencies:    deps,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m, err := repo.CreateMilestone(context.Background(), m)
	if err != nil {
		t.Fatalf("CreateMilestone() failed: %v", err)
	}
	return m
}

func CreateBeneficiary(t *testing.T, repo beneficiary.Repository, p project.Project, beneficiaryID, name, aadhaar string) beneficiary.Beneficiary {
	t.Helper()
	now := time.Now().UTC()
	b := beneficiary.Beneficiary{
		ID:            uuid.New().String(),
		BeneficiaryID: beneficiaryID,
		ProjectID:     p.ID,
		PersonalInfo: beneficiary.PersonalInfo{
			Name:          name,
			AadhaarNumber: aadhaar,
			Category:      beneficiary.CategorySC,
			Gender:        "Female",
			Age:           34,
		},
		BenefitsReceived:   []beneficiary.Benefit{},
		VerificationStatus: beneficiary.VerificationPending,
		CreatedBy:          p.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	b, err := repo.CreateBeneficiary(context.Background(), b)
	if err != nil {
		t.Fatalf("CreateBeneficiary() failed: %v", err)
	}
	return b
}
