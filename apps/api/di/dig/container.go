package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/pmajay/apps/api/echo"
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/beneficiary"
	"github.com/trezcool/pmajay/core/dashboard"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/progress"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
	emailsvc "github.com/trezcool/pmajay/services/email"
	logsvc "github.com/trezcool/pmajay/services/logger"
	notifysvc "github.com/trezcool/pmajay/services/notify"
	"github.com/trezcool/pmajay/storage/database"
	dummydb "github.com/trezcool/pmajay/storage/database/dummy"
	mongodb "github.com/trezcool/pmajay/storage/database/mongo"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DBCloser releases the storage connections on shutdown.
type DBCloser func(ctx context.Context) error

// DBMigrator creates the storage indexes. It is idempotent.
type DBMigrator func(ctx context.Context) error

// Storage is every repository of the selected database engine.
type Storage struct {
	dig.Out

	Transactor    core.Transactor
	Users         user.Repository
	Projects      project.Repository
	Milestones    milestone.Repository
	Beneficiaries beneficiary.Repository
	Funds         fund.Repository
	Progress      progress.Repository
	Messages      message.Repository
	Migrate       DBMigrator
	Close         DBCloser
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf).With("api")
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf).With("db")
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	logger := loggerParam.Logger

	switch conf.Database.Engine {
	case "memory":
		logger.Info("using the in-memory database")
		db := dummydb.Open()
		return Storage{
			Transactor:    db,
			Users:         dummydb.NewUserRepository(db),
			Projects:      dummydb.NewProjectRepository(db),
			Milestones:    dummydb.NewMilestoneRepository(db),
			Beneficiaries: dummydb.NewBeneficiaryRepository(db),
			Funds:         dummydb.NewFundRepository(db),
			Progress:      dummydb.NewProgressRepository(db),
			Messages:      dummydb.NewMessageRepository(db),
			Migrate:       func(context.Context) error { return nil },
			Close:         func(context.Context) error { return nil },
		}

	case "mongo":
		setUp := func() (*database.DB, error) {
			ctx, cancel := context.WithTimeout(context.Background(), conf.Database.Timeout)
			defer cancel()

			db, err := database.Open(ctx, conf)
			if err != nil {
				return nil, err
			}
			if err = database.Migrate(ctx, db); err != nil {
				_ = db.Close(context.Background())
				return nil, err
			}
			return db, nil
		}

		db, err := setUp()
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		return Storage{
			Transactor:    db,
			Users:         mongodb.NewUserRepository(db),
			Projects:      mongodb.NewProjectRepository(db),
			Milestones:    mongodb.NewMilestoneRepository(db),
			Beneficiaries: mongodb.NewBeneficiaryRepository(db),
			Funds:         mongodb.NewFundRepository(db),
			Progress:      mongodb.NewProgressRepository(db),
			Messages:      mongodb.NewMessageRepository(db),
			Migrate:       func(ctx context.Context) error { return database.Migrate(ctx, db) },
			Close:         db.Close,
		}

	default:
		err := errors.Errorf("unknown database engine %q", conf.Database.Engine)
		logger.Fatal(err.Error(), err)
		return Storage{}
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, os.Stdout, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newFeed keeps the notification history in SurrealDB when configured, in memory otherwise.
func newFeed(conf *core.Config, logger core.Logger) notifysvc.Feed {
	if conf.Realtime.SurrealURL == "" {
		return notifysvc.NewMemoryFeed(200)
	}
	feed, err := notifysvc.NewSurrealFeed(conf)
	if err != nil {
		logger.Error("connecting to the notification feed; falling back to memory", err)
		return notifysvc.NewMemoryFeed(200)
	}
	return feed
}

func newNotifier(hub *notifysvc.Hub, feed notifysvc.Feed, mailSvc core.EmailService) core.Notifier {
	return notifysvc.Fanout{hub, feed, notifysvc.NewMailNotifier(mailSvc)}
}

func newUserService(repo user.Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) user.ServiceInterface {
	return user.NewService(repo, mailSvc, conf, logger)
}

type serverParams struct {
	dig.In

	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	UserSvc        user.ServiceInterface
	ProjectSvc     *project.Service
	MilestoneSvc   *milestone.Service
	BeneficiarySvc *beneficiary.Service
	FundSvc        *fund.Service
	ProgressSvc    *progress.Service
	MessageSvc     *message.Service
	DashboardSvc   *dashboard.Service
	Hub            *notifysvc.Hub
	Feed           notifysvc.Feed
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		ProjectSvc:     p.ProjectSvc,
		MilestoneSvc:   p.MilestoneSvc,
		BeneficiarySvc: p.BeneficiarySvc,
		FundSvc:        p.FundSvc,
		ProgressSvc:    p.ProgressSvc,
		MessageSvc:     p.MessageSvc,
		DashboardSvc:   p.DashboardSvc,
		Hub:            p.Hub,
		Feed:           p.Feed,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig NewConfigFunc) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(notifysvc.NewHub))
	must(c.Provide(newFeed))
	must(c.Provide(newNotifier))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(validator.New))
	must(c.Provide(newUserService))
	must(c.Provide(project.NewService))
	must(c.Provide(milestone.NewService))
	must(c.Provide(beneficiary.NewService))
	must(c.Provide(fund.NewService))
	must(c.Provide(progress.NewService))
	must(c.Provide(message.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newServer))

	return c
}

type NewConfigFunc func() *core.Config

// Visualize writes the dependency graph of c in DOT format.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
