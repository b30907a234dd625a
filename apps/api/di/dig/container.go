package dig_container

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/luna-app/luna/apps/api/echo"
	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
	emailsvc "github.com/luna-app/luna/services/email"
	logsvc "github.com/luna-app/luna/services/logger"
	"github.com/luna-app/luna/storage/database"
	inmemdb "github.com/luna-app/luna/storage/database/inmem"
	mongodb "github.com/luna-app/luna/storage/database/mongo"
	sqlxrepos "github.com/luna-app/luna/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories is everything the configured database engine provides.
type Repositories struct {
	dig.Out
	Store     core.Store
	Users     user.Repository
	Forms     form.Repository
	Responses response.Repository
}

type ResponseServiceParams struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	Repo     response.Repository
	Forms    form.Repository
	UserSvc  *user.Service
	MailSvc  core.EmailService
	Validate *validator.Validate
}

type ServerParams struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	Shutdown    chan os.Signal
	UserSvc     *user.Service
	FormSvc     *form.Service
	ResponseSvc *response.Service
	Validate    *validator.Validate
	Translator  ut.Translator
}

func newRollbarLogger(conf *core.Config) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(os.Stdout, "api", conf)
}

func newLogger(rbLogger *logsvc.RollbarLogger) core.Logger {
	return rbLogger
}

func newDBLogger(rbLogger *logsvc.RollbarLogger) core.Logger {
	return rbLogger.With("db")
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	ctx := context.Background()
	logger := loggerParam.Logger

	switch conf.Database.Engine {
	case core.EngineMongo:
		db, err := mongodb.Open(ctx, conf)
		if err != nil {
			logger.Fatal("setting up database", err)
		}
		return Repositories{
			Store:     db,
			Users:     mongodb.NewUserRepository(db),
			Forms:     mongodb.NewFormRepository(db),
			Responses: mongodb.NewResponseRepository(db),
		}

	case core.EngineMemory:
		logger.Warn("using the in-memory database; data is lost on shutdown")
		db := inmemdb.Open()
		return Repositories{
			Store:     db,
			Users:     inmemdb.NewUserRepository(db),
			Forms:     inmemdb.NewFormRepository(db),
			Responses: inmemdb.NewResponseRepository(db),
		}

	default:
		setUp := func() (*database.DB, error) {
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return nil, err
			}
			db, err := database.Open(ctx, conf)
			if err != nil {
				return nil, err
			}
			if err = database.Migrate(db.DB.DB); err != nil {
				_ = db.Close(ctx)
				return nil, err
			}
			return db, nil
		}

		db, err := setUp()
		if err != nil {
			logger.Fatal("setting up database", err)
		}
		return Repositories{
			Store:     db,
			Users:     sqlxrepos.NewUserRepository(db.DB),
			Forms:     sqlxrepos.NewFormRepository(db.DB),
			Responses: sqlxrepos.NewResponseRepository(db.DB),
		}
	}
}

// newValidator returns a validator with every custom tag and translation registered.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	form.InitValidators(validate, translator)
	response.InitValidators(validate, translator)
	return validate
}

func newResponseService(p ResponseServiceParams) *response.Service {
	return response.NewService(response.Deps{
		Repo:     p.Repo,
		Forms:    p.Forms,
		Users:    p.UserSvc,
		MailSvc:  p.MailSvc,
		Logger:   p.Logger,
		Conf:     p.Conf,
		Validate: p.Validate,
	})
}

func newShutdownChannel() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf.Server.Address, p.Shutdown, &echoapi.Deps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		UserSvc:     p.UserSvc,
		FormSvc:     p.FormSvc,
		ResponseSvc: p.ResponseSvc,
		Validate:    p.Validate,
		Translator:  p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newRollbarLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(emailsvc.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(form.NewService))
	must(c.Provide(newResponseService))
	must(c.Provide(newShutdownChannel))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
