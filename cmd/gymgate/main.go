package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/gymstack/gymgate"
	"github.com/gymstack/gymgate/config"
	"github.com/gymstack/gymgate/middleware/sessionware"
)

type App struct {
	config *gconfig.Container[*config.AppConfig]
	bunDB  *bun.DB
	auth   gymgate.Authenticator
	repo   gymgate.RepositoryManager
	srv    *fiber.App
	logger *glog.BaseLogger
}

func (a *App) Config() *config.AppConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	godotenv.Load()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("gymgate"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.AppConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if app.Config().GetServer().Debug {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
		fmt.Println("============")
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	go func() {
		if err := app.srv.Listen(app.Config().GetServer().GetAddress()); err != nil {
			app.GetLogger("server").Error("server stopped", "error", err)
		}
	}()

	WaitExitSignal()

	if err := app.srv.Shutdown(); err != nil {
		app.GetLogger("server").Error("shutdown error", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.Config().GetPersistence().GetDSN())
	if err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := gymgate.CreateSchema(ctx, db); err != nil {
		return err
	}

	app.bunDB = db
	app.repo = gymgate.NewRepositoryManager(db, gymgate.WithPrincipalsStateMachineOptions(
		gymgate.WithStateMachineActivitySink(activityLogger(app.GetLogger("activity"))),
	))

	return app.repo.Validate()
}

func WithHTTPServer(ctx context.Context, app *App) error {
	acfg := app.Config().GetAuth()
	scfg := app.Config().GetServer()

	authenticator := gymgate.NewAuthenticator(app.repo.Principals(), acfg).
		WithLogger(loggerAdapter{app.GetLogger("auth")}).
		WithActivitySink(activityLogger(app.GetLogger("activity")))

	if urls := acfg.ExternalJWKSetURLs; len(urls) > 0 {
		jwks, err := gymgate.NewJWKSValidator(urls, "", loggerAdapter{app.GetLogger("jwks")})
		if err != nil {
			return err
		}
		authenticator.WithTokenValidator(gymgate.NewMultiTokenValidator(
			authenticator.TokenService(),
			jwks,
		))
	}

	app.auth = authenticator

	srv := fiber.New(fiber.Config{
		AppName:      scfg.Name,
		ErrorHandler: gymgate.HTTPErrorHandler(loggerAdapter{app.GetLogger("http")}),
	})

	cookies := gymgate.NewSessionCookies(acfg, acfg.SecureCookies || scfg.IsProduction())

	protected := sessionware.New(sessionware.Config{
		Auther:        authenticator,
		EnforceStatus: acfg.EnforceStatus,
		Logger:        loggerAdapter{app.GetLogger("session")},
	})

	controller := gymgate.NewAuthController(
		gymgate.WithControllerRepo(app.repo),
		gymgate.WithControllerAuther(authenticator),
		gymgate.WithControllerCookies(cookies),
		gymgate.WithControllerLogger(loggerAdapter{app.GetLogger("auth:ctrl")}),
		gymgate.WithControllerActivitySink(activityLogger(app.GetLogger("activity"))),
		gymgate.WithControllerDebug(scfg.Debug),
	)
	controller.DefaultPhoneRegion = acfg.GetDefaultPhoneRegion()

	gymgate.StatusWaitTimeout = acfg.GetStatusWait()

	gymgate.RegisterAuthRoutes(srv, controller, protected)

	app.srv = srv

	return nil
}

func activityLogger(lgr glog.Logger) gymgate.ActivitySink {
	return gymgate.ActivitySinkFunc(func(ctx context.Context, event gymgate.ActivityEvent) error {
		lgr.Info("activity",
			"event", string(event.EventType),
			"principal_id", event.PrincipalID,
			"from", string(event.FromStatus),
			"to", string(event.ToStatus),
		)
		return nil
	})
}

// loggerAdapter bridges glog loggers to the auth package Logger interface.
type loggerAdapter struct {
	lgr glog.Logger
}

func (l loggerAdapter) Debug(format string, args ...any) { l.lgr.Debug(format, args...) }
func (l loggerAdapter) Info(format string, args ...any)  { l.lgr.Info(format, args...) }
func (l loggerAdapter) Warn(format string, args ...any)  { l.lgr.Warn(format, args...) }
func (l loggerAdapter) Error(format string, args ...any) { l.lgr.Error(format, args...) }

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
