package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	dig_container "github.com/trezcool/pmajay/apps/api/di/dig"
	echoapi "github.com/trezcool/pmajay/apps/api/echo"
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
	notifysvc "github.com/trezcool/pmajay/services/notify"
)

type closer interface{ Close() }

func startWithDig(graph bool) error {
	c := dig_container.New(core.NewConfig)
	if graph {
		return dig_container.Visualize(c)
	}

	return c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		closeDB dig_container.DBCloser,
		feed notifysvc.Feed,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)

		core.ParseEmailTemplates(conf, apiLogger)

		user.LoadCommonPasswords(conf, apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := closeDB(context.Background()); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		if f, ok := feed.(closer); ok {
			defer f.Close()
		}
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("database").Set(conf.Database.Engine)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		apiLogger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	})
}
