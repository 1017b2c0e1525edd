package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	dig_container "github.com/trezcool/pmajay/apps/api/di/dig"
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

func main() {
	c := dig_container.New(core.NewConfig)

	var runErr error
	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		users user.Repository,
		usrSvc user.ServiceInterface,
		projectSvc *project.Service,
		milestoneSvc *milestone.Service,
		migrate dig_container.DBMigrator,
		closeDB dig_container.DBCloser,
		validate *validator.Validate,
		translator ut.Translator,
	) {
		defer func() {
			if err := closeDB(context.Background()); err != nil {
				logger.Error("closing database", err)
			}
		}()

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		user.LoadCommonPasswords(conf, logger)

		cli := &commandLine{
			validate:     validate,
			translator:   translator,
			users:        users,
			usrSvc:       usrSvc,
			projectSvc:   projectSvc,
			milestoneSvc: milestoneSvc,
			migrate:      migrate,
			out:          os.Stdout,
		}
		runErr = cli.run(os.Args[1:])
	})
	if err == nil {
		err = runErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}
