package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	dig_container "github.com/trezcool/pmajay/apps/api/di/dig"
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	validate     *validator.Validate
	translator   ut.Translator
	users        user.Repository
	usrSvc       user.ServiceInterface
	projectSvc   *project.Service
	milestoneSvc *milestone.Service
	migrate      dig_container.DBMigrator
	out          io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "PM-AJAY portal administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(cli.addUserCmd())
	root.AddCommand(cli.resetPasswordCmd())
	root.AddCommand(cli.migrateCmd())
	root.AddCommand(cli.seedCmd())
	root.AddCommand(cli.rolesCmd())
	return root
}

// run executes the command line args (without the program name).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) promptPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

// describe turns validation errors into a single readable error.
func (cli *commandLine) describe(err error) error {
	switch verr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msgs := make([]string, 0, len(verr))
		for _, fe := range verr {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Translate(cli.translator)))
		}
		sort.Strings(msgs)
		return errors.New(strings.Join(msgs, "; "))
	case *core.ValidationError:
		if len(verr.Fields) == 0 {
			return verr
		}
		msgs := make([]string, 0, len(verr.Fields))
		for _, fe := range verr.Fields {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Error))
		}
		sort.Strings(msgs)
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}

var (
	created = color.New(color.FgGreen).Sprint("CREATE ")
	updated = color.New(color.FgBlue).Sprint("UPDATE ")
	exists  = color.New(color.FgYellow).Sprint("EXISTS ")
)
