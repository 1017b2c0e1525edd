package logsvc

import (
	"fmt"
	"io"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

// RollbarLogger reports to Rollbar and writes structured lines through zerolog.
type RollbarLogger struct {
	zl zerolog.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(w io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)

	if w == nil {
		w = os.Stdout
	}
	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("app", conf.AppName).Str("env", conf.Env).Logger()
	return &RollbarLogger{zl: zl}
}

// With returns a logger tagging every line with the given component.
func (l RollbarLogger) With(component string) *RollbarLogger {
	return &RollbarLogger{zl: l.zl.With().Str("component", component).Logger()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Name, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) write(ev *zerolog.Event, msg string, args []interface{}) {
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			ev = ev.Err(a)
		case user.User:
			ev = ev.Str("user_id", a.ID).Str("user_role", a.Role)
		case map[string]interface{}:
			ev = ev.Fields(a)
		default:
			ev = ev.Str("extra", fmt.Sprintf("%+v", a))
		}
	}
	ev.Msg(msg)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.write(l.zl.Debug(), msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.write(l.zl.Info(), msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.write(l.zl.Warn(), msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.write(l.zl.Error(), msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.write(l.zl.Fatal(), msg, args) // exits
}
