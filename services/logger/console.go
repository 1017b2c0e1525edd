package logsvc

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/trezcool/pmajay/core"
)

// ConsoleLogger writes human-readable lines only. Used by the admin CLI and the tests.
type ConsoleLogger struct {
	RollbarLogger
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(w io.Writer, debug bool) *ConsoleLogger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).Level(level).With().Timestamp().Logger()
	return &ConsoleLogger{RollbarLogger{zl: zl}}
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) { l.write(l.zl.Debug(), msg, args) }
func (l ConsoleLogger) Info(msg string, args ...interface{})  { l.write(l.zl.Info(), msg, args) }
func (l ConsoleLogger) Warn(msg string, args ...interface{})  { l.write(l.zl.Warn(), msg, args) }
func (l ConsoleLogger) Error(msg string, args ...interface{}) { l.write(l.zl.Error(), msg, args) }
func (l ConsoleLogger) Fatal(msg string, args ...interface{}) { l.write(l.zl.Fatal(), msg, args) }
