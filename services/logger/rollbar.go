package logsvc

import (
	"context"
	"fmt"
	"io"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/user"
)

// RollbarLogger reports to Rollbar and writes every entry to a local logrus logger.
type RollbarLogger struct {
	local *logrus.Entry
	fatal func(entry *logrus.Entry, msg string) // mockable
}

func exit(entry *logrus.Entry, msg string) { entry.Fatal(msg) }

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger configures the global Rollbar client. Rollbar is disabled in debug and
// test mode or without a token. component tags the local log lines (api, db, admin).
func NewRollbarLogger(out io.Writer, component string, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)

	local := logrus.New()
	local.SetOutput(out)
	local.SetFormatter(&logrus.JSONFormatter{})
	local.SetLevel(logrus.InfoLevel)
	if conf.Debug {
		local.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		local.SetLevel(logrus.DebugLevel)
	}

	entry := local.WithFields(logrus.Fields{"app": conf.AppName, "component": component})
	return &RollbarLogger{local: entry, fatal: exit}
}

// With returns a logger for another component sharing the same sink.
func (l *RollbarLogger) With(component string) *RollbarLogger {
	return &RollbarLogger{local: l.local.WithField("component", component), fatal: l.fatal}
}

// expected fmt: msg | error, map[string]interface{}, user.User
// The user travels with the item as a Rollbar person context, so concurrent calls do not share it.
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, *logrus.Entry) {
	var usrSet bool
	entry := l.local
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch val := arg.(type) {
		case user.User:
			// set logged in User; only one
			if !usrSet {
				person := &rollbar.Person{Id: val.ID, Username: val.Name, Email: val.Email}
				newArgs = append(newArgs, rollbar.NewPersonContext(context.Background(), person))
				entry = entry.WithField("user", val.ID)
				usrSet = true
			}
			continue
		case error:
			entry = entry.WithError(val)
			if core.IsShutdown(val) {
				entry = entry.WithField("shutdown", true)
			}
		case map[string]interface{}:
			entry = entry.WithFields(val)
		default:
			entry = entry.WithField("extra", fmt.Sprintf("%+v", val))
		}
		newArgs = append(newArgs, arg)
	}
	return newArgs, entry
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	entry.Debug(msg)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	entry.Info(msg)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	entry.Warn(msg)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	entry.Error(msg)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.fatal(entry, msg)
}
