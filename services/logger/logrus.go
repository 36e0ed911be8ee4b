package logsvc

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

// NewStd builds the logrus logger of an app.
// It writes to the rotating log file when conf.Log.File is set, to stderr otherwise.
func NewStd(conf *core.Config) *logrus.Logger {
	var out io.Writer = os.Stderr
	if conf.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   conf.Log.File,
			MaxSize:    conf.Log.MaxSizeMB,
			MaxBackups: conf.Log.MaxBackups,
			Compress:   true,
		}
	}
	return NewStdWriter(out, conf)
}

// NewStdWriter builds a logrus logger writing to out.
func NewStdWriter(out io.Writer, conf *core.Config) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(out)
	if conf.Debug {
		lg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	} else {
		lg.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(conf.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if conf.Debug {
		level = logrus.DebugLevel
	}
	lg.SetLevel(level)
	return lg
}

// entry turns the args of a core.Logger call into logrus fields.
// expected fmt: error | map[string]interface{} | user.User
func entry(lg *logrus.Logger, args []interface{}) *logrus.Entry {
	e := logrus.NewEntry(lg)
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			e = e.WithError(a)
		case map[string]interface{}:
			e = e.WithFields(a)
		case user.User:
			e = e.WithField("user", a.Username)
		default:
			e = e.WithField("detail", a)
		}
	}
	return e
}
