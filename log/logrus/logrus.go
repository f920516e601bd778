// Package logrus adapts a *logrus.Entry to kvstore.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/kvstore"
)

var _ kvstore.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with a "component" field.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: l.WithField("component", "kvstore")}
}

func (l Logger) Debug(msg string, f kvstore.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f kvstore.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f kvstore.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f kvstore.Fields) { l.with(f).Error(msg) }

// with maps an "err" field to logrus' error key.
func (l Logger) with(f kvstore.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
