package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/lookasidecache/lookaside"
)

type LogrusLogger struct{ E *logrus.Entry }

var _ lookaside.Logger = LogrusLogger{}

func (l LogrusLogger) Debug(msg string, f lookaside.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f lookaside.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}
func (l LogrusLogger) Warn(msg string, f lookaside.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}
func (l LogrusLogger) Error(msg string, f lookaside.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
