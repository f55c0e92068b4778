// Package logruslog adapts github.com/sirupsen/logrus to log.Logger.
package logruslog

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/kvcache/log"
)

var _ log.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New builds a text logger writing to w at the given level.
func New(w io.Writer, level string) (Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return Logger{}, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return Logger{E: logrus.NewEntry(l)}, nil
}

func (l Logger) Debug(msg string, f log.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l Logger) Info(msg string, f log.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f log.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f log.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
