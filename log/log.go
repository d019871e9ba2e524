// Package log is a thin wrapper around log15 giving the rest of gotsdb
// a single structured logging call shape: log.Info("msg", "key", value, ...).
package log

import (
	"os"

	l15 "github.com/inconshreveable/log15"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var root = l15.New()

func init() {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		root.SetHandler(l15.StreamHandler(colorable.NewColorableStderr(), l15.TerminalFormat()))
	} else {
		root.SetHandler(l15.StreamHandler(os.Stderr, l15.LogfmtFormat()))
	}
}

// New returns a logger with the given context baked in, mirroring
// log15.Logger.New so call sites look like log.New("component", "engine").
func New(ctx ...interface{}) l15.Logger {
	return root.New(ctx...)
}

func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }

// SetHandler overrides the root handler.
func SetHandler(h l15.Handler) { root.SetHandler(h) }
