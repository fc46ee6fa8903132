// Copyright 2024 The nds Authors
// This file is part of the nds library.
//
// The nds library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The nds library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the nds library. If not, see <http://www.gnu.org/licenses/>.

// Package log is a small leveled logger in the style of go-ethereum's own
// log package: a handful of package-level helpers (Trace/Debug/Info/Warn/
// Error/Crit) writing through a root Logger, with a terminal-aware handler
// when stderr is a TTY.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a log level, ordered from least to most verbose.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "?????"
	}
}

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Ctx is a list of alternating key/value pairs accepted as structured
// logging fields.
type Ctx []interface{}

// Logger emits leveled, structured log lines.
type Logger struct {
	name string
	ctx  Ctx
}

var (
	mu       sync.Mutex
	out      = colorable.NewColorable(os.Stderr)
	isTTY    = isatty.IsTerminal(os.Stderr.Fd())
	level    = LvlInfo
	rootOnce sync.Once
	root     *Logger
)

// Root returns the process-wide default logger.
func Root() *Logger {
	rootOnce.Do(func() { root = &Logger{} })
	return root
}

// New returns a child logger with additional persistent context.
func New(ctx ...interface{}) *Logger {
	return Root().New(ctx...)
}

// New returns a child of l carrying additional persistent context fields.
func (l *Logger) New(ctx ...interface{}) *Logger {
	merged := make(Ctx, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &Logger{name: l.name, ctx: merged}
}

// SetLevel adjusts the process-wide verbosity threshold.
func SetLevel(lvl Lvl) {
	mu.Lock()
	defer mu.Unlock()
	level = lvl
}

func (l *Logger) log(lvl Lvl, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > level {
		return
	}
	line := formatLine(lvl, msg, append(append(Ctx{}, l.ctx...), ctx...))
	fmt.Fprint(out, line)
}

func formatLine(lvl Lvl, msg string, ctx Ctx) string {
	ts := time.Now().Format("2006-01-02T15:04:05-0700")
	tag := lvl.String()
	if isTTY {
		if c, ok := levelColor[lvl]; ok {
			tag = c.Sprintf("%-5s", tag)
		}
	}
	s := fmt.Sprintf("%s[%s] %s", ts, tag, msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		s += fmt.Sprintf(" %v=%v", ctx[i], ctx[i+1])
	}
	return s + "\n"
}

func (l *Logger) Trace(msg string, ctx ...interface{}) { l.log(LvlTrace, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.log(LvlDebug, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.log(LvlInfo, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.log(LvlWarn, msg, ctx) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.log(LvlError, msg, ctx) }

// Crit logs at the critical level, annotated with the caller's frame, and
// terminates the process.
func (l *Logger) Crit(msg string, ctx ...interface{}) {
	call := stack.Caller(1)
	l.log(LvlCrit, msg, append(ctx, "caller", fmt.Sprintf("%+v", call)))
	os.Exit(1)
}

func Trace(msg string, ctx ...interface{}) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root().Crit(msg, ctx...) }
