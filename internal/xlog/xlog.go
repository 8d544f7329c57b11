// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xlog provides the colored console messages shared by the
// DelphesO2 commands.
package xlog // import "github.com/AliceO2Group/DelphesO2/internal/xlog"

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ANSI escape sequences.
const (
	Bold      = "\033[1m"
	Underline = "\033[4m"
	Header    = "\033[95m"
	Blue      = "\033[94m"
	BoldBlue  = Bold + Blue
	Green     = "\033[92m"
	BoldGreen = Bold + Green
	Yellow    = "\033[93m"
	BoldWarn  = Bold + Yellow
	Red       = "\033[91m"
	BoldRed   = Bold + Red
	Reset     = "\033[0m"
)

// Logger prints colored messages on top of a log.Logger.
// A Logger is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	log     *log.Logger
	w       io.Writer
	color   bool
	verbose bool
}

// New returns a Logger writing to w with the provided prefix.
// Colors are enabled when w is a terminal and NO_COLOR is not set.
func New(w io.Writer, prefix string) *Logger {
	return &Logger{
		log:   log.New(w, prefix, 0),
		w:     w,
		color: colorable(w),
	}
}

// Discard returns a Logger that prints nothing.
func Discard() *Logger {
	return New(io.Discard, "")
}

func colorable(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetVerbose enables or disables verbose messages.
func (l *Logger) SetVerbose(v bool) {
	l.mu.Lock()
	l.verbose = v
	l.mu.Unlock()
}

// IsVerbose reports whether verbose messages are printed.
func (l *Logger) IsVerbose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verbose
}

// SetColor forces colors on or off.
func (l *Logger) SetColor(v bool) {
	l.mu.Lock()
	l.color = v
	l.mu.Unlock()
}

// Tee duplicates all messages, without colors, to w.
func (l *Logger) Tee(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.SetOutput(io.MultiWriter(l.w, &plain{w: w}))
}

// Writer returns the destination of the messages.
func (l *Logger) Writer() io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.log.Writer()
}

func (l *Logger) print(color, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txt := fmt.Sprintf(format, args...)
	if l.color && color != "" {
		txt = color + txt + Reset
	}
	l.log.Print(txt)
}

// Printf prints a standard message.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.print(BoldBlue, format, args...)
}

// Headerf prints a section header.
func (l *Logger) Headerf(format string, args ...interface{}) {
	l.print(Header, format, args...)
}

// Successf prints a message about a completed step.
func (l *Logger) Successf(format string, args ...interface{}) {
	l.print(BoldGreen, format, args...)
}

// Infof prints a low-key message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.print(Blue, format, args...)
}

// Warnf prints a warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.print(BoldWarn, "[WARNING] "+format, args...)
}

// Errorf prints a fatal error message and returns it as an error.
func (l *Logger) Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	l.print(BoldRed, "[FATAL] %v", err)
	return err
}

// Fatalf prints a fatal error message and exits.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.print(BoldRed, "[FATAL] "+format, args...)
	os.Exit(1)
}

// Verbosef prints a message only in verbose mode.
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if !l.IsVerbose() {
		return
	}
	l.print(Blue, "** "+format, args...)
}

// plain strips ANSI escape sequences from what is written to w.
type plain struct {
	w io.Writer
}

func (p *plain) Write(data []byte) (int, error) {
	_, err := io.WriteString(p.w, Strip(string(data)))
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Strip removes the ANSI escape sequences of this package from txt.
func Strip(txt string) string {
	if !strings.Contains(txt, "\033[") {
		return txt
	}
	return stripper.Replace(txt)
}

var stripper = strings.NewReplacer(
	Bold, "",
	Underline, "",
	Header, "",
	Blue, "",
	Green, "",
	Yellow, "",
	Red, "",
	Reset, "",
)
