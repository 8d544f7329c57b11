// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xexec runs the external commands (shell scripts, simulation and
// analysis executables) of a production.
package xexec // import "github.com/AliceO2Group/DelphesO2/internal/xexec"

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/AliceO2Group/DelphesO2/internal/xlog"
	"github.com/sbinet/pmon"
	"golang.org/x/sys/unix"
)

// Cmd describes how to run shell command lines.
type Cmd struct {
	Dir string       // working directory of the command
	Log io.Writer    // if not nil, receives the output of the command
	Msg *xlog.Logger // verbose messages and warnings

	// Monitor, if not nil, enables the monitoring of the CPU and memory
	// usage of the command.
	Monitor *Monitor
}

// Monitor configures the pmon monitoring of a command.
type Monitor struct {
	W    io.Writer     // destination of the monitoring data
	Freq time.Duration // sampling interval
}

// Run runs the command line with bash, in its own process group,
// and returns its combined output.
// Cancelling ctx kills the whole process group.
func (c *Cmd) Run(ctx context.Context, cmdline string) (string, error) {
	msg := c.Msg
	if msg == nil {
		msg = xlog.Discard()
	}
	msg.Verbosef("running '%s'", cmdline)

	var (
		buf = new(bytes.Buffer)
		out io.Writer
		cmd = exec.CommandContext(ctx, "bash", "-c", cmdline)
	)
	out = buf
	if c.Log != nil {
		out = io.MultiWriter(buf, c.Log)
	}

	cmd.Dir = c.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process)
	}
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Start()
	if err != nil {
		return "", fmt.Errorf("xexec: could not start '%s': %w", cmdline, err)
	}

	if c.Monitor != nil {
		stop, err := c.monitor(cmd.Process.Pid, msg)
		if err != nil {
			_ = killGroup(cmd.Process)
			_ = cmd.Wait()
			return "", fmt.Errorf("xexec: could not monitor '%s': %w", cmdline, err)
		}
		defer stop()
	}

	err = cmd.Wait()
	content := strings.TrimSpace(buf.String())
	if content != "" {
		for _, line := range strings.Split(content, "\n") {
			msg.Verbosef("++ %s", line)
		}
	}
	if strings.Contains(content, "Encountered error") {
		msg.Warnf("error encountered at runtime in '%s'", cmdline)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return content, fmt.Errorf("xexec: '%s' interrupted: %w", cmdline, ctxErr)
		}
		return content, fmt.Errorf("xexec: could not run '%s': %w", cmdline, err)
	}
	return content, nil
}

func (c *Cmd) monitor(pid int, msg *xlog.Logger) (func(), error) {
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not start monitoring pid=%d: %w", pid, err)
	}
	p.W = c.Monitor.W
	if c.Monitor.Freq > 0 {
		p.Freq = c.Monitor.Freq
	}

	go func() {
		err := p.Run()
		if err != nil {
			msg.Verbosef("could not monitor pid=%d: %+v", pid, err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			msg.Verbosef("could not stop monitoring pid=%d: %+v", pid, err)
		}
	}, nil
}

func killGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	err := unix.Kill(-p.Pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

// ScanLog returns the lines of the named log file reporting an error,
// ie: containing "ERROR" or "FATAL".
func ScanLog(fname string) ([]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("xexec: could not open log file %q: %w", fname, err)
	}
	defer f.Close()

	var (
		lines []string
		sc    = bufio.NewScanner(f)
	)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "ERROR") || strings.Contains(line, "FATAL") {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	err = sc.Err()
	if err != nil {
		return lines, fmt.Errorf("xexec: could not scan log file %q: %w", fname, err)
	}
	return lines, nil
}
