// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package grid provides tools to list, download and upload files on the
// AliEn grid, through the alien command line tools.
package grid // import "github.com/AliceO2Group/DelphesO2/grid"

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"strings"

	"github.com/AliceO2Group/DelphesO2/internal/xexec"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

// Prefix is the prefix of AliEn URLs.
const Prefix = "alien://"

// Execer runs command lines.
type Execer interface {
	Exec(ctx context.Context, cmdline string) (string, error)
}

type shell struct {
	cmd xexec.Cmd
}

func (sh *shell) Exec(ctx context.Context, cmdline string) (string, error) {
	return sh.cmd.Run(ctx, cmdline)
}

// Shell returns an Execer running command lines with bash, from the
// provided directory or the current one if empty.
func Shell(dir string, msg *xlog.Logger) Execer {
	return &shell{cmd: xexec.Cmd{Dir: dir, Msg: msg}}
}

// Version returns the version of the alien tools: 0 for the legacy tools
// (aliensh available), 1 otherwise.
func Version() int {
	if _, err := exec.LookPath("aliensh"); err == nil {
		return 0
	}
	return 1
}

// Client runs alien commands.
type Client struct {
	Version int    // version of the alien tools
	Dir     string // local directory of the downloaded files
	Retries int    // number of download attempts of ROOT files

	Exec Execer
	Msg  *xlog.Logger
}

// New returns a client downloading files under dir, with the alien tools
// version detected from the environment.
func New(dir string, msg *xlog.Logger) *Client {
	if msg == nil {
		msg = xlog.Discard()
	}
	if dir == "" {
		dir = "."
	}
	return &Client{
		Version: Version(),
		Dir:     dir,
		Retries: 4,
		Exec:    Shell("", msg),
		Msg:     msg,
	}
}

func (c *Client) run(ctx context.Context, format string, args ...interface{}) (string, error) {
	cmdline := fmt.Sprintf(format, args...)
	c.Msg.Verbosef("running command '%s'", cmdline)
	out, err := c.Exec.Exec(ctx, cmdline)
	if err != nil {
		return out, fmt.Errorf("grid: could not run '%s': %w", cmdline, err)
	}
	return out, nil
}

func lines(out string) []string {
	var o []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		o = append(o, line)
	}
	return o
}

// Find returns the files matching what under the provided grid path.
// With xml, the result is formatted as an XML collection.
func (c *Client) Find(ctx context.Context, dir, what string, xml bool) ([]string, error) {
	cmd := "alien_find"
	if xml {
		cmd += " -x collection"
	}
	out, err := c.run(ctx, "%s %s %s", cmd, dir, what)
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// List returns the content of the provided grid path.
func (c *Client) List(ctx context.Context, dir string) ([]string, error) {
	out, err := c.run(ctx, "alien_ls %s", dir)
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// Copy downloads the grid file src into the local directory dst.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	var err error
	switch c.Version {
	case 0:
		_, err = c.run(ctx, "alien_cp -v %s file:%s", src, dst)
	default:
		_, err = c.run(ctx, "alien_cp -v %s file://%s", src, dst)
	}
	return err
}

// Mkdir creates the provided grid directory.
func (c *Client) Mkdir(ctx context.Context, dir string) error {
	_, err := c.run(ctx, "alien_mkdir %s%s", Prefix, strings.TrimPrefix(dir, Prefix))
	return err
}

// Upload uploads the local file src to the grid path dst.
func (c *Client) Upload(ctx context.Context, src, dst string) error {
	_, err := c.run(ctx, "alien_cp %s %s%s", src, Prefix, strings.TrimPrefix(dst, Prefix))
	return err
}

// ListOptions configures the listing of grid files.
type ListOptions struct {
	User     string // owner of the files
	MainPath string // root of the user directories
	MustHave string // substring the files must contain
	SubDirs  int    // exact depth of the files below the scanned path, if positive
	XML      bool   // list files as an XML collection
}

// UserPath returns the grid path of the user directory p:
// <main>/<u>/<user>/<p>.
func UserPath(p string, opts ListOptions) string {
	var initial string
	if opts.User != "" {
		initial = opts.User[:1]
	}
	return path.Join(opts.MainPath, initial, opts.User, path.Clean(p))
}

// ListFiles lists the files matching what in the user directory p.
// An empty what lists the content of the directory.
func (c *Client) ListFiles(ctx context.Context, p, what string, opts ListOptions) ([]string, error) {
	c.Msg.Verbosef("listing files %q in path %q", what, p)
	scan := UserPath(p, opts)
	c.Msg.Printf("using path: %s", scan)

	if what == "" {
		return c.List(ctx, scan)
	}

	found, err := c.Find(ctx, scan, what, opts.XML)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range found {
		if !opts.XML && !strings.Contains(line, what) {
			continue
		}
		if opts.MustHave != "" && !strings.Contains(line, opts.MustHave) {
			c.Msg.Infof("discarding line '%s' as it doesn't have '%s'", line, opts.MustHave)
			continue
		}
		if opts.SubDirs > 0 {
			sub := strings.Trim(strings.TrimSpace(strings.Replace(line, scan, "", 1)), "/")
			dirs := strings.Split(sub, "/")
			if len(dirs)-1 != opts.SubDirs {
				continue
			}
		}
		files = append(files, line)
	}
	c.Msg.Printf("found %d files responding to all criteria", len(files))
	return files, nil
}
