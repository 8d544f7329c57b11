// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/AliceO2Group/DelphesO2/aod"
	"github.com/AliceO2Group/DelphesO2/internal/pool"
)

// ErrSkipped is returned when writing a list of files is declined.
var ErrSkipped = errors.New("grid: list of files not written")

// WriteFiles writes the list of files to the named output file.
// When the file exists and is not appended to, confirm is asked whether
// to replace it.
func WriteFiles(files []string, out string, appending bool, confirm func(question string) bool) (int, error) {
	if _, err := os.Stat(out); err == nil && !appending {
		if confirm == nil || !confirm(fmt.Sprintf("list file %q already existing, replace it?", out)) {
			return 0, ErrSkipped
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appending {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(out, flags, 0644)
	if err != nil {
		return 0, fmt.Errorf("grid: could not open list file: %w", err)
	}
	defer f.Close()

	n := 0
	w := bufio.NewWriter(f)
	for _, name := range files {
		_, err = w.WriteString(strings.TrimSpace(name) + "\n")
		if err != nil {
			return n, fmt.Errorf("grid: could not write list file: %w", err)
		}
		n++
	}

	err = w.Flush()
	if err != nil {
		return n, fmt.Errorf("grid: could not flush list file: %w", err)
	}

	err = f.Close()
	if err != nil {
		return n, fmt.Errorf("grid: could not close list file: %w", err)
	}
	return n, nil
}

// NormalizePath checks and normalizes the grid path of a file for the
// provided version of the alien tools.
func NormalizePath(p string, version int) (string, error) {
	p = strings.TrimSpace(p)
	switch {
	case p == "":
		return "", fmt.Errorf("grid: empty input")
	case !strings.Contains(p, "/"):
		return "", fmt.Errorf("grid: input %q has no path", p)
	case !strings.Contains(p, ".") || strings.LastIndex(p, "/") > strings.LastIndex(p, "."):
		return "", fmt.Errorf("grid: input %q has no extension", p)
	}

	switch version {
	case 0:
		if !strings.Contains(p, Prefix) {
			p = Prefix + p
		}
	case 1:
		p = strings.TrimLeft(p, ".")
		for strings.Contains(p, "//") {
			p = strings.ReplaceAll(p, "//", "/")
		}
		if !strings.HasPrefix(p, "/") {
			return "", fmt.Errorf("grid: input %q does not start with /", p)
		}
	default:
		return "", fmt.Errorf("grid: unknown alien version %d", version)
	}
	return p, nil
}

// Local returns the local path of a downloaded grid file.
func (c *Client) Local(p string) string {
	p = strings.TrimPrefix(p, Prefix)
	return filepath.Join(c.Dir, filepath.FromSlash(path.Clean("./"+p)))
}

// CopyFile downloads the grid file p, under the same path in the local
// directory. Files are downloaded again until they exist locally and, for
// ROOT files, are sane, at most Retries times.
// CopyFile returns the local path of the file.
func (c *Client) CopyFile(ctx context.Context, p string, replace bool) (string, error) {
	grid, err := NormalizePath(p, c.Version)
	if err != nil {
		return "", err
	}

	var (
		local = c.Local(grid)
		dir   = filepath.Dir(local)
	)
	c.Msg.Verbosef("  --copyfile: output dir. is %q, file is %q", dir, filepath.Base(local))

	if _, err := os.Stat(dir); err != nil {
		c.Msg.Printf("directory %q does not exist - creating it", dir)
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return local, fmt.Errorf("grid: could not create output dir: %w", err)
		}
	}

	if _, err := os.Stat(local); err == nil {
		if !replace {
			c.Msg.Printf("file %q already copied", local)
			return local, nil
		}
		c.Msg.Printf("file %q already copied, overwriting", local)
	}

	retries := c.Retries
	if retries <= 0 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		c.Msg.Successf("downloading %q", grid)
		c.Msg.Infof("- current date and time: %s", time.Now().Format(time.RFC3339))
		err = c.Copy(ctx, grid, dir)
		if err != nil {
			if ctx.Err() != nil {
				return local, err
			}
			c.Msg.Warnf("could not download %q: %+v", grid, err)
		}
		if _, err := os.Stat(local); err == nil && c.sane(local) {
			return local, nil
		}
	}
	return local, fmt.Errorf("grid: could not download %q after %d attempts", grid, retries)
}

func (c *Client) sane(fname string) bool {
	st, err := aod.Check(fname)
	switch st {
	case aod.NotROOT:
		c.Msg.Warnf("testing a non root file: %s", fname)
	case aod.Missing:
		c.Msg.Warnf("testing a non existing file: %s", fname)
	case aod.Broken:
		c.Msg.Infof("file %s has issues: %+v", fname, err)
		return false
	default:
		c.Msg.Verbosef("%s is ok", fname)
	}
	return true
}

// Progress is the state of the download of a list of files.
type Progress struct {
	ToCopy  int      // number of listed files
	Copied  int      // number of files present locally
	NotSane []string // files downloaded with issues
}

// entries returns the grid files of a list: reading stops at the first
// line with a '%' and lines with a '#' are skipped.
func entries(fname string) ([]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("grid: could not open list of files: %w", err)
	}
	defer f.Close()

	var (
		files []string
		sc    = bufio.NewScanner(f)
	)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "%") {
			break
		}
		if strings.Contains(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	err = sc.Err()
	if err != nil {
		return nil, fmt.Errorf("grid: could not read list of files: %w", err)
	}
	return files, nil
}

// Copied checks how many files of the named list were downloaded.
func (c *Client) Copied(fname string, checkROOT bool) (Progress, error) {
	c.Msg.Verbosef("checking how many files were copied from list %s", fname)
	var prog Progress

	files, err := entries(fname)
	if err != nil {
		return prog, err
	}

	for _, name := range files {
		local := c.Local(name)
		prog.ToCopy++
		if _, err := os.Stat(local); err != nil {
			c.Msg.Infof("'%s' yet to download", local)
			continue
		}
		prog.Copied++
		if checkROOT && !c.sane(local) {
			c.Msg.Warnf("'%s' downloaded but with issues", local)
			prog.NotSane = append(prog.NotSane, local)
		}
	}
	return prog, nil
}

func (prog Progress) percent() float64 {
	if prog.ToCopy == 0 {
		return 0
	}
	return 100 * float64(prog.Copied) / float64(prog.ToCopy)
}

// CopyList downloads the files of the named list with njobs concurrent
// downloads.
func (c *Client) CopyList(ctx context.Context, fname string, njobs int) (Progress, error) {
	c.Msg.Verbosef("copying files from list %s with %d jobs", fname, njobs)

	before, err := c.Copied(fname, true)
	if err != nil {
		return before, err
	}
	c.Msg.Printf("so far downloaded %d/%d, %.1f%%", before.Copied, before.ToCopy, before.percent())

	files, err := entries(fname)
	if err != nil {
		return before, err
	}

	err = pool.Run(ctx, njobs, len(files), func(ctx context.Context, i int) error {
		name := files[i]
		if !strings.HasPrefix(name, "/") && !strings.HasPrefix(name, Prefix) {
			name = "./" + name
		}
		_, err := c.CopyFile(ctx, name, false)
		return err
	}, pool.WithProgress(func(done, total int) {
		c.Msg.Printf("done: %d, %d to go", done, total-done)
	}))
	if err != nil {
		c.Msg.Warnf("could not download all files: %+v", err)
	}

	after, cerr := c.Copied(fname, true)
	if cerr != nil {
		return after, cerr
	}
	c.Msg.Printf(
		"in recent run downloaded %d/%d, %.1f%% -- copied %d files more, in total copied %d files",
		after.Copied, after.ToCopy, after.percent(), after.Copied-before.Copied, after.Copied,
	)
	if ctx.Err() != nil {
		return after, fmt.Errorf("grid: download interrupted: %w", ctx.Err())
	}
	return after, nil
}
