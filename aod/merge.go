// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aod

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AliceO2Group/DelphesO2/internal/pool"
	"github.com/AliceO2Group/DelphesO2/internal/xexec"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
	"golang.org/x/xerrors"
)

// Bunch is a group of files merged together.
type Bunch struct {
	ID    int
	Files []string
	Size  float64 // [MB]
}

// Bunches groups files into bunches of about maxMB megabytes.
// A new bunch is started when the current bunch already exceeds maxMB.
func Bunches(files []string, maxMB float64) ([]Bunch, error) {
	if len(files) == 0 {
		return nil, nil
	}

	bunches := []Bunch{{ID: 0}}
	for _, fname := range files {
		fi, err := os.Stat(fname)
		if err != nil {
			return nil, xerrors.Errorf("aod: could not stat %q: %w", fname, err)
		}
		cur := &bunches[len(bunches)-1]
		if cur.Size > maxMB {
			bunches = append(bunches, Bunch{ID: len(bunches)})
			cur = &bunches[len(bunches)-1]
		}
		cur.Files = append(cur.Files, fname)
		cur.Size += float64(fi.Size()) * 1e-6
	}
	return bunches, nil
}

// ReadList reads a list of files, one file per line.
// Blank lines are ignored.
func ReadList(fname string) ([]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, xerrors.Errorf("aod: could not open list of files: %w", err)
	}
	defer f.Close()

	var (
		files []string
		sc    = bufio.NewScanner(f)
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	err = sc.Err()
	if err != nil {
		return nil, xerrors.Errorf("aod: could not read list of files %q: %w", fname, err)
	}
	return files, nil
}

// Inputs expands the input arguments of a command into a list of ROOT
// files: .root files are kept, .txt files are lists of files relative to
// the directory of the list, other arguments are ignored.
func Inputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		arg = filepath.Clean(arg)
		switch {
		case strings.HasSuffix(arg, ".root"):
			files = append(files, arg)
		case strings.HasSuffix(arg, ".txt"):
			list, err := ReadList(arg)
			if err != nil {
				return nil, err
			}
			dir := filepath.Dir(absPath(arg))
			for _, name := range list {
				name = filepath.Clean(name)
				if !filepath.IsAbs(name) {
					name = filepath.Join(dir, name)
				}
				files = append(files, name)
			}
		}
	}
	return files, nil
}

// WriteList writes a list of files, one file per line.
func WriteList(fname string, files []string) error {
	o := new(strings.Builder)
	for _, name := range files {
		o.WriteString(strings.TrimSpace(name) + "\n")
	}
	err := os.WriteFile(fname, []byte(o.String()), 0644)
	if err != nil {
		return xerrors.Errorf("aod: could not write list of files: %w", err)
	}
	return nil
}

// FilterSane returns the files listed in the sanity file, and the
// skipped ones. Paths are compared once made absolute.
func FilterSane(files []string, sanity string) (keep, skip []string, err error) {
	sane, err := ReadList(sanity)
	if err != nil {
		return nil, nil, xerrors.Errorf("aod: could not read sanity file: %w", err)
	}

	set := make(map[string]bool, len(sane))
	for _, name := range sane {
		set[absPath(name)] = true
	}

	for _, name := range files {
		if !set[absPath(name)] {
			skip = append(skip, name)
			continue
		}
		keep = append(keep, name)
	}
	return keep, skip, nil
}

func absPath(name string) string {
	name = filepath.Clean(strings.TrimSpace(name))
	abs, err := filepath.Abs(name)
	if err != nil {
		return name
	}
	return abs
}

// Merger merges bunches of AOD files with o2-aod-merger.
type Merger struct {
	Dir       string // directory of the lists of files
	Out       string // directory of the merged files
	Overwrite bool   // overwrite existing lists of files
	NJobs     int

	Msg *xlog.Logger
}

// ListName returns the name of the list of files of a bunch.
func ListName(i int) string { return fmt.Sprintf("aod_merge_list_bunch%d.txt", i) }

// OutputName returns the name of the merged file of a bunch.
func OutputName(i int) string { return fmt.Sprintf("AO2D_Merge_%d.root", i) }

func (m *Merger) msg() *xlog.Logger {
	if m.Msg == nil {
		return xlog.Discard()
	}
	return m.Msg
}

// Prepare writes the lists of files of the bunches and checks the merged
// files do not exist yet.
func (m *Merger) Prepare(bunches []Bunch) ([]string, error) {
	msg := m.msg()
	msg.Printf("preparing %d bunched lists", len(bunches))

	lists := make([]string, len(bunches))
	for i, b := range bunches {
		fname := filepath.Join(m.Dir, ListName(b.ID))
		msg.Verbosef("writing bunch %d to %s", b.ID, fname)
		if _, err := os.Stat(fname); err == nil && !m.Overwrite {
			return nil, xerrors.Errorf("aod: %s already present, remove it first", fname)
		}

		out := filepath.Join(m.Out, OutputName(b.ID))
		if _, err := os.Stat(out); err == nil {
			return nil, xerrors.Errorf("aod: %s already present", out)
		}

		err := WriteList(fname, b.Files)
		if err != nil {
			return nil, err
		}
		lists[i] = fname
	}
	return lists, nil
}

// Merge merges the bunches and returns the merged files.
// The lists and output directories are made absolute, as the merger runs
// from the lists directory.
func (m *Merger) Merge(ctx context.Context, bunches []Bunch) ([]string, error) {
	msg := m.msg()
	for _, dir := range []*string{&m.Dir, &m.Out} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, xerrors.Errorf("aod: could not find directory %q: %w", *dir, err)
		}
		*dir = abs
	}

	lists, err := m.Prepare(bunches)
	if err != nil {
		return nil, err
	}

	outs := make([]string, len(bunches))
	msg.Printf("running AOD merging")
	err = pool.Run(ctx, m.NJobs, len(bunches), func(ctx context.Context, i int) error {
		var (
			b   = bunches[i]
			out = filepath.Join(m.Out, OutputName(b.ID))
			cmd = xexec.Cmd{Dir: m.Dir, Msg: msg}
		)
		_, err := cmd.Run(ctx, fmt.Sprintf("o2-aod-merger --input %s --output %s", lists[i], out))
		if err != nil {
			return err
		}
		fi, err := os.Stat(out)
		if err != nil {
			return xerrors.Errorf("no merged file %s: %w", out, err)
		}
		msg.Successf("merged #%d/%d (%g MB) to %s %g MB",
			b.ID, len(bunches)-1, b.Size, out, float64(fi.Size())*1e-6,
		)
		outs[i] = out
		return nil
	}, pool.WithProgress(func(done, total int) {
		msg.Printf("done: %d, %d to go", done, total-done)
	}))
	if err != nil {
		return outs, xerrors.Errorf("aod: could not merge bunches: %w", err)
	}
	return outs, nil
}
