// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aod

import (
	"fmt"

	"go-hep.org/x/hep/groot"
	"golang.org/x/xerrors"
)

// RequiredTrees are the tables every time frame must hold.
var RequiredTrees = []string{
	"O2bc",
	"O2collision",
	"O2track",
	"O2trackcov",
	"O2trackextra",
}

// SameSizeTrees are the tables that must have the same number of entries.
var SameSizeTrees = []string{
	"O2track",
	"O2trackcov",
	"O2trackextra",
}

// Report is the outcome of the sanity check of a file.
type Report struct {
	File string
	Dirs []DirReport
}

// DirReport is the outcome of the sanity check of a time frame directory.
type DirReport struct {
	Name    string
	Entries map[string]int64 // entries per tree, -1 for a missing tree
	Issues  []string
}

// Sane reports whether all the directories of the file are sane.
func (r Report) Sane() bool {
	for _, d := range r.Dirs {
		if len(d.Issues) > 0 {
			return false
		}
	}
	return true
}

// BadDirs returns the names of the directories with issues.
func (r Report) BadDirs() []string {
	var bad []string
	for _, d := range r.Dirs {
		if len(d.Issues) > 0 {
			bad = append(bad, d.Name)
		}
	}
	return bad
}

// Sanity checks that every time frame of the named file holds the
// required tables, with consistent track tables.
func Sanity(fname string) (Report, error) {
	rep := Report{File: fname}

	f, err := groot.Open(fname)
	if err != nil {
		return rep, xerrors.Errorf("aod: could not open %q: %w", fname, err)
	}
	defer f.Close()

	names := keys(f)
	for i, name := range names {
		if name == MetaData {
			continue
		}
		d := DirReport{
			Name:    name,
			Entries: make(map[string]int64, len(RequiredTrees)),
		}
		for _, tname := range RequiredTrees {
			t, err := tree(f, name+"/"+tname)
			if err != nil {
				d.Entries[tname] = -1
				d.Issues = append(d.Issues, fmt.Sprintf("did not get tree %s/%s", name, tname))
				continue
			}
			d.Entries[tname] = t.Entries()
		}

		var (
			ref  = d.Entries[SameSizeTrees[0]]
			same = true
		)
		for _, tname := range SameSizeTrees[1:] {
			if d.Entries[tname] != ref {
				same = false
			}
		}
		if !same {
			counts := make([]int64, len(SameSizeTrees))
			for j, tname := range SameSizeTrees {
				counts[j] = d.Entries[tname]
			}
			d.Issues = append(d.Issues, fmt.Sprintf(
				"did not get equal counts for %q %v in DF %d/%d",
				SameSizeTrees, counts, i, len(names),
			))
		}
		rep.Dirs = append(rep.Dirs, d)
	}

	return rep, nil
}
