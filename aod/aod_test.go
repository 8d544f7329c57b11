// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aod

import (
	"os"
	"path/filepath"
	"testing"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// table describes a tree of a test file.
type table struct {
	name     string
	branches []string // int32 branches
	n        int      // number of entries
}

// frame describes a time frame directory of a test file.
type frame struct {
	name   string
	tables []table
}

func aodTables(ntracks int) []table {
	return []table{
		{name: "O2bc", branches: []string{"fRunNumber"}, n: 1},
		{name: "O2collision", branches: []string{"fIndexBCs"}, n: 2},
		{name: "O2track", branches: []string{"fIndexCollisions"}, n: ntracks},
		{name: "O2trackcov", branches: []string{"fSigmaY"}, n: ntracks},
		{name: "O2trackextra", branches: []string{"fTPCNClsFindable"}, n: ntracks},
	}
}

func createAOD(t *testing.T, fname string, frames []frame) {
	t.Helper()

	f, err := groot.Create(fname)
	if err != nil {
		t.Fatalf("could not create %q: %+v", fname, err)
	}
	defer f.Close()

	for _, fr := range frames {
		var dir riofs.Directory = f
		if fr.name != "" {
			dir, err = f.Mkdir(fr.name)
			if err != nil {
				t.Fatalf("could not create directory %q: %+v", fr.name, err)
			}
		}
		for _, tbl := range fr.tables {
			createTable(t, dir, tbl)
		}
	}

	err = f.Close()
	if err != nil {
		t.Fatalf("could not close %q: %+v", fname, err)
	}
}

func createTable(t *testing.T, dir riofs.Directory, tbl table) {
	t.Helper()

	var (
		vals  = make([]int32, len(tbl.branches))
		wvars = make([]rtree.WriteVar, len(tbl.branches))
	)
	for i, name := range tbl.branches {
		wvars[i] = rtree.WriteVar{Name: name, Value: &vals[i]}
	}

	w, err := rtree.NewWriter(dir, tbl.name, wvars, rtree.WithTitle(tbl.name))
	if err != nil {
		t.Fatalf("could not create tree %q: %+v", tbl.name, err)
	}

	for i := 0; i < tbl.n; i++ {
		for j := range vals {
			vals[j] = int32(i)
		}
		_, err = w.Write()
		if err != nil {
			t.Fatalf("could not write entry %d of %q: %+v", i, tbl.name, err)
		}
	}

	err = w.Close()
	if err != nil {
		t.Fatalf("could not close tree %q: %+v", tbl.name, err)
	}
}

func TestCheck(t *testing.T) {
	tmp := t.TempDir()

	good := filepath.Join(tmp, "AO2D.root")
	createAOD(t, good, []frame{{name: "DF_1", tables: aodTables(3)}})

	bad := filepath.Join(tmp, "broken.root")
	err := os.WriteFile(bad, []byte("not a ROOT file"), 0644)
	if err != nil {
		t.Fatalf("could not create broken file: %+v", err)
	}

	for _, tc := range []struct {
		fname string
		want  Status
		sane  bool
	}{
		{good, Sane, true},
		{bad, Broken, false},
		{filepath.Join(tmp, "missing.root"), Missing, true},
		{filepath.Join(tmp, "listfiles.txt"), NotROOT, true},
	} {
		t.Run(filepath.Base(tc.fname), func(t *testing.T) {
			st, err := Check(tc.fname)
			if got, want := st, tc.want; got != want {
				t.Fatalf("invalid status: got=%v, want=%v (err=%v)", got, want, err)
			}
			if (err != nil) != (st == Broken) {
				t.Fatalf("invalid error for status %v: %+v", st, err)
			}
			if got, want := IsSane(tc.fname), tc.sane; got != want {
				t.Fatalf("invalid sanity: got=%v, want=%v", got, want)
			}
		})
	}
}
