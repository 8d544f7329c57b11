// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aod

import (
	"sort"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rbase"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/rtree"
	"go-hep.org/x/hep/hbook"
	"golang.org/x/xerrors"
)

// IndexTrees are the tables inspected by Indices.
var IndexTrees = []string{
	"O2bc",
	"O2track",
	"O2collision",
	"O2mccollision",
	"O2mcparticle",
	"O2mctracklabel",
	"O2mccollisionlabel",
}

// labels are the index branches averaged for the label tables.
var labels = map[string]string{
	"O2mctracklabel":     "fIndexMcParticles",
	"O2mccollisionlabel": "fIndexMcCollisions",
}

// Indices summarizes the content of the index tables of a file.
type Indices struct {
	File  string
	Dirs  []string // time frame directories, one histogram bin per directory
	Trees []string // inspected trees

	Entries map[string][]int64   // entries per tree, per directory (-1 if missing)
	Means   map[string][]float64 // mean of the index branch of label tables, per directory

	Empty map[string][]string // "file:dir" with an empty tree, per tree

	Hists map[string]*hbook.H1D // histograms of the above quantities, per directory
}

// EmptyDirs merges the empty directories of many files, per tree.
func EmptyDirs(idx ...Indices) map[string][]string {
	o := make(map[string][]string)
	for _, v := range idx {
		for tree, dirs := range v.Empty {
			o[tree] = append(o[tree], dirs...)
		}
	}
	return o
}

// ComputeIndices inspects the named trees of every time frame of a file.
// All the IndexTrees are inspected when trees is empty.
func ComputeIndices(fname string, trees []string) (Indices, error) {
	idx := Indices{
		File:    fname,
		Trees:   selectTrees(trees),
		Entries: make(map[string][]int64),
		Means:   make(map[string][]float64),
		Empty:   make(map[string][]string),
		Hists:   make(map[string]*hbook.H1D),
	}

	f, err := groot.Open(fname)
	if err != nil {
		return idx, xerrors.Errorf("aod: could not open %q: %w", fname, err)
	}
	defer f.Close()

	idx.Dirs, err = dirs(f)
	if err != nil {
		return idx, xerrors.Errorf("aod: could not list directories of %q: %w", fname, err)
	}

	for _, tname := range idx.Trees {
		idx.Entries[tname] = make([]int64, len(idx.Dirs))
		if _, ok := labels[tname]; ok {
			idx.Means[tname] = make([]float64, len(idx.Dirs))
		}
	}

	for i, dir := range idx.Dirs {
		for _, tname := range idx.Trees {
			t, err := tree(f, dir+"/"+tname)
			if err != nil {
				idx.Entries[tname][i] = -1
				idx.Empty[tname] = append(idx.Empty[tname], fname+":"+dir)
				continue
			}
			n := t.Entries()
			idx.Entries[tname][i] = n
			if n < 1 {
				idx.Empty[tname] = append(idx.Empty[tname], fname+":"+dir)
			}

			branch, ok := labels[tname]
			if !ok || n < 1 {
				continue
			}
			mean, err := Mean(t, branch)
			if err != nil {
				return idx, xerrors.Errorf("aod: could not compute mean of %s/%s/%s: %w", dir, tname, branch, err)
			}
			idx.Means[tname][i] = mean
		}
	}

	idx.fill()
	return idx, nil
}

func selectTrees(trees []string) []string {
	if len(trees) == 0 {
		return IndexTrees
	}
	want := make(map[string]bool, len(trees))
	for _, t := range trees {
		want[t] = true
	}
	var o []string
	for _, t := range IndexTrees {
		if want[t] {
			o = append(o, t)
		}
	}
	return o
}

func (idx *Indices) fill() {
	n := len(idx.Dirs)
	if n == 0 {
		return
	}

	book := func(name, title string) *hbook.H1D {
		h := hbook.NewH1D(n, 0, float64(n))
		h.Annotation()["name"] = name
		h.Annotation()["title"] = title
		idx.Hists[name] = h
		return h
	}

	if v, ok := idx.Entries["O2track"]; ok {
		h := book("O2trackamount", "#Tracks")
		for i, n := range v {
			if n < 0 {
				continue
			}
			h.Fill(float64(i)+0.5, float64(n))
		}
	}
	if v, ok := idx.Entries["O2mcparticle"]; ok {
		h := book("O2mcparticle", "#Particles")
		for i, n := range v {
			if n < 0 {
				continue
			}
			h.Fill(float64(i)+0.5, float64(n))
		}
	}
	for tname, branch := range labels {
		v, ok := idx.Means[tname]
		if !ok {
			continue
		}
		h := book(tname, "<"+branch+">")
		for i, mean := range v {
			h.Fill(float64(i)+0.5, mean)
		}
	}
}

// DirsKey is the key of the directory names, one per histogram bin, in
// the files written by Save.
const DirsKey = "dirs"

// Save writes the histograms to the named ROOT file, with the names of
// the directories of their bins, one per line, under DirsKey.
func (idx *Indices) Save(fname string) error {
	f, err := groot.Create(fname)
	if err != nil {
		return xerrors.Errorf("aod: could not create %q: %w", fname, err)
	}
	defer f.Close()

	names := make([]string, 0, len(idx.Hists))
	for name := range idx.Hists {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		err = f.Put(name, rhist.NewH1DFrom(idx.Hists[name]))
		if err != nil {
			return xerrors.Errorf("aod: could not save histogram %q: %w", name, err)
		}
	}

	err = f.Put(DirsKey, rbase.NewObjString(strings.Join(idx.Dirs, "\n")))
	if err != nil {
		return xerrors.Errorf("aod: could not save directory names: %w", err)
	}

	err = f.Close()
	if err != nil {
		return xerrors.Errorf("aod: could not close %q: %w", fname, err)
	}
	return nil
}

// Mean returns the mean value of a numerical branch of a tree.
func Mean(t rtree.Tree, branch string) (float64, error) {
	var rvar *rtree.ReadVar
	rvars := rtree.NewReadVars(t)
	for i := range rvars {
		if rvars[i].Name == branch {
			rvar = &rvars[i]
			break
		}
	}
	if rvar == nil {
		return 0, xerrors.Errorf("aod: no branch %q in tree %q", branch, t.Name())
	}

	r, err := rtree.NewReader(t, []rtree.ReadVar{*rvar})
	if err != nil {
		return 0, xerrors.Errorf("aod: could not create reader: %w", err)
	}
	defer r.Close()

	var (
		sum float64
		n   int64
	)
	err = r.Read(func(ctx rtree.RCtx) error {
		v, ok := asFloat(rvar.Value)
		if !ok {
			return xerrors.Errorf("aod: branch %q is not numerical (%T)", branch, rvar.Value)
		}
		sum += v
		n++
		return nil
	})
	if err != nil {
		return 0, xerrors.Errorf("aod: could not read tree %q: %w", t.Name(), err)
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func asFloat(ptr interface{}) (float64, bool) {
	switch v := ptr.(type) {
	case *int8:
		return float64(*v), true
	case *int16:
		return float64(*v), true
	case *int32:
		return float64(*v), true
	case *int64:
		return float64(*v), true
	case *uint8:
		return float64(*v), true
	case *uint16:
		return float64(*v), true
	case *uint32:
		return float64(*v), true
	case *uint64:
		return float64(*v), true
	case *float32:
		return float64(*v), true
	case *float64:
		return *v, true
	}
	return 0, false
}
