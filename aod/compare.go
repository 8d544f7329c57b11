// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aod

import (
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
	"golang.org/x/xerrors"
)

// Branch identifies a branch by its name and title.
// The title of a branch carries its type, eg: "fIndexCollisions/I".
type Branch struct {
	Name  string
	Title string
}

// TreeDiff lists the differences between the branches of a tree present
// in the reference and in the other file.
type TreeDiff struct {
	Name    string
	Missing []Branch // branches of the reference missing in the other file
	Extra   []Branch // branches of the other file missing in the reference
}

// Consistent reports whether both trees have the same branches.
func (d TreeDiff) Consistent() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

// Comparison lists the differences between the content of a directory of
// a reference file and the content of a directory of another file.
type Comparison struct {
	Ref, Other string // files

	Trees   []TreeDiff // trees present in both directories
	Missing []string   // trees of the reference missing in the other file
	Extra   []string   // trees of the other file missing in the reference
}

// Consistent reports whether both directories hold the same trees with
// the same branches.
func (c Comparison) Consistent() bool {
	if len(c.Missing) > 0 || len(c.Extra) > 0 {
		return false
	}
	for _, t := range c.Trees {
		if !t.Consistent() {
			return false
		}
	}
	return true
}

// Compare compares the trees of the directory dref of the reference file
// ref with the trees of the directory dother of the file other.
// An empty directory name compares the top-level content of the file.
func Compare(ref, dref, other, dother string) (Comparison, error) {
	cmp := Comparison{Ref: ref, Other: other}

	fref, err := groot.Open(ref)
	if err != nil {
		return cmp, xerrors.Errorf("aod: could not open reference file %q: %w", ref, err)
	}
	defer fref.Close()

	foth, err := groot.Open(other)
	if err != nil {
		return cmp, xerrors.Errorf("aod: could not open file %q: %w", other, err)
	}
	defer foth.Close()

	tref, err := treesOf(fref, dref)
	if err != nil {
		return cmp, xerrors.Errorf("aod: could not read trees of %q: %w", ref, err)
	}

	toth, err := treesOf(foth, dother)
	if err != nil {
		return cmp, xerrors.Errorf("aod: could not read trees of %q: %w", other, err)
	}

	seen := make(map[string]bool, len(tref.names))
	for _, name := range tref.names {
		seen[name] = true
		t2, ok := toth.trees[name]
		if !ok {
			cmp.Missing = append(cmp.Missing, name)
			continue
		}
		cmp.Trees = append(cmp.Trees, diffTrees(name, tref.trees[name], t2))
	}
	for _, name := range toth.names {
		if !seen[name] {
			cmp.Extra = append(cmp.Extra, name)
		}
	}

	return cmp, nil
}

type treeSet struct {
	names []string
	trees map[string]rtree.Tree
}

func treesOf(f *riofs.File, dname string) (treeSet, error) {
	var dir riofs.Directory = f
	if dname != "" {
		obj, err := riofs.Dir(f).Get(dname)
		if err != nil {
			return treeSet{}, xerrors.Errorf("file does not have directory %q: %w", dname, err)
		}
		d, ok := obj.(riofs.Directory)
		if !ok {
			return treeSet{}, xerrors.Errorf("%q is not a directory (%s)", dname, obj.Class())
		}
		dir = d
	}

	names, objs, err := objects(dir)
	if err != nil {
		return treeSet{}, err
	}

	set := treeSet{trees: make(map[string]rtree.Tree, len(names))}
	for i, obj := range objs {
		t, ok := obj.(rtree.Tree)
		if !ok {
			continue
		}
		set.names = append(set.names, names[i])
		set.trees[names[i]] = t
	}
	return set, nil
}

func branchesOf(t rtree.Tree) []Branch {
	bs := t.Branches()
	o := make([]Branch, len(bs))
	for i, b := range bs {
		o[i] = Branch{Name: b.Name(), Title: b.Title()}
	}
	return o
}

func diffTrees(name string, ref, other rtree.Tree) TreeDiff {
	var (
		diff = TreeDiff{Name: name}
		b1   = branchesOf(ref)
		b2   = branchesOf(other)
		used = make(map[Branch]bool, len(b2))
	)
	for _, b := range b2 {
		used[b] = false
	}
	for _, b := range b1 {
		if _, ok := used[b]; !ok {
			diff.Missing = append(diff.Missing, b)
			continue
		}
		used[b] = true
	}
	for _, b := range b2 {
		if !used[b] {
			diff.Extra = append(diff.Extra, b)
		}
	}
	return diff
}
