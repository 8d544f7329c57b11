// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aod holds functions to inspect and manipulate AOD files.
//
// An AOD file holds one directory per time frame (DF_<n> or TF_<n>),
// each with the O2 tables stored as ROOT trees
// (O2bc, O2collision, O2track, ...), and a metaData directory.
package aod // import "github.com/AliceO2Group/DelphesO2/aod"

import (
	"os"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/root"
	"go-hep.org/x/hep/groot/rtree"
	"golang.org/x/xerrors"
)

// MetaData is the name of the directory holding the metadata of a file.
const MetaData = "metaData"

// Status describes the state of a file on disk.
type Status int

const (
	Sane    Status = iota // ROOT file that could be opened
	NotROOT               // not a ROOT file, nothing to check
	Missing               // file does not exist, nothing to check
	Broken                // ROOT file that could not be opened
)

func (st Status) String() string {
	switch st {
	case Sane:
		return "sane"
	case NotROOT:
		return "not a ROOT file"
	case Missing:
		return "missing"
	case Broken:
		return "broken"
	}
	return "unknown"
}

// Check checks whether the named file can be opened as a ROOT file.
// The returned error describes why a file is Broken.
func Check(fname string) (Status, error) {
	if !strings.HasSuffix(fname, ".root") {
		return NotROOT, nil
	}
	if _, err := os.Stat(fname); err != nil {
		return Missing, nil
	}

	f, err := groot.Open(fname)
	if err != nil {
		return Broken, xerrors.Errorf("aod: could not open %q: %w", fname, err)
	}
	defer f.Close()

	return Sane, nil
}

// IsSane reports whether the named file is usable.
// Files that are not ROOT files, or that do not exist, are considered sane
// as there is nothing to check.
func IsSane(fname string) bool {
	st, _ := Check(fname)
	return st != Broken
}

// keys returns the names of the keys of a directory, in order and
// without duplicate cycles.
func keys(dir riofs.Directory) []string {
	var (
		names []string
		seen  = make(map[string]struct{})
	)
	for _, k := range dir.Keys() {
		name := k.Name()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// dirs returns the names of the sub-directories of dir, metaData excluded.
func dirs(dir riofs.Directory) ([]string, error) {
	var names []string
	for _, name := range keys(dir) {
		if name == MetaData {
			continue
		}
		obj, err := dir.Get(name)
		if err != nil {
			return nil, xerrors.Errorf("aod: could not get %q: %w", name, err)
		}
		if _, ok := obj.(riofs.Directory); !ok {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// tree returns the named tree from dir.
func tree(dir riofs.Directory, name string) (rtree.Tree, error) {
	obj, err := riofs.Dir(dir).Get(name)
	if err != nil {
		return nil, xerrors.Errorf("aod: could not get %q: %w", name, err)
	}
	t, ok := obj.(rtree.Tree)
	if !ok {
		return nil, xerrors.Errorf("aod: %q is not a tree (%s)", name, obj.Class())
	}
	return t, nil
}

// objects returns the named objects of dir.
func objects(dir riofs.Directory) ([]string, []root.Object, error) {
	names := keys(dir)
	objs := make([]root.Object, len(names))
	for i, name := range names {
		obj, err := dir.Get(name)
		if err != nil {
			return nil, nil, xerrors.Errorf("aod: could not get %q: %w", name, err)
		}
		objs[i] = obj
	}
	return names, objs, nil
}
