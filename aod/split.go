// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aod

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
	"golang.org/x/xerrors"
)

// SplitOptions configures how files are split.
type SplitOptions struct {
	OutDir  string // output directory, the directory of the input file if empty
	BaseDir string // name prefix of the time frame directory of the output files
	TagDir  bool   // tag output files with the name of the directory of the input file
}

// SplitName returns the name of the k-th file produced by splitting fname.
func SplitName(fname string, k int, opts SplitOptions) string {
	var (
		base = strings.TrimSuffix(filepath.Base(fname), ".root")
		dir  = filepath.Dir(fname)
		tag  = ""
	)
	if opts.TagDir {
		tag = "_" + filepath.Base(dir)
	}
	name := fmt.Sprintf("%s%s_sub%d.root", base, tag, k)
	if opts.OutDir != "" {
		dir = opts.OutDir
	}
	return filepath.Join(dir, name)
}

// Split writes every time frame directory of the named file into a
// separate file, under a single <BaseDir>0 directory.
// Split returns the names of the created files.
func Split(fname string, opts SplitOptions) ([]string, error) {
	if opts.BaseDir == "" {
		opts.BaseDir = "TF_"
	}

	f, err := groot.Open(fname)
	if err != nil {
		return nil, xerrors.Errorf("aod: could not open %q: %w", fname, err)
	}
	defer f.Close()

	names, err := dirs(f)
	if err != nil {
		return nil, xerrors.Errorf("aod: could not list directories of %q: %w", fname, err)
	}

	var outs []string
	for k, name := range names {
		oname := SplitName(fname, k, opts)
		if _, err := os.Stat(oname); err == nil {
			return outs, xerrors.Errorf("aod: file %q already there", oname)
		}

		obj, err := f.Get(name)
		if err != nil {
			return outs, xerrors.Errorf("aod: could not get %q: %w", name, err)
		}

		err = splitDir(oname, opts.BaseDir+"0", obj.(riofs.Directory))
		if err != nil {
			return outs, xerrors.Errorf("aod: could not split %q from %q: %w", name, fname, err)
		}
		outs = append(outs, oname)
	}

	return outs, nil
}

func splitDir(oname, dname string, src riofs.Directory) error {
	o, err := groot.Create(oname)
	if err != nil {
		return xerrors.Errorf("could not create %q: %w", oname, err)
	}
	defer o.Close()

	dst, err := o.Mkdir(dname)
	if err != nil {
		return xerrors.Errorf("could not create directory %q: %w", dname, err)
	}

	names, objs, err := objects(src)
	if err != nil {
		return err
	}

	for i, obj := range objs {
		switch obj := obj.(type) {
		case rtree.Tree:
			err = copyTree(dst, names[i], obj)
		case riofs.Directory:
			continue
		default:
			err = dst.Put(names[i], obj)
		}
		if err != nil {
			return xerrors.Errorf("could not write %q: %w", names[i], err)
		}
	}

	err = o.Close()
	if err != nil {
		return xerrors.Errorf("could not close %q: %w", oname, err)
	}
	return nil
}

func copyTree(dst riofs.Directory, name string, t rtree.Tree) error {
	wvars := rtree.WriteVarsFromTree(t)
	rvars := make([]rtree.ReadVar, len(wvars))
	for i, wvar := range wvars {
		rvars[i] = rtree.ReadVar{Name: wvar.Name, Value: wvar.Value}
	}

	r, err := rtree.NewReader(t, rvars)
	if err != nil {
		return xerrors.Errorf("could not create reader for %q: %w", name, err)
	}
	defer r.Close()

	w, err := rtree.NewWriter(dst, name, wvars, rtree.WithTitle(t.Title()))
	if err != nil {
		return xerrors.Errorf("could not create writer for %q: %w", name, err)
	}

	err = r.Read(func(rtree.RCtx) error {
		_, err := w.Write()
		return err
	})
	if err != nil {
		_ = w.Close()
		return xerrors.Errorf("could not copy %q: %w", name, err)
	}

	err = w.Close()
	if err != nil {
		return xerrors.Errorf("could not close writer for %q: %w", name, err)
	}
	return nil
}
