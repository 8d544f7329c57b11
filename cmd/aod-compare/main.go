// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command aod-compare compares the trees and branches of two AOD files.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/aod-compare"

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/AliceO2Group/DelphesO2/aod"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

var (
	msg = xlog.New(os.Stdout, "aod-compare: ")
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("aod-compare", flag.ExitOnError)

		dir1    = fset.String("dir1", "", "directory of the first file to compare (default: top-level)")
		dir2    = fset.String("dir2", "", "directory of the second file to compare (default: top-level)")
		verbose = fset.Bool("v", false, "verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: aod-compare [OPTIONS] file1.root file2.root

ex:
 $> aod-compare -dir1 DF_1 -dir2 TF_0 ./AO2D.root ./AODRun5.0.root

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}
	msg.SetVerbose(*verbose)

	if fset.NArg() != 2 {
		fset.Usage()
		msg.Fatalf("missing input AOD files")
	}

	ok, err := process(fset.Arg(0), *dir1, fset.Arg(1), *dir2)
	if err != nil {
		msg.Fatalf("could not compare AOD files: %+v", err)
	}
	if !ok {
		os.Exit(1)
	}
}

func process(f1, d1, f2, d2 string) (bool, error) {
	cmp, err := aod.Compare(f1, d1, f2, d2)
	if err != nil {
		return false, err
	}

	for _, name := range cmp.Missing {
		msg.Warnf("tree %s of %s is missing in %s", name, f1, f2)
	}
	for _, name := range cmp.Extra {
		msg.Warnf("tree %s of %s is missing in %s", name, f2, f1)
	}
	for _, t := range cmp.Trees {
		if t.Consistent() {
			msg.Verbosef("tree %s is consistent", t.Name)
			continue
		}
		for _, b := range t.Missing {
			msg.Warnf("branch %s/%s (%s) of %s is missing in %s", t.Name, b.Name, b.Title, f1, f2)
		}
		for _, b := range t.Extra {
			msg.Warnf("branch %s/%s (%s) of %s is missing in %s", t.Name, b.Name, b.Title, f2, f1)
		}
	}

	if !cmp.Consistent() {
		msg.Warnf("files %s and %s are not consistent", f1, f2)
		return false, nil
	}
	msg.Successf("files %s and %s are consistent", f1, f2)
	return true, nil
}
