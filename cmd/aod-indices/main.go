// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command aod-indices inspects the index tables of AOD files, per time
// frame directory.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/aod-indices"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/AliceO2Group/DelphesO2/aod"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

var (
	msg = xlog.New(os.Stdout, "aod-indices: ")
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("aod-indices", flag.ExitOnError)

		trees   = fset.String("t", "", "comma-separated list of trees to inspect (default: all index trees)")
		oname   = fset.String("o", "", "output ROOT file with the histograms of the indices")
		verbose = fset.Bool("v", false, "verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: aod-indices [OPTIONS] file1.root|list.txt [file2.root ...]

ex:
 $> aod-indices -t O2track,O2mctracklabel -o indices.root ./AO2D.root

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}
	msg.SetVerbose(*verbose)

	if fset.NArg() == 0 {
		fset.Usage()
		msg.Fatalf("missing input AOD files")
	}

	var names []string
	if *trees != "" {
		names = strings.Split(*trees, ",")
	}

	err = process(*oname, names, fset.Args())
	if err != nil {
		msg.Fatalf("could not inspect indices: %+v", err)
	}
}

func process(oname string, trees, args []string) error {
	files, err := aod.Inputs(args)
	if err != nil {
		return fmt.Errorf("could not read input files: %w", err)
	}
	if oname != "" && len(files) != 1 {
		return fmt.Errorf("histograms can only be saved for a single input file (got %d)", len(files))
	}

	all := make([]aod.Indices, 0, len(files))
	for _, fname := range files {
		idx, err := aod.ComputeIndices(fname, trees)
		if err != nil {
			return err
		}
		display(idx)
		all = append(all, idx)

		if oname != "" {
			err = idx.Save(oname)
			if err != nil {
				return err
			}
			msg.Printf("histograms saved to %s", oname)
		}
	}

	empty := aod.EmptyDirs(all...)
	names := make([]string, 0, len(empty))
	for name := range empty {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		msg.Warnf("tree %s is empty or missing in %d directories:", name, len(empty[name]))
		for _, dir := range empty[name] {
			msg.Printf("  %s", dir)
		}
	}
	return nil
}

func display(idx aod.Indices) {
	msg.Headerf("file %s: %d directories", idx.File, len(idx.Dirs))
	for _, tname := range idx.Trees {
		msg.Printf("%s: entries=%v", tname, idx.Entries[tname])
		if means, ok := idx.Means[tname]; ok {
			msg.Printf("%s: means=%v", tname, means)
		}
	}
}
