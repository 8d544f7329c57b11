// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command aod-merge merges AOD files in bunches of a maximum size, with
// o2-aod-merger.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/aod-merge"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/AliceO2Group/DelphesO2/aod"
	"github.com/AliceO2Group/DelphesO2/internal/prompt"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

var (
	msg = xlog.New(os.Stdout, "aod-merge: ")
)

func main() {
	xmain(os.Args[1:])
}

type options struct {
	maxMB     float64
	lists     string
	out       string
	sanity    string
	overwrite bool
	njobs     int
	confirm   func(question string) bool
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("aod-merge", flag.ExitOnError)
		opts = options{confirm: prompt.Confirm}
	)

	fset.Float64Var(&opts.maxMB, "m", 1000, "approximate maximum size of the bunches to merge [MB]")
	fset.StringVar(&opts.out, "o", "./", "output path of the merged AOD files")
	fset.StringVar(&opts.lists, "lists", ".", "directory of the lists of files to merge")
	fset.StringVar(&opts.sanity, "s", "", "sanity file listing the files to merge")
	fset.BoolVar(&opts.overwrite, "overwrite", false, "overwrite the lists of files to merge")
	fset.IntVar(&opts.njobs, "j", 10, "number of concurrent jobs")
	verbose := fset.Bool("v", false, "verbose mode")

	fset.Usage = func() {
		fmt.Printf(`Usage: aod-merge [OPTIONS] file1.root|list.txt [file2.root ...]

ex:
 $> aod-merge -m 500 -o ./merged ./listfiles.txt

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err = process(ctx, opts, fset.Args())
	if err != nil {
		msg.Fatalf("could not merge AOD files: %+v", err)
	}
}

func process(ctx context.Context, opts options, args []string) ([]string, error) {
	files, err := aod.Inputs(args)
	if err != nil {
		return nil, fmt.Errorf("could not read input files: %w", err)
	}

	if opts.sanity != "" {
		keep, skip, err := aod.FilterSane(files, opts.sanity)
		if err != nil {
			return nil, err
		}
		for _, name := range skip {
			msg.Warnf("%s is not in the sanity file, skipping it", name)
		}
		files = keep
	}

	if _, err := os.Stat(opts.out); err != nil {
		if opts.confirm == nil || !opts.confirm(fmt.Sprintf("output path %q does not exist, create it?", opts.out)) {
			return nil, fmt.Errorf("output path %q does not exist", opts.out)
		}
		err = os.MkdirAll(opts.out, 0755)
		if err != nil {
			return nil, fmt.Errorf("could not create output path: %w", err)
		}
	}

	bunches, err := aod.Bunches(files, opts.maxMB)
	if err != nil {
		return nil, fmt.Errorf("could not bunch input files: %w", err)
	}
	msg.Verbosef("got %d bunches", len(bunches))
	for _, b := range bunches {
		msg.Verbosef("%d) %.3f MB, with %d files", b.ID, b.Size, len(b.Files))
	}

	m := aod.Merger{
		Dir:       opts.lists,
		Out:       opts.out,
		Overwrite: opts.overwrite,
		NJobs:     opts.njobs,
		Msg:       msg,
	}
	return m.Merge(ctx, bunches)
}
