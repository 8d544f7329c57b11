// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command o2-analysis runs O2 analysis workflows over AOD files.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/o2-analysis"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/AliceO2Group/DelphesO2/internal/xlog"
	"github.com/AliceO2Group/DelphesO2/o2ana"
)

var (
	msg = xlog.New(os.Stdout, "o2-analysis: ")
)

func main() {
	xmain(os.Args[1:])
}

type options struct {
	dir      string
	tag      string
	batch    int
	maxFiles int
	njobs    int
	dpl      string
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("o2-analysis", flag.ExitOnError)
		opts options
	)

	fset.StringVar(&opts.dir, "dir", ".", "working directory of the analysis")
	fset.StringVar(&opts.tag, "tag", "", "suffix of the tag of the output files")
	fset.IntVar(&opts.batch, "b", 10, "number of files per batch")
	fset.IntVar(&opts.maxFiles, "m", 10, "maximum number of files to analyse")
	fset.IntVar(&opts.njobs, "j", 1, "number of concurrent batches")
	fset.StringVar(&opts.dpl, "dpl", "", "DPL JSON configuration file")
	var (
		list    = fset.Bool("list", false, "list the known analysis workflows")
		verbose = fset.Bool("v", false, "verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: o2-analysis [OPTIONS] MODE[,MODE...] input.root|list.txt [inputs...]

ex:
 $> o2-analysis -b 5 -j 2 TrackQA,TPC ./listfiles.txt

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}
	msg.SetVerbose(*verbose)

	if *list {
		for _, mode := range o2ana.Modes() {
			msg.Printf("%s: %s", mode, strings.Join(o2ana.Workflows[mode], " | "))
		}
		return
	}

	if fset.NArg() < 2 {
		fset.Usage()
		msg.Fatalf("missing analysis mode or input files")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	modes := strings.Split(fset.Arg(0), ",")
	err = process(ctx, modes, fset.Args()[1:], opts)
	if err != nil {
		msg.Fatalf("could not run analysis: %+v", err)
	}
}

func process(ctx context.Context, modes, inputs []string, opts options) error {
	nfail := 0
	for _, mode := range modes {
		mode = strings.TrimSpace(mode)
		if mode == "" {
			continue
		}
		a := o2ana.New(opts.dir, mode, inputs, msg)
		a.Tag = opts.tag
		a.BatchSize = opts.batch
		a.MaxFiles = opts.maxFiles
		a.NJobs = opts.njobs
		a.DPL = opts.dpl

		res, err := a.Run(ctx)
		if err != nil {
			return fmt.Errorf("could not run %q analysis: %w", mode, err)
		}
		for _, r := range res {
			if r.Err != nil {
				msg.Warnf("%s: batch %d failed: %+v", mode, r.Batch.ID, r.Err)
				nfail++
			}
		}
	}
	if nfail > 0 {
		return fmt.Errorf("%d batches failed", nfail)
	}
	return nil
}
