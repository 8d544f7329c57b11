// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command aod-split splits AOD files into one file per time frame
// directory.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/aod-split"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/AliceO2Group/DelphesO2/aod"
	"github.com/AliceO2Group/DelphesO2/internal/pool"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

var (
	msg = xlog.New(os.Stdout, "aod-split: ")
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("aod-split", flag.ExitOnError)

		opts    aod.SplitOptions
		njobs   = fset.Int("j", 10, "number of concurrent jobs")
		verbose = fset.Bool("v", false, "verbose mode")
	)
	fset.StringVar(&opts.OutDir, "o", "", "output directory (default: directory of each input file)")
	fset.StringVar(&opts.BaseDir, "base-dir", "TF_", "name prefix of the directory of the output files")
	fset.BoolVar(&opts.TagDir, "S", false, "tag output files with the name of the directory of the input file")

	fset.Usage = func() {
		fmt.Printf(`Usage: aod-split [OPTIONS] file1.root|list.txt [file2.root ...]

ex:
 $> aod-split -o ./split -S ./run1/AO2D.root ./run2/AO2D.root

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

	err = process(ctx, opts, *njobs, fset.Args())
	if err != nil {
		msg.Fatalf("could not split AOD files: %+v", err)
	}
}

func process(ctx context.Context, opts aod.SplitOptions, njobs int, args []string) error {
	files, err := aod.Inputs(args)
	if err != nil {
		return fmt.Errorf("could not read input files: %w", err)
	}

	if opts.OutDir != "" {
		err = os.MkdirAll(opts.OutDir, 0755)
		if err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}

	return pool.Run(ctx, njobs, len(files), func(ctx context.Context, i int) error {
		outs, err := aod.Split(files[i], opts)
		if err != nil {
			return err
		}
		msg.Printf("%s split into %d files", files[i], len(outs))
		for _, name := range outs {
			msg.Verbosef("  %s", name)
		}
		return nil
	}, pool.WithProgress(func(done, total int) {
		msg.Verbosef("done: %d, %d to go", done, total-done)
	}))
}
