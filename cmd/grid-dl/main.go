// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command grid-dl lists and downloads files from the AliEn grid.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/grid-dl"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/AliceO2Group/DelphesO2/grid"
	"github.com/AliceO2Group/DelphesO2/internal/prompt"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

var (
	msg = xlog.New(os.Stdout, "grid-dl: ")
)

func main() {
	xmain(os.Args[1:])
}

type options struct {
	list      bool
	outfile   string
	copy      bool
	copyList  bool
	copied    bool
	appending bool
	what      string
	njobs     int
	lopts     grid.ListOptions
	confirm   func(question string) bool
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("grid-dl", flag.ExitOnError)
		opts = options{confirm: prompt.Confirm}
	)

	fset.BoolVar(&opts.list, "l", false, "list the files of the grid paths")
	fset.StringVar(&opts.outfile, "o", "", "write the listed files to this file")
	fset.BoolVar(&opts.copy, "c", false, "download the grid files")
	fset.BoolVar(&opts.copyList, "C", false, "download the files of the lists of grid files")
	fset.BoolVar(&opts.copied, "K", false, "check how many files of the lists were downloaded")
	fset.BoolVar(&opts.appending, "a", false, "append to the output file")
	fset.StringVar(&opts.what, "w", "AO2D.root", "object looked for on alien")
	fset.IntVar(&opts.njobs, "j", 1, "number of concurrent downloads")
	fset.StringVar(&opts.lopts.User, "user", os.Getenv("USER"), "alien user")
	fset.StringVar(&opts.lopts.MainPath, "main-path", "/alice/cern.ch/user", "root of the alien user directories")
	fset.StringVar(&opts.lopts.MustHave, "must-have", "", "substring the listed files must contain")
	fset.IntVar(&opts.lopts.SubDirs, "sub-dirs", 0, "exact depth of the listed files below the path, if positive")
	fset.BoolVar(&opts.lopts.XML, "xml", false, "list the files as an XML collection")
	var (
		dir     = fset.String("dir", ".", "local directory of the downloaded files")
		verbose = fset.Bool("v", false, "verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: grid-dl [OPTIONS] path1|list.txt [path2 ...]

ex:
 $> grid-dl -l -w AO2D.root -o files.txt run5/prod
 $> grid-dl -C -j 4 files.txt

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
		msg.Fatalf("missing input files")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = process(ctx, grid.New(*dir, msg), opts, fset.Args())
	if err != nil {
		msg.Fatalf("could not process grid files: %+v", err)
	}
}

func process(ctx context.Context, c *grid.Client, opts options, inputs []string) error {
	done := false

	if opts.list {
		for i, p := range inputs {
			files, err := c.ListFiles(ctx, p, opts.what, opts.lopts)
			if err != nil {
				return err
			}
			if len(files) == 0 || opts.outfile == "" {
				for _, name := range files {
					msg.Printf("%s", name)
				}
				continue
			}
			n, err := grid.WriteFiles(files, opts.outfile, i > 0 || opts.appending, opts.confirm)
			switch {
			case errors.Is(err, grid.ErrSkipped):
				msg.Warnf("not writing %s", opts.outfile)
			case err != nil:
				return err
			default:
				msg.Successf("written %d files to %s", n, opts.outfile)
			}
		}
		done = true
	}

	if opts.copy || opts.copyList {
		for _, p := range inputs {
			if opts.copyList {
				_, err := c.CopyList(ctx, p, opts.njobs)
				if err != nil {
					return err
				}
				continue
			}
			_, err := c.CopyFile(ctx, p, false)
			if err != nil {
				return err
			}
		}
		done = true
	}

	if opts.copied {
		for _, p := range inputs {
			prog, err := c.Copied(p, true)
			if err != nil {
				return err
			}
			msg.Printf("%s: %d/%d files downloaded, %d with issues", p, prog.Copied, prog.ToCopy, len(prog.NotSane))
		}
		done = true
	}

	if !done {
		msg.Warnf("did not do anything")
	}
	return nil
}
