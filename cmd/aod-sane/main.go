// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command aod-sane checks whether AOD files can be used for analysis.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/aod-sane"

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
	msg = xlog.New(os.Stdout, "aod-sane: ")
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("aod-sane", flag.ExitOnError)

		oname   = fset.String("o", "", "output file listing the good files only")
		njobs   = fset.Int("j", 10, "number of concurrent jobs")
		verbose = fset.Bool("v", false, "verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: aod-sane [OPTIONS] file1.root|list.txt [file2.root ...]

ex:
 $> aod-sane -o good.txt ./AODRun5.*.root

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

	bad, err := process(ctx, *oname, *njobs, fset.Args())
	if err != nil {
		msg.Fatalf("could not check AOD files: %+v", err)
	}
	if bad > 0 {
		os.Exit(1)
	}
}

func process(ctx context.Context, oname string, njobs int, args []string) (int, error) {
	files, err := aod.Inputs(args)
	if err != nil {
		return 0, fmt.Errorf("could not read input files: %w", err)
	}

	reports := make([]aod.Report, len(files))
	err = pool.Run(ctx, njobs, len(files), func(ctx context.Context, i int) error {
		msg.Verbosef("checking file %s", files[i])
		rep, err := aod.Sanity(files[i])
		if err != nil {
			reports[i] = aod.Report{File: files[i], Dirs: []aod.DirReport{{
				Name:   files[i],
				Issues: []string{err.Error()},
			}}}
			return nil
		}
		reports[i] = rep
		return nil
	}, pool.WithProgress(func(done, total int) {
		msg.Verbosef("checked %d/%d files", done, total)
	}))
	if err != nil {
		return 0, err
	}

	var (
		bad  int
		good []string
	)
	for _, rep := range reports {
		if rep.Sane() {
			good = append(good, rep.File)
			continue
		}
		bad++
		for _, d := range rep.Dirs {
			for _, issue := range d.Issues {
				msg.Warnf("%s: %s: %s", rep.File, d.Name, issue)
			}
		}
	}

	if bad > 0 {
		msg.Warnf("there were %d bad files", bad)
		for _, rep := range reports {
			if !rep.Sane() {
				msg.Printf("%s %v", rep.File, rep.BadDirs())
			}
		}
	} else {
		msg.Successf("all %d files are sane", len(files))
	}

	if oname != "" {
		msg.Printf("writing good files to %s", oname)
		err = aod.WriteList(oname, good)
		if err != nil {
			return bad, err
		}
	}
	return bad, nil
}
