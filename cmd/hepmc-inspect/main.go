// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hepmc-inspect counts the particles of interest in HepMC files.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/hepmc-inspect"

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/AliceO2Group/DelphesO2/internal/hepmcx"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

var (
	msg = xlog.New(os.Stdout, "hepmc-inspect: ")
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("hepmc-inspect", flag.ExitOnError)

		start   = fset.Int("start", 0, "first inspected event number")
		stop    = fset.Int("stop", 100, "last inspected event number")
		verbose = fset.Bool("v", false, "verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: hepmc-inspect [OPTIONS] file1.hepmc [file2.hepmc ...]

ex:
 $> hepmc-inspect -start 10 -stop 20 ./tmppythia8.hepmc

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
		msg.Fatalf("missing input HepMC files")
	}

	err = process(fset.Args(), hepmcx.Options{Start: *start, Stop: *stop})
	if err != nil {
		msg.Fatalf("could not inspect HepMC files: %+v", err)
	}
}

func process(fnames []string, opts hepmcx.Options) error {
	for _, fname := range fnames {
		sum, err := hepmcx.Open(fname, opts, msg)
		if err != nil {
			return err
		}
		msg.Headerf("%s: %d events", fname, sum.Events)
		sum.Print(msg)
	}
	return nil
}
