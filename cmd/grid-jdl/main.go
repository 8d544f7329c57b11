// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command grid-jdl creates the JDL file of a private grid production of
// fast simulation and AOD creation jobs.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/grid-jdl"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"

	"github.com/AliceO2Group/DelphesO2/grid"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

var (
	msg = xlog.New(os.Stdout, "grid-jdl: ")
)

func main() {
	xmain(os.Args[1:])
}

type options struct {
	entry   string
	nevents int
	njobs   int
	user    string
	grid    string
	src     string
	mail    string
	out     string
	upload  bool
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("grid-jdl", flag.ExitOnError)
		opts options
	)

	fset.StringVar(&opts.entry, "entry", "DEFAULT", "entry of the configuration file")
	fset.IntVar(&opts.nevents, "ev", 1000, "number of events per job")
	fset.IntVar(&opts.njobs, "j", 2, "number of jobs")
	fset.StringVar(&opts.user, "user", os.Getenv("USER"), "grid user")
	fset.StringVar(&opts.grid, "grid-path", "", "grid directory of the production (default: /alice/cern.ch/user/<u>/<user>/<entry>)")
	fset.StringVar(&opts.src, "src-path", "", "grid directory of the executables and LUTs (default: /alice/cern.ch/user/<u>/<user>/DelphesO2)")
	fset.StringVar(&opts.mail, "mail", "", "notification address (default: <user>@cern.ch)")
	fset.StringVar(&opts.out, "o", "", "output JDL file (default: <entry>.jdl)")
	fset.BoolVar(&opts.upload, "upload", false, "create the grid directory and upload the configuration and JDL files")
	verbose := fset.Bool("v", false, "verbose mode")

	fset.Usage = func() {
		fmt.Printf(`Usage: grid-jdl [OPTIONS] config.ini

ex:
 $> grid-jdl -entry INEL -ev 500 -j 20 -upload ./default_configfile.ini

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}
	msg.SetVerbose(*verbose)

	if fset.NArg() != 1 {
		fset.Usage()
		msg.Fatalf("missing configuration file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var c *grid.Client
	if opts.upload {
		c = grid.New(".", msg)
	}

	err = process(ctx, c, fset.Arg(0), opts)
	if err != nil {
		msg.Fatalf("could not create JDL: %+v", err)
	}
}

func process(ctx context.Context, c *grid.Client, config string, opts options) error {
	jdl, err := grid.NewJDL(config, opts.entry)
	if err != nil {
		return err
	}

	home := grid.UserPath(".", grid.ListOptions{
		User:     opts.user,
		MainPath: "/alice/cern.ch/user",
	})
	jdl.User = opts.user
	jdl.Mail = opts.mail
	jdl.NEvents = opts.nevents
	jdl.NJobs = opts.njobs
	jdl.GridPath = opts.grid
	if jdl.GridPath == "" {
		jdl.GridPath = path.Join(home, opts.entry)
	}
	jdl.SourcePath = opts.src
	if jdl.SourcePath == "" {
		jdl.SourcePath = path.Join(home, "DelphesO2")
	}

	out := opts.out
	if out == "" {
		out = opts.entry + ".jdl"
	}

	msg.Printf("creating JDL %s for %d jobs of %d events", out, jdl.NJobs, jdl.NEvents)
	msg.Verbosef("grid path:   %s", jdl.GridPath)
	msg.Verbosef("source path: %s", jdl.SourcePath)
	err = jdl.Create(out)
	if err != nil {
		return err
	}

	if !opts.upload {
		return nil
	}

	err = c.Setup(ctx, jdl)
	if err != nil {
		return fmt.Errorf("could not setup grid directory: %w", err)
	}

	dst := path.Join(jdl.GridPath, path.Base(out))
	err = c.Upload(ctx, out, dst)
	if err != nil {
		return fmt.Errorf("could not upload JDL: %w", err)
	}
	msg.Successf("uploaded %s to %s", out, dst)
	msg.Printf("submit it with: alien_submit %s%s", grid.Prefix, dst)
	return nil
}
