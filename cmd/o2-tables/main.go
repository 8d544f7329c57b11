// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command o2-tables runs a fast-simulation production: detector
// simulation and creation of the AOD tables, for a configuration entry of
// an INI file.
package main // import "github.com/AliceO2Group/DelphesO2/cmd/o2-tables"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	delphes "github.com/AliceO2Group/DelphesO2"
	"github.com/AliceO2Group/DelphesO2/fastsim"
	"github.com/AliceO2Group/DelphesO2/internal/notify"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
	"github.com/AliceO2Group/DelphesO2/proddb"
)

var (
	msg = xlog.New(os.Stdout, "o2-tables: ")
)

func main() {
	xmain(os.Args[1:])
}

type options struct {
	config  string
	entry   string
	dir     string
	njobs   int
	nruns   int
	nevents int
	metric  bool
	logfile bool
	pmon    time.Duration
	db      string
	mail    bool
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("o2-tables", flag.ExitOnError)
		opts options
	)

	fset.StringVar(&opts.entry, "entry", "DEFAULT", "entry in the configuration file")
	fset.StringVar(&opts.dir, "dir", ".", "working directory of the production")
	fset.IntVar(&opts.njobs, "j", 10, "number of concurrent jobs")
	fset.IntVar(&opts.nruns, "r", 10, "number of runs")
	fset.IntVar(&opts.nevents, "ev", 1000, "number of simulated events (only in non custom generator mode)")
	fset.BoolVar(&opts.metric, "t", false, "metric mode: compute wall times")
	fset.BoolVar(&opts.logfile, "l", false, "copy messages to o2-tables.log in the working directory")
	fset.DurationVar(&opts.pmon, "pmon", 0, "pmon monitoring frequency of each run (0 disables it)")
	fset.StringVar(&opts.db, "db", os.Getenv("O2_PRODDB"), "production database (mysql:dsn or sqlite file)")
	fset.BoolVar(&opts.mail, "mail", false, "send a notification mail at the end of the production")
	verbose := fset.Bool("v", false, "verbose mode")

	fset.Usage = func() {
		fmt.Printf(`Usage: o2-tables [OPTIONS] config.ini

ex:
 $> o2-tables -entry INEL -j 4 -r 10 -ev 1000 ./default_configfile.ini

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() != 1 {
		fset.Usage()
		msg.Fatalf("missing input configuration file")
	}
	opts.config = fset.Arg(0)
	msg.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, opts)
	if err != nil {
		msg.Fatalf("could not run production: %+v", err)
	}
}

func run(ctx context.Context, opts options) error {
	err := os.MkdirAll(opts.dir, 0755)
	if err != nil {
		return fmt.Errorf("could not create working directory: %w", err)
	}

	if opts.logfile {
		f, err := os.Create(filepath.Join(opts.dir, "o2-tables.log"))
		if err != nil {
			return fmt.Errorf("could not create log file: %w", err)
		}
		defer f.Close()
		msg.Tee(f)
	}

	cfg, err := fastsim.LoadConfig(opts.config, opts.entry)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	if v, _ := delphes.Version(); v != "" {
		msg.Verbosef("DelphesO2 version: %s", v)
	}

	p := fastsim.New(opts.dir, cfg, msg)
	p.NJobs = opts.njobs
	p.NRuns = opts.nruns
	p.NEvents = opts.nevents
	p.Metric = opts.metric
	p.Monitor = opts.pmon

	p.Print()
	p.Clean(ctx)

	err = p.Prepare()
	if err != nil {
		return fmt.Errorf("could not prepare production: %w", err)
	}

	err = p.Configure()
	if err != nil {
		return fmt.Errorf("could not configure runs: %w", err)
	}

	var book *bookkeeper
	if opts.db != "" {
		book, err = newBookkeeper(ctx, opts)
		if err != nil {
			return err
		}
		defer book.close()
	}

	runs, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("could not run production: %w", err)
	}

	files, err := p.Collect(runs)
	if err != nil {
		return fmt.Errorf("could not collect runs: %w", err)
	}

	if book != nil {
		err = book.record(ctx, runs)
		if err != nil {
			msg.Warnf("could not record production: %+v", err)
		}
	}

	if opts.mail {
		subject, body := report(opts, runs, files)
		err = notify.Send(subject, body)
		if err != nil {
			msg.Warnf("could not send notification: %+v", err)
		}
	}

	return nil
}

func report(opts options, runs []fastsim.Run, files []string) (subject, body string) {
	nok := 0
	for _, r := range runs {
		if r.OK {
			nok++
		}
	}

	o := new(strings.Builder)
	fmt.Fprintf(o, "config: %s\n", opts.config)
	fmt.Fprintf(o, "entry:  %s\n", opts.entry)
	fmt.Fprintf(o, "dir:    %s\n", opts.dir)
	fmt.Fprintf(o, "runs:   %d/%d produced an AOD file\n", nok, len(runs))
	for _, r := range runs {
		status := "ok"
		if !r.OK {
			status = "failed"
		}
		fmt.Fprintf(o, "  run %d: %s (%v, %d issues)\n", r.Number, status, r.Duration().Round(time.Second), len(r.Issues))
	}
	fmt.Fprintf(o, "files:\n")
	for _, name := range files {
		fmt.Fprintf(o, "  %s\n", name)
	}

	subject = fmt.Sprintf("[o2-tables] production %q: %d/%d runs", opts.entry, nok, len(runs))
	return subject, o.String()
}

type bookkeeper struct {
	db   *proddb.DB
	prod proddb.Production
}

func newBookkeeper(ctx context.Context, opts options) (*bookkeeper, error) {
	db, err := proddb.Open(proddb.ParseDSN(opts.db))
	if err != nil {
		return nil, fmt.Errorf("could not open production db: %w", err)
	}

	err = db.Init(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not init production db: %w", err)
	}

	host, _ := os.Hostname()
	prod := proddb.Production{
		Config:  opts.config,
		Entry:   opts.entry,
		Host:    host,
		NRuns:   opts.nruns,
		NEvents: opts.nevents,
		Start:   time.Now(),
		Status:  proddb.Running,
	}
	prod.ID, err = db.AddProduction(ctx, prod)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not record production: %w", err)
	}
	msg.Printf("recording production %v", prod.ID)

	return &bookkeeper{db: db, prod: prod}, nil
}

func (book *bookkeeper) record(ctx context.Context, runs []fastsim.Run) error {
	status := proddb.Done
	for _, r := range runs {
		if !r.OK {
			status = proddb.Failed
		}
		err := book.db.AddRun(ctx, proddb.Run{
			Production: book.prod.ID,
			Number:     r.Number,
			Start:      r.Start,
			End:        r.End,
			OK:         r.OK,
			Issues:     len(r.Issues),
		})
		if err != nil {
			return err
		}
	}
	return book.db.EndProduction(ctx, book.prod.ID, time.Now(), status)
}

func (book *bookkeeper) close() {
	err := book.db.Close()
	if err != nil {
		msg.Warnf("could not close production db: %+v", err)
	}
}
