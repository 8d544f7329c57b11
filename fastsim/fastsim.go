// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fastsim runs DelphesO2 fast-simulation productions.
//
// A production is made of N independent runs. Each run generates events
// (Pythia8 or a custom HepMC generator), propagates them through the
// Delphes detector simulation and converts the Delphes output into O2
// analysis tables with the createO2tables.C ROOT macro:
//
//	runner<N>.sh:
//	  DelphesPythia8 propagate.tcl generator.<N>.cfg delphes.<N>.root
//	  root -b -q -l 'createO2tables.C("delphes.<N>.root", "AODRun5.<N>.root", 0)'
//
// The runs are dispatched on a bounded pool of workers. A run succeeded
// iff its AODRun5.<N>.root file exists once its script exited.
package fastsim // import "github.com/AliceO2Group/DelphesO2/fastsim"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AliceO2Group/DelphesO2/internal/pool"
	"github.com/AliceO2Group/DelphesO2/internal/tmpl"
	"github.com/AliceO2Group/DelphesO2/internal/xexec"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

const (
	PropagateCard = "propagate.tcl"
	AODMacro      = "createO2tables.C"
	AODHeader     = "createO2tables.h"
	DPLConfig     = "dpl-config_std.json"
	ListFiles     = "listfiles.txt"
	CleanScript   = "clean.sh"
)

// Production is a set of fast-simulation runs sharing a configuration
// and a working directory.
type Production struct {
	Dir     string // working directory
	Cfg     Config
	NJobs   int // number of concurrent runs
	NRuns   int // number of runs
	NEvents int // number of events per run, Pythia8 generators only

	Metric  bool          // report wall times
	Monitor time.Duration // pmon sampling of each run, 0 disables it

	Msg *xlog.Logger
}

// New returns a production running in dir.
func New(dir string, cfg Config, msg *xlog.Logger) *Production {
	if msg == nil {
		msg = xlog.Discard()
	}
	return &Production{
		Dir:     dir,
		Cfg:     cfg,
		NJobs:   10,
		NRuns:   10,
		NEvents: 1000,
		Msg:     msg,
	}
}

func (p *Production) path(name string) string {
	return filepath.Join(p.Dir, name)
}

// Print displays the configuration of the production.
func (p *Production) Print() {
	msg := p.Msg
	msg.Headerf(" --- running fast-simulation production")
	msg.Printf("  njobs   = %d", p.NJobs)
	msg.Printf("  nruns   = %d", p.NRuns)
	msg.Printf("  nevents = %d", p.NEvents)
	msg.Headerf(" --- with detector configuration")
	msg.Printf("  bField  = %s [kG]", p.Cfg.BField)
	msg.Printf("  sigmaT  = %s [ns]", p.Cfg.SigmaT)
	msg.Printf("  radius  = %s [cm]", p.Cfg.Radius)
	msg.Printf("  length  = %s [cm]", p.Cfg.Length)
	msg.Printf("  etaMax  = %s", formatFloat(p.Cfg.EtaMax))
}

// Clean runs the clean.sh script of the working directory, if any.
func (p *Production) Clean(ctx context.Context) {
	if _, err := os.Stat(p.path(CleanScript)); err != nil {
		return
	}
	cmd := xexec.Cmd{Dir: p.Dir, Msg: p.Msg}
	_, err := cmd.Run(ctx, "./"+CleanScript+" &> /dev/null")
	if err != nil {
		p.Msg.Warnf("could not clean working directory: %+v", err)
	}
}

// Prepare copies the cards, LUTs, generator configurations and AOD macro
// into the working directory and adjusts them to the detector
// configuration.
func (p *Production) Prepare() error {
	cfg := p.Cfg

	err := p.copy(filepath.Join(cfg.CardPath, cfg.PropagateCard), PropagateCard)
	if err != nil {
		return err
	}

	for _, lut := range cfg.LUTs() {
		err = p.copy(lut.Src, lut.Dst)
		if err != nil {
			return err
		}
	}

	switch cfg.CustomGen {
	case "":
		for _, gen := range cfg.Generators {
			err = p.copy(gen, filepath.Base(gen))
			if err != nil {
				return err
			}
		}
		p.Msg.Verbosef("using default pythia with configuration %q", cfg.Generators)
	default:
		p.Msg.Verbosef("using custom generator %q", cfg.CustomGen)
	}

	for _, name := range []string{AODHeader, AODMacro} {
		err = p.copy(filepath.Join(cfg.AODPath, name), name)
		if err != nil {
			return err
		}
	}

	return p.configure()
}

func (p *Production) copy(src, dst string) error {
	p.Msg.Verbosef("copying %s to %s", src, dst)
	err := tmpl.Copy(src, p.path(dst))
	if err != nil {
		return fmt.Errorf("fastsim: could not copy %q: %w", src, err)
	}
	return nil
}

// Settings returns the configuration lines set in the file fname,
// as (key, value) pairs.
func (cfg Config) Settings(fname string) [][2]string {
	switch fname {
	case PropagateCard:
		return [][2]string{
			{"set barrel_Bz", cfg.BField + "e-1"},
			{"set barrel_Radius", cfg.Radius + "e-2"},
			{"set barrel_HalfLength", cfg.Length + "e-2"},
			{"set barrel_Acceptance", "{ 0.0 + 1.0 * fabs(eta) < " + formatFloat(cfg.EtaMax) + " }"},
			{"set barrel_TimeResolution", cfg.SigmaT + "e-9"},
		}
	case AODMacro:
		return [][2]string{
			{"double Bz =", cfg.BField + "e-1;"},
			{"double tof_radius =", cfg.Radius + ";"},
			{"double tof_length =", cfg.Length + ";"},
			{"double tof_sigmat =", cfg.SigmaT + ";"},
		}
	case DPLConfig:
		return [][2]string{
			{`"d_bz":`, `"` + cfg.BField + `",`},
		}
	}
	return nil
}

func (p *Production) configure() error {
	for _, fname := range []string{PropagateCard, AODMacro, DPLConfig} {
		if fname == DPLConfig {
			if _, err := os.Stat(p.path(fname)); err != nil {
				p.Msg.Warnf("no %s in %q, DPL magnetic field not set", fname, p.Dir)
				continue
			}
		}
		for _, kv := range p.Cfg.Settings(fname) {
			err := tmpl.SetConfig(p.path(fname), kv[0], kv[1])
			if err != nil {
				return fmt.Errorf("fastsim: could not configure %s: %w", fname, err)
			}
		}
	}
	return nil
}

// Run is the outcome of a single run of a production.
type Run struct {
	Number int
	Start  time.Time
	End    time.Time
	Err    error    // error running the script
	OK     bool     // whether the AOD file was produced
	Issues []string // error lines found in the logs
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration { return r.End.Sub(r.Start) }

// Files of a run.
func DelphesFile(run int) string { return fmt.Sprintf("delphes.%d.root", run) }
func AODFile(run int) string     { return fmt.Sprintf("AODRun5.%d.root", run) }
func RunnerFile(run int) string  { return fmt.Sprintf("runner%d.sh", run) }
func GeneratorFile(run int) string {
	return fmt.Sprintf("generator.%d.cfg", run)
}

func logFile(fname string) string {
	return strings.TrimSuffix(fname, ".root") + ".log"
}

// Logs returns the log files of a run.
func (p *Production) Logs(run int) []string {
	logs := []string{
		logFile(DelphesFile(run)),
		logFile(AODFile(run)),
	}
	if p.Cfg.CustomGen != "" {
		logs = append([]string{fmt.Sprintf("gen.%d.log", run)}, logs...)
	}
	return logs
}

// Script returns the content of the script of a run.
func (p *Production) Script(run int) string {
	var (
		o       = new(strings.Builder)
		delphes = DelphesFile(run)
		aod     = AODFile(run)
		logs    = p.Logs(run)
	)

	o.WriteString("#! /usr/bin/env bash\n")
	switch p.Cfg.CustomGen {
	case "":
		fmt.Fprintf(o, "DelphesPythia8 %s %s %s &> %s\n",
			PropagateCard, GeneratorFile(run), delphes, logs[0],
		)
		fmt.Fprintf(o, "root -b -q -l '%s(\"%s\", \"%s\", 0)' &> %s\n",
			AODMacro, delphes, aod, logs[1],
		)
	default:
		hepmc := fmt.Sprintf("hepmcfile.%d.hepmc", run)
		fmt.Fprintf(o, "%s --output %s &> %s\n", p.Cfg.CustomGen, hepmc, logs[0])
		fmt.Fprintf(o, "DelphesHepMC %s %s %s &> %s\n",
			PropagateCard, delphes, hepmc, logs[1],
		)
		fmt.Fprintf(o, "root -b -q -l '%s(\"%s\", \"%s\", 0)' &> %s\n",
			AODMacro, delphes, aod, logs[2],
		)
	}
	return o.String()
}

// Configure writes the scripts of all the runs, and their Pythia8
// configurations.
func (p *Production) Configure() error {
	for run := 0; run < p.NRuns; run++ {
		err := p.configureRun(run)
		if err != nil {
			return fmt.Errorf("fastsim: could not configure run %d: %w", run, err)
		}
	}
	return nil
}

func (p *Production) configureRun(run int) error {
	if p.Cfg.CustomGen == "" {
		err := p.generatorConfig(run)
		if err != nil {
			return err
		}
	}

	err := os.WriteFile(p.path(RunnerFile(run)), []byte(p.Script(run)), 0755)
	if err != nil {
		return fmt.Errorf("could not write runner script: %w", err)
	}
	return nil
}

func (p *Production) generatorConfig(run int) error {
	var (
		gens = p.Cfg.Generators
		cfg  = p.path(GeneratorFile(run))
	)

	err := tmpl.Copy(p.path(filepath.Base(gens[0])), cfg)
	if err != nil {
		return fmt.Errorf("could not create generator configuration: %w", err)
	}

	err = tmpl.AppendLines(cfg,
		fmt.Sprintf("Main:numberOfEvents %d", p.NEvents),
		fmt.Sprintf("Random:seed = %d", run),
		// collision time spread [mm/c]
		"Beams:allowVertexSpread on ",
		"Beams:sigmaTime 60.",
	)
	if err != nil {
		return fmt.Errorf("could not adjust generator configuration: %w", err)
	}

	for _, gen := range gens[1:] {
		err = tmpl.AppendFile(cfg, p.path(filepath.Base(gen)))
		if err != nil {
			return fmt.Errorf("could not adjust generator configuration: %w", err)
		}
	}
	return nil
}

// Run dispatches all the run scripts on the pool of workers and checks
// the output of every run.
// The returned error is not nil only if ctx was cancelled: failed runs are
// reported in the returned slice.
func (p *Production) Run(ctx context.Context) ([]Run, error) {
	var (
		runs  = make([]Run, p.NRuns)
		start = time.Now()
	)
	for i := range runs {
		runs[i].Number = i
	}

	p.Msg.Headerf(" --- start processing the runs ")
	err := pool.Run(ctx, p.NJobs, p.NRuns, func(ctx context.Context, i int) error {
		runs[i] = p.process(ctx, i)
		return runs[i].Err
	})

	p.Msg.Headerf(" --- all runs are processed, so long")
	if p.Metric {
		p.Msg.Successf("-- took %v seconds in total --", time.Since(start).Seconds())
	}

	for i := range runs {
		p.check(&runs[i])
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("fastsim: production interrupted: %w", err)
	}
	if err != nil {
		p.Msg.Verbosef("runs with errors: %+v", err)
	}
	return runs, nil
}

func (p *Production) process(ctx context.Context, run int) Run {
	r := Run{Number: run, Start: time.Now()}
	p.Msg.Printf("> starting run %d", run)

	cmd := xexec.Cmd{Dir: p.Dir, Msg: p.Msg}
	if p.Monitor > 0 {
		f, err := os.Create(p.path(fmt.Sprintf("runner%d-pmon.log", run)))
		if err != nil {
			r.Err = fmt.Errorf("could not create pmon log file: %w", err)
			r.End = time.Now()
			return r
		}
		defer f.Close()
		cmd.Monitor = &xexec.Monitor{W: f, Freq: p.Monitor}
	}

	_, r.Err = cmd.Run(ctx, "bash "+RunnerFile(run))
	r.End = time.Now()

	p.Msg.Printf("< complete run %d", run)
	if p.Metric {
		p.Msg.Successf("-- took %v seconds --", r.Duration().Seconds())
	}
	return r
}

func (p *Production) check(r *Run) {
	_, err := os.Stat(p.path(AODFile(r.Number)))
	r.OK = err == nil

	for _, fname := range p.Logs(r.Number) {
		lines, err := xexec.ScanLog(p.path(fname))
		if err != nil {
			continue
		}
		for _, line := range lines {
			r.Issues = append(r.Issues, fname+": "+line)
		}
	}
}

// Collect reports on the runs of the production and writes the list of
// the produced AOD files.
// Collect returns the names of the produced AOD files.
func (p *Production) Collect(runs []Run) ([]string, error) {
	nok := 0
	for _, r := range runs {
		for _, issue := range r.Issues {
			p.Msg.Warnf("run %d: %s", r.Number, issue)
		}
		switch {
		case r.OK:
			nok++
		case r.Err != nil:
			p.Msg.Warnf("run %d: no %s produced: %+v", r.Number, AODFile(r.Number), r.Err)
		default:
			p.Msg.Warnf("run %d: no %s produced", r.Number, AODFile(r.Number))
		}
	}

	files, err := p.AODFiles()
	if err != nil {
		return nil, err
	}

	o := new(strings.Builder)
	for _, name := range files {
		o.WriteString(name + "\n")
	}
	err = os.WriteFile(p.path(ListFiles), []byte(o.String()), 0644)
	if err != nil {
		return files, fmt.Errorf("fastsim: could not write list of files: %w", err)
	}

	switch nok {
	case len(runs):
		p.Msg.Successf("%d/%d runs produced an AOD file", nok, len(runs))
	default:
		p.Msg.Warnf("%d/%d runs produced an AOD file", nok, len(runs))
	}
	return files, nil
}

// AODFiles returns the sorted list of the AOD files present in the
// working directory.
func (p *Production) AODFiles() ([]string, error) {
	ents, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("fastsim: could not read working directory: %w", err)
	}
	var files []string
	for _, ent := range ents {
		name := ent.Name()
		if ent.IsDir() || !strings.Contains(name, "AODRun5.") || !strings.HasSuffix(name, ".root") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}
