// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package o2ana runs O2 DPL analysis workflows over batches of AOD files.
//
// Each batch is processed in its own directory, AnalysisResults/<i>,
// with a generated shell script piping the tasks of the workflow:
//
//	task-1 <args> --aod-file @ListForRun5Analysis.<i>.txt | \
//	task-2 <args> > log_<tag>.log
package o2ana // import "github.com/AliceO2Group/DelphesO2/o2ana"

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/AliceO2Group/DelphesO2/internal/pool"
	"github.com/AliceO2Group/DelphesO2/internal/xexec"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
)

// Workflows is the catalog of the known analysis workflows.
var Workflows = map[string][]string{
	"TrackQA": {
		"o2-analysis-qa-simple",
		"o2-analysis-qa-efficiency --make-eff 1 --eta-min -0.8 --eta-max 0.8",
		"o2-analysis-trackextension",
		"o2-analysis-alice3-trackselection",
	},
	"SpectraTOF": {
		"o2-analysis-spectra-tof",
		"o2-analysis-trackextension",
		"o2-analysis-pid-tof --add-qa 1",
		"o2-analysis-alice3-trackselection",
	},
	"Efficiency": {
		"o2-analysis-mc-spectra-efficiency",
		"o2-analysis-trackextension",
		"o2-analysis-alice3-trackselection",
	},
	"TPC": {
		"o2-analysis-pid-tpc --add-qa 1",
	},
	"TreeD0": {
		"o2-analysis-hf-tree-creator-d0-tokpi --aod-writer-keep AOD/HFCANDP2Full/0,AOD/HFCANDP2FullE/0,AOD/HFCANDP2FullP/0",
		"o2-analysis-pid-tpc",
		"o2-analysis-pid-tof",
		"o2-analysis-hf-candidate-creator-2prong --doMC",
		"o2-analysis-hf-track-index-skims-creator",
		"o2-analysis-hf-d0-candidate-selector",
	},
}

// Modes returns the sorted names of the known workflows.
func Modes() []string {
	modes := make([]string, 0, len(Workflows))
	for k := range Workflows {
		modes = append(modes, k)
	}
	sort.Strings(modes)
	return modes
}

// Workflow returns the tasks of the named workflow.
func Workflow(mode string) ([]string, error) {
	tasks, ok := Workflows[mode]
	if !ok {
		return nil, fmt.Errorf(
			"o2ana: no analysis matching mode %q, please choose in %s",
			mode, strings.Join(Modes(), ", "),
		)
	}
	return tasks, nil
}

const (
	// Args are the arguments passed to every task of a workflow.
	Args = "-b --shm-segment-size 16000000000 --readers 4"

	// ResultsDir is the directory holding the batches of an analysis.
	ResultsDir = "AnalysisResults"
)

// Outputs are the files produced by a workflow.
var Outputs = []string{
	"AnalysisResults.root",
	"AnalysisResults_trees.root",
	"QAResults.root",
}

// Analysis runs a workflow over a set of input files.
type Analysis struct {
	Dir    string   // working directory
	Mode   string   // name of the workflow
	Tag    string   // suffix of the output tag
	Inputs []string // a ROOT file, a text file listing ROOT files or a list of ROOT files

	BatchSize int    // number of files per batch
	MaxFiles  int    // maximum number of files to process
	NJobs     int    // number of concurrent batches
	DPL       string // DPL configuration file, optional

	Msg *xlog.Logger
}

// New returns an analysis running the workflow mode over inputs.
func New(dir, mode string, inputs []string, msg *xlog.Logger) *Analysis {
	if msg == nil {
		msg = xlog.Discard()
	}
	return &Analysis{
		Dir:       dir,
		Mode:      mode,
		Inputs:    inputs,
		BatchSize: 10,
		MaxFiles:  10,
		NJobs:     1,
		Msg:       msg,
	}
}

// OutTag returns the tag of the output files.
func (a *Analysis) OutTag() string { return a.Mode + a.Tag }

// Batch is a set of input files processed together.
type Batch struct {
	ID     int
	Dir    string // output directory of the batch
	Input  string // --aod-file argument
	Script string // path to the script of the batch
}

func (a *Analysis) abs(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.Dir, name)
}

func (a *Analysis) batchDir(i int) string {
	return filepath.Join(a.Dir, ResultsDir, strconv.Itoa(i))
}

// files returns the list of input files and whether the input is a
// single ROOT file.
func (a *Analysis) files() ([]string, bool, error) {
	switch {
	case len(a.Inputs) == 0:
		return nil, false, fmt.Errorf("o2ana: no input file")
	case len(a.Inputs) == 1 && strings.HasSuffix(a.Inputs[0], ".root"):
		return a.Inputs, true, nil
	case len(a.Inputs) == 1:
		fname := a.abs(a.Inputs[0])
		raw, err := os.ReadFile(fname)
		if err != nil {
			return nil, false, fmt.Errorf("o2ana: could not read list of files: %w", err)
		}
		var (
			files []string
			dir   = filepath.Dir(fname)
			sc    = bufio.NewScanner(bytes.NewReader(raw))
		)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if !filepath.IsAbs(line) {
				line = filepath.Join(dir, line)
			}
			files = append(files, line)
		}
		if err := sc.Err(); err != nil {
			return nil, false, fmt.Errorf("o2ana: could not scan list of files: %w", err)
		}
		return files, false, nil
	default:
		files := make([]string, len(a.Inputs))
		for i, name := range a.Inputs {
			files[i] = a.abs(name)
		}
		return files, false, nil
	}
}

// Batches splits the input files in batches and writes the list of files
// of each batch.
// The working directory is made absolute, as scripts run from the batch
// directories.
func (a *Analysis) Batches() ([]Batch, error) {
	dir, err := filepath.Abs(a.Dir)
	if err != nil {
		return nil, fmt.Errorf("o2ana: could not find working directory: %w", err)
	}
	a.Dir = dir

	files, single, err := a.files()
	if err != nil {
		return nil, err
	}
	if a.MaxFiles > 0 && len(files) > a.MaxFiles {
		files = files[:a.MaxFiles]
	}

	if single {
		dir := a.batchDir(0)
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("o2ana: could not create batch directory: %w", err)
		}
		return []Batch{{ID: 0, Dir: dir, Input: a.abs(files[0])}}, nil
	}

	size := a.BatchSize
	if size <= 0 {
		size = 1
	}

	var batches []Batch
	for beg := 0; beg < len(files); beg += size {
		end := beg + size
		if end > len(files) {
			end = len(files)
		}
		var (
			i     = len(batches)
			dir   = a.batchDir(i)
			fname = filepath.Join(dir, fmt.Sprintf("ListForRun5Analysis.%d.txt", i))
		)
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("o2ana: could not create batch directory: %w", err)
		}
		o := new(strings.Builder)
		for _, f := range files[beg:end] {
			o.WriteString(f + "\n")
		}
		err = os.WriteFile(fname, []byte(o.String()), 0644)
		if err != nil {
			return nil, fmt.Errorf("o2ana: could not write list of files: %w", err)
		}
		batches = append(batches, Batch{ID: i, Dir: dir, Input: "@" + fname})
	}
	return batches, nil
}

// Script returns the content of the script running the workflow on
// the provided batch.
func (a *Analysis) Script(tasks []string, b Batch) string {
	var (
		o   = new(strings.Builder)
		tag = a.OutTag()
		log = fmt.Sprintf("log_%s.log", strings.ToLower(tag))
		dpl = ""
	)
	if a.DPL != "" {
		dpl = " --configuration json://" + a.abs(a.DPL)
	}

	o.WriteString("#!/bin/bash\n\n")
	fmt.Fprintf(o, "cd %s\n\n", b.Dir)
	for _, name := range Outputs {
		fmt.Fprintf(o, "rm %s 2> /dev/null\n", name)
	}
	o.WriteString("\n")

	for i, task := range tasks {
		line := task + " " + Args
		if i == 0 {
			line += " --aod-file " + b.Input
		}
		line += dpl
		switch {
		case i < len(tasks)-1:
			line += " | \\\n\t"
		default:
			line += " > " + log + "\n"
		}
		o.WriteString(line)
	}
	o.WriteString("status=$?\n\n")

	for _, name := range Outputs {
		fmt.Fprintf(o, "mv %s %s 2> /dev/null\n", name, tagged(name, tag))
	}
	o.WriteString("\nexit $status\n")
	return o.String()
}

func tagged(name, tag string) string {
	return strings.TrimSuffix(name, ".root") + "_" + tag + ".root"
}

// Result is the outcome of the analysis of a batch.
type Result struct {
	Batch   Batch
	Outputs []string // produced output files
	Err     error
}

// Prepare creates the batches of the analysis and their scripts.
func (a *Analysis) Prepare() ([]Batch, error) {
	tasks, err := Workflow(a.Mode)
	if err != nil {
		return nil, err
	}

	batches, err := a.Batches()
	if err != nil {
		return nil, err
	}

	for i := range batches {
		b := &batches[i]
		b.Script = filepath.Join(b.Dir, fmt.Sprintf("tmpscript%s.sh", a.OutTag()))
		a.Msg.Verbosef("writing o2 instructions to '%s'", b.Script)
		err = os.WriteFile(b.Script, []byte(a.Script(tasks, *b)), 0755)
		if err != nil {
			return nil, fmt.Errorf("o2ana: could not write script of batch %d: %w", b.ID, err)
		}
	}
	return batches, nil
}

// Run prepares and runs the analysis over all the batches.
func (a *Analysis) Run(ctx context.Context) ([]Result, error) {
	a.Msg.Printf("running '%s' analysis on %q", a.Mode, a.Inputs)
	a.Msg.Printf("maximum %d files with batch size %d and %d jobs", a.MaxFiles, a.BatchSize, a.NJobs)

	batches, err := a.Prepare()
	if err != nil {
		return nil, err
	}

	res := make([]Result, len(batches))
	err = pool.Run(ctx, a.NJobs, len(batches), func(ctx context.Context, i int) error {
		b := batches[i]
		a.Msg.Printf("> starting run with %s", b.Script)
		cmd := xexec.Cmd{Dir: b.Dir, Msg: a.Msg}
		_, res[i].Err = cmd.Run(ctx, "bash "+b.Script)
		a.Msg.Printf("> end run with %s", b.Script)
		return res[i].Err
	})

	for i := range res {
		res[i].Batch = batches[i]
		for _, name := range Outputs {
			fname := filepath.Join(batches[i].Dir, tagged(name, a.OutTag()))
			if _, err := os.Stat(fname); err == nil {
				res[i].Outputs = append(res[i].Outputs, fname)
			}
		}
		if len(res[i].Outputs) == 0 {
			a.Msg.Warnf("batch %d produced no output", i)
			continue
		}
		a.Msg.Infof("output files: %s", strings.Join(res[i].Outputs, " "))
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("o2ana: analysis interrupted: %w", err)
	}
	if err != nil {
		a.Msg.Warnf("analysis completed with errors: %+v", err)
		return res, nil
	}
	a.Msg.Successf("analysis completed")
	return res, nil
}
