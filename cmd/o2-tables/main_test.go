// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AliceO2Group/DelphesO2/fastsim"
	"github.com/AliceO2Group/DelphesO2/proddb"
)

const (
	fakeDelphes = `#!/usr/bin/env bash
touch "$3"
`
	fakeROOT = `#!/usr/bin/env bash
out=$(echo "$4" | sed -e 's/.*("\([^"]*\)", "\([^"]*\)".*/\2/')
touch "$out"
`
	config = `[DEFAULT]
card_path = %[1]s/cards
propagate_card = propagate.tcl
lut_path = %[1]s/luts
lut_tag = werner
aod_path = %[1]s/aod
generators = %[1]s/gens/pythia8_inel.cfg
bField = 5.
sigmaT = 0.020
radius = 100.
length = 200.
etaMax = 1.44
`
)

func write(t *testing.T, fname, content string, perm os.FileMode) {
	t.Helper()
	err := os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		t.Fatalf("could not create dir for %q: %+v", fname, err)
	}
	err = os.WriteFile(fname, []byte(content), perm)
	if err != nil {
		t.Fatalf("could not create %q: %+v", fname, err)
	}
}

func TestRun(t *testing.T) {
	var (
		top = t.TempDir()
		bin = filepath.Join(top, "bin")
		dir = filepath.Join(top, "work")
		db  = filepath.Join(top, "prod.db")
	)

	write(t, filepath.Join(bin, "DelphesPythia8"), fakeDelphes, 0755)
	write(t, filepath.Join(bin, "root"), fakeROOT, 0755)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	write(t, filepath.Join(top, "cards", "propagate.tcl"), strings.Join([]string{
		"set barrel_Radius 100.e-2",
		"set barrel_HalfLength 200.e-2",
		"set barrel_Bz 0.2",
		"set barrel_TimeResolution 0.020e-9",
		"set barrel_Acceptance { 0.0 + 1.0 * fabs(eta) < 1.443 }",
		"",
	}, "\n"), 0644)
	for _, p := range fastsim.Particles {
		write(t, filepath.Join(top, "luts", "lutCovm."+p+".5kG.werner.dat"), p, 0644)
	}
	write(t, filepath.Join(top, "gens", "pythia8_inel.cfg"), "SoftQCD:inelastic on\n", 0644)
	write(t, filepath.Join(top, "aod", fastsim.AODHeader), "// header\n", 0644)
	write(t, filepath.Join(top, "aod", fastsim.AODMacro), strings.Join([]string{
		"double Bz = 0.2;",
		"double tof_radius = 100.;",
		"double tof_length = 200.;",
		"double tof_sigmat = 0.020;",
		"",
	}, "\n"), 0644)
	write(t, filepath.Join(top, "prod.ini"), fmt.Sprintf(config, top), 0644)

	opts := options{
		config:  filepath.Join(top, "prod.ini"),
		entry:   "DEFAULT",
		dir:     dir,
		njobs:   2,
		nruns:   3,
		nevents: 10,
		db:      "sqlite:" + db,
	}

	err := run(context.Background(), opts)
	if err != nil {
		t.Fatalf("could not run production: %+v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, fastsim.ListFiles))
	if err != nil {
		t.Fatalf("could not read list of files: %+v", err)
	}
	if got, want := string(raw), "AODRun5.0.root\nAODRun5.1.root\nAODRun5.2.root\n"; got != want {
		t.Fatalf("invalid list of files:\ngot= %q\nwant=%q", got, want)
	}

	pdb, err := proddb.Open("sqlite", db)
	if err != nil {
		t.Fatalf("could not open production db: %+v", err)
	}
	defer pdb.Close()

	prods, err := pdb.Productions(context.Background())
	if err != nil {
		t.Fatalf("could not retrieve productions: %+v", err)
	}
	if len(prods) != 1 {
		t.Fatalf("invalid number of productions: %d", len(prods))
	}
	if got, want := prods[0].Status, proddb.Done; got != want {
		t.Fatalf("invalid production status: got=%q, want=%q", got, want)
	}
	if got, want := prods[0].Entry, "DEFAULT"; got != want {
		t.Fatalf("invalid production entry: got=%q, want=%q", got, want)
	}

	runs, err := pdb.Runs(context.Background(), prods[0].ID)
	if err != nil {
		t.Fatalf("could not retrieve runs: %+v", err)
	}
	if got, want := len(runs), 3; got != want {
		t.Fatalf("invalid number of runs: got=%d, want=%d", got, want)
	}
	for _, r := range runs {
		if !r.OK {
			t.Fatalf("run %d failed", r.Number)
		}
	}
}

func TestReport(t *testing.T) {
	beg := time.Date(2021, 4, 9, 10, 0, 0, 0, time.UTC)
	runs := []fastsim.Run{
		{Number: 0, Start: beg, End: beg.Add(2 * time.Minute), OK: true},
		{Number: 1, Start: beg, End: beg.Add(time.Minute), Issues: []string{"delphes.1.log: ERROR"}},
	}
	subject, body := report(
		options{config: "prod.ini", entry: "INEL", dir: "/work"},
		runs, []string{"AODRun5.0.root"},
	)

	if got, want := subject, `[o2-tables] production "INEL": 1/2 runs`; got != want {
		t.Fatalf("invalid subject: got=%q, want=%q", got, want)
	}

	want := `config: prod.ini
entry:  INEL
dir:    /work
runs:   1/2 produced an AOD file
  run 0: ok (2m0s, 0 issues)
  run 1: failed (1m0s, 1 issues)
files:
  AODRun5.0.root
`
	if body != want {
		t.Fatalf("invalid body:\ngot:\n%s\nwant:\n%s", body, want)
	}
}
