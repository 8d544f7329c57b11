// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AliceO2Group/DelphesO2/grid"
	"github.com/AliceO2Group/DelphesO2/internal/xlog"
	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	cmds []string
}

func (r *recorder) Exec(ctx context.Context, cmdline string) (string, error) {
	r.cmds = append(r.cmds, cmdline)
	return "", nil
}

func TestProcess(t *testing.T) {
	tmp := t.TempDir()
	cfg := filepath.Join(tmp, "default_configfile.ini")
	err := os.WriteFile(cfg, []byte(`[DEFAULT]
lut_tag = werner
bField = 5.

[CCBAR]
radius = 100.
`), 0644)
	if err != nil {
		t.Fatalf("could not create configuration: %+v", err)
	}

	var (
		out  = filepath.Join(tmp, "ccbar.jdl")
		rec  = &recorder{}
		c    = grid.New(tmp, xlog.Discard())
		opts = options{
			entry:   "CCBAR",
			nevents: 200,
			njobs:   4,
			user:    "jdoe",
			out:     out,
		}
	)
	c.Exec = rec

	err = process(context.Background(), nil, cfg, opts)
	if err != nil {
		t.Fatalf("could not create JDL: %+v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("could not read JDL: %+v", err)
	}
	for _, want := range []string{
		`Executable = "/alice/cern.ch/user/j/jdoe/DelphesO2/starter.sh";`,
		`Arguments = "o2-tables -entry CCBAR -j 1 -r 1 -ev 200 -l -v default_configfile.ini";`,
		`Split = "production:1-4";`,
		`"LF:/alice/cern.ch/user/j/jdoe/CCBAR/default_configfile.ini"`,
		`OutputDir = "/alice/cern.ch/user/j/jdoe/CCBAR/output/#alien_counter_03i#";`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("missing %q in JDL:\n%s", want, raw)
		}
	}

	opts.upload = true
	err = process(context.Background(), c, cfg, opts)
	if err != nil {
		t.Fatalf("could not upload JDL: %+v", err)
	}

	want := []string{
		"alien_mkdir alien:///alice/cern.ch/user/j/jdoe/CCBAR",
		"alien_cp " + cfg + " alien:///alice/cern.ch/user/j/jdoe/CCBAR/default_configfile.ini",
		"alien_cp " + out + " alien:///alice/cern.ch/user/j/jdoe/CCBAR/ccbar.jdl",
	}
	if diff := cmp.Diff(want, rec.cmds); diff != "" {
		t.Fatalf("invalid commands (-want +got):\n%s", diff)
	}

	err = process(context.Background(), nil, filepath.Join(tmp, "missing.ini"), options{entry: "CCBAR", out: out})
	if err == nil {
		t.Fatalf("expected an error for a missing configuration")
	}
}
