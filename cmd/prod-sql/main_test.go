// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AliceO2Group/DelphesO2/proddb"
)

func TestQuery(t *testing.T) {
	orig := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(orig)

	db, err := proddb.Open(proddb.ParseDSN("sqlite:" + filepath.Join(t.TempDir(), "prod.db")))
	if err != nil {
		t.Fatalf("could not open production db: %+v", err)
	}
	defer db.Close()

	ctx := context.Background()
	err = db.Init(ctx)
	if err != nil {
		t.Fatalf("could not init production db: %+v", err)
	}

	start := time.Date(2021, 4, 9, 10, 0, 0, 0, time.UTC)
	id, err := db.AddProduction(ctx, proddb.Production{
		Config:  "default_configfile.ini",
		Entry:   "INEL",
		Host:    "node01",
		NRuns:   1,
		NEvents: 100,
		Start:   start,
	})
	if err != nil {
		t.Fatalf("could not add production: %+v", err)
	}
	err = db.AddRun(ctx, proddb.Run{
		Production: id, Number: 0,
		Start: start, End: start.Add(90 * time.Second),
		OK: true, Issues: 1,
	})
	if err != nil {
		t.Fatalf("could not add run: %+v", err)
	}
	err = db.EndProduction(ctx, id, start.Add(2*time.Minute), proddb.Done)
	if err != nil {
		t.Fatalf("could not end production: %+v", err)
	}

	out := new(strings.Builder)
	err = doQuery(db, "", out)
	if err != nil {
		t.Fatalf("could not query productions: %+v", err)
	}
	for _, want := range []string{
		id.String(), "INEL", "default_configfile.ini", "node01",
		"2021-04-09T10:00:00Z", "2m0s", "done",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in output:\n%s", want, out.String())
		}
	}

	out.Reset()
	err = doQuery(db, id.String(), out)
	if err != nil {
		t.Fatalf("could not query runs: %+v", err)
	}
	want := "RUN START                DURATION OK   ISSUES\n" +
		"0   2021-04-09T10:00:00Z 1m30s    true 1\n"
	if got := out.String(); got != want {
		t.Fatalf("invalid runs:\ngot:\n%s\nwant:\n%s", got, want)
	}

	err = doQuery(db, "not-an-id", out)
	if err == nil {
		t.Fatalf("expected an error for an invalid production ID")
	}
}
