// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xlog

import (
	"bytes"
	"testing"
)

func TestLogger(t *testing.T) {
	var (
		out = new(bytes.Buffer)
		tee = new(bytes.Buffer)
		msg = New(out, "test: ")
	)

	msg.Printf("run %d", 1)
	msg.Verbosef("hidden")
	msg.SetVerbose(true)
	msg.Verbosef("shown %s", "now")
	msg.Warnf("careful")
	err := msg.Errorf("broken %d", 42)
	if err == nil || err.Error() != "broken 42" {
		t.Fatalf("invalid error: %v", err)
	}

	want := "test: run 1\n" +
		"test: ** shown now\n" +
		"test: [WARNING] careful\n" +
		"test: [FATAL] broken 42\n"
	if got := out.String(); got != want {
		t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
	}

	out.Reset()
	msg.SetColor(true)
	msg.Tee(tee)
	msg.Successf("done")

	if got, want := out.String(), "test: "+BoldGreen+"done"+Reset+"\n"; got != want {
		t.Fatalf("invalid colored output: got=%q, want=%q", got, want)
	}
	if got, want := tee.String(), "test: done\n"; got != want {
		t.Fatalf("invalid tee output: got=%q, want=%q", got, want)
	}
}

func TestStrip(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{BoldBlue + "blue" + Reset, "blue"},
		{Header + "a" + Reset + " " + BoldRed + "b" + Reset, "a b"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			if got := Strip(tc.in); got != tc.want {
				t.Fatalf("got=%q, want=%q", got, tc.want)
			}
		})
	}
}
