// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestProcessErrors(t *testing.T) {
	tmp := t.TempDir()

	err := process(filepath.Join(tmp, "out.root"), nil, []string{"a.root", "b.root"})
	if err == nil || !strings.Contains(err.Error(), "single input file") {
		t.Fatalf("invalid error: %+v", err)
	}

	err = process("", nil, []string{filepath.Join(tmp, "missing.root")})
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
