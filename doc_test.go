// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package delphes

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/AliceO2Group/DelphesO2"
	for _, tc := range []struct {
		name string
		info *debug.BuildInfo
		vers string
		sum  string
	}{
		{
			name: "nil",
		},
		{
			name: "main",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: root, Version: "v0.3.0", Sum: "h1:main"},
			},
			vers: "v0.3.0",
			sum:  "h1:main",
		},
		{
			name: "dep",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/prod"},
				Deps: []*debug.Module{
					{Path: "go-hep.org/x/hep", Version: "v0.32.1"},
					{Path: root, Version: "v0.2.0", Sum: "h1:dep"},
				},
			},
			vers: "v0.2.0",
			sum:  "h1:dep",
		},
		{
			name: "replace-path",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/prod"},
				Deps: []*debug.Module{
					{
						Path:    root,
						Version: "v0.2.0",
						Replace: &debug.Module{Path: "../DelphesO2"},
					},
				},
			},
			vers: "../DelphesO2",
		},
		{
			name: "replace-local",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/prod"},
				Deps: []*debug.Module{
					{
						Path:    root,
						Version: "v0.2.0",
						Replace: &debug.Module{},
					},
				},
			},
			vers: "v0.2.0*",
		},
		{
			name: "missing",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/prod"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vers, sum := versionOf(tc.info)
			if vers != tc.vers {
				t.Fatalf("invalid version: got=%q, want=%q", vers, tc.vers)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
