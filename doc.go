// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package delphes holds tools to run DelphesO2 fast-simulation productions:
// per-run Delphes/Pythia8 simulations converted into O2 analysis tables,
// their QA with O2 analysis workflows, and the bookkeeping of the produced
// AOD files, locally or on the grid.
//
// The simulation and reconstruction themselves are performed by external
// executables; the packages of this module prepare their configuration,
// dispatch them and check what they produced.
package delphes // import "github.com/AliceO2Group/DelphesO2"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of DelphesO2 and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

const modpath = "github.com/AliceO2Group/DelphesO2"

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	if b.Main.Path == modpath {
		return b.Main.Version, b.Main.Sum
	}

	for _, m := range b.Deps {
		if m.Path == modpath {
			return moduleVersion(m)
		}
	}
	return "", ""
}

// moduleVersion returns the version of a dependency, taking replace
// directives into account.
func moduleVersion(m *debug.Module) (version, sum string) {
	r := m.Replace
	switch {
	case r == nil:
		return m.Version, m.Sum
	case r.Version != "" && r.Path != "":
		return fmt.Sprintf("%s %s", r.Path, r.Version), r.Sum
	case r.Version != "":
		return r.Version, r.Sum
	case r.Path != "":
		return r.Path, r.Sum
	default:
		return m.Version + "*", ""
	}
}
