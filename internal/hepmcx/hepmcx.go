// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hepmcx inspects the content of HepMC event files.
package hepmcx // import "github.com/AliceO2Group/DelphesO2/internal/hepmcx"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/AliceO2Group/DelphesO2/internal/xlog"
	"go-hep.org/x/hep/hepmc"
)

const (
	Proton      = 2212
	AntiProton  = -2212
	Neutron     = 2112
	AntiNeutron = -2112
	Lambda0     = 3122
	Deuteron    = 1000010020
	Triton      = 1000010030
	Alpha       = 1000020040
	Helium3     = 1000020030
)

// Interest lists the PDG codes of the particles of interest.
var Interest = []int64{
	Proton, AntiProton,
	Neutron, AntiNeutron,
	Lambda0,
	Deuteron, Triton, Alpha, Helium3,
}

var names = map[int64]string{
	Proton:      "Proton",
	AntiProton:  "AntiProton",
	Neutron:     "Neutron",
	AntiNeutron: "AntiNeutron",
	Lambda0:     "Lambda0",
	Deuteron:    "Deuteron",
	Triton:      "Triton",
	Alpha:       "Alpha",
	Helium3:     "Helium3",
}

// Name returns the name of a particle of interest.
func Name(pdg int64) string {
	if name, ok := names[pdg]; ok {
		return name
	}
	return fmt.Sprintf("PDG(%d)", pdg)
}

// Vertex is a vertex producing both a proton and a neutron.
type Vertex struct {
	Event   int     // event number
	Barcode int     // vertex barcode
	Out     []int64 // PDG codes of the outgoing particles
}

// Summary is the result of the inspection of a HepMC file.
type Summary struct {
	Events   int           // number of inspected events
	Counts   map[int64]int // number of particles of interest, by PDG code
	Vertices []Vertex      // vertices producing both a proton and a neutron
}

// Options configures the inspection of a HepMC file.
type Options struct {
	Start int // first inspected event number
	Stop  int // last inspected event number
}

// Open inspects the named HepMC file.
func Open(fname string, opts Options, msg *xlog.Logger) (Summary, error) {
	f, err := os.Open(fname)
	if err != nil {
		return Summary{}, fmt.Errorf("hepmcx: could not open HepMC file: %w", err)
	}
	defer f.Close()

	if msg == nil {
		msg = xlog.Discard()
	}
	msg.Printf("reading %s between %d and %d events", fname, opts.Start, opts.Stop)
	return Inspect(f, opts, msg)
}

// Inspect inspects the HepMC events read from r, from the event numbered
// opts.Start until the one numbered opts.Stop.
func Inspect(r io.Reader, opts Options, msg *xlog.Logger) (Summary, error) {
	if msg == nil {
		msg = xlog.Discard()
	}
	sum := Summary{Counts: make(map[int64]int, len(Interest))}
	for _, pdg := range Interest {
		sum.Counts[pdg] = 0
	}

	dec := hepmc.NewDecoder(r)
	for {
		var evt hepmc.Event
		err := dec.Decode(&evt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return sum, fmt.Errorf("hepmcx: could not decode event: %w", err)
		}
		if evt.EventNumber < opts.Start {
			continue
		}
		sum.inspect(&evt, msg)
		if evt.EventNumber >= opts.Stop {
			break
		}
	}
	return sum, nil
}

func (sum *Summary) inspect(evt *hepmc.Event, msg *xlog.Logger) {
	sum.Events++
	msg.Verbosef("event_number: %d", evt.EventNumber)
	msg.Verbosef("units: momentum_unit: %v length_unit: %v", evt.MomentumUnit, evt.LengthUnit)

	msg.Verbosef("%d particles:", len(evt.Particles))
	for _, bc := range barcodes(evt.Particles) {
		p := evt.Particles[bc]
		if _, ok := sum.Counts[p.PdgID]; ok {
			sum.Counts[p.PdgID]++
			msg.Verbosef("(%d) PDG code %d is of interest!!!", bc, p.PdgID)
			continue
		}
		msg.Verbosef("(%d) PDG code %d", bc, p.PdgID)
	}

	msg.Verbosef("%d vertices:", len(evt.Vertices))
	for _, bc := range barcodes(evt.Vertices) {
		vtx := evt.Vertices[bc]
		msg.Verbosef("vertex: %d", bc)
		msg.Verbosef("input particles")
		for _, p := range vtx.ParticlesIn {
			msg.Verbosef("\t%d pdg %d", p.Barcode, p.PdgID)
		}
		msg.Verbosef("output particles")
		var (
			out     = make([]int64, 0, len(vtx.ParticlesOut))
			proton  bool
			neutron bool
		)
		for _, p := range vtx.ParticlesOut {
			msg.Verbosef("\t%d pdg %d", p.Barcode, p.PdgID)
			out = append(out, p.PdgID)
			switch p.PdgID {
			case Proton:
				proton = true
			case Neutron:
				neutron = true
			}
		}
		if proton && neutron {
			msg.Printf("event %d has both: vertex %d, out=%v", evt.EventNumber, bc, out)
			sum.Vertices = append(sum.Vertices, Vertex{
				Event:   evt.EventNumber,
				Barcode: bc,
				Out:     out,
			})
		}
	}
}

// Print prints the number of particles of interest.
func (sum Summary) Print(msg *xlog.Logger) {
	for _, pdg := range Interest {
		msg.Printf("number of %ss %d", Name(pdg), sum.Counts[pdg])
	}
}

func barcodes[T any](m map[int]T) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
