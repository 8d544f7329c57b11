// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastsim

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AliceO2Group/DelphesO2/internal/inicfg"
)

// Config is the detector and generator configuration of a production,
// as read from an entry of a configuration file.
//
// Detector values are kept as written in the configuration file since
// they are substituted verbatim into the Delphes card and the AOD macro.
type Config struct {
	BField string  // magnetic field [kG]
	SigmaT string  // time resolution [ns]
	Radius string  // TOF radius [cm]
	Length string  // TOF half length [cm]
	EtaMax float64 // acceptance, computed from radius and length

	CardPath      string // directory of the Delphes cards
	PropagateCard string // name of the propagation card
	LUTPath       string // directory of the LUTs
	LUTTag        string // tag of the LUT files

	CustomGen  string   // command line of a custom HepMC generator
	Generators []string // Pythia8 configuration cards, when no custom generator

	AODPath string // directory of the AOD creation macro
}

// LoadConfig reads the named entry of a configuration file.
func LoadConfig(fname, entry string) (Config, error) {
	f, err := inicfg.Load(fname)
	if err != nil {
		return Config{}, fmt.Errorf("fastsim: could not load configuration: %w", err)
	}

	e, err := f.Entry(entry)
	if err != nil {
		return Config{}, fmt.Errorf("fastsim: could not load configuration: %w", err)
	}

	return ConfigFrom(e)
}

// ConfigFrom creates a configuration from an entry of a configuration file.
func ConfigFrom(e *inicfg.Entry) (Config, error) {
	var (
		cfg  Config
		err  error
		errs []error
	)

	get := func(key string) string {
		v, err := e.String(key)
		if err != nil {
			errs = append(errs, err)
		}
		return strings.TrimSpace(v)
	}

	cfg.BField = get("bField")
	cfg.SigmaT = get("sigmaT")
	cfg.Radius = get("radius")
	cfg.Length = get("length")
	_ = get("etaMax")

	cfg.CardPath = get("card_path")
	cfg.PropagateCard = get("propagate_card")
	cfg.LUTPath = get("lut_path")
	cfg.LUTTag = get("lut_tag")
	cfg.AODPath = get("aod_path")

	if v, ok := e.Lookup("custom_gen"); ok {
		cfg.CustomGen = strings.TrimSpace(v)
	}
	if cfg.CustomGen == "" {
		cfg.Generators = strings.Fields(get("generators"))
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("fastsim: invalid configuration entry %q: %w", e.Name(), errs[0])
	}

	if cfg.CustomGen == "" && len(cfg.Generators) == 0 {
		return cfg, fmt.Errorf("fastsim: invalid configuration entry %q: no generator", e.Name())
	}

	radius, err := strconv.ParseFloat(cfg.Radius, 64)
	if err != nil {
		return cfg, fmt.Errorf("fastsim: could not parse radius %q: %w", cfg.Radius, err)
	}
	length, err := strconv.ParseFloat(cfg.Length, 64)
	if err != nil {
		return cfg, fmt.Errorf("fastsim: could not parse length %q: %w", cfg.Length, err)
	}
	cfg.EtaMax = EtaMax(radius, length)

	return cfg, nil
}

// EtaMax returns the maximum pseudo-rapidity covered by a barrel of the
// given radius and half length.
func EtaMax(radius, length float64) float64 {
	th := 0.5 * math.Atan2(radius, length)
	return -math.Log(math.Sin(th) / math.Cos(th))
}

// LUTBField returns the magnetic field tag of LUT files, eg: "5." -> "5kG".
func LUTBField(bfield string) string {
	return strings.ReplaceAll(bfield+"kG", ".", "")
}

// Particles are the species with a dedicated LUT.
var Particles = []string{"el", "mu", "pi", "ka", "pr"}

// LUT describes the copy of a tagged LUT file into the working directory.
type LUT struct {
	Src string // tagged LUT file, in the LUT directory
	Dst string // LUT file name expected by the propagation card
}

// LUTs returns the LUT files needed by the configuration.
func (cfg Config) LUTs() []LUT {
	var (
		luts = make([]LUT, 0, len(Particles))
		bg   = LUTBField(cfg.BField)
	)
	for _, p := range Particles {
		name := fmt.Sprintf("lutCovm.%s.%s", p, bg)
		luts = append(luts, LUT{
			Src: filepath.Join(cfg.LUTPath, fmt.Sprintf("%s.%s.dat", name, cfg.LUTTag)),
			Dst: name + ".dat",
		})
	}
	return luts
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
