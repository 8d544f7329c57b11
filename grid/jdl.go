// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grid

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AliceO2Group/DelphesO2/fastsim"
	"github.com/AliceO2Group/DelphesO2/internal/inicfg"
)

// JDL describes a private grid production of fast simulation and AOD
// creation jobs.
type JDL struct {
	GridPath   string // grid directory of the configuration and the outputs
	SourcePath string // grid directory of the executables, LUTs and geometry files

	Config string // local configuration file of the production
	Entry  string // entry of the configuration file
	LUTTag string // tag of the LUT files
	BField string // magnetic field [kG]

	NEvents int    // number of events per job
	NJobs   int    // number of jobs
	User    string // grid user
	Mail    string // notification address, <user>@cern.ch if empty
	Delphes string // DelphesO2 package version
}

// NewJDL returns the description of a production configured from the
// named entry of a configuration file.
func NewJDL(config, entry string) (JDL, error) {
	jdl := JDL{
		Config:  config,
		Entry:   entry,
		NEvents: 1000,
		NJobs:   2,
		Delphes: "DelphesO2::v20210409-1",
	}

	f, err := inicfg.Load(config)
	if err != nil {
		return jdl, fmt.Errorf("grid: could not load configuration: %w", err)
	}
	e, err := f.Entry(entry)
	if err != nil {
		return jdl, fmt.Errorf("grid: could not load configuration: %w", err)
	}

	jdl.LUTTag, err = e.String("lut_tag")
	if err != nil {
		return jdl, fmt.Errorf("grid: could not load configuration: %w", err)
	}
	jdl.BField, err = e.String("bField")
	if err != nil {
		return jdl, fmt.Errorf("grid: could not load configuration: %w", err)
	}
	jdl.LUTTag = strings.TrimSpace(jdl.LUTTag)
	jdl.BField = strings.TrimSpace(jdl.BField)

	return jdl, nil
}

// lutField returns the magnetic field tag of the LUT files as an integer
// number of kG.
func (jdl JDL) lutField() (string, error) {
	v, err := strconv.Atoi(strings.ReplaceAll(jdl.BField, ".", ""))
	if err != nil {
		return "", fmt.Errorf("grid: invalid magnetic field %q: %w", jdl.BField, err)
	}
	return strconv.Itoa(v) + "kG", nil
}

// Write writes the JDL file to w.
func (jdl JDL) Write(w io.Writer) error {
	bfield, err := jdl.lutField()
	if err != nil {
		return err
	}

	var (
		o    = new(strings.Builder)
		cfg  = filepath.Base(jdl.Config)
		mail = jdl.Mail
	)
	if mail == "" {
		mail = jdl.User + "@cern.ch"
	}

	line := func(format string, args ...interface{}) {
		fmt.Fprintf(o, format+"\n", args...)
	}

	line("# Simulation + AOD creation JDL")
	line("#\n")
	line("Executable = %q;", jdl.SourcePath+"/starter.sh")
	line("Validationcommand = %q;", jdl.SourcePath+"/validation.sh")
	line("Arguments = \"o2-tables -entry %s -j 1 -r 1 -ev %d -l -v %s\";\n", jdl.Entry, jdl.NEvents, cfg)
	line("Requirements = ( other.Type == \"machine\" );\n")
	line("Packages = {")
	line("\t\"VO_ALICE@%s\"", jdl.Delphes)
	line("};\n")
	line("JDLVariables = {")
	line("\t\"Packages\",")
	line("\t\"OutputDir\"")
	line("};\n")
	line("Type = \"Job\";")
	line("User = %q;", jdl.User)
	line("Jobtag = {")
	line("\t\"comment: DelphesO2 Simulation + AOD jdl\"")
	line("};")
	line("EMail = %q;", mail)
	line("TTL = \"86400\";")
	line("Price = 1;")
	line("Workdirectorysize = {")
	line("\t\"12000MB\"")
	line("};\n")
	line("Split = \"production:1-%d\";", jdl.NJobs)
	line("SplitArguments = \"\";\n")
	line("InputFile = {")
	for _, p := range fastsim.Particles {
		line("\t\"LF:%s/lutCovm.%s.%s.%s.dat\",", jdl.SourcePath, p, bfield, jdl.LUTTag)
	}
	for _, name := range []string{"o2-tables", "o2sim_grp.root", "o2sim_geometry.root"} {
		line("\t\"LF:%s/%s\",", jdl.SourcePath, name)
	}
	line("\t\"LF:%s/%s\"", jdl.GridPath, cfg)
	line("};\n")
	line("OutputArchive = {")
	line("\t\"log_archive.zip:stdout,stderr,*.log,*.sh@\",")
	line("\t\"root_archive.zip:AODRun5*.root@\"")
	line("};\n")
	line("OutputDir = \"%s/output/#alien_counter_03i#\";", jdl.GridPath)

	_, err = io.WriteString(w, o.String())
	if err != nil {
		return fmt.Errorf("grid: could not write JDL: %w", err)
	}
	return nil
}

// Create writes the JDL file to the named file.
func (jdl JDL) Create(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("grid: could not create JDL file: %w", err)
	}
	defer f.Close()

	err = jdl.Write(f)
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("grid: could not close JDL file: %w", err)
	}
	return nil
}

// Setup creates the grid directory of the production and uploads the
// configuration file to it.
func (c *Client) Setup(ctx context.Context, jdl JDL) error {
	c.Msg.Printf("making directory on alien: %s", jdl.GridPath)
	err := c.Mkdir(ctx, jdl.GridPath)
	if err != nil {
		return err
	}
	return c.Upload(ctx, jdl.Config, path.Join(jdl.GridPath, filepath.Base(jdl.Config)))
}
