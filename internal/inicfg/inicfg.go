// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inicfg reads production configuration files in the INI format.
//
// Values are read raw: no interpolation and no inline comments.
// Keys are case-insensitive and a key missing from an entry is looked up
// in the [DEFAULT] section.
package inicfg // import "github.com/AliceO2Group/DelphesO2/internal/inicfg"

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Default is the name of the section holding default values.
const Default = "DEFAULT"

// File is a parsed configuration file.
type File struct {
	name string
	f    *ini.File
}

// Load parses the named configuration file.
func Load(fname string) (*File, error) {
	f, err := ini.LoadSources(loadOptions, fname)
	if err != nil {
		return nil, fmt.Errorf("inicfg: could not load %q: %w", fname, err)
	}
	return &File{name: fname, f: f}, nil
}

// Parse parses a configuration from raw data. name is only used in error
// messages.
func Parse(name string, data []byte) (*File, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("inicfg: could not parse %q: %w", name, err)
	}
	return &File{name: name, f: f}, nil
}

var loadOptions = ini.LoadOptions{
	InsensitiveKeys:            true,
	IgnoreInlineComment:        true,
	AllowPythonMultilineValues: true,
	PreserveSurroundedQuote:    true,
}

// Name returns the name of the configuration file.
func (f *File) Name() string { return f.name }

// Entries returns the names of the entries of the file, DEFAULT excluded.
func (f *File) Entries() []string {
	var names []string
	for _, name := range f.f.SectionStrings() {
		if name == Default {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Entry returns the named entry of the configuration file.
func (f *File) Entry(name string) (*Entry, error) {
	def := f.f.Section(Default)
	if name == "" || name == Default {
		return &Entry{name: Default, file: f.name, sec: def, def: def}, nil
	}

	sec, err := f.f.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("inicfg: missing entry %q in file %q", name, f.name)
	}
	return &Entry{name: name, file: f.name, sec: sec, def: def}, nil
}

// Entry is a section of a configuration file.
type Entry struct {
	name string
	file string
	sec  *ini.Section
	def  *ini.Section
}

// Name returns the name of the entry.
func (e *Entry) Name() string { return e.name }

// Lookup returns the raw value associated with key, and whether it was
// found in the entry or in the DEFAULT section.
func (e *Entry) Lookup(key string) (string, bool) {
	key = strings.ToLower(key)
	for _, sec := range []*ini.Section{e.sec, e.def} {
		if !sec.HasKey(key) {
			continue
		}
		return sec.Key(key).Value(), true
	}
	return "", false
}

// String returns the required value associated with key.
func (e *Entry) String(key string) (string, error) {
	v, ok := e.Lookup(key)
	if !ok {
		return "", fmt.Errorf("inicfg: missing entry %q in file %q", key, e.file)
	}
	return v, nil
}

// Float returns the required value associated with key, as a float.
func (e *Entry) Float(key string) (float64, error) {
	v, err := e.String(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("inicfg: could not parse %q=%q as a float in %q: %w", key, v, e.file, err)
	}
	return f, nil
}

// Bool returns the required value associated with key, as a boolean.
func (e *Entry) Bool(key string) (bool, error) {
	v, err := e.String(key)
	if err != nil {
		return false, err
	}
	b, ok := ParseBool(v)
	if !ok {
		return false, fmt.Errorf("inicfg: could not parse %q=%q as a boolean in %q", key, v, e.file)
	}
	return b, nil
}

// IsBool reports whether v is one of yes, no, on, off, true or false.
func IsBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "no", "on", "off", "true", "false":
		return true
	}
	return false
}

// ParseBool parses yes, no, on, off, true, false, 1 and 0,
// ignoring case and surrounding white spaces.
func ParseBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on", "true", "1":
		return true, true
	case "no", "off", "false", "0":
		return false, true
	}
	return false, false
}
