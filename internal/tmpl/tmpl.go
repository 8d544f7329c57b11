// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tmpl provides tools to copy and adjust the configuration files
// (cards, macros, LUTs) of a production working directory.
package tmpl // import "github.com/AliceO2Group/DelphesO2/internal/tmpl"

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Expand expands environment variables and a leading '~' in path.
func Expand(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// Copy copies src to dst, keeping the permissions and the modification
// time of src.
// src is expanded with Expand.
// If dst is a directory, src is copied into dst with its base name.
func Copy(src, dst string) error {
	src = Expand(src)
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("tmpl: could not stat %q: %w", src, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("tmpl: could not copy %q: is a directory", src)
	}

	if same(src, dst) {
		return nil
	}

	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("tmpl: could not open %q: %w", src, err)
	}
	defer r.Close()

	w, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return fmt.Errorf("tmpl: could not create %q: %w", dst, err)
	}
	defer w.Close()

	_, err = io.Copy(w, r)
	if err != nil {
		return fmt.Errorf("tmpl: could not copy %q to %q: %w", src, dst, err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("tmpl: could not close %q: %w", dst, err)
	}

	err = os.Chmod(dst, fi.Mode().Perm())
	if err != nil {
		return fmt.Errorf("tmpl: could not set permissions of %q: %w", dst, err)
	}

	err = os.Chtimes(dst, fi.ModTime(), fi.ModTime())
	if err != nil {
		return fmt.Errorf("tmpl: could not set times of %q: %w", dst, err)
	}

	return nil
}

func same(src, dst string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	di, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return os.SameFile(si, di)
}

// SetConfig sets the value of a configuration line in the named file.
//
// On every line, the text starting at the first occurrence of "key " is
// replaced with "key value". The file must then contain a line that, once
// trimmed, reads "key value".
func SetConfig(fname, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	raw, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("tmpl: could not read %q: %w", fname, err)
	}

	var (
		re   = regexp.MustCompile(regexp.QuoteMeta(key) + " .*$")
		repl = key + " " + value
		want = repl
		has  = false
	)

	lines := bytes.Split(raw, []byte("\n"))
	for i, line := range lines {
		if loc := re.FindIndex(line); loc != nil {
			o := make([]byte, 0, len(line)+len(repl))
			o = append(o, line[:loc[0]]...)
			o = append(o, repl...)
			line = o
			lines[i] = line
		}
		if string(bytes.TrimSpace(line)) == want {
			has = true
		}
	}

	fi, err := os.Stat(fname)
	if err != nil {
		return fmt.Errorf("tmpl: could not stat %q: %w", fname, err)
	}

	err = os.WriteFile(fname, bytes.Join(lines, []byte("\n")), fi.Mode().Perm())
	if err != nil {
		return fmt.Errorf("tmpl: could not write %q: %w", fname, err)
	}

	if !has {
		return fmt.Errorf("tmpl: %q does not have %q", fname, want)
	}
	return nil
}

// AppendLines appends the provided lines to the named file.
// Each line is terminated with a new line.
func AppendLines(fname string, lines ...string) error {
	f, err := os.OpenFile(fname, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("tmpl: could not open %q: %w", fname, err)
	}
	defer f.Close()

	for _, line := range lines {
		_, err = f.WriteString(line + "\n")
		if err != nil {
			return fmt.Errorf("tmpl: could not append to %q: %w", fname, err)
		}
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("tmpl: could not close %q: %w", fname, err)
	}
	return nil
}

// AppendFile appends the content of src to dst.
func AppendFile(dst, src string) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("tmpl: could not read %q: %w", src, err)
	}

	f, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("tmpl: could not open %q: %w", dst, err)
	}
	defer f.Close()

	_, err = f.Write(raw)
	if err != nil {
		return fmt.Errorf("tmpl: could not append %q to %q: %w", src, dst, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("tmpl: could not close %q: %w", dst, err)
	}
	return nil
}
