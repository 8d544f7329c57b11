// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/AliceO2Group/DelphesO2/internal/xlog"
	"github.com/google/go-cmp/cmp"
)

// fakeExec records command lines and replies with canned outputs.
type fakeExec struct {
	mu    sync.Mutex
	cmds  []string
	reply func(cmdline string) (string, error)
}

func (fe *fakeExec) Exec(ctx context.Context, cmdline string) (string, error) {
	fe.mu.Lock()
	fe.cmds = append(fe.cmds, cmdline)
	fe.mu.Unlock()
	if fe.reply == nil {
		return "", nil
	}
	return fe.reply(cmdline)
}

func newClient(t *testing.T, version int, fe *fakeExec) *Client {
	t.Helper()
	c := New(t.TempDir(), xlog.Discard())
	c.Version = version
	c.Exec = fe
	return c
}

func TestNormalizePath(t *testing.T) {
	for _, tc := range []struct {
		in      string
		version int
		want    string
		err     string
	}{
		{in: "", version: 1, err: "grid: empty input"},
		{in: "AO2D.root", version: 1, err: `grid: input "AO2D.root" has no path`},
		{in: "/alice/data/AO2D", version: 1, err: `grid: input "/alice/data/AO2D" has no extension`},
		{in: "/alice/v1.2/AO2D", version: 1, err: `grid: input "/alice/v1.2/AO2D" has no extension`},
		{in: "/alice/data/AO2D.root", version: 0, want: "alien:///alice/data/AO2D.root"},
		{in: "alien:///alice/data/AO2D.root", version: 0, want: "alien:///alice/data/AO2D.root"},
		{in: ".//alice//data///AO2D.root", version: 1, want: "/alice/data/AO2D.root"},
		{in: "alice/AO2D.root", version: 1, err: `grid: input "alice/AO2D.root" does not start with /`},
		{in: "/alice/AO2D.root", version: 2, err: "grid: unknown alien version 2"},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizePath(tc.in, tc.version)
			switch {
			case tc.err != "":
				if err == nil || err.Error() != tc.err {
					t.Fatalf("invalid error:\ngot= %v\nwant=%s", err, tc.err)
				}
			case err != nil:
				t.Fatalf("could not normalize path: %+v", err)
			case got != tc.want:
				t.Fatalf("invalid path: got=%q, want=%q", got, tc.want)
			}
		})
	}
}

func TestListFiles(t *testing.T) {
	const scan = "/alice/cern.ch/user/j/jdoe/prod"
	fe := &fakeExec{
		reply: func(cmdline string) (string, error) {
			if !strings.HasPrefix(cmdline, "alien_find ") {
				return "", fmt.Errorf("unexpected command %q", cmdline)
			}
			return strings.Join([]string{
				scan + "/001/AO2D.root",
				scan + "/002/AO2D.root",
				scan + "/002/sub/AO2D.root",
				scan + "/003/log_archive.zip",
				"",
				scan + "/bad/AO2D.root",
			}, "\n"), nil
		},
	}
	c := newClient(t, 1, fe)

	for _, tc := range []struct {
		name string
		opts ListOptions
		want []string
	}{
		{
			name: "all",
			want: []string{
				scan + "/001/AO2D.root",
				scan + "/002/AO2D.root",
				scan + "/002/sub/AO2D.root",
				scan + "/bad/AO2D.root",
			},
		},
		{
			name: "must-have",
			opts: ListOptions{MustHave: "/00"},
			want: []string{
				scan + "/001/AO2D.root",
				scan + "/002/AO2D.root",
				scan + "/002/sub/AO2D.root",
			},
		},
		{
			name: "sub-dirs",
			opts: ListOptions{SubDirs: 2},
			want: []string{
				scan + "/002/sub/AO2D.root",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.User = "jdoe"
			tc.opts.MainPath = "/alice/cern.ch/user"
			got, err := c.ListFiles(context.Background(), "prod/", "AO2D.root", tc.opts)
			if err != nil {
				t.Fatalf("could not list files: %+v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("invalid files (-want +got):\n%s", diff)
			}
		})
	}

	if got, want := fe.cmds[0], "alien_find "+scan+" AO2D.root"; got != want {
		t.Fatalf("invalid command:\ngot= %q\nwant=%q", got, want)
	}
}

func TestListDir(t *testing.T) {
	fe := &fakeExec{
		reply: func(cmdline string) (string, error) {
			return "001/\n002/\n", nil
		},
	}
	c := newClient(t, 1, fe)

	got, err := c.ListFiles(context.Background(), "prod", "", ListOptions{User: "jdoe"})
	if err != nil {
		t.Fatalf("could not list dir: %+v", err)
	}
	if diff := cmp.Diff([]string{"001/", "002/"}, got); diff != "" {
		t.Fatalf("invalid content (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"alien_ls j/jdoe/prod"}, fe.cmds); diff != "" {
		t.Fatalf("invalid commands (-want +got):\n%s", diff)
	}
}

func TestWriteFiles(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "files.txt")

	n, err := WriteFiles([]string{" a.root", "b.root "}, fname, false, nil)
	if err != nil {
		t.Fatalf("could not write files: %+v", err)
	}
	if n != 2 {
		t.Fatalf("invalid number of written files: %d", n)
	}

	_, err = WriteFiles([]string{"c.root"}, fname, false, func(string) bool { return false })
	if !errors.Is(err, ErrSkipped) {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = WriteFiles([]string{"c.root"}, fname, true, nil)
	if err != nil {
		t.Fatalf("could not append files: %+v", err)
	}

	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read files: %+v", err)
	}
	if got, want := string(raw), "a.root\nb.root\nc.root\n"; got != want {
		t.Fatalf("invalid content: got=%q, want=%q", got, want)
	}

	_, err = WriteFiles([]string{"d.root"}, fname, false, func(string) bool { return true })
	if err != nil {
		t.Fatalf("could not replace files: %+v", err)
	}
	raw, err = os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read files: %+v", err)
	}
	if got, want := string(raw), "d.root\n"; got != want {
		t.Fatalf("invalid content: got=%q, want=%q", got, want)
	}
}

// copier simulates alien_cp by creating the downloaded file.
func copier(t *testing.T, fail map[string]int) func(string) (string, error) {
	var mu sync.Mutex
	return func(cmdline string) (string, error) {
		toks := strings.Fields(cmdline)
		if len(toks) != 4 || toks[0] != "alien_cp" {
			return "", fmt.Errorf("unexpected command %q", cmdline)
		}
		var (
			src = strings.TrimPrefix(toks[2], Prefix)
			dst = strings.TrimPrefix(strings.TrimPrefix(toks[3], "file://"), "file:")
		)
		mu.Lock()
		defer mu.Unlock()
		if fail[src] > 0 {
			fail[src]--
			return "", fmt.Errorf("could not copy %q", src)
		}
		err := os.WriteFile(filepath.Join(dst, filepath.Base(src)), []byte(src), 0644)
		return "", err
	}
}

func TestCopyFile(t *testing.T) {
	for _, version := range []int{0, 1} {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			fe := &fakeExec{}
			c := newClient(t, version, fe)
			fe.reply = copier(t, map[string]int{"/alice/data/001/AnalysisResults.txt": 2})

			local, err := c.CopyFile(context.Background(), "/alice/data/001/AnalysisResults.txt", false)
			if err != nil {
				t.Fatalf("could not copy file: %+v", err)
			}
			if got, want := local, filepath.Join(c.Dir, "alice", "data", "001", "AnalysisResults.txt"); got != want {
				t.Fatalf("invalid local file: got=%q, want=%q", got, want)
			}
			if got, want := len(fe.cmds), 3; got != want {
				t.Fatalf("invalid number of attempts: got=%d, want=%d", got, want)
			}

			dst := "file://"
			if version == 0 {
				dst = "file:"
			}
			want := fmt.Sprintf("alien_cp -v %s %s%s", prefixed(version, "/alice/data/001/AnalysisResults.txt"), dst, filepath.Dir(local))
			if got := fe.cmds[0]; got != want {
				t.Fatalf("invalid command:\ngot= %q\nwant=%q", got, want)
			}

			// already there.
			_, err = c.CopyFile(context.Background(), "/alice/data/001/AnalysisResults.txt", false)
			if err != nil {
				t.Fatalf("could not copy file: %+v", err)
			}
			if got, want := len(fe.cmds), 3; got != want {
				t.Fatalf("file downloaded again: got=%d, want=%d", got, want)
			}
		})
	}
}

func prefixed(version int, p string) string {
	if version == 0 {
		return Prefix + p
	}
	return p
}

func TestCopyFileRetries(t *testing.T) {
	fe := &fakeExec{}
	c := newClient(t, 1, fe)
	c.Retries = 2
	fe.reply = copier(t, map[string]int{"/alice/data/AO2D.root": 10})

	_, err := c.CopyFile(context.Background(), "/alice/data/AO2D.root", false)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := len(fe.cmds), 2; got != want {
		t.Fatalf("invalid number of attempts: got=%d, want=%d", got, want)
	}
}

func TestCopyList(t *testing.T) {
	fe := &fakeExec{}
	c := newClient(t, 1, fe)
	fe.reply = copier(t, nil)

	list := filepath.Join(t.TempDir(), "list.txt")
	err := os.WriteFile(list, []byte(strings.Join([]string{
		"/alice/data/001/AnalysisResults.txt",
		"# /alice/data/002/AnalysisResults.txt",
		"/alice/data/003/AnalysisResults.txt",
		"",
		"/alice/data/004/AnalysisResults.txt",
		"%",
		"/alice/data/005/AnalysisResults.txt",
	}, "\n")), 0644)
	if err != nil {
		t.Fatalf("could not create list: %+v", err)
	}

	prog, err := c.Copied(list, true)
	if err != nil {
		t.Fatalf("could not check copied files: %+v", err)
	}
	if diff := cmp.Diff(Progress{ToCopy: 3}, prog); diff != "" {
		t.Fatalf("invalid progress (-want +got):\n%s", diff)
	}

	prog, err = c.CopyList(context.Background(), list, 2)
	if err != nil {
		t.Fatalf("could not copy list: %+v", err)
	}
	if diff := cmp.Diff(Progress{ToCopy: 3, Copied: 3}, prog); diff != "" {
		t.Fatalf("invalid progress (-want +got):\n%s", diff)
	}
	if got, want := len(fe.cmds), 3; got != want {
		t.Fatalf("invalid number of downloads: got=%d, want=%d", got, want)
	}
}

func TestCopyListRelative(t *testing.T) {
	fe := &fakeExec{}
	c := newClient(t, 1, fe)
	fe.reply = copier(t, nil)

	list := filepath.Join(t.TempDir(), "list.txt")
	err := os.WriteFile(list, []byte("alice/sim/001/AnalysisResults.txt\n"), 0644)
	if err != nil {
		t.Fatalf("could not create list: %+v", err)
	}

	prog, err := c.CopyList(context.Background(), list, 1)
	if err != nil {
		t.Fatalf("could not copy list: %+v", err)
	}
	if diff := cmp.Diff(Progress{ToCopy: 1, Copied: 1}, prog); diff != "" {
		t.Fatalf("invalid progress (-want +got):\n%s", diff)
	}
	if got, want := fe.cmds[0], "alien_cp -v /alice/sim/001/AnalysisResults.txt file://"+filepath.Join(c.Dir, "alice", "sim", "001"); got != want {
		t.Fatalf("invalid command:\ngot= %q\nwant=%q", got, want)
	}
}

func TestJDL(t *testing.T) {
	tmp := t.TempDir()
	cfg := filepath.Join(tmp, "default_configfile.ini")
	err := os.WriteFile(cfg, []byte(`[DEFAULT]
lut_tag = werner
bField = 5.

[INEL]
radius = 100.
`), 0644)
	if err != nil {
		t.Fatalf("could not create configuration: %+v", err)
	}

	jdl, err := NewJDL(cfg, "INEL")
	if err != nil {
		t.Fatalf("could not create JDL: %+v", err)
	}
	jdl.GridPath = "/alice/cern.ch/user/j/jdoe/run5"
	jdl.SourcePath = "/alice/cern.ch/user/j/jdoe/src"
	jdl.User = "jdoe"
	jdl.NEvents = 500
	jdl.NJobs = 20

	o := new(bytes.Buffer)
	err = jdl.Write(o)
	if err != nil {
		t.Fatalf("could not write JDL: %+v", err)
	}

	want := `# Simulation + AOD creation JDL
#

Executable = "/alice/cern.ch/user/j/jdoe/src/starter.sh";
Validationcommand = "/alice/cern.ch/user/j/jdoe/src/validation.sh";
Arguments = "o2-tables -entry INEL -j 1 -r 1 -ev 500 -l -v default_configfile.ini";

Requirements = ( other.Type == "machine" );

Packages = {
	"VO_ALICE@DelphesO2::v20210409-1"
};

JDLVariables = {
	"Packages",
	"OutputDir"
};

Type = "Job";
User = "jdoe";
Jobtag = {
	"comment: DelphesO2 Simulation + AOD jdl"
};
EMail = "jdoe@cern.ch";
TTL = "86400";
Price = 1;
Workdirectorysize = {
	"12000MB"
};

Split = "production:1-20";
SplitArguments = "";

InputFile = {
	"LF:/alice/cern.ch/user/j/jdoe/src/lutCovm.el.5kG.werner.dat",
	"LF:/alice/cern.ch/user/j/jdoe/src/lutCovm.mu.5kG.werner.dat",
	"LF:/alice/cern.ch/user/j/jdoe/src/lutCovm.pi.5kG.werner.dat",
	"LF:/alice/cern.ch/user/j/jdoe/src/lutCovm.ka.5kG.werner.dat",
	"LF:/alice/cern.ch/user/j/jdoe/src/lutCovm.pr.5kG.werner.dat",
	"LF:/alice/cern.ch/user/j/jdoe/src/o2-tables",
	"LF:/alice/cern.ch/user/j/jdoe/src/o2sim_grp.root",
	"LF:/alice/cern.ch/user/j/jdoe/src/o2sim_geometry.root",
	"LF:/alice/cern.ch/user/j/jdoe/run5/default_configfile.ini"
};

OutputArchive = {
	"log_archive.zip:stdout,stderr,*.log,*.sh@",
	"root_archive.zip:AODRun5*.root@"
};

OutputDir = "/alice/cern.ch/user/j/jdoe/run5/output/#alien_counter_03i#";
`
	if got := o.String(); got != want {
		t.Fatalf("invalid JDL:\ngot:\n%s\nwant:\n%s", got, want)
	}

	fe := &fakeExec{}
	c := newClient(t, 1, fe)
	err = c.Setup(context.Background(), jdl)
	if err != nil {
		t.Fatalf("could not setup grid directory: %+v", err)
	}
	wantCmds := []string{
		"alien_mkdir alien:///alice/cern.ch/user/j/jdoe/run5",
		"alien_cp " + cfg + " alien:///alice/cern.ch/user/j/jdoe/run5/default_configfile.ini",
	}
	if diff := cmp.Diff(wantCmds, fe.cmds); diff != "" {
		t.Fatalf("invalid commands (-want +got):\n%s", diff)
	}

	jdl.BField = "five"
	if err := jdl.Write(new(bytes.Buffer)); err == nil {
		t.Fatalf("expected an error for an invalid magnetic field")
	}
}
