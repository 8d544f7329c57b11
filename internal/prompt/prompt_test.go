// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prompt

import (
	"fmt"
	"io"
	"testing"

	"github.com/peterh/liner"
)

type answer struct {
	txt    string
	err    error
	prompt string
}

func (a *answer) Prompt(p string) (string, error) {
	a.prompt = p
	return a.txt, a.err
}

func TestAsk(t *testing.T) {
	for _, tc := range []struct {
		name string
		ans  answer
		want bool
		err  bool
	}{
		{name: "yes", ans: answer{txt: "yes"}, want: true},
		{name: "Y", ans: answer{txt: " Y "}, want: true},
		{name: "no", ans: answer{txt: "no"}, want: false},
		{name: "empty", ans: answer{txt: ""}, want: false},
		{name: "other", ans: answer{txt: "sure"}, want: false},
		{name: "eof", ans: answer{err: io.EOF}, want: false},
		{name: "aborted", ans: answer{err: liner.ErrPromptAborted}, want: false},
		{name: "error", ans: answer{err: fmt.Errorf("boom")}, err: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Ask(&tc.ans, "replace file?")
			switch {
			case tc.err && err == nil:
				t.Fatalf("expected an error")
			case !tc.err && err != nil:
				t.Fatalf("could not ask question: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid answer: got=%v, want=%v", got, tc.want)
			}
			if got, want := tc.ans.prompt, "replace file? [y/n] "; got != want {
				t.Fatalf("invalid prompt: got=%q, want=%q", got, want)
			}
		})
	}
}
