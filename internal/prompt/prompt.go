// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prompt asks yes/no questions on the terminal.
package prompt // import "github.com/AliceO2Group/DelphesO2/internal/prompt"

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// Asker prompts for a line of input.
type Asker interface {
	Prompt(prompt string) (string, error)
}

// Ask asks question and reports whether the answer starts with y or Y.
// An aborted or empty input is a no.
func Ask(a Asker, question string) (bool, error) {
	ans, err := a.Prompt(question + " [y/n] ")
	switch {
	case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("prompt: could not read answer: %w", err)
	}
	ans = strings.TrimSpace(ans)
	return strings.HasPrefix(ans, "y") || strings.HasPrefix(ans, "Y"), nil
}

// Confirm asks question on the terminal and reports whether it was
// answered with yes.
func Confirm(question string) bool {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	ok, err := Ask(term, question)
	if err != nil {
		return false
	}
	return ok
}
