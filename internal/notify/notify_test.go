// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package notify

import (
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	mail "gopkg.in/gomail.v2"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("MAIL_USERNAME", "bot@example.org")
	t.Setenv("MAIL_PASSWORD", "s3cr3t")
	t.Setenv("MAIL_SERVER", "smtp.example.org")
	t.Setenv("MAIL_PORT", "587")
	t.Setenv("MAIL_TGTS", "alice@example.org, bob@example.org,")

	want := Config{
		Username: "bot@example.org",
		Password: "s3cr3t",
		Server:   "smtp.example.org",
		Port:     587,
		Targets:  []string{"alice@example.org", "bob@example.org"},
	}
	if diff := cmp.Diff(want, FromEnv()); diff != "" {
		t.Fatalf("invalid config (-want +got):\n%s", diff)
	}
}

func TestMissingCredentials(t *testing.T) {
	for _, key := range []string{"MAIL_USERNAME", "MAIL_PASSWORD", "MAIL_SERVER", "MAIL_PORT", "MAIL_TGTS"} {
		t.Setenv(key, "")
	}

	err := Send("[o2-tables] done", "ok")
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestSendWith(t *testing.T) {
	cfg := Config{
		Username: "bot@example.org",
		Password: "s3cr3t",
		Server:   "smtp.example.org",
		Port:     587,
		Targets:  []string{"alice@example.org", "bob@example.org"},
	}

	var (
		from string
		to   []string
		body strings.Builder
	)
	err := cfg.SendWith(mail.SendFunc(func(f string, rcpts []string, msg io.WriterTo) error {
		from = f
		to = rcpts
		_, err := msg.WriteTo(&body)
		return err
	}), "[o2-tables] production done", "10/10 runs produced an AOD file")
	if err != nil {
		t.Fatalf("could not send mail: %+v", err)
	}

	if got, want := from, cfg.Username; got != want {
		t.Fatalf("invalid sender: got=%q, want=%q", got, want)
	}
	if diff := cmp.Diff(cfg.Targets, to); diff != "" {
		t.Fatalf("invalid recipients (-want +got):\n%s", diff)
	}
	for _, want := range []string{
		"Subject: [o2-tables] production done",
		"10/10 runs produced an AOD file",
	} {
		if !strings.Contains(body.String(), want) {
			t.Fatalf("missing %q in mail:\n%s", want, body.String())
		}
	}

	cfg.Targets = nil
	err = cfg.SendWith(mail.SendFunc(func(string, []string, io.WriterTo) error {
		t.Fatalf("mail sent without recipients")
		return nil
	}), "subject", "body")
	if err == nil {
		t.Fatalf("expected an error")
	}
}
