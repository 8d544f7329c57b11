// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package notify sends notification mails at the end of productions.
package notify // import "github.com/AliceO2Group/DelphesO2/internal/notify"

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

// Config holds the credentials of the mail server and the recipients of
// the notifications.
type Config struct {
	Username string
	Password string
	Server   string
	Port     int
	Targets  []string
}

// FromEnv returns the configuration described by the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
func FromEnv() Config {
	port, _ := strconv.Atoi(os.Getenv("MAIL_PORT"))
	var tgts []string
	for _, tgt := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		tgts = append(tgts, tgt)
	}
	return Config{
		Username: os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		Server:   os.Getenv("MAIL_SERVER"),
		Port:     port,
		Targets:  tgts,
	}
}

func (cfg Config) check() error {
	if cfg.Username == "" || cfg.Password == "" ||
		cfg.Server == "" || cfg.Port == 0 ||
		len(cfg.Targets) == 0 {
		return fmt.Errorf("notify: could not send mail: missing credentials")
	}
	return nil
}

// Message returns the notification mail.
func (cfg Config) Message(subject, body string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", cfg.Username)
	msg.SetHeader("Bcc", cfg.Targets...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

// Send sends the notification mail through the configured server.
func (cfg Config) Send(subject, body string) error {
	err := cfg.check()
	if err != nil {
		return err
	}

	dial := mail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err = dial.DialAndSend(cfg.Message(subject, body))
	if err != nil {
		return fmt.Errorf("notify: could not send mail: %w", err)
	}
	return nil
}

// SendWith sends the notification mail with the provided sender.
func (cfg Config) SendWith(s mail.Sender, subject, body string) error {
	err := cfg.check()
	if err != nil {
		return err
	}

	err = mail.Send(s, cfg.Message(subject, body))
	if err != nil {
		return fmt.Errorf("notify: could not send mail: %w", err)
	}
	return nil
}

// Send sends a notification mail configured from the environment.
func Send(subject, body string) error {
	return FromEnv().Send(subject, body)
}
