/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

const (
	smtpTimeout     = 30 * time.Second
	defaultSendmail = "/usr/sbin/sendmail"
)

// Email sends the HTML rendering with a plain text alternative. When no
// SMTP host is configured the message is handed to the local sendmail
// command instead.
type Email struct {
	From     string
	To       []string
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	Sendmail string
}

func NewEmail(conf *config.Email) (*Email, error) {
	if conf.From == "" {
		return nil, errors.New("email sender address is required")
	}
	if len(conf.To) == 0 {
		return nil, errors.New("email needs at least one recipient")
	}
	e := &Email{
		From:     conf.From,
		To:       conf.To,
		Host:     conf.Host,
		Port:     conf.Port,
		Username: conf.Username,
		Password: conf.Password,
		SSL:      conf.SSL,
		Sendmail: conf.Sendmail,
	}
	if e.Sendmail == "" {
		e.Sendmail = defaultSendmail
	}

	// Check the addresses early so a typo disables only this channel
	if _, err := e.buildMessage(message.New(message.StatusInfo, "")); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Email) buildMessage(msg *message.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.From); err != nil {
		return nil, fmt.Errorf("setting sender address: %w", err)
	}
	if err := m.To(e.To...); err != nil {
		return nil, fmt.Errorf("setting recipient addresses: %w", err)
	}
	m.Subject(fmt.Sprintf("%s %s", msg.Status.Emoji(), msg.Title))
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.PlainText())
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML())
	return m, nil
}

func (e *Email) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithTimeout(smtpTimeout)}
	if e.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if e.Port != 0 {
		opts = append(opts, mail.WithPort(e.Port))
	}
	if e.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.Username),
			mail.WithPassword(e.Password),
		)
	}
	return opts
}

func (e *Email) Send(ctx context.Context, msg *message.Message) error {
	m, err := e.buildMessage(msg)
	if err != nil {
		return err
	}

	if e.Host == "" {
		logrus.Debugf("No SMTP host configured, using %s", e.Sendmail)
		if err := m.WriteToSendmailWithContext(ctx, e.Sendmail); err != nil {
			return fmt.Errorf("sending mail through %s: %w", e.Sendmail, err)
		}
		return nil
	}

	client, err := mail.NewClient(e.Host, e.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending mail through %s: %w", e.Host, err)
	}
	return nil
}
