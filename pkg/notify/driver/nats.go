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

	"github.com/nats-io/nats.go"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

const (
	natsTimeout        = 10 * time.Second
	defaultNATSSubject = "ccanywhere.builds"
)

// NATS publishes notification events to a subject. A connection is
// opened per message, runs are short lived and rarely notify twice.
type NATS struct {
	URL     string
	Subject string
}

func NewNATS(conf *config.NATS) (*NATS, error) {
	if conf.URL == "" {
		return nil, errors.New("nats url is required")
	}
	subject := conf.Subject
	if subject == "" {
		subject = defaultNATSSubject
	}
	return &NATS{URL: conf.URL, Subject: subject}, nil
}

func (n *NATS) Send(ctx context.Context, msg *message.Message) error {
	data, err := marshalEvent(msg)
	if err != nil {
		return err
	}

	timeout := natsTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	conn, err := nats.Connect(n.URL, nats.Name(eventSource), nats.Timeout(timeout))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer conn.Close()

	if err := conn.Publish(n.Subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", n.Subject, err)
	}
	if err := conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flushing nats connection: %w", err)
	}
	return nil
}
