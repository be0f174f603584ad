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

	"cloud.google.com/go/pubsub/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

// PubSub publishes notification events to a Google Cloud Pub/Sub topic
type PubSub struct {
	Project         string
	Topic           string
	CredentialsFile string
}

func NewPubSub(conf *config.PubSub) (*PubSub, error) {
	if conf.Project == "" || conf.Topic == "" {
		return nil, errors.New("pubsub project and topic are required")
	}
	return &PubSub{
		Project:         conf.Project,
		Topic:           conf.Topic,
		CredentialsFile: conf.CredentialsFile,
	}, nil
}

func (ps *PubSub) Send(ctx context.Context, msg *message.Message) error {
	data, err := marshalEvent(msg)
	if err != nil {
		return err
	}

	opts := []option.ClientOption{}
	if ps.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(ps.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, ps.Project, opts...)
	if err != nil {
		return fmt.Errorf("creating pubsub client: %w", err)
	}
	defer client.Close()

	publisher := client.Publisher(ps.Topic)
	defer publisher.Stop()

	res := publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"source": eventSource,
			"status": string(msg.Status),
		},
	})
	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing to topic %s: %w", ps.Topic, err)
	}
	logrus.WithField("driver", "pubsub").Debugf("Published message %s", id)
	return nil
}
