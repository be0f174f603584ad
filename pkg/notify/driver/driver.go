/*
Copyright 2022 Adolfo García Veytia

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
	"fmt"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

type Kind string

const (
	KindTelegram Kind = "telegram"
	KindDingTalk Kind = "dingtalk"
	KindWeCom    Kind = "wecom"
	KindEmail    Kind = "email"
	KindNATS     Kind = "nats"
	KindPubSub   Kind = "pubsub"
)

// Notifier is the interface to a type that can deliver a message over
// one specific transport
type Notifier interface {
	Send(context.Context, *message.Message) error
}

// NewFromMoniker returns the notifier for the channel kind, built from
// its section in the notifications configuration.
func NewFromMoniker(moniker string, conf *config.Notifications) (Notifier, error) {
	var driver Notifier
	var err error
	switch Kind(moniker) {
	case KindTelegram:
		if conf.Telegram == nil {
			return nil, fmt.Errorf("telegram is not configured")
		}
		driver, err = NewTelegram(conf.Telegram)
	case KindDingTalk:
		if conf.DingTalk == nil {
			return nil, fmt.Errorf("dingtalk is not configured")
		}
		driver, err = NewDingTalk(conf.DingTalk)
	case KindWeCom:
		if conf.WeCom == nil {
			return nil, fmt.Errorf("wecom is not configured")
		}
		driver, err = NewWeCom(conf.WeCom)
	case KindEmail:
		if conf.Email == nil {
			return nil, fmt.Errorf("email is not configured")
		}
		driver, err = NewEmail(conf.Email)
	case KindNATS:
		if conf.NATS == nil {
			return nil, fmt.Errorf("nats is not configured")
		}
		driver, err = NewNATS(conf.NATS)
	case KindPubSub:
		if conf.PubSub == nil {
			return nil, fmt.Errorf("pubsub is not configured")
		}
		driver, err = NewPubSub(conf.PubSub)
	default:
		return nil, fmt.Errorf("unable to get notifier from moniker %s", moniker)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s notifier: %w", moniker, err)
	}
	return driver, nil
}
