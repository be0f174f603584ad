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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

// DingTalk posts markdown messages to a DingTalk group robot
type DingTalk struct {
	WebhookURL string
	Secret     string
	client     *http.Client
	now        func() time.Time
}

func NewDingTalk(conf *config.DingTalk) (*DingTalk, error) {
	if conf.WebhookURL == "" {
		return nil, errors.New("dingtalk webhook url is required")
	}
	if _, err := url.Parse(conf.WebhookURL); err != nil {
		return nil, fmt.Errorf("parsing dingtalk webhook url: %w", err)
	}
	return &DingTalk{
		WebhookURL: conf.WebhookURL,
		Secret:     conf.Secret,
		client:     newHTTPClient(),
		now:        time.Now,
	}, nil
}

// signedURL appends the timestamp and signature query parameters
// required when the robot has a signing secret.
func (dt *DingTalk) signedURL() (string, error) {
	if dt.Secret == "" {
		return dt.WebhookURL, nil
	}
	u, err := url.Parse(dt.WebhookURL)
	if err != nil {
		return "", fmt.Errorf("parsing webhook url: %w", err)
	}
	ts := strconv.FormatInt(dt.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(dt.Secret))
	mac.Write([]byte(ts + "\n" + dt.Secret))
	q := u.Query()
	q.Set("timestamp", ts)
	q.Set("sign", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (dt *DingTalk) Send(ctx context.Context, msg *message.Message) error {
	hookURL, err := dt.signedURL()
	if err != nil {
		return err
	}
	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": msg.Title,
			"text":  msg.Markdown(),
		},
	}
	res := robotResponse{}
	if err := postJSON(ctx, dt.client, hookURL, payload, &res); err != nil {
		return err
	}
	return res.err()
}

// WeCom posts markdown messages to a WeCom group robot
type WeCom struct {
	WebhookURL string
	client     *http.Client
}

func NewWeCom(conf *config.WeCom) (*WeCom, error) {
	if conf.WebhookURL == "" {
		return nil, errors.New("wecom webhook url is required")
	}
	return &WeCom{
		WebhookURL: conf.WebhookURL,
		client:     newHTTPClient(),
	}, nil
}

func (wc *WeCom) Send(ctx context.Context, msg *message.Message) error {
	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"content": msg.Markdown(),
		},
	}
	res := robotResponse{}
	if err := postJSON(ctx, wc.client, wc.WebhookURL, payload, &res); err != nil {
		return err
	}
	return res.err()
}
