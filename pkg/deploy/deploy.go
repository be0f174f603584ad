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

package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

const (
	TriggerName = "ccanywhere"

	DefaultPollInterval   = 5 * time.Second
	DefaultMaxWait        = 300 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// ErrNotConfigured is returned when the endpoint needed for an
// operation has not been configured
var ErrNotConfigured = errors.New("deployment endpoint not configured")

type Options struct {
	WebhookURL string
	// StatusURL is polled after the webhook is accepted. A {id}
	// placeholder is replaced with the deployment id.
	StatusURL      string
	PollInterval   time.Duration
	MaxWait        time.Duration
	RequestTimeout time.Duration
	UserAgent      string
}

// Trigger requests deployments through a webhook and watches them
// through a status endpoint
type Trigger struct {
	Options Options
	client  *http.Client
	now     func() time.Time
}

func New(opts Options) *Trigger {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = TriggerName
	}
	return &Trigger{
		Options: opts,
		client:  &http.Client{Timeout: opts.RequestTimeout},
		now:     time.Now,
	}
}

type webhookPayload struct {
	Ref       string `json:"ref"`
	Branch    string `json:"branch"`
	Trigger   string `json:"trigger"`
	Timestamp int64  `json:"timestamp"`
}

// statusResponse is returned by the status endpoint. The webhook may
// answer with the same document, plus an id.
type statusResponse struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Trigger posts the deployment webhook for the build and, if a status
// endpoint is configured, polls it until the deployment reaches a
// terminal status or the maximum wait elapses. A failed deployment is
// reported in the returned record; an error is only returned when no
// webhook is configured.
func (t *Trigger) Trigger(ctx context.Context, bc *run.BuildContext) (*Record, error) {
	if t.Options.WebhookURL == "" {
		return nil, fmt.Errorf("triggering deployment: %w", ErrNotConfigured)
	}

	rec := &Record{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		StartTime: t.now(),
	}

	res, err := t.postWebhook(ctx, bc)
	if err != nil {
		logrus.Warnf("Deployment webhook failed: %v", err)
		rec.finish(StatusFailed, t.now())
		rec.Error = err.Error()
		return rec, nil
	}
	// Only an id issued by the platform is sent to the status endpoint
	pollID := res.ID
	if res.ID != "" {
		rec.ID = res.ID
	}
	rec.URL = res.URL
	logrus.Infof("Deployment %s accepted by webhook", rec.ID)

	if t.Options.StatusURL == "" {
		// Nothing to watch, acceptance is all we will ever know
		rec.finish(StatusSuccess, t.now())
		return rec, nil
	}
	if pollID == "" && strings.Contains(t.Options.StatusURL, "{id}") {
		logrus.Warn("Webhook returned no deployment id to fill the status URL, not polling")
		rec.finish(StatusSuccess, t.now())
		return rec, nil
	}

	rec.Status = StatusRunning
	t.watch(ctx, rec, pollID)
	return rec, nil
}

// watch polls the status endpoint, updating the record until it reaches
// a terminal status. Poll failures are logged and polling continues.
func (t *Trigger) watch(ctx context.Context, rec *Record, pollID string) {
	deadline := rec.StartTime.Add(t.Options.MaxWait)
	for {
		res, err := t.fetchStatus(ctx, pollID)
		if err != nil {
			logrus.Warnf("Polling deployment status: %v", err)
		} else {
			status := NormalizeStatus(res.Status)
			logrus.Debugf("Deployment %s status: %s (%s)", rec.ID, status, res.Status)
			if res.URL != "" {
				rec.URL = res.URL
			}
			rec.Error = res.Error
			rec.finish(status, t.now())
			if status.IsTerminal() {
				logrus.Infof("Deployment %s finished: %s", rec.ID, status)
				return
			}
		}

		if !t.now().Add(t.Options.PollInterval).Before(deadline) {
			rec.Status = StatusRunning
			rec.Error = fmt.Sprintf(
				"deployment did not reach a final status within %s", t.Options.MaxWait,
			)
			logrus.Warn(rec.Error)
			return
		}

		timer := time.NewTimer(t.Options.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			rec.Status = StatusRunning
			rec.Error = fmt.Sprintf("stopped watching deployment: %v", ctx.Err())
			return
		case <-timer.C:
		}
	}
}

// GetStatus queries the status endpoint for a deployment, independent
// of any running trigger.
func (t *Trigger) GetStatus(ctx context.Context, id string) (*Record, error) {
	if t.Options.StatusURL == "" {
		return nil, fmt.Errorf("querying deployment status: %w", ErrNotConfigured)
	}
	res, err := t.fetchStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("querying deployment status: %w", err)
	}
	rec := &Record{
		ID:     id,
		Status: NormalizeStatus(res.Status),
		URL:    res.URL,
		Error:  res.Error,
	}
	return rec, nil
}

func (t *Trigger) postWebhook(ctx context.Context, bc *run.BuildContext) (*statusResponse, error) {
	payload := webhookPayload{
		Ref:       bc.Revision,
		Branch:    bc.Branch,
		Trigger:   TriggerName,
		Timestamp: bc.TimestampMillis(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.Options.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Options.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", t.Options.UserAgent)

	rawData, err := t.do(req)
	if err != nil {
		return nil, err
	}

	res := &statusResponse{}
	if len(bytes.TrimSpace(rawData)) > 0 {
		if err := json.Unmarshal(rawData, res); err != nil {
			// Any 2xx is an acceptance, the body is informational
			logrus.Debugf("Ignoring non JSON webhook response: %v", err)
		}
	}
	return res, nil
}

func (t *Trigger) fetchStatus(ctx context.Context, id string) (*statusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Options.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.statusURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.Options.UserAgent)

	rawData, err := t.do(req)
	if err != nil {
		return nil, err
	}
	res := &statusResponse{}
	if err := json.Unmarshal(rawData, res); err != nil {
		return nil, fmt.Errorf("unmarshalling status response: %w", err)
	}
	return res, nil
}

func (t *Trigger) do(req *http.Request) ([]byte, error) {
	logrus.Debugf("Deployment[%s]: %s", req.Method, req.URL.Redacted())
	res, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing http request: %w", err)
	}
	defer res.Body.Close()

	rawData, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response data: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("http error %d from %s", res.StatusCode, req.URL.Host)
	}
	return rawData, nil
}

// statusURL returns the configured status URL. An {id} placeholder is
// replaced with id. Without a placeholder, id is added as a query
// parameter unless the URL already sets one. An empty id leaves the URL
// untouched.
func (t *Trigger) statusURL(id string) string {
	if id == "" {
		return t.Options.StatusURL
	}
	if strings.Contains(t.Options.StatusURL, "{id}") {
		return strings.ReplaceAll(t.Options.StatusURL, "{id}", url.PathEscape(id))
	}
	u, err := url.Parse(t.Options.StatusURL)
	if err != nil {
		return t.Options.StatusURL
	}
	q := u.Query()
	if q.Has("id") {
		return t.Options.StatusURL
	}
	q.Set("id", id)
	u.RawQuery = q.Encode()
	return u.String()
}
