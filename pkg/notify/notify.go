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

// Package notify fans a message out to a set of channel notifiers. Each
// channel is isolated: a failure in one never blocks or cancels the
// others, and delivery is best effort.
package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/notify/driver"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

// Outcome records the delivery result on one channel
type Outcome struct {
	Channel   driver.Kind `json:"channel"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AggregateError is returned by Send when every channel failed
type AggregateError struct {
	Outcomes []Outcome
}

func (e *AggregateError) Error() string {
	reasons := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		reasons = append(reasons, fmt.Sprintf("%s: %s", o.Channel, o.Error))
	}
	return "all notification channels failed: " + strings.Join(reasons, "; ")
}

// ObserverFunc is called once per outcome, used to feed metrics
type ObserverFunc func(Outcome)

type Dispatcher struct {
	notifiers map[driver.Kind]driver.Notifier
	order     []driver.Kind
	observer  ObserverFunc
}

// New initializes a notifier for every channel listed in the
// configuration. Channels that fail to initialize are logged and left
// out. If no channel could be initialized an error is returned.
func New(conf *config.Notifications) (*Dispatcher, error) {
	notifiers := map[driver.Kind]driver.Notifier{}
	errs := []error{}
	for _, moniker := range conf.Channels {
		n, err := driver.NewFromMoniker(moniker, conf)
		if err != nil {
			logrus.Warnf("Notification channel %s disabled: %v", moniker, err)
			errs = append(errs, err)
			continue
		}
		notifiers[driver.Kind(moniker)] = n
	}
	if len(notifiers) == 0 {
		if len(errs) == 0 {
			return nil, errors.New("no notification channels configured")
		}
		return nil, fmt.Errorf("no notification channel could be initialized: %w", errors.Join(errs...))
	}
	return NewWithNotifiers(notifiers)
}

// NewWithNotifiers builds a dispatcher from already built notifiers
func NewWithNotifiers(notifiers map[driver.Kind]driver.Notifier) (*Dispatcher, error) {
	if len(notifiers) == 0 {
		return nil, errors.New("dispatcher needs at least one notifier")
	}
	d := &Dispatcher{
		notifiers: map[driver.Kind]driver.Notifier{},
		order:     []driver.Kind{},
	}
	for k, n := range notifiers {
		d.notifiers[k] = n
		d.order = append(d.order, k)
	}
	slices.Sort(d.order)
	return d, nil
}

// SetObserver registers a function called with every outcome
func (d *Dispatcher) SetObserver(fn ObserverFunc) {
	d.observer = fn
}

// Channels returns the configured channel kinds
func (d *Dispatcher) Channels() []driver.Kind {
	return slices.Clone(d.order)
}

// Send delivers msg concurrently to the listed channels, or to all of
// them when none are listed. It returns one outcome per channel. Partial
// failures are logged; only when every channel fails an *AggregateError
// is returned.
func (d *Dispatcher) Send(ctx context.Context, msg *message.Message, channels ...driver.Kind) ([]Outcome, error) {
	outcomes := d.dispatch(ctx, msg, channels)

	failed := 0
	for _, o := range outcomes {
		if !o.Success {
			failed++
			logrus.Warnf("Notification to %s failed: %s", o.Channel, o.Error)
		}
	}
	if len(outcomes) > 0 && failed == len(outcomes) {
		return outcomes, &AggregateError{Outcomes: outcomes}
	}
	logrus.Infof("Notification delivered to %d of %d channels", len(outcomes)-failed, len(outcomes))
	return outcomes, nil
}

// TestAllChannels sends a diagnostic message to every channel and
// returns the outcomes. It never returns an error.
func (d *Dispatcher) TestAllChannels(ctx context.Context) []Outcome {
	msg := message.New(message.StatusInfo, "ccanywhere notification test")
	msg.Body = "This is a test message sent to verify the notification channel configuration."
	return d.dispatch(ctx, msg, nil)
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *message.Message, channels []driver.Kind) []Outcome {
	if len(channels) == 0 {
		channels = d.order
	}

	outcomes := make([]Outcome, len(channels))
	var wg errgroup.Group
	for i, kind := range channels {
		wg.Go(func() error {
			outcomes[i] = d.sendOne(ctx, kind, msg)
			return nil
		})
	}
	// Goroutines never return errors, the outcomes carry them
	_ = wg.Wait() //nolint:errcheck

	if d.observer != nil {
		for _, o := range outcomes {
			d.observer(o)
		}
	}
	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, kind driver.Kind, msg *message.Message) (o Outcome) {
	o = Outcome{Channel: kind}
	defer func() {
		if r := recover(); r != nil {
			o.Success = false
			o.Error = fmt.Sprintf("notifier panic: %v", r)
		}
		o.Timestamp = time.Now()
	}()

	n, ok := d.notifiers[kind]
	if !ok {
		o.Error = "channel not configured"
		return o
	}
	if err := n.Send(ctx, msg); err != nil {
		o.Error = err.Error()
		return o
	}
	o.Success = true
	return o
}
