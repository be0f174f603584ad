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

package cmd

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"sigs.k8s.io/ccanywhere/pkg/notify"
	"sigs.k8s.io/ccanywhere/pkg/notify/driver"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

type notifyOptions struct {
	Title    string
	Body     string
	Status   string
	Channels []string
}

var messageStatuses = []string{
	string(message.StatusInfo), string(message.StatusSuccess),
	string(message.StatusWarning), string(message.StatusFailure),
}

func newDispatcher() (*notify.Dispatcher, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if len(conf.Notifications.Channels) == 0 {
		return nil, errors.New("no notification channels configured")
	}
	return notify.New(&conf.Notifications)
}

func addNotify(parentCmd *cobra.Command) {
	notifyOpts := &notifyOptions{}
	notifyCmd := &cobra.Command{
		Short: "Send notifications on the configured channels",
		Use:   "notify",
	}

	var outputOpts *outputOptions
	testCmd := &cobra.Command{
		Short: "Send a test message on every configured channel",
		Use:   "test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDispatcher()
			if err != nil {
				return err
			}
			outcomes := d.TestAllChannels(cmd.Context())
			if err := outputOpts.print(cmd.OutOrStdout(), outcomes, func(w io.Writer) {
				printOutcomes(w, outcomes)
			}); err != nil {
				return err
			}
			for _, o := range outcomes {
				if !o.Success {
					return errors.New("some notification channels failed")
				}
			}
			return nil
		},
	}
	outputOpts = addOutputFlags(testCmd)

	sendCmd := &cobra.Command{
		Short: "Send a message",
		Use:   "send",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(messageStatuses, notifyOpts.Status) {
				return fmt.Errorf("invalid status %q, must be one of %v", notifyOpts.Status, messageStatuses)
			}
			if notifyOpts.Title == "" {
				return errors.New("message title not specified")
			}
			d, err := newDispatcher()
			if err != nil {
				return err
			}
			msg := message.New(message.Status(notifyOpts.Status), notifyOpts.Title)
			msg.Body = notifyOpts.Body

			channels := []driver.Kind{}
			for _, c := range notifyOpts.Channels {
				channels = append(channels, driver.Kind(c))
			}
			outcomes, err := d.Send(cmd.Context(), msg, channels...)
			printOutcomes(cmd.OutOrStdout(), outcomes)
			return err
		},
	}

	sendCmd.Flags().StringVar(&notifyOpts.Title, "title", "", "title of the message")
	sendCmd.Flags().StringVar(&notifyOpts.Body, "body", "", "body of the message")
	sendCmd.Flags().StringVar(
		&notifyOpts.Status, "status", string(message.StatusInfo),
		fmt.Sprintf("status of the message, one of %v", messageStatuses),
	)
	sendCmd.Flags().StringSliceVar(
		&notifyOpts.Channels, "channel", []string{},
		"channels to send the message on (defaults to all configured)",
	)

	notifyCmd.AddCommand(testCmd, sendCmd)
	parentCmd.AddCommand(notifyCmd)
}

func printOutcomes(w io.Writer, outcomes []notify.Outcome) {
	for _, o := range outcomes {
		if o.Success {
			fmt.Fprintf(w, "%-10s ok\n", o.Channel)
			continue
		}
		fmt.Fprintf(w, "%-10s failed: %s\n", o.Channel, o.Error)
	}
}
