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
	"encoding/json"
	"fmt"
	"time"

	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

const eventSource = "ccanywhere"

// event is the JSON document published on the messaging channels
type event struct {
	Source    string         `json:"source"`
	Status    message.Status `json:"status"`
	Title     string         `json:"title"`
	Text      string         `json:"text"`
	Links     []message.Link `json:"links,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func marshalEvent(msg *message.Message) ([]byte, error) {
	data, err := json.Marshal(event{
		Source:    eventSource,
		Status:    msg.Status,
		Title:     msg.Title,
		Text:      msg.PlainText(),
		Links:     msg.Links,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling notification event: %w", err)
	}
	return data, nil
}
