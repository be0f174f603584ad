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
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true for statuses that end a deployment
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// statusTable maps the vocabulary used by deployment platforms to a
// Status. Keys are lower case.
var statusTable = map[string]Status{
	"success":   StatusSuccess,
	"completed": StatusSuccess,
	"deployed":  StatusSuccess,
	"ready":     StatusSuccess,

	"failed":  StatusFailed,
	"error":   StatusFailed,
	"failure": StatusFailed,

	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
	"aborted":   StatusCancelled,

	"running":     StatusRunning,
	"deploying":   StatusRunning,
	"building":    StatusRunning,
	"in_progress": StatusRunning,

	"pending": StatusPending,
	"queued":  StatusPending,
	"waiting": StatusPending,
}

// NormalizeStatus maps a platform status string to a Status. Anything
// unrecognized is running, never terminal, so polling goes on.
func NormalizeStatus(raw string) Status {
	if s, ok := statusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusRunning
}

// Record tracks a deployment from trigger to a terminal status
type Record struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	URL       string     `json:"url,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Succeeded returns true when the deployment finished successfully
func (r *Record) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

func (r *Record) finish(s Status, now time.Time) {
	r.Status = s
	if s.IsTerminal() {
		r.EndTime = &now
	}
}
