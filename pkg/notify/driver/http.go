/*
Copyright 2022 The Kubernetes Authors.

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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const httpTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// postJSON sends payload to url and decodes the JSON response into out.
// Non 2xx responses are errors.
func postJSON(ctx context.Context, client *http.Client, url string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("executing http request: %w", err)
	}
	defer res.Body.Close()

	rawData, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response data: %w", err)
	}
	logrus.Debugf("Notifier response (%d): %s", res.StatusCode, string(rawData))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("http error %d: %s", res.StatusCode, truncate(string(rawData), 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rawData, out); err != nil {
		return fmt.Errorf("unmarshalling response: %w", err)
	}
	return nil
}

// robotResponse is returned by the DingTalk and WeCom robot webhooks
type robotResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (r *robotResponse) err() error {
	if r.ErrCode != 0 {
		return fmt.Errorf("robot webhook error %d: %s", r.ErrCode, r.ErrMsg)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
