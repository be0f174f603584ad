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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"sigs.k8s.io/release-utils/util"
)

// DefaultPath is the configuration file looked up when none is given
const DefaultPath = "ccanywhere.yaml"

// similarPaths are common misnamings of DefaultPath that are never read
var similarPaths = []string{"ccanywhere.yml", "ccanywhere.config.yaml", ".ccanywhere.yaml"}

// KnownChannels are the notification channel kinds that can be configured
var KnownChannels = []string{"telegram", "dingtalk", "wecom", "email", "nats", "pubsub"}

// ValidationError collects every problem found in a configuration
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// Load reads the configuration from path on top of the defaults. A .env
// file next to the working directory is loaded first and the
// environment overrides are applied last. A missing file at the default
// path is not an error.
func Load(path string) (*Config, error) {
	if util.Exists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("loading .env file: %w", err)
		}
	}

	conf := Default()
	if path == "" {
		path = DefaultPath
		if !util.Exists(path) {
			logrus.Warnf("No configuration file found at %s, using defaults", path)
			for _, p := range similarPaths {
				if util.Exists(p) {
					logrus.Warnf("Found %s but it is not read, rename it to %s or pass --config", p, DefaultPath)
				}
			}
			conf.applyEnv()
			return conf, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil {
		return nil, fmt.Errorf("parsing configuration file %s: %w", path, err)
	}
	conf.applyEnv()
	return conf, nil
}

// applyEnv overrides secrets and endpoints from the environment
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Deployment.WebhookURL, "CCANYWHERE_DEPLOY_WEBHOOK")
	set(&c.Deployment.StatusURL, "CCANYWHERE_DEPLOY_STATUS_URL")

	n := &c.Notifications
	if os.Getenv("CCANYWHERE_TELEGRAM_TOKEN") != "" && n.Telegram == nil {
		n.Telegram = &Telegram{}
	}
	if n.Telegram != nil {
		set(&n.Telegram.BotToken, "CCANYWHERE_TELEGRAM_TOKEN")
		set(&n.Telegram.ChatID, "CCANYWHERE_TELEGRAM_CHAT_ID")
	}
	if os.Getenv("CCANYWHERE_DINGTALK_WEBHOOK") != "" && n.DingTalk == nil {
		n.DingTalk = &DingTalk{}
	}
	if n.DingTalk != nil {
		set(&n.DingTalk.WebhookURL, "CCANYWHERE_DINGTALK_WEBHOOK")
		set(&n.DingTalk.Secret, "CCANYWHERE_DINGTALK_SECRET")
	}
	if os.Getenv("CCANYWHERE_WECOM_WEBHOOK") != "" && n.WeCom == nil {
		n.WeCom = &WeCom{}
	}
	if n.WeCom != nil {
		set(&n.WeCom.WebhookURL, "CCANYWHERE_WECOM_WEBHOOK")
	}
	if n.Email != nil {
		set(&n.Email.Password, "CCANYWHERE_SMTP_PASSWORD")
	}
	if n.NATS != nil {
		set(&n.NATS.URL, "CCANYWHERE_NATS_URL")
	}
}

// Validate checks the configuration before anything runs
func (c *Config) Validate() error {
	errs := []error{}
	if c.Repo.Path == "" {
		errs = append(errs, errors.New("repo.path is required"))
	}
	if c.Build.LockFile == "" {
		errs = append(errs, errors.New("build.lockFile is required"))
	}
	if c.Build.LockTimeout <= 0 {
		errs = append(errs, errors.New("build.lockTimeout must be positive"))
	}
	if c.Deployment.WebhookURL != "" {
		if err := checkURL(c.Deployment.WebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("deployment.webhookUrl: %w", err))
		}
	}
	if c.Deployment.StatusURL != "" {
		if c.Deployment.WebhookURL == "" {
			errs = append(errs, errors.New("deployment.statusUrl set without deployment.webhookUrl"))
		}
		if err := checkURL(strings.ReplaceAll(c.Deployment.StatusURL, "{id}", "id")); err != nil {
			errs = append(errs, fmt.Errorf("deployment.statusUrl: %w", err))
		}
	}
	if c.Deployment.PollInterval <= 0 || c.Deployment.MaxWait <= 0 || c.Deployment.RequestTimeout <= 0 {
		errs = append(errs, errors.New("deployment intervals must be positive"))
	}
	if c.Build.SigningKey != "" && !c.Build.Provenance {
		errs = append(errs, errors.New("build.signingKey set without build.provenance"))
	}
	if c.Test.Enabled && len(c.Test.Command) == 0 {
		errs = append(errs, errors.New("test.command is required when tests are enabled"))
	}
	errs = append(errs, c.Notifications.validate()...)

	if len(errs) > 0 {
		return &ValidationError{Problems: errs}
	}
	return nil
}

func (n *Notifications) validate() []error {
	errs := []error{}
	for _, ch := range n.Channels {
		if !slices.Contains(KnownChannels, ch) {
			errs = append(errs, fmt.Errorf("unknown notification channel %q, must be one of %v", ch, KnownChannels))
			continue
		}
		if !n.has(ch) {
			errs = append(errs, fmt.Errorf("notification channel %q is enabled but not configured", ch))
		}
	}
	return errs
}

func (n *Notifications) has(kind string) bool {
	switch kind {
	case "telegram":
		return n.Telegram != nil
	case "dingtalk":
		return n.DingTalk != nil
	case "wecom":
		return n.WeCom != nil
	case "email":
		return n.Email != nil
	case "nats":
		return n.NATS != nil
	case "pubsub":
		return n.PubSub != nil
	}
	return false
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", raw)
	}
	return nil
}

// Resolve makes the build directories absolute relative to the repo path
func (c *Config) Resolve() error {
	repo, err := filepath.Abs(c.Repo.Path)
	if err != nil {
		return fmt.Errorf("resolving repository path: %w", err)
	}
	c.Repo.Path = repo
	if c.Build.WorkDir == "" {
		c.Build.WorkDir = repo
	}
	for _, p := range []*string{&c.Build.ArtifactsDir, &c.Build.LogDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.Build.WorkDir, *p)
		}
	}
	if c.Test.ReportDir == "" {
		c.Test.ReportDir = filepath.Join(c.Build.ArtifactsDir, "test-report")
	}
	return nil
}
