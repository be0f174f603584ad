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
	"time"
)

const (
	DefaultLockDir        = "/tmp/ccanywhere-locks"
	DefaultLockFile       = DefaultLockDir + "/main.lock"
	DefaultLockTimeout    = 300 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultMaxWait        = 300 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Config is the full ccanywhere configuration
type Config struct {
	Repo          Repo          `yaml:"repo"`
	Build         Build         `yaml:"build"`
	Artifacts     Artifacts     `yaml:"artifacts"`
	Deployment    Deployment    `yaml:"deployment"`
	Test          Test          `yaml:"test"`
	Notifications Notifications `yaml:"notifications"`
	Metrics       Metrics       `yaml:"metrics"`
}

type Repo struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
	// Remote to fetch before diffing
	Remote string `yaml:"remote"`
}

type Build struct {
	WorkDir      string        `yaml:"workDir"`
	ArtifactsDir string        `yaml:"artifactsDir"`
	LogDir       string        `yaml:"logDir"`
	LockDir      string        `yaml:"lockDir"`
	LockFile     string        `yaml:"lockFile"`
	LockTimeout  time.Duration `yaml:"lockTimeout"`
	Provenance   bool          `yaml:"provenance"`
	// SigningKey is a cosign private key used to sign the provenance.
	// Its password is read from CCANYWHERE_SIGNING_PASSWORD.
	SigningKey string `yaml:"signingKey"`
}

type Artifacts struct {
	// StoreURL is file:///path or gs://bucket/prefix. Empty disables upload.
	StoreURL        string `yaml:"storeUrl"`
	PublicURL       string `yaml:"publicUrl"`
	CredentialsFile string `yaml:"credentialsFile"`
}

type Deployment struct {
	WebhookURL     string        `yaml:"webhookUrl"`
	StatusURL      string        `yaml:"statusUrl"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	MaxWait        time.Duration `yaml:"maxWait"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// Enabled returns true when a deployment webhook is configured
func (d *Deployment) Enabled() bool {
	return d.WebhookURL != ""
}

type Test struct {
	Enabled   bool     `yaml:"enabled"`
	Command   []string `yaml:"command"`
	ReportDir string   `yaml:"reportDir"`
}

type Notifications struct {
	// Channels lists the channel kinds to initialize
	Channels []string  `yaml:"channels"`
	Telegram *Telegram `yaml:"telegram"`
	DingTalk *DingTalk `yaml:"dingtalk"`
	WeCom    *WeCom    `yaml:"wecom"`
	Email    *Email    `yaml:"email"`
	NATS     *NATS     `yaml:"nats"`
	PubSub   *PubSub   `yaml:"pubsub"`
}

type Telegram struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIURL   string `yaml:"apiUrl"`
}

type DingTalk struct {
	WebhookURL string `yaml:"webhookUrl"`
	Secret     string `yaml:"secret"`
}

type WeCom struct {
	WebhookURL string `yaml:"webhookUrl"`
}

type Email struct {
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	// SSL selects implicit TLS instead of STARTTLS
	SSL      bool   `yaml:"ssl"`
	Sendmail string `yaml:"sendmail"`
}

type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type PubSub struct {
	Project         string `yaml:"project"`
	Topic           string `yaml:"topic"`
	CredentialsFile string `yaml:"credentialsFile"`
}

type Metrics struct {
	// Textfile is a node-exporter textfile collector path
	Textfile string `yaml:"textfile"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Repo: Repo{
			Path:   ".",
			Remote: "origin",
		},
		Build: Build{
			ArtifactsDir: ".ccanywhere/artifacts",
			LogDir:       ".ccanywhere/logs",
			LockDir:      DefaultLockDir,
			LockFile:     DefaultLockFile,
			LockTimeout:  DefaultLockTimeout,
		},
		Deployment: Deployment{
			PollInterval:   DefaultPollInterval,
			MaxWait:        DefaultMaxWait,
			RequestTimeout: DefaultRequestTimeout,
		},
		Test: Test{
			Command: []string{"npx", "playwright", "test", "--reporter=json,html"},
		},
		Notifications: Notifications{
			Channels: []string{},
		},
	}
}
