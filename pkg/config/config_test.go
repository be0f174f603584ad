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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	data := `
repo:
  name: demo
  path: /src/demo
build:
  lockTimeout: 10m
deployment:
  webhookUrl: https://deploy.example.com/hook
  statusUrl: https://deploy.example.com/status/{id}
  pollInterval: 2s
notifications:
  channels: [telegram, wecom]
  telegram:
    botToken: abc
    chatId: "42"
  wecom:
    webhookUrl: https://qyapi.example.com/send
`
	path := filepath.Join(t.TempDir(), "ccanywhere.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), os.FileMode(0o644)))

	t.Setenv("CCANYWHERE_TELEGRAM_TOKEN", "from-env")
	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "demo", conf.Repo.Name)
	require.Equal(t, 10*time.Minute, conf.Build.LockTimeout)
	require.Equal(t, 2*time.Second, conf.Deployment.PollInterval)
	require.Equal(t, DefaultMaxWait, conf.Deployment.MaxWait)
	require.Equal(t, DefaultLockFile, conf.Build.LockFile)
	require.Equal(t, "from-env", conf.Notifications.Telegram.BotToken)
	require.Equal(t, "42", conf.Notifications.Telegram.ChatID)
	require.NoError(t, conf.Validate())
}

func TestLoadDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())

	// A misnamed file is not read
	require.NoError(t, os.WriteFile("ccanywhere.yml", []byte("repo:\n  name: ignored\n"), os.FileMode(0o644)))
	conf, err := Load("")
	require.NoError(t, err)
	require.Empty(t, conf.Repo.Name)

	require.NoError(t, os.WriteFile(DefaultPath, []byte("repo:\n  name: demo\n"), os.FileMode(0o644)))
	conf, err = Load("")
	require.NoError(t, err)
	require.Equal(t, "demo", conf.Repo.Name)
}

func TestLoadUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repo:\n  nme: typo\n"), os.FileMode(0o644)))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		mutate   func(*Config)
		problems int
	}{
		{"defaults", func(*Config) {}, 0},
		{"no repo path", func(c *Config) { c.Repo.Path = "" }, 1},
		{"bad webhook", func(c *Config) { c.Deployment.WebhookURL = "ftp://x" }, 1},
		{"status without webhook", func(c *Config) { c.Deployment.StatusURL = "https://s.example.com/{id}" }, 1},
		{"unknown channel", func(c *Config) { c.Notifications.Channels = []string{"pigeon"} }, 1},
		{"channel without section", func(c *Config) { c.Notifications.Channels = []string{"email", "nats"} }, 2},
		{"tests without command", func(c *Config) { c.Test.Enabled = true; c.Test.Command = nil }, 1},
		{"zero lock timeout", func(c *Config) { c.Build.LockTimeout = 0 }, 1},
		{"signing without provenance", func(c *Config) { c.Build.SigningKey = "cosign.key" }, 1},
		{"signed provenance", func(c *Config) { c.Build.Provenance = true; c.Build.SigningKey = "cosign.key" }, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := Default()
			tc.mutate(conf)
			err := conf.Validate()
			if tc.problems == 0 {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Problems, tc.problems)
		})
	}
}

func TestResolve(t *testing.T) {
	conf := Default()
	conf.Repo.Path = t.TempDir()
	require.NoError(t, conf.Resolve())
	require.Equal(t, conf.Repo.Path, conf.Build.WorkDir)
	require.Equal(t, filepath.Join(conf.Repo.Path, ".ccanywhere/artifacts"), conf.Build.ArtifactsDir)
	require.Equal(t, filepath.Join(conf.Build.ArtifactsDir, "test-report"), conf.Test.ReportDir)
}
