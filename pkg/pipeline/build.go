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

package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/version"

	"sigs.k8s.io/ccanywhere/pkg/attestation"
	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/deploy"
	"sigs.k8s.io/ccanywhere/pkg/diff"
	"sigs.k8s.io/ccanywhere/pkg/exec"
	"sigs.k8s.io/ccanywhere/pkg/git"
	"sigs.k8s.io/ccanywhere/pkg/metrics"
	"sigs.k8s.io/ccanywhere/pkg/notify"
	"sigs.k8s.io/ccanywhere/pkg/store"
)

// UserAgent identifies ccanywhere in outgoing requests
func UserAgent() string {
	return "ccanywhere/" + version.GetVersionInfo().GitVersion
}

// NewDeployer returns the deployment trigger for the configuration
func NewDeployer(conf *config.Deployment) *deploy.Trigger {
	return deploy.New(deploy.Options{
		WebhookURL:     conf.WebhookURL,
		StatusURL:      conf.StatusURL,
		PollInterval:   conf.PollInterval,
		MaxWait:        conf.MaxWait,
		RequestTimeout: conf.RequestTimeout,
		UserAgent:      UserAgent(),
	})
}

// FromConfig validates the configuration and wires every collaborator
// it enables. Configuration problems are returned before anything runs.
func FromConfig(ctx context.Context, conf *config.Config, dryRun bool) (*Pipeline, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := conf.Resolve(); err != nil {
		return nil, err
	}

	p := New(Options{
		RepoName:        conf.Repo.Name,
		WorkDir:         conf.Build.WorkDir,
		ArtifactsDir:    conf.Build.ArtifactsDir,
		LogDir:          conf.Build.LogDir,
		LockFile:        conf.Build.LockFile,
		LockTimeout:     conf.Build.LockTimeout,
		DryRun:          dryRun,
		MetricsTextfile: conf.Metrics.Textfile,
	})

	repo := git.NewRepository(conf.Repo.Path)
	repo.Options.Remote = conf.Repo.Remote
	p.Repo = repo
	p.Diff = diff.New(repo)

	if conf.Metrics.Textfile != "" {
		p.Metrics = metrics.NewPrometheusRecorder(nil)
	}

	if conf.Deployment.Enabled() {
		p.Deployer = NewDeployer(&conf.Deployment)
	}

	if conf.Test.Enabled {
		p.Tests = exec.NewRunner(exec.Options{
			Command:   conf.Test.Command,
			CWD:       conf.Repo.Path,
			ReportDir: conf.Test.ReportDir,
		})
	}

	if conf.Build.Provenance {
		w := attestation.NewWriter(repo)
		w.SigningKey = conf.Build.SigningKey
		p.Attester = w
	}

	if conf.Artifacts.StoreURL != "" {
		s, err := store.New(ctx, conf.Artifacts.StoreURL, store.Options{
			PublicURL:       conf.Artifacts.PublicURL,
			CredentialsFile: conf.Artifacts.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing artifact store: %w", err)
		}
		p.Uploader = s
	}

	if len(conf.Notifications.Channels) > 0 {
		d, err := notify.New(&conf.Notifications)
		if err != nil {
			logrus.Warnf("Notifications disabled: %v", err)
		} else {
			rec := p.Metrics
			d.SetObserver(func(o notify.Outcome) {
				rec.IncNotification(string(o.Channel), o.Success)
			})
			p.Notifier = d
		}
	}
	return p, nil
}
