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
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sigs.k8s.io/ccanywhere/pkg/deploy"
	"sigs.k8s.io/ccanywhere/pkg/git"
	"sigs.k8s.io/ccanywhere/pkg/pipeline"
	"sigs.k8s.io/ccanywhere/pkg/run"
)

func newTrigger() (*deploy.Trigger, string, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if err := conf.Validate(); err != nil {
		return nil, "", err
	}
	if !conf.Deployment.Enabled() {
		return nil, "", deploy.ErrNotConfigured
	}
	return pipeline.NewDeployer(&conf.Deployment), conf.Repo.Path, nil
}

func addDeploy(parentCmd *cobra.Command) {
	deployCmd := &cobra.Command{
		Short: "Trigger deployments and query their status",
		Use:   "deploy",
	}

	var triggerOutput *outputOptions
	triggerCmd := &cobra.Command{
		Short: "Trigger a deployment of the repository HEAD",
		Long: `ccanywhere deploy trigger

Calls the deployment webhook for the current HEAD and, when a status
URL is configured, waits for the deployment to finish.
`,
		Use:  "trigger",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, repoPath, err := newTrigger()
			if err != nil {
				return err
			}
			revision, branch, err := git.NewRepository(repoPath).Head()
			if err != nil {
				return fmt.Errorf("reading repository head: %w", err)
			}
			rec, err := t.Trigger(cmd.Context(), &run.BuildContext{
				ID:        uuid.NewString(),
				Revision:  revision,
				Branch:    branch,
				Timestamp: time.Now(),
			})
			if err != nil {
				return err
			}
			if err := triggerOutput.print(cmd.OutOrStdout(), rec, func(w io.Writer) {
				printRecord(w, rec)
			}); err != nil {
				return err
			}
			if rec.Status == deploy.StatusFailed {
				return fmt.Errorf("deployment failed: %s", rec.Error)
			}
			return nil
		},
	}
	triggerOutput = addOutputFlags(triggerCmd)

	var statusOutput *outputOptions
	statusCmd := &cobra.Command{
		Short: "Query the status of a deployment",
		Use:   "status ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _, err := newTrigger()
			if err != nil {
				return err
			}
			rec, err := t.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return statusOutput.print(cmd.OutOrStdout(), rec, func(w io.Writer) {
				printRecord(w, rec)
			})
		},
	}
	statusOutput = addOutputFlags(statusCmd)

	deployCmd.AddCommand(triggerCmd, statusCmd)
	parentCmd.AddCommand(deployCmd)
}

func printRecord(w io.Writer, rec *deploy.Record) {
	fmt.Fprintf(w, "Deployment %s: %s\n", rec.ID, rec.Status)
	if rec.URL != "" {
		fmt.Fprintf(w, "  url:   %s\n", rec.URL)
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", rec.Error)
	}
}
