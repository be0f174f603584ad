/*
Copyright 2022 Adolfo García Veytia

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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/ccanywhere/pkg/pipeline"
	"sigs.k8s.io/ccanywhere/pkg/run"
)

type runOptions struct {
	DryRun   bool
	LockFile string
}

func addRun(parentCmd *cobra.Command) {
	runOpts := runOptions{}
	var outputOpts *outputOptions
	runCmd := &cobra.Command{
		Short: "Run a build of the repository",
		Long: `ccanywhere run [base] [head]

The run subcommand builds the changes from base to head. When head is
not set, the repository HEAD is built. When base is not set, the
changes are computed against the first parent of head.

A build holds an exclusive lock, renders the diff, triggers the
deployment, runs the tests and sends notifications. The command exits
with an error when the build fails. Failed deployments and failed
tests are reported as warnings.

With --dry-run the lock, the deployment, the artifact uploads and the
notifications are skipped.

	`,
		Use:  "run",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if runOpts.LockFile != "" {
				conf.Build.LockFile = runOpts.LockFile
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			p, err := pipeline.FromConfig(ctx, conf, runOpts.DryRun)
			if err != nil {
				return fmt.Errorf("preparing build: %w", err)
			}

			var base, head string
			if len(args) > 0 {
				base = args[0]
			}
			if len(args) > 1 {
				head = args[1]
			}

			res := p.Run(ctx, base, head)
			if err := outputOpts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				printResult(w, res)
			}); err != nil {
				logrus.Error(err)
			}

			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}

	outputOpts = addOutputFlags(runCmd)

	runCmd.PersistentFlags().BoolVar(
		&runOpts.DryRun,
		"dry-run",
		false,
		"skip the lock, deployment, uploads and notifications",
	)

	runCmd.PersistentFlags().StringVar(
		&runOpts.LockFile,
		"lock-file",
		"",
		"lock file to use instead of the configured one",
	)

	parentCmd.AddCommand(runCmd)
}

func printResult(w io.Writer, res *run.Result) {
	status := "succeeded"
	if !res.Success {
		status = "failed at " + res.FailedStage
	}
	fmt.Fprintf(w, "Build %s %s in %s\n", run.ShortSHA(res.Revision), status, res.Duration.Round(time.Millisecond))
	if res.DeploymentURL != "" {
		fmt.Fprintf(w, "Deployment: %s\n", res.DeploymentURL)
	}
	if t := res.Test; t != nil {
		fmt.Fprintf(w, "Tests: %d passed, %d failed, %d flaky, %d skipped\n", t.Passed, t.Failed, t.Flaky, t.Skipped)
	}
	for i := range res.Artifacts {
		fmt.Fprintf(w, "  %-10s %s\n", res.Artifacts[i].Type, res.Artifacts[i].Location())
	}
}
