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

package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/release-utils/log"
	"sigs.k8s.io/release-utils/version"

	"sigs.k8s.io/ccanywhere/pkg/config"
)

func Execute() error {
	rootCmd := &cobra.Command{
		Short: "Lightweight CI/CD for a single repository",
		Long: `ccanywhere

ccanywhere runs a build of a git repository from a git hook, a cron
job or your shell. Each build takes an exclusive lock, renders an HTML
diff of the changes, triggers a deployment webhook, runs the end to
end tests and tells your team how it went on the configured channels.

	Run a build of HEAD:
	ccanywhere run

	Build the changes between two revisions without side effects:
	ccanywhere run main feature --dry-run

Settings are read from ccanywhere.yaml and secrets can be passed in the
environment or a .env file.

	`,
		Use:               "ccanywhere",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
	}

	rootCmd.PersistentFlags().StringVar(
		&commandLineOpts.logLevel,
		"log-level",
		"info",
		fmt.Sprintf("the logging verbosity, either %s", log.LevelNames()),
	)

	rootCmd.PersistentFlags().StringVarP(
		&commandLineOpts.configPath,
		"config",
		"c",
		"",
		fmt.Sprintf("path to the configuration file (defaults to ./%s)", config.DefaultPath),
	)

	addRun(rootCmd)
	addLock(rootCmd)
	addNotify(rootCmd)
	addDeploy(rootCmd)
	rootCmd.AddCommand(version.WithFont("larry3d"))

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
		return err
	}
	return nil
}

type commandLineOptions struct {
	logLevel   string
	configPath string
}

var commandLineOpts = &commandLineOptions{}

func initLogging(*cobra.Command, []string) error {
	return log.SetupGlobalLogger(commandLineOpts.logLevel)
}
