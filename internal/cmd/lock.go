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

	"github.com/spf13/cobra"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/lock"
)

type lockOptions struct {
	LockFile string
	Force    bool
}

// resolve returns the lock manager and the lock file to operate on
func (lo *lockOptions) resolve() (*lock.Manager, *config.Config, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if lo.LockFile != "" {
		conf.Build.LockFile = lo.LockFile
	}
	m := lock.New()
	if conf.Build.LockTimeout > 0 {
		m.Options.DefaultTimeout = conf.Build.LockTimeout
	}
	return m, conf, nil
}

func addLock(parentCmd *cobra.Command) {
	lockOpts := &lockOptions{}
	lockCmd := &cobra.Command{
		Short: "Inspect and manage the build lock",
		Use:   "lock",
	}

	var outputOpts *outputOptions
	statusCmd := &cobra.Command{
		Short: "Show who holds the build lock",
		Use:   "status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, conf, err := lockOpts.resolve()
			if err != nil {
				return err
			}
			st, err := m.Status(conf.Build.LockFile)
			if err != nil {
				return err
			}
			return outputOpts.print(cmd.OutOrStdout(), st, func(w io.Writer) {
				printLockStatus(w, st)
			})
		},
	}
	outputOpts = addOutputFlags(statusCmd)

	cleanCmd := &cobra.Command{
		Short: "Remove stale lock files from the lock directory",
		Use:   "clean",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, conf, err := lockOpts.resolve()
			if err != nil {
				return err
			}
			removed, err := m.Clean(conf.Build.LockDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale lock(s)\n", len(removed))
			return err
		},
	}

	releaseCmd := &cobra.Command{
		Short: "Release the build lock",
		Long: `ccanywhere lock release [--force]

Removes the build lock. Without --force the lock is only removed when
it is stale or no longer held. With --force the lock is removed even
when a build may still be running.
`,
		Use:  "release",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, conf, err := lockOpts.resolve()
			if err != nil {
				return err
			}
			if lockOpts.Force {
				return m.ForceRelease(conf.Build.LockFile)
			}
			if m.IsLocked(conf.Build.LockFile) {
				return fmt.Errorf("lock %s is held, use --force to release it anyway", conf.Build.LockFile)
			}
			return m.Release(conf.Build.LockFile)
		},
	}
	releaseCmd.Flags().BoolVar(
		&lockOpts.Force,
		"force",
		false,
		"release the lock even when it is held",
	)

	lockCmd.PersistentFlags().StringVar(
		&lockOpts.LockFile,
		"lock-file",
		"",
		"lock file to use instead of the configured one",
	)

	lockCmd.AddCommand(statusCmd, cleanCmd, releaseCmd)
	parentCmd.AddCommand(lockCmd)
}

func printLockStatus(w io.Writer, st *lock.Status) {
	switch {
	case !st.Exists:
		fmt.Fprintf(w, "%s: unlocked\n", st.Path)
		return
	case st.Stale:
		fmt.Fprintf(w, "%s: stale\n", st.Path)
	default:
		fmt.Fprintf(w, "%s: locked\n", st.Path)
	}
	if r := st.Record; r != nil {
		fmt.Fprintf(w, "  pid:      %d\n", r.PID)
		fmt.Fprintf(w, "  revision: %s\n", r.Revision)
		fmt.Fprintf(w, "  age:      %s\n", st.Age.Round(time.Second))
	}
}
