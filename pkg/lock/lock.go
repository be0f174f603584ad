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

// Package lock implements single host mutual exclusion over a lock file.
// A lock is held while a file containing a JSON Record exists at the
// lock path and the record is younger than its timeout. Liveness of the
// recorded pid is never checked, only elapsed time decides staleness.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/util"
)

const (
	DefaultLockDir  = "/tmp/ccanywhere-locks"
	DefaultLockFile = DefaultLockDir + "/main.lock"
	DefaultTimeout  = 300 * time.Second

	lockSuffix = ".lock"
)

// ErrLocked is matched by errors.Is on a ContentionError
var ErrLocked = errors.New("lock is held")

// ErrNotOwner is returned when releasing a lock that changed hands
var ErrNotOwner = errors.New("lock is not owned by this run")

// Record is the content of a lock file
type Record struct {
	PID       int    `json:"pid"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Revision  string `json:"revision"`
	// Timeout in seconds the record was acquired with. Optional.
	Timeout int64 `json:"timeout,omitempty"`
}

// AcquiredAt returns the record timestamp as a time
func (r *Record) AcquiredAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Age returns how long ago the record was acquired
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.AcquiredAt())
}

// ContentionError is returned when trying to acquire a lock that is
// currently held by someone else.
type ContentionError struct {
	Path   string
	Holder *Record
}

func (e *ContentionError) Error() string {
	if e.Holder == nil {
		return fmt.Sprintf("lock %s is held by another process", e.Path)
	}
	return fmt.Sprintf(
		"lock %s is held by pid %d since %s (revision %s)",
		e.Path, e.Holder.PID, e.Holder.AcquiredAt().Format(time.RFC3339), e.Holder.Revision,
	)
}

func (e *ContentionError) Is(target error) bool {
	return target == ErrLocked
}

// Status is a read only view of a lock file
type Status struct {
	Path   string
	Exists bool
	Locked bool
	Stale  bool
	Age    time.Duration
	Record *Record
}

type Options struct {
	// DefaultTimeout applies to records without a recorded timeout
	DefaultTimeout time.Duration
}

type Manager struct {
	Options Options
	now     func() time.Time
	pid     int
}

func New() *Manager {
	return &Manager{
		Options: Options{
			DefaultTimeout: DefaultTimeout,
		},
		now: time.Now,
		pid: os.Getpid(),
	}
}

// Acquire takes the lock at lockFile. If a non-stale record exists the
// call fails with a *ContentionError and the existing record is left
// untouched. The lock file is created with a hard link from a fully
// written temporary file so concurrent acquirers can never both win
// and readers never see a partial record.
func (m *Manager) Acquire(lockFile string, timeout time.Duration, revision string) (*Record, error) {
	if timeout <= 0 {
		timeout = m.Options.DefaultTimeout
	}
	if err := os.MkdirAll(filepath.Dir(lockFile), os.FileMode(0o755)); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	rec := &Record{
		PID:       m.pid,
		Timestamp: m.now().UnixMilli(),
		Revision:  revision,
		Timeout:   int64(timeout / time.Second),
	}

	err := m.link(lockFile, rec)
	if err == nil {
		logrus.Debugf("Acquired lock %s (pid %d)", lockFile, rec.PID)
		return rec, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("creating lock file: %w", err)
	}

	// Someone holds the file. Check if it went stale.
	holder, age, err := m.inspect(lockFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Released in between, try once more
			return m.retry(lockFile, rec)
		}
		return nil, fmt.Errorf("reading existing lock: %w", err)
	}

	if age < timeout {
		return nil, &ContentionError{Path: lockFile, Holder: holder}
	}

	logrus.Warnf("Lock %s is stale (age %s), taking over", lockFile, age.Round(time.Second))
	if err := m.breakStale(lockFile, holder, timeout); err != nil {
		return nil, err
	}
	return m.retry(lockFile, rec)
}

func (m *Manager) retry(lockFile string, rec *Record) (*Record, error) {
	if err := m.link(lockFile, rec); err != nil {
		if errors.Is(err, os.ErrExist) {
			holder, _, _ := m.inspect(lockFile) //nolint:errcheck
			return nil, &ContentionError{Path: lockFile, Holder: holder}
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	logrus.Debugf("Acquired lock %s (pid %d)", lockFile, rec.PID)
	return rec, nil
}

// link writes the record to a temporary file next to the lock and hard
// links it into place. os.Link fails with ErrExist when the lock exists.
func (m *Manager) link(lockFile string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling lock record: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(lockFile), ".tmp-"+filepath.Base(lockFile)+"-*")
	if err != nil {
		return fmt.Errorf("creating temporary lock file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing lock record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary lock file: %w", err)
	}
	return os.Link(tmp.Name(), lockFile)
}

// breakStale moves a stale lock out of the way. The file is renamed to a
// unique tombstone first and checked again: if it now holds a fresh lock
// (another process took over meanwhile) it is put back. When a third
// process links its own lock before the restore, the moved holder loses
// the file; ReleaseOwned keeps it from removing the newer lock.
func (m *Manager) breakStale(lockFile string, seen *Record, timeout time.Duration) error {
	tomb := fmt.Sprintf("%s.stale-%s", lockFile, uuid.NewString())
	if err := os.Rename(lockFile, tomb); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("moving stale lock: %w", err)
	}
	defer os.Remove(tomb)

	moved, age, err := m.inspect(tomb)
	if err != nil || age >= timeout || sameRecord(moved, seen) {
		return nil
	}

	if err := os.Link(tomb, lockFile); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("restoring lock taken over in between: %w", err)
		}
		logrus.Warnf("Lock %s was taken by another process while restoring a fresh lock", lockFile)
	}
	return &ContentionError{Path: lockFile, Holder: moved}
}

func sameRecord(a, b *Record) bool {
	return a != nil && b != nil && a.PID == b.PID && a.Timestamp == b.Timestamp
}

// inspect reads the record at path and computes its age. Unparseable
// records are aged by the file modification time.
func (m *Manager) inspect(path string) (*Record, time.Duration, error) {
	rec, err := readRecord(path)
	if err == nil {
		return rec, rec.Age(m.now()), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, err
	}
	info, serr := os.Stat(path)
	if serr != nil {
		return nil, 0, serr
	}
	logrus.Debugf("Lock %s has an unreadable record: %v", path, err)
	return nil, m.now().Sub(info.ModTime()), nil
}

func (m *Manager) timeoutFor(rec *Record) time.Duration {
	if rec != nil && rec.Timeout > 0 {
		return time.Duration(rec.Timeout) * time.Second
	}
	return m.Options.DefaultTimeout
}

// Status reports the state of a lock file without modifying it
func (m *Manager) Status(lockFile string) (*Status, error) {
	st := &Status{Path: lockFile}
	rec, age, err := m.inspect(lockFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return nil, fmt.Errorf("inspecting lock: %w", err)
	}
	st.Exists = true
	st.Record = rec
	st.Age = age
	st.Stale = age >= m.timeoutFor(rec)
	st.Locked = !st.Stale
	return st, nil
}

// IsLocked returns true only when a record exists and is not stale. An
// expired lock is reported as unlocked but the file is not removed.
func (m *Manager) IsLocked(lockFile string) bool {
	st, err := m.Status(lockFile)
	if err != nil {
		logrus.Debugf("Checking lock %s: %v", lockFile, err)
		return false
	}
	return st.Locked
}

// Release deletes the lock file. A missing file is not an error.
func (m *Manager) Release(lockFile string) error {
	if err := os.Remove(lockFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	logrus.Debugf("Released lock %s", lockFile)
	return nil
}

// ReleaseOwned deletes the lock file only while it still holds rec. A
// lock that went stale and was taken over by another process is left in
// place and ErrNotOwner is returned. A missing file is not an error.
func (m *Manager) ReleaseOwned(lockFile string, rec *Record) error {
	current, err := readRecord(lockFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("lock %s has an unreadable record: %w", lockFile, ErrNotOwner)
	}
	if !sameRecord(current, rec) {
		return fmt.Errorf(
			"lock %s is now held by pid %d (revision %s): %w",
			lockFile, current.PID, current.Revision, ErrNotOwner,
		)
	}
	return m.Release(lockFile)
}

// ForceRelease removes the lock unconditionally, without checking who
// holds it or how old it is.
func (m *Manager) ForceRelease(lockFile string) error {
	if rec, err := readRecord(lockFile); err == nil {
		logrus.Warnf(
			"Force releasing lock %s held by pid %d (revision %s)",
			lockFile, rec.PID, rec.Revision,
		)
	}
	return m.Release(lockFile)
}

// Clean removes every stale lock file in lockDir and returns the paths
// it deleted.
func (m *Manager) Clean(lockDir string) ([]string, error) {
	removed := []string{}
	if !util.Exists(lockDir) {
		return removed, nil
	}
	entries, err := os.ReadDir(lockDir)
	if err != nil {
		return nil, fmt.Errorf("reading lock directory: %w", err)
	}

	errs := []error{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), lockSuffix) {
			continue
		}
		path := filepath.Join(lockDir, e.Name())
		st, err := m.Status(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !st.Exists || !st.Stale {
			continue
		}
		if err := m.Release(path); err != nil {
			errs = append(errs, err)
			continue
		}
		logrus.Infof("Removed stale lock %s (age %s)", path, st.Age.Round(time.Second))
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("parsing lock record: %w", err)
	}
	return rec, nil
}
