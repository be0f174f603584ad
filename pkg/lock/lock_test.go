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

package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeRecord(t *testing.T, path string, rec Record) {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.FileMode(0o755)))
	require.NoError(t, os.WriteFile(path, data, os.FileMode(0o644)))
}

func TestAcquire(t *testing.T) {
	now := time.Now()
	for _, tc := range []struct {
		name     string
		existing *Record
		mustFail bool
	}{
		{"no lock file", nil, false},
		{"fresh lock held", &Record{PID: 1, Timestamp: now.Add(-10 * time.Second).UnixMilli(), Revision: "abc"}, true},
		{"stale lock", &Record{PID: 1, Timestamp: now.Add(-10 * time.Minute).UnixMilli(), Revision: "abc"}, false},
		{"recorded timeout is ignored by acquire", &Record{PID: 1, Timestamp: now.Add(-2 * time.Minute).UnixMilli(), Timeout: 60}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "locks", "main.lock")
			if tc.existing != nil {
				writeRecord(t, path, *tc.existing)
			}
			m := New()
			rec, err := m.Acquire(path, 5*time.Minute, "deadbeef")
			if tc.mustFail {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrLocked))
				var ce *ContentionError
				require.True(t, errors.As(err, &ce))
				require.Equal(t, tc.existing.PID, ce.Holder.PID)

				// Existing record must be untouched
				onDisk, err := readRecord(path)
				require.NoError(t, err)
				require.Equal(t, *tc.existing, *onDisk)
				return
			}
			require.NoError(t, err)
			require.Equal(t, os.Getpid(), rec.PID)
			require.Equal(t, "deadbeef", rec.Revision)
			require.Equal(t, int64(300), rec.Timeout)
			require.True(t, m.IsLocked(path))

			onDisk, err := readRecord(path)
			require.NoError(t, err)
			require.Equal(t, *rec, *onDisk)
		})
	}
}

func TestAcquireTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.lock")
	m := New()
	_, err := m.Acquire(path, time.Minute, "one")
	require.NoError(t, err)
	_, err = m.Acquire(path, time.Minute, "two")
	require.ErrorIs(t, err, ErrLocked)
}

func TestAcquireConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.lock")
	m := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(path, time.Minute, "race"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
}

func TestIsLocked(t *testing.T) {
	dir := t.TempDir()
	m := New()

	// Missing file
	require.False(t, m.IsLocked(filepath.Join(dir, "missing.lock")))

	// Stale record is reported unlocked but stays on disk
	stale := filepath.Join(dir, "stale.lock")
	writeRecord(t, stale, Record{PID: 5, Timestamp: time.Now().Add(-time.Hour).UnixMilli()})
	require.False(t, m.IsLocked(stale))
	_, err := os.Stat(stale)
	require.NoError(t, err)

	// Recorded timeout wins over the default
	short := filepath.Join(dir, "short.lock")
	writeRecord(t, short, Record{PID: 5, Timestamp: time.Now().Add(-2 * time.Minute).UnixMilli(), Timeout: 60})
	require.False(t, m.IsLocked(short))

	fresh := filepath.Join(dir, "fresh.lock")
	writeRecord(t, fresh, Record{PID: 5, Timestamp: time.Now().UnixMilli()})
	require.True(t, m.IsLocked(fresh))
}

func TestRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.lock")
	m := New()
	require.NoError(t, m.Release(path), "releasing a missing lock")

	_, err := m.Acquire(path, time.Minute, "")
	require.NoError(t, err)
	require.NoError(t, m.Release(path))
	require.False(t, m.IsLocked(path))
	require.NoError(t, m.Release(path))
}

func TestForceRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.lock")
	writeRecord(t, path, Record{PID: 999999, Timestamp: time.Now().UnixMilli(), Revision: "other"})
	m := New()
	require.True(t, m.IsLocked(path))
	require.NoError(t, m.ForceRelease(path))
	require.False(t, m.IsLocked(path))
	require.NoError(t, m.ForceRelease(path))
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeRecord(t, filepath.Join(dir, "old.lock"), Record{PID: 1, Timestamp: now.Add(-time.Hour).UnixMilli()})
	writeRecord(t, filepath.Join(dir, "short.lock"), Record{PID: 2, Timestamp: now.Add(-2 * time.Minute).UnixMilli(), Timeout: 30})
	writeRecord(t, filepath.Join(dir, "fresh.lock"), Record{PID: 3, Timestamp: now.UnixMilli()})
	writeRecord(t, filepath.Join(dir, "notalock.json"), Record{PID: 4, Timestamp: now.Add(-time.Hour).UnixMilli()})

	m := New()
	removed, err := m.Clean(dir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(dir, "old.lock"),
		filepath.Join(dir, "short.lock"),
	}, removed)

	require.True(t, m.IsLocked(filepath.Join(dir, "fresh.lock")))
	_, err = os.Stat(filepath.Join(dir, "notalock.json"))
	require.NoError(t, err)

	// Missing directory is a no-op
	removed, err = m.Clean(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	require.Empty(t, removed)
}

func TestStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.lock")
	m := New()
	st, err := m.Status(path)
	require.NoError(t, err)
	require.False(t, st.Exists)
	require.False(t, st.Locked)

	rec, err := m.Acquire(path, time.Minute, "cafe")
	require.NoError(t, err)
	st, err = m.Status(path)
	require.NoError(t, err)
	require.True(t, st.Exists)
	require.True(t, st.Locked)
	require.False(t, st.Stale)
	require.Equal(t, rec.Revision, st.Record.Revision)

	// Corrupt records are aged by modification time
	require.NoError(t, os.WriteFile(path, []byte("{"), os.FileMode(0o644)))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	st, err = m.Status(path)
	require.NoError(t, err)
	require.True(t, st.Stale)
	require.Nil(t, st.Record)
}

func TestBreakStaleRestoresFreshLock(t *testing.T) {
	now := time.Now()
	stale := &Record{PID: 1, Timestamp: now.Add(-time.Hour).UnixMilli()}
	for _, tc := range []struct {
		name    string
		content string
		seen    *Record
	}{
		{"taken over", `{"pid":2,"timestamp":` + fmt.Sprint(now.UnixMilli()) + `,"revision":"new"}`, stale},
		{"fresh after unreadable", `{"pid":2,"timestamp":` + fmt.Sprint(now.UnixMilli()) + `,"revision":"new"}`, nil},
		{"fresh unreadable", `{"pid":`, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "main.lock")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), os.FileMode(0o644)))

			m := New()
			err := m.breakStale(path, tc.seen, time.Minute)
			require.ErrorIs(t, err, ErrLocked)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, tc.content, string(data))
			tombs, err := filepath.Glob(path + ".stale-*")
			require.NoError(t, err)
			require.Empty(t, tombs)
		})
	}

	// The record judged stale is discarded
	path := filepath.Join(t.TempDir(), "main.lock")
	writeRecord(t, path, *stale)
	require.NoError(t, New().breakStale(path, stale, time.Minute))
	require.NoFileExists(t, path)
}

func TestReleaseOwned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.lock")
	m := New()
	require.NoError(t, m.ReleaseOwned(path, &Record{PID: 1}), "releasing a missing lock")

	rec, err := m.Acquire(path, time.Minute, "mine")
	require.NoError(t, err)
	require.NoError(t, m.ReleaseOwned(path, rec))
	require.NoFileExists(t, path)

	// The lock went stale and another run took it over
	rec, err = m.Acquire(path, time.Minute, "mine")
	require.NoError(t, err)
	other := Record{PID: rec.PID + 1, Timestamp: time.Now().UnixMilli(), Revision: "theirs"}
	writeRecord(t, path, other)
	require.ErrorIs(t, m.ReleaseOwned(path, rec), ErrNotOwner)
	require.True(t, m.IsLocked(path))
}
