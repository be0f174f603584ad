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
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// fileHook copies every log entry of the standard logger into a file
type fileHook struct {
	mu        sync.Mutex
	w         io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}

// attachLogFile mirrors the standard logger into path until the
// returned function is called
func attachLogFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, os.FileMode(0o644))
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := logrus.StandardLogger()
	previous := logrus.LevelHooks{}
	for level, hooks := range logger.Hooks {
		previous[level] = slices.Clone(hooks)
	}
	logger.AddHook(&fileHook{
		w:         f,
		formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true},
	})

	return func() {
		logger.ReplaceHooks(previous)
		f.Close()
	}, nil
}
