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

package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/hash"

	"sigs.k8s.io/ccanywhere/pkg/run"
	"sigs.k8s.io/ccanywhere/pkg/store/snapshot"
)

// NewDirectory returns a store backed by a local directory. The spec
// URL is a file:// URL or a plain path.
func NewDirectory(specURL string) (*Directory, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}
	path := u.Path
	if u.Scheme == "" {
		path = specURL
	}
	if path == "" {
		return nil, errors.New("directory store has no path defined")
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("normalizing path %s: %w", path, err)
	}
	return &Directory{
		Path: path,
	}, nil
}

type Directory struct {
	Path string
	// PublicURL is the base URL the directory is served from. When
	// empty, uploads return file:// URLs.
	PublicURL string
}

// Snap takes a snapshot of the directory. Paths in the snapshot are
// relative to the directory.
func (d *Directory) Snap() (*snapshot.Snapshot, error) {
	if d.Path == "" {
		return nil, errors.New("directory watcher has no path defined")
	}

	snap := snapshot.Snapshot{}

	// Walk the files in the directory
	if err := filepath.Walk(d.Path,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			// Hash the file
			sha, err := hash.SHA256ForFile(path)
			if err != nil {
				return fmt.Errorf("hashing %s: %w", path, err)
			}

			// Normalize the path....
			path, err = filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("normalizing path %s: %w", path, err)
			}

			// .. and trim the working directory to make it relative
			path = strings.TrimPrefix(path, d.Path+string(filepath.Separator))

			// Register the file with the path normalized
			snap[path] = run.Artifact{
				Path:     path,
				Size:     info.Size(),
				Checksum: map[string]string{"sha256": sha},
				Time:     info.ModTime(),
			}
			return nil
		}); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &snap, nil
}

// Upload copies a local file into the directory under key
func (d *Directory) Upload(ctx context.Context, localPath, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key = strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+key)), "/")
	dest := filepath.Join(d.Path, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), os.FileMode(0o755)); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copying %s: %w", localPath, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}
	logrus.WithField("driver", "directory").Debugf("Copied %s to %s", localPath, dest)

	if d.PublicURL != "" {
		return strings.TrimSuffix(d.PublicURL, "/") + "/" + key, nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String(), nil
}
