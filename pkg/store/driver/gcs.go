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
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const gcsPublicBase = "https://storage.googleapis.com"

// NewGCS returns a store that uploads to a gs://bucket/prefix URL
func NewGCS(ctx context.Context, specURL string, opts ...option.ClientOption) (*GCS, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}
	if u.Hostname() == "" {
		return nil, errors.New("gcs store has no bucket defined")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	logrus.Infof("GCS driver init: Bucket: %s Path: %s", u.Hostname(), u.Path)
	return &GCS{
		Bucket: u.Hostname(),
		Path:   strings.Trim(u.Path, "/"),
		client: client,
	}, nil
}

type GCS struct {
	Bucket string
	Path   string
	// PublicURL replaces the storage.googleapis.com base in returned
	// URLs, for buckets served behind a CDN or custom domain.
	PublicURL string
	client    *storage.Client
}

// objectName returns the full object name for a key
func (gcs *GCS) objectName(key string) string {
	return strings.TrimPrefix(path.Join(gcs.Path, key), "/")
}

// Upload writes a local file to the bucket and returns its URL
func (gcs *GCS) Upload(ctx context.Context, localPath, key string) (string, error) {
	name := gcs.objectName(filepath.ToSlash(key))
	logrus.WithField("driver", "gcs").Debugf("Uploading %s to gs://%s/%s", localPath, gcs.Bucket, name)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	w := gcs.client.Bucket(gcs.Bucket).Object(name).NewWriter(ctx)
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing object %s: %w", name, err)
	}
	return gcs.objectURL(name), nil
}

func (gcs *GCS) objectURL(name string) string {
	if gcs.PublicURL != "" {
		return strings.TrimSuffix(gcs.PublicURL, "/") + "/" + strings.TrimPrefix(name, gcs.Path+"/")
	}
	return fmt.Sprintf("%s/%s/%s", gcsPublicBase, gcs.Bucket, name)
}

// Close releases the storage client
func (gcs *GCS) Close() error {
	return gcs.client.Close()
}
