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

package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"sigs.k8s.io/ccanywhere/pkg/run"
	"sigs.k8s.io/ccanywhere/pkg/store/driver"
)

type Store struct {
	SpecURL string
	Driver  Implementation
}

// Implementation publishes a local file under a key and returns the
// URL it can be reached at
type Implementation interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

type Options struct {
	PublicURL       string
	CredentialsFile string
}

// New returns a store for the spec URL. Supported schemes are file://
// (or a bare path) and gs://
func New(ctx context.Context, specURL string, opts Options) (s *Store, err error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing storage spec URL %s: %w", specURL, err)
	}
	var impl Implementation
	switch u.Scheme {
	case "file", "":
		d, err := driver.NewDirectory(specURL)
		if err != nil {
			return nil, fmt.Errorf("generating new directory: %w", err)
		}
		d.PublicURL = opts.PublicURL
		impl = d
	case "gs":
		copts := []option.ClientOption{}
		if opts.CredentialsFile != "" {
			copts = append(copts, option.WithCredentialsFile(opts.CredentialsFile))
		}
		g, err := driver.NewGCS(ctx, specURL, copts...)
		if err != nil {
			return nil, fmt.Errorf("creating gcs store: %w", err)
		}
		g.PublicURL = opts.PublicURL
		impl = g
	default:
		return nil, fmt.Errorf("%s is not a storage URL", specURL)
	}

	return &Store{SpecURL: specURL, Driver: impl}, nil
}

// UploadArtifacts publishes the artifacts in parallel under prefix,
// keeping their path relative to baseDir. A copy of the list is
// returned with the URLs set. Artifacts that fail to upload keep their
// local path and the failures are returned joined.
func (s *Store) UploadArtifacts(ctx context.Context, baseDir, prefix string, artifacts []run.Artifact) ([]run.Artifact, error) {
	res := make([]run.Artifact, len(artifacts))
	copy(res, artifacts)
	errs := make([]error, len(artifacts))

	var wg errgroup.Group
	wg.SetLimit(8)
	for i := range res {
		wg.Go(func() error {
			key := artifactKey(baseDir, prefix, res[i].Path)
			u, err := s.Driver.Upload(ctx, res[i].Path, key)
			if err != nil {
				logrus.Warnf("Unable to upload %s: %v", res[i].Path, err)
				errs[i] = fmt.Errorf("uploading %s: %w", filepath.Base(res[i].Path), err)
				return nil
			}
			res[i].URL = u
			return nil
		})
	}
	// Failures are collected per artifact
	_ = wg.Wait() //nolint:errcheck
	return res, errors.Join(errs...)
}

func artifactKey(baseDir, prefix, p string) string {
	rel, err := filepath.Rel(baseDir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(p)
	}
	return path.Join(prefix, filepath.ToSlash(rel))
}
