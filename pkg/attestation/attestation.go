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

// Package attestation writes in-toto provenance statements describing
// the artifacts a build produced, optionally signed with a cosign key.
package attestation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	intoto "github.com/in-toto/in-toto-golang/in_toto"
	"github.com/sigstore/cosign/v2/pkg/cosign"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/hash"
	"sigs.k8s.io/release-utils/version"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

const statementType = "https://in-toto.io/Statement/v1"

type Attestation struct {
	intoto.StatementHeader
	Predicate *SLSAPredicateV1 `json:"predicate"`
}

func New() *Attestation {
	return &Attestation{
		StatementHeader: intoto.StatementHeader{
			Type:          statementType,
			PredicateType: PredicateType,
			Subject:       []intoto.Subject{},
		},
		Predicate: NewSLSAV1Predicate(),
	}
}

// AddSubject adds a file to the statement subjects
func (att *Attestation) AddSubject(name, sha256 string) {
	att.Subject = append(att.Subject, intoto.Subject{
		Name:   name,
		Digest: map[string]string{"sha256": sha256},
	})
}

func (att *Attestation) ToJSON() ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if err := enc.Encode(att); err != nil {
		return nil, fmt.Errorf("encoding attestation: %w", err)
	}
	return b.Bytes(), nil
}

// SourceLocator returns the URL of the repository being built
type SourceLocator interface {
	SourceURL() (string, error)
}

// Writer produces the provenance file of a build
type Writer struct {
	BuilderID string
	Source    SourceLocator
	// SigningKey is a cosign key file. When set the statement is written
	// as a signed DSSE envelope.
	SigningKey string
	Password   cosign.PassFunc
	now        func() time.Time
}

func NewWriter(src SourceLocator) *Writer {
	return &Writer{
		BuilderID: "https://github.com/ccanywhere/ccanywhere",
		Source:    src,
		now:       time.Now,
	}
}

// Build assembles the provenance statement for a build and its artifacts
func (w *Writer) Build(bc *run.BuildContext, artifacts []run.Artifact) (*Attestation, error) {
	att := New()
	for _, a := range artifacts {
		sha := a.Checksum["sha256"]
		if sha == "" {
			var err error
			sha, err = hash.SHA256ForFile(a.Path)
			if err != nil {
				return nil, fmt.Errorf("hashing %s: %w", a.Path, err)
			}
		}
		name, err := filepath.Rel(bc.ArtifactsDir, a.Path)
		if err != nil {
			name = filepath.Base(a.Path)
		}
		att.AddSubject(filepath.ToSlash(name), sha)
	}

	pred := att.Predicate
	pred.SetBuilderID(w.BuilderID)
	pred.SetBuilderVersion("ccanywhere", version.GetVersionInfo().GitVersion)
	pred.SetInvocationID(bc.ID)
	pred.SetExternalParameter("branch", bc.Branch)
	if w.Source != nil {
		uri, err := w.Source.SourceURL()
		if err != nil {
			logrus.Warnf("Unable to read repository URL for provenance: %v", err)
		}
		if uri != "" {
			pred.SetSource(uri, bc.Revision)
		}
	}
	started := bc.Timestamp
	finished := w.now()
	pred.SetStartedOn(&started)
	pred.SetFinishedOn(&finished)
	return att, nil
}

// Attest writes provenance-<shortsha>.intoto.json into the artifacts
// directory and returns it as an artifact. With a signing key the file
// holds the DSSE envelope instead of the bare statement.
func (w *Writer) Attest(ctx context.Context, bc *run.BuildContext, artifacts []run.Artifact) (*run.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	att, err := w.Build(bc, artifacts)
	if err != nil {
		return nil, fmt.Errorf("building provenance: %w", err)
	}
	var data []byte
	if w.SigningKey != "" {
		data, err = att.Sign(ctx, w.SigningKey, w.Password)
	} else {
		data, err = att.ToJSON()
	}
	if err != nil {
		return nil, err
	}

	path := filepath.Join(bc.ArtifactsDir, fmt.Sprintf("provenance-%s.intoto.json", bc.ShortRevision()))
	if err := os.WriteFile(path, data, os.FileMode(0o644)); err != nil {
		return nil, fmt.Errorf("writing provenance: %w", err)
	}
	sha, err := hash.SHA256ForFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing provenance: %w", err)
	}
	logrus.Infof("Wrote provenance attestation to %s", path)
	return &run.Artifact{
		Type:     run.ArtifactProvenance,
		Path:     path,
		Size:     int64(len(data)),
		Checksum: map[string]string{"sha256": sha},
		Time:     w.now(),
	}, nil
}
