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

package attestation

import (
	"time"

	slsa1 "github.com/in-toto/attestation/go/predicates/provenance/v1"
	v1 "github.com/in-toto/attestation/go/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	PredicateType = "https://slsa.dev/provenance/v1"
	BuildType     = "https://ccanywhere.dev/build/v1"
)

type SLSAPredicateV1 struct {
	Provenance *slsa1.Provenance
}

func NewSLSAV1Predicate() *SLSAPredicateV1 {
	return &SLSAPredicateV1{
		Provenance: &slsa1.Provenance{
			BuildDefinition: &slsa1.BuildDefinition{
				BuildType: BuildType,
				ExternalParameters: &structpb.Struct{
					Fields: map[string]*structpb.Value{},
				},
				InternalParameters: &structpb.Struct{
					Fields: map[string]*structpb.Value{},
				},
				ResolvedDependencies: []*v1.ResourceDescriptor{},
			},
			RunDetails: &slsa1.RunDetails{
				Builder: &slsa1.Builder{
					Id:      "",
					Version: map[string]string{},
				},
				Metadata: &slsa1.BuildMetadata{
					InvocationId: "",
				},
				Byproducts: []*v1.ResourceDescriptor{},
			},
		},
	}
}

func (pred *SLSAPredicateV1) SetBuilderID(id string) {
	pred.Provenance.RunDetails.Builder.Id = id
}

func (pred *SLSAPredicateV1) SetBuilderVersion(component, version string) {
	pred.Provenance.RunDetails.Builder.Version[component] = version
}

func (pred *SLSAPredicateV1) SetInvocationID(id string) {
	pred.Provenance.RunDetails.Metadata.InvocationId = id
}

// SetSource records the built revision in the external parameters and
// as a resolved dependency
func (pred *SLSAPredicateV1) SetSource(uri, revision string) {
	lc8r := uri
	if revision != "" {
		lc8r += "@" + revision
	}
	pred.SetExternalParameter("source", lc8r)
	pred.AddDependency(&v1.ResourceDescriptor{
		Uri:    uri,
		Digest: map[string]string{"gitCommit": revision},
	})
}

func (pred *SLSAPredicateV1) SetExternalParameter(name, value string) {
	pred.Provenance.BuildDefinition.ExternalParameters.Fields[name] = structpb.NewStringValue(value)
}

func (pred *SLSAPredicateV1) AddDependency(dep *v1.ResourceDescriptor) {
	pred.Provenance.BuildDefinition.ResolvedDependencies = append(
		pred.Provenance.BuildDefinition.ResolvedDependencies, dep,
	)
}

func (pred *SLSAPredicateV1) AddByproduct(bp *v1.ResourceDescriptor) {
	pred.Provenance.RunDetails.Byproducts = append(pred.Provenance.RunDetails.Byproducts, bp)
}

func (pred *SLSAPredicateV1) SetStartedOn(d *time.Time) {
	if d == nil {
		pred.Provenance.RunDetails.Metadata.StartedOn = nil
		return
	}
	pred.Provenance.RunDetails.Metadata.StartedOn = timestamppb.New(*d)
}

func (pred *SLSAPredicateV1) SetFinishedOn(d *time.Time) {
	if d == nil {
		pred.Provenance.RunDetails.Metadata.FinishedOn = nil
		return
	}
	pred.Provenance.RunDetails.Metadata.FinishedOn = timestamppb.New(*d)
}

func (pred *SLSAPredicateV1) MarshalJSON() ([]byte, error) {
	return protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}.Marshal(pred.Provenance)
}

func (pred *SLSAPredicateV1) Type() string {
	return PredicateType
}
