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

package attestation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sigstore/cosign/v2/cmd/cosign/cli/options"
	"github.com/sigstore/cosign/v2/cmd/cosign/cli/sign"
	"github.com/sigstore/cosign/v2/pkg/cosign"
	"github.com/sigstore/sigstore/pkg/signature/dsse"
	signatureoptions "github.com/sigstore/sigstore/pkg/signature/options"
)

// PayloadType is the DSSE payload type of signed statements
const PayloadType = "application/vnd.in-toto+json"

// PasswordEnv holds the password of the signing key
const PasswordEnv = "CCANYWHERE_SIGNING_PASSWORD"

// EnvPassword reads the key password from PasswordEnv, falling back to
// the variable the cosign CLI reads
func EnvPassword(bool) ([]byte, error) {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		return []byte(pw), nil
	}
	return []byte(os.Getenv("COSIGN_PASSWORD")), nil
}

// Sign wraps the statement in a DSSE envelope signed with the cosign
// key file at keyRef. Keyless signing is not supported, the key must be
// usable without a browser.
func (att *Attestation) Sign(ctx context.Context, keyRef string, pf cosign.PassFunc) ([]byte, error) {
	if keyRef == "" {
		return nil, errors.New("no signing key set")
	}
	if pf == nil {
		pf = EnvPassword
	}
	ko := options.KeyOpts{
		KeyRef:           keyRef,
		PassFunc:         pf,
		SkipConfirmation: true,
	}

	sv, err := sign.SignerFromKeyOpts(ctx, "", "", ko)
	if err != nil {
		return nil, fmt.Errorf("getting signer: %w", err)
	}
	defer sv.Close()

	// Wrap the attestation in the DSSE envelope
	wrapped := dsse.WrapSigner(sv, PayloadType)

	json, err := att.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("serializing attestation to json: %w", err)
	}

	signedPayload, err := wrapped.SignMessage(
		bytes.NewReader(json), signatureoptions.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("signing attestation: %w", err)
	}
	return signedPayload, nil
}
