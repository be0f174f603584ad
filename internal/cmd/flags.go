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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sigs.k8s.io/ccanywhere/pkg/config"
)

type outputOptions struct {
	JSON bool
}

// print writes v as indented JSON when --json is set, otherwise it
// calls text
func (oo *outputOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if !oo.JSON {
		text(w)
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func addOutputFlags(command *cobra.Command) *outputOptions {
	opts := &outputOptions{}
	command.PersistentFlags().BoolVar(
		&opts.JSON,
		"json",
		false,
		"print the result as JSON",
	)
	return opts
}

// loadConfig reads the configuration selected by --config
func loadConfig() (*config.Config, error) {
	conf, err := config.Load(commandLineOpts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return conf, nil
}
