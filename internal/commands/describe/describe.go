// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package describe

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
)

// Description is the JSON document printed by describe.
type Description struct {
	Node       googleforms.NodeDescription       `json:"node"`
	Credential googleforms.CredentialDescription `json:"credential"`
	Parameters *jsonschema.Schema                `json:"parameters"`
}

// NewCommand creates the describe command
func NewCommand() *cobra.Command {
	var operation string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the node descriptor and parameter schema",
		Long: `Print the Google Forms node descriptor, its credential type and the JSON
Schema of the item parameters as JSON.

With --operation, print only the input schema of that operation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if operation != "" {
				schema, ok := googleforms.OperationInputSchema(operation)
				if !ok {
					return shared.NewInvalidInputError(fmt.Sprintf("unknown operation %q", operation), nil)
				}
				return shared.EmitJSON(cmd.OutOrStdout(), schema)
			}

			return shared.EmitJSON(cmd.OutOrStdout(), Description{
				Node:       googleforms.Describe(),
				Credential: googleforms.Credential(),
				Parameters: googleforms.ParameterSchema(),
			})
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "Print the input schema of one operation")

	return cmd
}
