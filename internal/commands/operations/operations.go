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

package operations

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
)

// Entry is one listed operation.
type Entry struct {
	Resource    string   `json:"resource"`
	Operation   string   `json:"operation"`
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Required    []string `json:"required"`
	Body        bool     `json:"body"`
	Description string   `json:"description"`
}

// NewCommand creates the operations command
func NewCommand() *cobra.Command {
	var resource string

	cmd := &cobra.Command{
		Use:   "operations",
		Short: "List resources and operations",
		Long: `List every operation the Google Forms node supports, grouped by resource,
with its HTTP method, path template and required identifiers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := list(googleforms.Resource(resource))
			if err != nil {
				return err
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), entries)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				required := strings.Join(e.Required, ", ")
				if required == "" {
					required = "-"
				}
				rows = append(rows, []string{e.Resource, e.Operation, e.Method, e.Path, required})
			}
			fmt.Fprint(cmd.OutOrStdout(), shared.RenderTable(
				[]string{"RESOURCE", "OPERATION", "METHOD", "PATH", "REQUIRED"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&resource, "resource", "", "Only list operations of this resource")

	return cmd
}

func list(resource googleforms.Resource) ([]Entry, error) {
	specs := googleforms.OperationSpecs()
	if resource != "" {
		specs = googleforms.OperationsFor(resource)
		if len(specs) == 0 {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("unknown resource %q", resource), nil)
		}
	}

	entries := make([]Entry, 0, len(specs))
	for _, spec := range specs {
		entries = append(entries, Entry{
			Resource:    string(spec.Resource),
			Operation:   spec.Name,
			Method:      spec.Method,
			Path:        spec.Path,
			Required:    append([]string{}, spec.Required...),
			Body:        spec.Body,
			Description: spec.Description,
		})
	}
	return entries, nil
}
