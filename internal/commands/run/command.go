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

package run

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
)

// options holds the run flags.
type options struct {
	item           itemFlags
	jqExpr         string
	continueOnFail bool
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute Google Forms operations",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Run executes one request per input item against the Google Forms API and
prints the normalized records as a JSON array, in input order.

Items come from a YAML or JSON file (a single mapping or a sequence):

  - operation: formsGet
    formId: 1FAIpQLSe
  - operation: formResponsesList
    formId: 1FAIpQLSe
    queryParameters:
      pageSize: 50
      filter: timestamp > 2025-01-01T00:00:00Z

or, for a single item, from flags:

  conductor-googleforms run --operation formsGet --form-id 1FAIpQLSe

By default the first failing item aborts the run. With --continue-on-fail a
failing item is recorded as {"error": "..."} and the remaining items still run.`,
		Example: `  conductor-googleforms run --items items.yaml
  cat items.json | conductor-googleforms run --items -
  conductor-googleforms run --operation formResponsesList --form-id abc --query pageSize=10 --jq '.[0].json.responses'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			items, err := loadItems(cmd.InOrStdin(), opts.item, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			runtimeOpts := shared.RuntimeOptions{
				ConfigPath: shared.GetConfigPath(),
				Stderr:     cmd.ErrOrStderr(),
				Verbose:    shared.GetVerbose(),
			}
			if cmd.Flags().Changed("continue-on-fail") {
				runtimeOpts.ContinueOnFail = &opts.continueOnFail
			}

			rt, err := shared.NewRuntime(ctx, runtimeOpts)
			if err != nil {
				return err
			}
			defer rt.Close(context.WithoutCancel(ctx))

			return execute(ctx, rt, items, opts.jqExpr, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.item.itemsFile, "items", "f", "", "YAML or JSON file with input items (use '-' for stdin)")
	f.StringVar(&opts.item.resource, "resource", "", "Resource (forms, formResponses, formWatches)")
	f.StringVar(&opts.item.operation, "operation", "", "Operation to run (see 'conductor-googleforms operations')")
	f.StringVar(&opts.item.formID, "form-id", "", "Form ID")
	f.StringVar(&opts.item.responseID, "response-id", "", "Response ID")
	f.StringVar(&opts.item.watchID, "watch-id", "", "Watch ID")
	f.StringArrayVar(&opts.item.query, "query", nil, "Query parameter in key=value format (repeatable, order kept)")
	f.StringVar(&opts.item.body, "body", "", "Request body as JSON text")
	f.StringVar(&opts.jqExpr, "jq", "", "jq expression applied to the records before printing")
	f.BoolVar(&opts.continueOnFail, "continue-on-fail", false, "Record failing items as {\"error\": ...} instead of aborting")

	return cmd
}

// execute runs the batch and prints the records, optionally filtered by jq.
func execute(ctx context.Context, rt *shared.Runtime, items []googleforms.Parameters, jqExpr string, out io.Writer) error {
	if jqExpr != "" {
		if err := rt.JQ.Validate(jqExpr); err != nil {
			return shared.NewInvalidInputError("invalid --jq expression", err)
		}
	}

	outputs, err := rt.Integration.ExecuteBatch(ctx, items)
	if err != nil {
		if shared.GetJSON() {
			_ = shared.EmitJSONError(out, "run", err)
		}
		return shared.ClassifyRunError(err)
	}

	var result interface{} = googleforms.Records(outputs)
	if jqExpr != "" {
		result, err = rt.JQ.Execute(ctx, jqExpr, result)
		if err != nil {
			return shared.NewExecutionError("jq filter failed", err)
		}
	}

	return shared.EmitJSON(out, result)
}
