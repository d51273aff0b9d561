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

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
)

// docsURL is the Google Forms REST reference the operations map onto.
const docsURL = "https://developers.google.com/forms/api/reference/rest"

// CommandHelp describes one command in JSON help.
type CommandHelp struct {
	Name        string     `json:"name"`
	Short       string     `json:"short"`
	Long        string     `json:"long,omitempty"`
	Usage       string     `json:"usage"`
	Flags       []FlagHelp `json:"flags,omitempty"`
	Examples    string     `json:"examples,omitempty"`
	Subcommands []string   `json:"subcommands,omitempty"`
	Group       string     `json:"group,omitempty"`
	Aliases     []string   `json:"aliases,omitempty"`
}

// FlagHelp describes one flag in JSON help.
type FlagHelp struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required"`
}

// OperationHelp is the short form of a Google Forms operation, listed so an
// agent can build a run invocation without a second call.
type OperationHelp struct {
	Name     string   `json:"name"`
	Resource string   `json:"resource"`
	Method   string   `json:"method"`
	Required []string `json:"required,omitempty"`
}

// HelpResponse is the JSON document printed by "help --json". Target is set
// when help was asked for a single command; Commands and Operations otherwise.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandHelp   `json:"commands,omitempty"`
	Target      *CommandHelp    `json:"target,omitempty"`
	Operations  []OperationHelp `json:"operations,omitempty"`
	GlobalFlags []FlagHelp      `json:"global_flags,omitempty"`
	DocsURL     string          `json:"docs_url"`
}

// NewHelpCommand creates the help command
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help provides detailed information about commands and their usage.

Run 'conductor-googleforms help' to see all available commands.
Run 'conductor-googleforms help <command>' to see detailed help for a specific command.
With --json the command tree and the Google Forms operations are printed
as a single JSON document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := rootCmd
			if len(args) > 0 {
				found, _, err := rootCmd.Find(args)
				if err != nil {
					return fmt.Errorf("command %q not found", args[0])
				}
				target = found
			}

			if shared.GetJSON() || jsonOutput {
				return writeHelpJSON(cmd.OutOrStdout(), rootCmd, target)
			}
			return target.Help()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func writeHelpJSON(out io.Writer, rootCmd, target *cobra.Command) error {
	resp := HelpResponse{
		JSONResponse: shared.JSONResponse{
			Version: "1.0",
			Command: "help",
			Success: true,
		},
		GlobalFlags: describeFlags(rootCmd.PersistentFlags()),
		DocsURL:     docsURL,
	}

	if target == rootCmd {
		for _, c := range rootCmd.Commands() {
			if !c.Hidden {
				resp.Commands = append(resp.Commands, describeCommand(c))
			}
		}
		resp.Operations = operationHelp()
	} else {
		resp.Command = "help " + target.Name()
		detail := describeCommand(target)
		resp.Target = &detail
	}

	return shared.EmitJSON(out, resp)
}

func describeCommand(cmd *cobra.Command) CommandHelp {
	help := CommandHelp{
		Name:     cmd.Name(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Examples: cmd.Example,
		Aliases:  cmd.Aliases,
		Group:    cmd.Annotations["group"],
		Flags:    describeFlags(cmd.Flags()),
	}

	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			help.Subcommands = append(help.Subcommands, sub.Name())
		}
	}
	return help
}

// describeFlags lists the visible flags of fs. Required comes from
// cobra's MarkFlagRequired annotation.
func describeFlags(fs *pflag.FlagSet) []FlagHelp {
	var flags []FlagHelp
	fs.VisitAll(func(flag *pflag.Flag) {
		if flag.Hidden {
			return
		}
		_, required := flag.Annotations[cobra.BashCompOneRequiredFlag]
		flags = append(flags, FlagHelp{
			Name:      flag.Name,
			Shorthand: flag.Shorthand,
			Usage:     flag.Usage,
			Default:   flag.DefValue,
			Required:  required,
		})
	})
	return flags
}

func operationHelp() []OperationHelp {
	specs := googleforms.OperationSpecs()
	ops := make([]OperationHelp, 0, len(specs))
	for _, spec := range specs {
		ops = append(ops, OperationHelp{
			Name:     spec.Name,
			Resource: string(spec.Resource),
			Method:   spec.Method,
			Required: spec.Required,
		})
	}
	return ops
}
