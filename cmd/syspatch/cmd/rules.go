/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/syspatch/pkg/patcher/rules"
	"github.com/blacktop/syspatch/pkg/version"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().StringP("fw", "f", "", "Only mark the patterns that apply to this firmware")
	rulesCmd.Flags().StringP("provider", "p", "", "Provider version used with --fw")
}

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:     "rules",
	Aliases: []string{"ls"},
	Short:   "List the built-in patch tables",
	Example: heredoc.Doc(`
		❯ syspatch rules
		❯ syspatch rules --fw 18.1.0`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fwFlag, _ := cmd.Flags().GetString("fw")
		providerFlag, _ := cmd.Flags().GetString("provider")

		gate := version.Gate{}
		if fwFlag != "" {
			fw, err := version.Parse(fwFlag)
			if err != nil {
				return errors.Wrapf(err, "invalid --fw %s", fwFlag)
			}
			gate = version.Gate{Enabled: true, Firmware: fw}
			if providerFlag != "" {
				if gate.Provider, err = version.Parse(providerFlag); err != nil {
					return errors.Wrapf(err, "invalid --provider %s", providerFlag)
				}
			}
		}

		targets := rules.Targets(gate.Firmware)
		if err := rules.Validate(targets); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			colorHeader("TARGET"), colorHeader("PATTERN"), colorHeader("RULE"),
			colorHeader("INST"), colorHeader("PATCH"), colorHeader("FIRMWARE"), colorHeader("DEFAULT"))
		for _, t := range targets {
			fmt.Fprintf(w, "%s\t%016x\t\t\t\t%s\t\n", colorSection(t.Name), t.ProgramID, t.Firmware)
			for _, p := range t.Patterns {
				def := colorPatched("on")
				if !p.Enabled {
					def = colorQuiet("off")
				}
				name := p.Name
				if gate.Enabled && !gate.Allows(p.Firmware, p.Provider) {
					name = colorQuiet(name)
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					name, p.Pattern, rules.Name(p.Rule), p.InstOffset, p.PatchOffset, p.Firmware, def)
			}
		}
		return w.Flush()
	},
}
