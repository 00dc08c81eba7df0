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
	"strings"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/syspatch/internal/commands/patch"
	"github.com/blacktop/syspatch/internal/config"
	"github.com/blacktop/syspatch/pkg/ini"
	"github.com/blacktop/syspatch/pkg/patcher/rules"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change config.ini",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// openOptions loads config.ini and fills in every missing key.
func openOptions() (*ini.File, error) {
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	f, err := ini.Open(conf.ConfigPath())
	if err != nil {
		return nil, err
	}
	patch.LoadOptions(f)
	patch.ApplyToggles(f, rules.Targets(0))
	return f, nil
}

var configListCmd = &cobra.Command{
	Use:           "list",
	Aliases:       []string{"ls"},
	Short:         "List every option and pattern toggle",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openOptions()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, sec := range f.Sections() {
			fmt.Fprintf(w, "%s\n", colorSection("["+sec+"]"))
			for _, key := range f.Keys(sec) {
				val, _ := f.GetString(sec, key)
				if val == "0" {
					val = colorQuiet("off")
				} else {
					val = colorPatched("on")
				}
				fmt.Fprintf(w, "  %s\t%s\n", key, val)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return f.Save()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <SECTION> <KEY> <on|off>",
	Short: "Change an option or pattern toggle",
	Example: heredoc.Doc(`
		# Stop patching emuMMC
		❯ syspatch config set options patch_emummc off

		# Turn on the nifm connection test patch
		❯ syspatch config set nifm ctest on`),
	Args:          cobra.ExactArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		section, key := strings.ToLower(args[0]), strings.ToLower(args[1])

		var on bool
		switch strings.ToLower(args[2]) {
		case "on", "yes":
			on = true
		case "off", "no":
		default:
			v, err := cast.ToBoolE(args[2])
			if err != nil {
				return fmt.Errorf("invalid value %q (use on or off)", args[2])
			}
			on = v
		}

		f, err := openOptions()
		if err != nil {
			return err
		}
		if _, ok := f.GetString(section, key); !ok {
			return fmt.Errorf("unknown option %s/%s", section, key)
		}
		f.SetBool(section, key, on)
		if err := f.Save(); err != nil {
			return errors.Wrapf(err, "failed to save %s", f.Path())
		}
		log.WithFields(log.Fields{"key": section + "/" + key, "on": on}).Info("Updated")
		return nil
	},
}
