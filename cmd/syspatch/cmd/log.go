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

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/apex/log"
	"github.com/blacktop/syspatch/internal/colors"
	"github.com/blacktop/syspatch/internal/config"
	"github.com/blacktop/syspatch/pkg/ini"
	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/report"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().Bool("raw", false, "Print log.ini as is")
}

var resultByText = map[string]patcher.Result{
	report.Describe(patcher.NotFound):        patcher.NotFound,
	report.Describe(patcher.Skipped):         patcher.Skipped,
	report.Describe(patcher.Disabled):        patcher.Disabled,
	report.Describe(patcher.PatchedFile):     patcher.PatchedFile,
	report.Describe(patcher.PatchedSyspatch): patcher.PatchedSyspatch,
	report.Describe(patcher.FailedWrite):     patcher.FailedWrite,
}

// logCmd represents the log command
var logCmd = &cobra.Command{
	Use:           "log",
	Short:         "Show the report of the last run",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if _, err := os.Stat(conf.LogPath()); os.IsNotExist(err) {
			log.Warnf("no report at %s (is enable_logging off?)", conf.LogPath())
			return nil
		}
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			data, err := os.ReadFile(conf.LogPath())
			if err != nil {
				return err
			}
			if colors.Enabled() {
				return quick.Highlight(os.Stdout, string(data), "ini", "terminal256", "nord")
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		f, err := ini.Open(conf.LogPath())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, sec := range f.Sections() {
			fmt.Fprintf(w, "%s\n", colorSection("["+sec+"]"))
			for _, key := range f.Keys(sec) {
				val, _ := f.GetString(sec, key)
				if r, ok := resultByText[val]; ok && sec != report.StatsSection {
					val = colorResult(r, val)
				}
				fmt.Fprintf(w, "  %s\t%s\n", key, val)
			}
		}
		return w.Flush()
	},
}
