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
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/syspatch/internal/utils"
	"github.com/blacktop/syspatch/pkg/disass"
	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/patcher/rules"
	"github.com/blacktop/syspatch/pkg/pattern"
	"github.com/blacktop/syspatch/pkg/proc/snapshot"
	"github.com/blacktop/syspatch/pkg/version"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("pattern", "p", "", "Search for a single hex pattern ('.' is a wildcard nibble)")
	scanCmd.Flags().StringP("target", "t", "", "Apply the rules of this target (fs, ldr, es, nifm)")
	scanCmd.Flags().StringP("base", "b", "0", "Address the file is loaded at")
	scanCmd.Flags().StringP("fw", "f", "", "Skip rules that do not apply to this firmware")
	viper.BindPFlag("scan.base", scanCmd.Flags().Lookup("base"))
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <FILE>",
	Short: "Search a raw code dump for patch signatures",
	Example: heredoc.Doc(`
		# Find every hit of a pattern
		❯ syspatch scan fs.text.bin --base 0x7100004000 -p '0x......94....0036'

		# Check which fs rules would patch the dump (nothing is written)
		❯ syspatch scan fs.text.bin --target fs --fw 18.1.0`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		patFlag, _ := cmd.Flags().GetString("pattern")
		targetFlag, _ := cmd.Flags().GetString("target")
		fwFlag, _ := cmd.Flags().GetString("fw")

		if (patFlag == "") == (targetFlag == "") {
			return fmt.Errorf("exactly one of --pattern or --target is required")
		}

		base, err := utils.ConvertStrToInt(viper.GetString("scan.base"))
		if err != nil {
			return errors.Wrapf(err, "invalid --base")
		}

		path := filepath.Clean(args[0])
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}
		log.WithFields(log.Fields{
			"file": filepath.Base(path),
			"size": humanize.Bytes(uint64(len(data))),
			"base": fmt.Sprintf("%#x", base),
		}).Info("Scanning")

		if patFlag != "" {
			return scanPattern(data, base, patFlag)
		}

		var fw version.Version
		if fwFlag != "" {
			if fw, err = version.Parse(fwFlag); err != nil {
				return errors.Wrapf(err, "invalid --fw %s", fwFlag)
			}
		}
		return scanTarget(cmd, path, base, targetFlag, fw)
	},
}

func scanPattern(data []byte, base uint64, s string) error {
	p, err := pattern.Parse(s)
	if err != nil {
		return errors.Wrapf(err, "invalid pattern %s", s)
	}
	var hits int
	for off := range p.All(data) {
		hits++
		addr := base + uint64(off)
		if off+4 <= len(data) {
			fmt.Println(disass.Decode(addr, binary.LittleEndian.Uint32(data[off:])).Line())
		} else {
			fmt.Printf("%#08x\n", addr)
		}
	}
	if hits == 0 {
		log.Warn("No matches")
	}
	return nil
}

func scanTarget(cmd *cobra.Command, path string, base uint64, name string, fw version.Version) error {
	var target *patcher.Target
	targets := rules.Targets(fw)
	for i := range targets {
		if targets[i].Name == name {
			target = &targets[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown target %q", name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	sys, err := snapshot.New(cmd.Context(), snapshot.Manifest{
		Processes: []snapshot.ProcessManifest{{
			PID:       1,
			ProgramID: target.ProgramID,
			Regions:   []snapshot.RegionManifest{{Address: base, Perm: "r-x", File: abs}},
		}},
	}, filepath.Dir(abs))
	if err != nil {
		return err
	}

	out := patcher.New(sys,
		patcher.WithGate(version.Gate{Enabled: fw != version.Any, Firmware: fw}),
	).Run([]patcher.Target{*target})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, p := range target.Patterns {
		r := out.Result(target.Name, p.Name)
		fmt.Fprintf(w, "%s\t%s\n", p.Name, colorResult(r, r.String()))
	}
	w.Flush()

	if len(out.Hits) > 0 {
		fmt.Println()
		printHits(out.Hits)
	}
	return nil
}
