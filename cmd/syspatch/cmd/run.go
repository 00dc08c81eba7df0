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
	"path/filepath"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/syspatch/internal/commands/patch"
	"github.com/blacktop/syspatch/internal/config"
	"github.com/blacktop/syspatch/internal/utils"
	"github.com/blacktop/syspatch/pkg/disass"
	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/platform"
	"github.com/blacktop/syspatch/pkg/proc/snapshot"
	"github.com/blacktop/syspatch/pkg/report"
	"github.com/caarlos0/ctrlc"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("yes", "y", false, "Save patched regions without asking")
	runCmd.Flags().Bool("dry-run", false, "Scan and report but never save patched regions")
	runCmd.Flags().Int("buffer-size", 0, "Memory read size in bytes (default 0x1000)")
	viper.BindPFlag("run.yes", runCmd.Flags().Lookup("yes"))
	viper.BindPFlag("run.dry_run", runCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("run.buffer_size", runCmd.Flags().Lookup("buffer-size"))
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <MANIFEST>",
	Short: "Patch the processes of a memory snapshot",
	Example: heredoc.Doc(`
		# Patch a snapshot and write config.ini/log.ini to the default directory
		❯ syspatch run dump/manifest.yaml

		# Show every matched instruction and save without asking
		❯ syspatch run -V --yes dump/manifest.yaml

		# Pretend the snapshot came from another firmware
		❯ SYSPATCH_FIRMWARE=17.0.0 syspatch run --dry-run dump/manifest.yaml`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}
		manifest := filepath.Clean(args[0])

		overrides, err := platform.LoadOverrides(nil)
		if err != nil {
			return err
		}

		var sys *snapshot.System
		var res *patch.Result
		if err := ctrlc.Default.Run(cmd.Context(), func() error {
			sys, err = snapshot.Load(cmd.Context(), manifest)
			if err != nil {
				return errors.Wrapf(err, "failed to load snapshot %s", manifest)
			}
			res, err = patch.Run(sys, &patch.Config{
				ConfigPath: conf.ConfigPath(),
				LogPath:    conf.LogPath(),
				BufferSize: conf.Run.BufferSize,
				Version:    AppVersion,
				BuildDate:  AppBuildTime,
				Overrides:  overrides,
			})
			if err != nil {
				return errors.Wrapf(err, "failed to patch %s", manifest)
			}
			return nil
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Exiting...")
				return nil
			}
			return err
		}

		printResults(res)

		if viper.GetBool("verbose") && len(res.Outcome.Hits) > 0 {
			fmt.Println()
			printHits(res.Outcome.Hits)
		}

		fmt.Printf("\n%s patched, %s already patched, %s failed in %s\n",
			colorPatched(res.Outcome.Count(patcher.PatchedSyspatch)),
			colorFile(res.Outcome.Count(patcher.PatchedFile)),
			colorFailed(res.Outcome.Count(patcher.FailedWrite)),
			report.Duration(res.Outcome.Elapsed),
		)
		if res.Options.EnableLogging {
			log.WithField("path", conf.LogPath()).Info("Wrote report")
		}

		dirty := sys.Dirty()
		if len(dirty) == 0 {
			return nil
		}
		if conf.Run.DryRun {
			log.Warnf("--dry-run: %d patched region(s) were not saved", len(dirty))
			return nil
		}
		if !conf.Run.Yes && !utils.Interactive() {
			return fmt.Errorf("refusing to overwrite snapshot regions without a terminal; use --yes")
		}
		if !confirm(manifest, conf.Run.Yes) {
			log.Warn("Patched regions were not saved")
			return nil
		}

		var size uint64
		for _, r := range dirty {
			size += r.Info.Size
		}
		if err := sys.Save(); err != nil {
			return errors.Wrapf(err, "failed to save snapshot %s", manifest)
		}
		log.WithFields(log.Fields{
			"regions": len(dirty),
			"size":    humanize.Bytes(size),
		}).Info("Saved patched regions")

		return nil
	},
}

func printResults(res *patch.Result) {
	log.WithFields(log.Fields{
		"firmware": res.Identity.Firmware,
		"provider": res.Identity.Provider,
		"emummc":   res.Identity.Emulated,
	}).Info("Platform")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", colorHeader("TARGET"), colorHeader("PATTERN"), colorHeader("RESULT"))
	for _, sec := range res.Report.Sections {
		if sec.Name == report.StatsSection {
			continue
		}
		for _, e := range sec.Entries {
			r := res.Outcome.Result(sec.Name, e.Key)
			if !res.PatchingEnabled && r != patcher.Disabled {
				r = patcher.Skipped
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", colorSection(sec.Name), e.Key, colorResult(r, e.Value))
		}
	}
	w.Flush()
}

func printHits(hits []patcher.Hit) {
	for _, h := range hits {
		fmt.Printf("%s %s\n", colorSection(h.Key.String()), colorResult(h.Result, h.Result.String()))
		fmt.Printf("    %s\n", disass.Decode(h.Inst, h.Word).Line())
		if len(h.Written) == 0 {
			continue
		}
		if len(h.Written)%4 == 0 {
			for _, in := range disass.DecodeBytes(h.Address, h.Written) {
				fmt.Printf("  + %s\n", in.Line())
			}
		} else {
			fmt.Printf("  + %#x: %s\n", h.Address, h.Written)
		}
	}
}
