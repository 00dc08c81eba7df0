// Package patch drives one patch run: it reads the options file, identifies
// the platform, applies the rule tables and writes the run report.
package patch

import (
	"fmt"
	"os"
	"runtime"

	"github.com/apex/log"
	"github.com/blacktop/syspatch/internal/utils"
	"github.com/blacktop/syspatch/pkg/ini"
	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/patcher/rules"
	"github.com/blacktop/syspatch/pkg/platform"
	"github.com/blacktop/syspatch/pkg/report"
)

const optionsSection = "options"

// System is everything a run needs from the platform.
type System interface {
	patcher.ProcessDirectory
	platform.Query
}

// Config is the configuration for a patch run
type Config struct {
	ConfigPath string
	LogPath    string
	BufferSize int
	// Version and BuildDate end up in the stats section
	Version   string
	BuildDate string
	Overrides platform.Overrides
	Logger    log.Interface
}

// Options are the global switches stored in the options section.
type Options struct {
	PatchSysmmc   bool
	PatchEmummc   bool
	EnableLogging bool
	VersionSkip   bool
}

// LoadOptions reads the global switches, writing the defaults for any that
// are missing.
func LoadOptions(f *ini.File) Options {
	return Options{
		PatchSysmmc:   f.GetOrCreateBool(optionsSection, "patch_sysmmc", true),
		PatchEmummc:   f.GetOrCreateBool(optionsSection, "patch_emummc", true),
		EnableLogging: f.GetOrCreateBool(optionsSection, "enable_logging", true),
		VersionSkip:   f.GetOrCreateBool(optionsSection, "version_skip", true),
	}
}

// PatchingEnabled reports whether the storage the system booted from may be
// patched.
func (o Options) PatchingEnabled(emulated bool) bool {
	if emulated {
		return o.PatchEmummc
	}
	return o.PatchSysmmc
}

// ApplyToggles sets the Enabled flag of every pattern from its key in f,
// writing the table default for keys that are missing.
func ApplyToggles(f *ini.File, targets []patcher.Target) {
	for i := range targets {
		t := &targets[i]
		for j := range t.Patterns {
			p := &t.Patterns[j]
			p.Enabled = f.GetOrCreateBool(t.Name, p.Name, p.Enabled)
		}
	}
}

// Result is what one run did.
type Result struct {
	Identity        platform.Identity
	Options         Options
	PatchingEnabled bool
	Targets         []patcher.Target
	Outcome         *patcher.Outcome
	Report          report.Report
}

// Run performs a full patch run against sys.
func Run(sys System, conf *Config) (*Result, error) {
	logger := conf.Logger
	if logger == nil {
		logger = log.Log
	}

	// drop the report of the previous run
	if err := os.Remove(conf.LogPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove previous report: %w", err)
	}

	cfg, err := ini.Open(conf.ConfigPath)
	if err != nil {
		return nil, err
	}
	opts := LoadOptions(cfg)

	id, err := platform.Identify(sys, logger)
	if err != nil {
		return nil, err
	}
	if id, err = conf.Overrides.Apply(id); err != nil {
		return nil, fmt.Errorf("failed to apply overrides: %w", err)
	}

	targets := rules.Targets(id.Firmware)
	if err := rules.Validate(targets); err != nil {
		return nil, err
	}
	ApplyToggles(cfg, targets)

	res := &Result{
		Identity:        id,
		Options:         opts,
		PatchingEnabled: opts.PatchingEnabled(id.Emulated),
		Targets:         targets,
	}

	logger.WithFields(log.Fields{
		"firmware": id.Firmware,
		"provider": id.Provider,
		"emummc":   id.Emulated,
	}).Info("Patching")

	if res.PatchingEnabled {
		eng := patcher.New(sys,
			patcher.WithGate(id.Gate(opts.VersionSkip)),
			patcher.WithBufferSize(conf.BufferSize),
			patcher.WithLogger(logger),
		)
		res.Outcome = eng.Run(targets)
	} else {
		utils.Indent(logger.Warn, 2)("patching is disabled for this storage")
		res.Outcome = disabledOutcome(targets)
	}

	res.Report = report.Build(targets, res.Outcome, res.PatchingEnabled)

	if opts.EnableLogging {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		bufSize := conf.BufferSize
		if bufSize <= 0 {
			bufSize = patcher.DefaultBufferSize
		}
		res.Report = res.Report.WithStats(report.Stats{
			Version:        conf.Version,
			BuildDate:      conf.BuildDate,
			Firmware:       id.Firmware,
			Provider:       id.Provider,
			ProviderTarget: id.ProviderTarget,
			Keygen:         id.Keygen,
			Hash:           id.Hash,
			Emulated:       id.Emulated,
			HeapSize:       mem.HeapSys,
			BufferSize:     bufSize,
			Elapsed:        res.Outcome.Elapsed,
		})

		sink, err := ini.Open(conf.LogPath)
		if err != nil {
			return nil, err
		}
		if err := report.Write(sink, res.Report); err != nil {
			return nil, err
		}
	}

	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("failed to save options: %w", err)
	}

	return res, nil
}

// disabledOutcome is the outcome of a run that never reached the engine: every
// pattern turned off in the options is Disabled, the rest are Skipped.
func disabledOutcome(targets []patcher.Target) *patcher.Outcome {
	out := &patcher.Outcome{Results: make(map[patcher.Key]patcher.Result)}
	for _, t := range targets {
		for _, p := range t.Patterns {
			r := patcher.Skipped
			if !p.Enabled {
				r = patcher.Disabled
			}
			out.Results[patcher.Key{Target: t.Name, Pattern: p.Name}] = r
		}
	}
	return out
}
