// Package report turns a patch run into the sections written to log.ini.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/version"
)

// StatsSection is the name of the run metadata section.
const StatsSection = "stats"

// Describe returns the text stored in the report for a result.
func Describe(r patcher.Result) string {
	switch r {
	case patcher.NotFound:
		return "Unpatched"
	case patcher.Skipped:
		return "Skipped"
	case patcher.Disabled:
		return "Disabled"
	case patcher.PatchedFile:
		return "Patched (file)"
	case patcher.PatchedSyspatch:
		return "Patched (sys-patch)"
	case patcher.FailedWrite:
		return "Failed (svcWriteDebugProcessMemory)"
	}
	return "Unknown"
}

// Entry is one key/value line of a section.
type Entry struct {
	Key   string
	Value string
}

// Section is a named group of entries, one per ini section.
type Section struct {
	Name    string
	Entries []Entry
}

// Report is an ordered set of sections.
type Report struct {
	Sections []Section
}

// Section returns the named section, if present.
func (r *Report) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Get returns the value of section/key.
func (r *Report) Get(section, key string) (string, bool) {
	s, ok := r.Section(section)
	if !ok {
		return "", false
	}
	for _, e := range s.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Build lays out one section per target with one entry per pattern, in
// table order. When patching was turned off for the whole run every result
// that is not Disabled or Skipped is reported as Skipped.
func Build(targets []patcher.Target, out *patcher.Outcome, patchingEnabled bool) Report {
	var rep Report
	for _, t := range targets {
		sec := Section{Name: t.Name}
		for _, p := range t.Patterns {
			res := out.Result(t.Name, p.Name)
			if !patchingEnabled && res != patcher.Disabled && res != patcher.Skipped {
				res = patcher.Skipped
			}
			sec.Entries = append(sec.Entries, Entry{Key: p.Name, Value: Describe(res)})
		}
		rep.Sections = append(rep.Sections, sec)
	}
	return rep
}

// Stats is the run metadata stored alongside the results.
type Stats struct {
	Version        string
	BuildDate      string
	Firmware       version.Version
	Provider       version.Version
	ProviderTarget version.Version
	Keygen         uint8
	Hash           uint64
	Emulated       bool
	HeapSize       uint64
	BufferSize     int
	Elapsed        time.Duration
}

// Hash renders the upper 32 bits of the provider build hash as 8 lower case
// hex digits.
func Hash(h uint64) string {
	return fmt.Sprintf("%08x", uint32(h>>32))
}

// Duration renders d as whole milliseconds, e.g. "0.042s".
func Duration(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d.%03ds", ms/1000, ms%1000)
}

func boolInt(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Section returns the stats section.
func (s Stats) Section() Section {
	return Section{
		Name: StatsSection,
		Entries: []Entry{
			{"version", s.Version},
			{"build_date", s.BuildDate},
			{"fw_version", s.Firmware.String()},
			{"ams_version", s.Provider.String()},
			{"ams_target_version", s.ProviderTarget.String()},
			{"ams_keygen", strconv.Itoa(int(s.Keygen))},
			{"ams_hash", Hash(s.Hash)},
			{"is_emummc", boolInt(s.Emulated)},
			{"heap_size", strconv.FormatUint(s.HeapSize, 10)},
			{"buffer_size", strconv.Itoa(s.BufferSize)},
			{"patch_time", Duration(s.Elapsed)},
		},
	}
}

// WithStats appends the stats section.
func (r Report) WithStats(s Stats) Report {
	r.Sections = append(r.Sections[:len(r.Sections):len(r.Sections)], s.Section())
	return r
}

// Sink stores a report.
type Sink interface {
	// Reset drops everything previously stored.
	Reset()
	SetString(section, key, value string)
	Save() error
}

// Write replaces the contents of sink with rep.
func Write(sink Sink, rep Report) error {
	sink.Reset()
	for _, s := range rep.Sections {
		for _, e := range s.Entries {
			sink.SetString(s.Name, e.Key, e.Value)
		}
	}
	if err := sink.Save(); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}
