package report

import (
	"strings"
	"testing"
	"time"

	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/version"
)

func TestDescribe(t *testing.T) {
	tests := map[patcher.Result]string{
		patcher.NotFound:        "Unpatched",
		patcher.Skipped:         "Skipped",
		patcher.Disabled:        "Disabled",
		patcher.PatchedFile:     "Patched (file)",
		patcher.PatchedSyspatch: "Patched (sys-patch)",
		patcher.FailedWrite:     "Failed (svcWriteDebugProcessMemory)",
	}
	for res, want := range tests {
		if got := Describe(res); got != want {
			t.Errorf("Describe(%v) = %q, want %q", res, got, want)
		}
	}
}

func fixture() ([]patcher.Target, *patcher.Outcome) {
	targets := []patcher.Target{
		{Name: "fs", Patterns: []patcher.Spec{{Name: "a"}, {Name: "b"}, {Name: "c"}}},
		{Name: "es", Patterns: []patcher.Spec{{Name: "d"}, {Name: "e"}}},
	}
	out := &patcher.Outcome{Results: map[patcher.Key]patcher.Result{
		{Target: "fs", Pattern: "a"}: patcher.PatchedSyspatch,
		{Target: "fs", Pattern: "b"}: patcher.Disabled,
		{Target: "fs", Pattern: "c"}: patcher.Skipped,
		{Target: "es", Pattern: "d"}: patcher.FailedWrite,
	}}
	return targets, out
}

func TestBuild(t *testing.T) {
	targets, out := fixture()

	rep := Build(targets, out, true)
	if len(rep.Sections) != 2 || rep.Sections[0].Name != "fs" || rep.Sections[1].Name != "es" {
		t.Fatalf("sections = %+v", rep.Sections)
	}
	want := map[string]string{
		"fs/a": "Patched (sys-patch)",
		"fs/b": "Disabled",
		"fs/c": "Skipped",
		"es/d": "Failed (svcWriteDebugProcessMemory)",
		"es/e": "Unpatched",
	}
	for _, s := range rep.Sections {
		for _, e := range s.Entries {
			if got := want[s.Name+"/"+e.Key]; got != e.Value {
				t.Errorf("%s/%s = %q, want %q", s.Name, e.Key, e.Value, got)
			}
		}
	}
}

func TestBuildPatchingDisabled(t *testing.T) {
	targets, out := fixture()

	rep := Build(targets, out, false)
	want := map[string]string{
		"fs/a": "Skipped",
		"fs/b": "Disabled",
		"fs/c": "Skipped",
		"es/d": "Skipped",
		"es/e": "Skipped",
	}
	for key, v := range want {
		sec, k, _ := strings.Cut(key, "/")
		if got, _ := rep.Get(sec, k); got != v {
			t.Errorf("%s = %q, want %q", key, got, v)
		}
	}
}

func TestStats(t *testing.T) {
	s := Stats{
		Version:        "1.5.0-deadbeef",
		BuildDate:      "17.10.2026 12:00:00",
		Firmware:       version.Make(18, 1, 0),
		Provider:       version.Make(1, 8, 0),
		ProviderTarget: version.Make(18, 1, 0),
		Keygen:         19,
		Hash:           0xAF66FF99_12345678,
		Emulated:       true,
		HeapSize:       0x1000,
		BufferSize:     0x1000,
		Elapsed:        42*time.Millisecond + 900*time.Microsecond,
	}
	rep := Report{}.WithStats(s)
	want := map[string]string{
		"fw_version":         "18.1.0",
		"ams_version":        "1.8.0",
		"ams_target_version": "18.1.0",
		"ams_keygen":         "19",
		"ams_hash":           "af66ff99",
		"is_emummc":          "1",
		"heap_size":          "4096",
		"buffer_size":        "4096",
		"patch_time":         "0.042s",
	}
	for k, v := range want {
		if got, ok := rep.Get(StatsSection, k); !ok || got != v {
			t.Errorf("stats/%s = %q, want %q", k, got, v)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.000s"},
		{7 * time.Millisecond, "0.007s"},
		{1500 * time.Millisecond, "1.500s"},
		{12*time.Second + 34*time.Millisecond, "12.034s"},
	}
	for _, tt := range tests {
		if got := Duration(tt.d); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

type memSink struct {
	data  map[string]map[string]string
	saves int
}

func (m *memSink) Reset() { m.data = make(map[string]map[string]string) }

func (m *memSink) SetString(section, key, value string) {
	if m.data == nil {
		m.data = make(map[string]map[string]string)
	}
	if m.data[section] == nil {
		m.data[section] = make(map[string]string)
	}
	m.data[section][key] = value
}

func (m *memSink) Save() error {
	m.saves++
	return nil
}

func TestWriteClearsPreviousRun(t *testing.T) {
	sink := &memSink{}
	targets, out := fixture()

	if err := Write(sink, Build(targets, out, true)); err != nil {
		t.Fatal(err)
	}
	second := []patcher.Target{{Name: "ldr", Patterns: []patcher.Spec{{Name: "noacidsigchk"}}}}
	if err := Write(sink, Build(second, &patcher.Outcome{}, true)); err != nil {
		t.Fatal(err)
	}

	if len(sink.data) != 1 {
		t.Fatalf("sink holds %d sections, want 1: %v", len(sink.data), sink.data)
	}
	if got := sink.data["ldr"]["noacidsigchk"]; got != "Unpatched" {
		t.Fatalf("ldr/noacidsigchk = %q", got)
	}
	if sink.saves != 2 {
		t.Fatalf("saved %d times", sink.saves)
	}
}
