package rules

import (
	"bytes"
	"testing"

	"github.com/blacktop/syspatch/pkg/arm64"
	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/pattern"
	"github.com/blacktop/syspatch/pkg/version"
)

func le(word uint32) []byte {
	return pattern.FromUint32(word)
}

func TestRules(t *testing.T) {
	tests := []struct {
		name    string
		rule    patcher.Rule
		word    uint32
		cond    bool
		patch   []byte
		patched uint32 // word at the site once patched
	}{
		{name: "ret0 bl", rule: ReturnZero{}, word: 0x9400002A, cond: true, patch: []byte{0xE0, 0x03, 0x1F, 0x2A}, patched: arm64.MovW0WZR},
		{name: "ret0 not bl", rule: ReturnZero{}, word: 0xD503201F, patched: arm64.MovW0WZR},
		{name: "tbz", rule: TBZNop{}, word: 0x36000040, cond: true, patch: []byte{0x1F, 0x20, 0x03, 0xD5}, patched: arm64.NOP},
		{name: "bne", rule: BranchNop{}, word: 0x54000041, cond: true, patch: []byte{0x1F, 0x20, 0x03, 0xD5}, patched: arm64.NOP},
		{name: "movz", rule: MovNop{}, word: 0x52800020, cond: true, patch: []byte{0x1F, 0x20, 0x03, 0xD5}, patched: arm64.NOP},
		{name: "cbz", rule: CBZBranch{}, word: 0x34000040, cond: true, patch: []byte{0x02, 0x00, 0x00, 0x14}, patched: 0x14000002},
		{name: "cbz backward", rule: CBZBranch{}, word: 0x34FFFFC0, cond: true, patch: []byte{0xFE, 0xFF, 0xFF, 0x17}, patched: 0x17FFFFFE},
		{name: "mov2 legacy", rule: ResultZero{Legacy: true}, word: 0x92407E60, cond: true, patch: []byte{0xE0, 0x03, 0x1F, 0xAA}, patched: arm64.MovX0XZR},
		{name: "mov2 legacy rejects orr", rule: ResultZero{Legacy: true}, word: 0x2A1303E0, patched: arm64.MovX0XZR},
		{name: "mov2", rule: ResultZero{}, word: 0x2A1303E0, cond: true, patch: []byte{0xE0, 0x03, 0x1F, 0xAA}, patched: arm64.MovX0XZR},
		{name: "subs imm", rule: SubsFlip{}, word: 0x7100291F, cond: true, patch: []byte{0x01}, patched: 0x7100041F},
		{name: "subs reg", rule: SubsFlip{}, word: 0x6B01001F, cond: true, patch: []byte{0x00}, patched: 0x6B00001F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Condition(tt.word); got != tt.cond {
				t.Fatalf("Condition(%#08x) = %t, want %t", tt.word, got, tt.cond)
			}
			if !tt.cond {
				return
			}
			if got := tt.rule.Patch(tt.word); !bytes.Equal(got, tt.patch) {
				t.Fatalf("Patch(%#08x) = %x, want %x", tt.word, []byte(got), tt.patch)
			}
			if tt.rule.Applied(le(tt.word), tt.word) {
				t.Fatal("unpatched site reported as applied")
			}
			if !tt.rule.Applied(le(tt.patched), tt.patched) {
				t.Fatalf("patched site %#08x not reported as applied", tt.patched)
			}
		})
	}
}

func TestPayload(t *testing.T) {
	p := Payload{Bytes: ctestPayload}
	// stp x20, x19, [sp, #-0x20]!
	if !p.Condition(0xA9BE4FF4) {
		t.Fatal("prologue not matched")
	}
	if p.Condition(arm64.NOP) {
		t.Fatal("nop matched as prologue")
	}
	if got := p.Patch(0xA9BE4FF4); len(got) != 20 {
		t.Fatalf("payload is %d bytes, want 20", len(got))
	}
	site := append(bytes.Clone(ctestPayload), 0xFF, 0xFF)
	if !p.Applied(site, 0xD29A3000) {
		t.Fatal("payload site not reported as applied")
	}
	if p.Applied(site[:10], 0xD29A3000) {
		t.Fatal("truncated site reported as applied")
	}
}

func TestTargets(t *testing.T) {
	for _, fw := range []string{"1.0.0", "9.2.0", "13.2.1", "14.1.2", "15.0.0", "18.1.0"} {
		targets := Targets(version.MustParse(fw))
		if err := Validate(targets); err != nil {
			t.Fatalf("Targets(%s): %v", fw, err)
		}
	}

	targets := Targets(version.Make(16, 0, 0))
	names := make([]string, 0, len(targets))
	for _, tgt := range targets {
		names = append(names, tgt.Name)
	}
	if got := len(names); got != 4 || names[0] != "fs" || names[1] != "ldr" || names[2] != "es" || names[3] != "nifm" {
		t.Fatalf("targets = %v", names)
	}
	if targets[3].Patterns[0].Enabled {
		t.Fatal("ctest must be disabled by default")
	}
	if targets[1].ProgramID != LDR || !targets[1].Firmware.Contains(version.Make(10, 0, 0)) || targets[1].Firmware.Contains(version.Make(9, 2, 0)) {
		t.Fatalf("ldr target = %+v", targets[1])
	}
}

func TestTargetsAreFresh(t *testing.T) {
	a := Targets(version.Make(16, 0, 0))
	a[0].Patterns[0].Enabled = false
	b := Targets(version.Make(16, 0, 0))
	if !b[0].Patterns[0].Enabled {
		t.Fatal("mutating one table leaked into the next")
	}
}

func TestResultZeroFollowsFirmware(t *testing.T) {
	find := func(fw version.Version) ResultZero {
		for _, tgt := range Targets(fw) {
			for _, p := range tgt.Patterns {
				if p.Name == "es6" {
					return p.Rule.(ResultZero)
				}
			}
		}
		t.Fatal("es6 not found")
		return ResultZero{}
	}
	if !find(version.Make(14, 1, 2)).Legacy {
		t.Error("14.1.2 must use the legacy shape")
	}
	if find(version.Make(15, 0, 0)).Legacy {
		t.Error("15.0.0 must use the register mov shape")
	}
}

func TestValidateRejects(t *testing.T) {
	p := patcher.Spec{Name: "a", Pattern: pattern.MustParse("AA"), Rule: TBZNop{}, Enabled: true}
	tests := []struct {
		name    string
		targets []patcher.Target
	}{
		{"unnamed target", []patcher.Target{{Patterns: []patcher.Spec{p}}}},
		{"duplicate target", []patcher.Target{{Name: "fs"}, {Name: "fs"}}},
		{"duplicate pattern", []patcher.Target{{Name: "fs", Patterns: []patcher.Spec{p, p}}}},
		{"no rule", []patcher.Target{{Name: "fs", Patterns: []patcher.Spec{{Name: "a", Pattern: p.Pattern}}}}},
		{"empty pattern", []patcher.Target{{Name: "fs", Patterns: []patcher.Spec{{Name: "a", Rule: TBZNop{}}}}}},
		{"far offset", []patcher.Target{{Name: "fs", Patterns: []patcher.Spec{{Name: "a", Pattern: p.Pattern, Rule: TBZNop{}, InstOffset: -0x100}}}}},
		{"offset past window", []patcher.Target{{Name: "fs", Patterns: []patcher.Spec{{Name: "a", Pattern: p.Pattern, Rule: TBZNop{}, InstOffset: MaxInstOffset + 4}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.targets); err == nil {
				t.Fatal("Validate returned nil")
			}
		})
	}
}

func TestValidateOffsetBound(t *testing.T) {
	p := patcher.Spec{Name: "a", Pattern: pattern.MustParse("AA"), Rule: TBZNop{}, Enabled: true}
	for _, off := range []int{-MaxInstOffset, MaxInstOffset} {
		p.InstOffset = off
		if err := Validate([]patcher.Target{{Name: "fs", Patterns: []patcher.Spec{p}}}); err != nil {
			t.Errorf("Validate(offset %d) = %v", off, err)
		}
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		rule patcher.Rule
		want string
	}{
		{ReturnZero{}, "ret0"},
		{TBZNop{}, "tbz->nop"},
		{ResultZero{Legacy: true}, "and->mov x0"},
		{ResultZero{}, "orr->mov x0"},
		{Payload{Bytes: ctestPayload}, "payload"},
		{nil, "-"},
	}
	for _, tt := range tests {
		if got := Name(tt.rule); got != tt.want {
			t.Errorf("Name(%T) = %q, want %q", tt.rule, got, tt.want)
		}
	}
}
