package rules

import (
	"fmt"

	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/pattern"
	"github.com/blacktop/syspatch/pkg/version"
)

// MaxInstOffset bounds, in bytes, how far from the match start an instruction
// offset may point: the longest signature plus eight instructions.
const MaxInstOffset = pattern.MaxNibbles/2 + 32

// Program IDs of the patched system titles.
const (
	FS   uint64 = 0x0100000000000000
	LDR  uint64 = 0x0100000000000001
	NIFM uint64 = 0x010000000000000F
	ES   uint64 = 0x0100000000000033
)

var (
	v2_0_0  = version.Make(2, 0, 0)
	v9_2_0  = version.Make(9, 2, 0)
	v10_0_0 = version.Make(10, 0, 0)
	v10_2_0 = version.Make(10, 2, 0)
	v11_0_0 = version.Make(11, 0, 0)
	v13_2_1 = version.Make(13, 2, 1)
	v14_0_0 = version.Make(14, 0, 0)
	v14_2_1 = version.Make(14, 2, 1)
	v15_0_0 = version.Make(15, 0, 0)
	v17_0_0 = version.Make(17, 0, 0)
)

// connection test stub: svc 0xB (SleepThread) for a short while, then return 0
var ctestPayload = pattern.MustBytes("0x00309AD2001EA1F2610100D4E0031FAAC0035FD6")

func spec(name, pat string, inst, patch int, rule patcher.Rule, fw version.Range) patcher.Spec {
	return patcher.Spec{
		Name:        name,
		Pattern:     pattern.MustParse(pat),
		InstOffset:  inst,
		PatchOffset: patch,
		Rule:        rule,
		Enabled:     true,
		Firmware:    fw,
	}
}

// Targets returns a fresh copy of every patch target. fw selects between
// instruction shapes that changed across firmware releases.
func Targets(fw version.Version) []patcher.Target {
	ctest := spec("ctest", "0x........................F40300AA........F30314AAE00314AA", 0, 0, Payload{Bytes: ctestPayload}, version.Range{})
	ctest.Enabled = false

	return []patcher.Target{
		{
			Name:      "fs",
			ProgramID: FS,
			Patterns: []patcher.Spec{
				spec("noacidsigchk1", "0xC8FE4739", -24, 0, ReturnZero{}, version.Until(v9_2_0)),
				spec("noacidsigchk2", "0x0210911F000072", -5, 0, ReturnZero{}, version.Until(v9_2_0)),
				spec("noncasigchk_old", "0x1E42B9", -5, 0, TBZNop{}, version.Between(v10_0_0, v14_2_1)),
				spec("noncasigchk_new", "0x3E4479", -5, 0, TBZNop{}, version.From(v15_0_0)),
				spec("noncasigchk_new2", "0x......94....0036....8052", 4, 0, TBZNop{}, version.From(v17_0_0)),
				spec("nocntchk_old", "0x081C00121F05007181000054", -4, 0, ReturnZero{}, version.Between(v10_0_0, v14_2_1)),
				spec("nocntchk_new", "0x081C00121F05007141010054", -4, 0, ReturnZero{}, version.From(v15_0_0)),
			},
		},
		{
			Name:      "ldr",
			ProgramID: LDR,
			Firmware:  version.From(v10_0_0),
			Patterns: []patcher.Spec{
				spec("noacidsigchk", "0xFD7BC6A8C0035FD6", 16, 2, SubsFlip{}, version.Range{}),
			},
		},
		{
			Name:      "es",
			ProgramID: ES,
			Firmware:  version.From(v2_0_0),
			Patterns: []patcher.Spec{
				spec("es1", "0x1F90013128928052", -4, 0, CBZBranch{}, version.Until(v13_2_1)),
				spec("es2", "0xC07240F9E1930091", -4, 0, TBZNop{}, version.Until(v10_2_0)),
				spec("es3", "0xF3031FAA02000014", -4, 0, BranchNop{}, version.Until(v10_2_0)),
				spec("es4", "0xC0FDFF35A8C35838", -4, 0, MovNop{}, version.Between(v11_0_0, v13_2_1)),
				spec("es5", "0xE023009145EEFF97", -4, 0, CBZBranch{}, version.Between(v11_0_0, v13_2_1)),
				spec("es6", "0x..6300......0094A0....D1....FF97", 16, 0, ResultZero{Legacy: fw < v15_0_0}, version.From(v14_0_0)),
				spec("es7", "0x......97A0....D1......94", 12, 0, ResultZero{}, version.From(v17_0_0)),
			},
		},
		{
			Name:      "nifm",
			ProgramID: NIFM,
			Patterns:  []patcher.Spec{ctest},
		},
	}
}

// Validate checks that a table can be applied: names are unique per target,
// every spec has a rule and a pattern, and instruction offsets stay close to
// the match.
func Validate(targets []patcher.Target) error {
	seen := make(map[string]bool)
	for _, t := range targets {
		if t.Name == "" {
			return fmt.Errorf("target %#x has no name", t.ProgramID)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		seen[t.Name] = true

		names := make(map[string]bool)
		for _, p := range t.Patterns {
			switch {
			case p.Name == "":
				return fmt.Errorf("%s: pattern without a name", t.Name)
			case names[p.Name]:
				return fmt.Errorf("%s: duplicate pattern %q", t.Name, p.Name)
			case p.Rule == nil:
				return fmt.Errorf("%s/%s: no rule", t.Name, p.Name)
			case p.Pattern.Len() == 0:
				return fmt.Errorf("%s/%s: empty pattern", t.Name, p.Name)
			case abs(p.InstOffset) > MaxInstOffset:
				return fmt.Errorf("%s/%s: instruction offset %d out of range", t.Name, p.Name, p.InstOffset)
			}
			names[p.Name] = true
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Name returns the short name of a rule used in listings.
func Name(r patcher.Rule) string {
	switch r := r.(type) {
	case ReturnZero:
		return "ret0"
	case TBZNop:
		return "tbz->nop"
	case BranchNop:
		return "b.ne->nop"
	case MovNop:
		return "mov->nop"
	case CBZBranch:
		return "cbz->b"
	case ResultZero:
		if r.Legacy {
			return "and->mov x0"
		}
		return "orr->mov x0"
	case SubsFlip:
		return "subs"
	case Payload:
		return "payload"
	case nil:
		return "-"
	}
	return fmt.Sprintf("%T", r)
}
