package patcher

import (
	"time"

	"github.com/blacktop/syspatch/pkg/pattern"
	"github.com/blacktop/syspatch/pkg/version"
)

// Result is the state of one pattern after a run.
type Result uint8

const (
	NotFound Result = iota
	Skipped
	Disabled
	PatchedFile
	PatchedSyspatch
	FailedWrite
)

func (r Result) String() string {
	switch r {
	case NotFound:
		return "not_found"
	case Skipped:
		return "skipped"
	case Disabled:
		return "disabled"
	case PatchedFile:
		return "patched_file"
	case PatchedSyspatch:
		return "patched_syspatch"
	case FailedWrite:
		return "failed_write"
	}
	return "unknown"
}

// Terminal reports whether a pattern in this state is no longer scanned.
func (r Result) Terminal() bool {
	return r != NotFound
}

// Rule decides whether an instruction is the one a pattern is after, what to
// write over it, and whether it already looks patched.
type Rule interface {
	// Condition is evaluated against the instruction word at the match.
	Condition(word uint32) bool
	// Patch returns the bytes written at the patch site.
	Patch(word uint32) pattern.Bytes
	// Applied reports whether site (memory from the patch site to the end of
	// the chunk) already holds the patched form.
	Applied(site []byte, word uint32) bool
}

// Spec is one named patch: a signature and the rule applied where it hits.
type Spec struct {
	Name        string
	Pattern     pattern.Pattern
	InstOffset  int // relative to the match start
	PatchOffset int // relative to the instruction
	Rule        Rule
	Enabled     bool
	Firmware    version.Range
	Provider    version.Range
}

// Target is one system process and the patches that apply to it.
type Target struct {
	Name      string
	ProgramID uint64
	Patterns  []Spec
	Firmware  version.Range
}

// Key identifies a pattern within a run.
type Key struct {
	Target  string
	Pattern string
}

func (k Key) String() string {
	return k.Target + "/" + k.Pattern
}

// Hit records a match that resolved a pattern.
type Hit struct {
	Key     Key
	Inst    uint64 // address of Word
	Address uint64 // patch site
	Word    uint32
	Written pattern.Bytes
	Result  Result
}

// Outcome is everything one Run produced.
type Outcome struct {
	Results map[Key]Result
	Hits    []Hit
	Elapsed time.Duration
}

func newOutcome() *Outcome {
	return &Outcome{Results: make(map[Key]Result)}
}

// Result returns the state recorded for a pattern, NotFound if none was.
func (o *Outcome) Result(target, name string) Result {
	return o.Results[Key{Target: target, Pattern: name}]
}

// Count returns how many patterns ended in state r.
func (o *Outcome) Count(r Result) int {
	var n int
	for _, v := range o.Results {
		if v == r {
			n++
		}
	}
	return n
}

// Perm is a memory permission bit set.
type Perm uint32

const (
	PermR Perm = 1 << iota
	PermW
	PermX
)

func (p Perm) String() string {
	b := []byte("---")
	if p&PermR != 0 {
		b[0] = 'r'
	}
	if p&PermW != 0 {
		b[1] = 'w'
	}
	if p&PermX != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// MemoryType is the kernel's region type; only the low byte is the kind.
type MemoryType uint32

// CodeStatic is the type of a process's loaded, non-writable code.
const CodeStatic MemoryType = 3

// MemoryInfo describes the region containing a queried address.
type MemoryInfo struct {
	Addr uint64
	Size uint64
	Perm Perm
	Type MemoryType
}

// ProcessDirectory enumerates live processes and opens debug handles to them.
type ProcessDirectory interface {
	Processes() ([]uint64, error)
	Attach(pid uint64) (Process, error)
}

// Process is an open debug handle. Close must be called on every handle
// returned by Attach.
type Process interface {
	ProgramID() (uint64, error)
	QueryMemory(addr uint64) (MemoryInfo, error)
	ReadMemory(dst []byte, addr uint64) error
	WriteMemory(addr uint64, src []byte) error
	Close() error
}
