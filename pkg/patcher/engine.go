// Package patcher walks the code regions of system processes, finds patch
// signatures and rewrites the matched instructions in place.
package patcher

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/syspatch/pkg/version"
)

// DefaultBufferSize is the size of one memory read.
const DefaultBufferSize = 0x1000

// Option configures an Engine.
type Option func(*Engine)

// WithGate sets the platform versions rules are gated on.
func WithGate(g version.Gate) Option {
	return func(e *Engine) {
		e.gate = g
	}
}

// WithBufferSize overrides the read chunk size.
func WithBufferSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.bufSize = n
		}
	}
}

// WithLogger sets the logger the engine reports progress to.
func WithLogger(l log.Interface) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine applies patch targets to the processes of a ProcessDirectory.
type Engine struct {
	dir     ProcessDirectory
	gate    version.Gate
	bufSize int
	log     log.Interface
	buf     []byte
}

// New returns an Engine reading through dir.
func New(dir ProcessDirectory, opts ...Option) *Engine {
	e := &Engine{
		dir:     dir,
		bufSize: DefaultBufferSize,
		log:     log.Log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BufferSize returns the read chunk size in use.
func (e *Engine) BufferSize() int {
	return e.bufSize
}

// pending is a pattern still being searched for during a scan.
type pending struct {
	key  Key
	spec *Spec
}

// Run applies every target in order and returns what happened to each
// pattern. Failures are recorded in the outcome, never returned.
func (e *Engine) Run(targets []Target) *Outcome {
	start := time.Now()
	out := newOutcome()

	if len(e.buf) != e.bufSize {
		e.buf = make([]byte, e.bufSize)
	}

	for ti := range targets {
		e.runTarget(&targets[ti], out)
	}

	out.Elapsed = time.Since(start)
	return out
}

func (e *Engine) runTarget(t *Target, out *Outcome) {
	tlog := e.log.WithFields(log.Fields{
		"target":     t.Name,
		"program_id": programID(t.ProgramID),
	})

	targetAllowed := e.gate.Allows(t.Firmware, version.Range{})

	var work []pending
	for pi := range t.Patterns {
		p := &t.Patterns[pi]
		key := Key{Target: t.Name, Pattern: p.Name}
		switch {
		case !p.Enabled:
			out.Results[key] = Disabled
		case !targetAllowed, !e.gate.Allows(p.Firmware, p.Provider):
			out.Results[key] = Skipped
		default:
			out.Results[key] = NotFound
			work = append(work, pending{key: key, spec: p})
		}
	}

	if !targetAllowed {
		tlog.WithField("firmware", t.Firmware.String()).Debug("Skipping target outside firmware range")
		return
	}
	if len(work) == 0 {
		tlog.Debug("No patterns to apply")
		return
	}

	proc, err := e.find(t.ProgramID)
	if err != nil {
		tlog.WithError(err).Debug("Failed to list processes")
		return
	}
	if proc == nil {
		tlog.Debug("Process not running")
		return
	}
	defer func() {
		if err := proc.Close(); err != nil {
			tlog.WithError(err).Debug("Failed to close process handle")
		}
	}()

	e.scanProcess(proc, work, out, tlog)
}

// find attaches to the first process running programID. Handles to every
// other candidate are closed before returning.
func (e *Engine) find(pid uint64) (Process, error) {
	pids, err := e.dir.Processes()
	if err != nil {
		return nil, err
	}
	for _, id := range pids {
		proc, err := e.dir.Attach(id)
		if err != nil {
			e.log.WithField("pid", id).WithError(err).Debug("Failed to attach")
			continue
		}
		got, err := proc.ProgramID()
		if err == nil && got == pid {
			return proc, nil
		}
		if cerr := proc.Close(); cerr != nil {
			e.log.WithField("pid", id).WithError(cerr).Debug("Failed to close process handle")
		}
	}
	return nil, nil
}

func (e *Engine) scanProcess(proc Process, work []pending, out *Outcome, tlog log.Interface) {
	var addr uint64
	for {
		info, err := proc.QueryMemory(addr)
		if err != nil {
			tlog.WithError(err).Debug("Memory query failed")
			return
		}
		addr = info.Addr + info.Size
		// the last region wraps the address space
		if addr == 0 {
			return
		}
		if info.Size == 0 || info.Perm&(PermR|PermX) != PermR|PermX || info.Type&0xFF != CodeStatic {
			continue
		}

		for off := uint64(0); off < info.Size; off += uint64(e.bufSize) {
			n := min(uint64(e.bufSize), info.Size-off)
			chunk := e.buf[:n]
			base := info.Addr + off
			if err := proc.ReadMemory(chunk, base); err != nil {
				tlog.WithField("addr", hexAddr(base)).WithError(err).Warn("Failed to read memory")
				continue
			}
			if e.scanChunk(proc, chunk, base, work, out) {
				return
			}
		}
	}
}

// scanChunk applies each unresolved pattern to one chunk. It reports true once
// every pattern has been resolved.
func (e *Engine) scanChunk(proc Process, chunk []byte, base uint64, work []pending, out *Outcome) bool {
	done := true
	for _, w := range work {
		if out.Results[w.key].Terminal() {
			continue
		}
		if res, ok := e.apply(proc, chunk, base, w, out); ok {
			out.Results[w.key] = res
			continue
		}
		done = false
	}
	return done
}

func (e *Engine) apply(proc Process, chunk []byte, base uint64, w pending, out *Outcome) (Result, bool) {
	p := w.spec
	for match := range p.Pattern.All(chunk) {
		inst := match + p.InstOffset
		if inst < 0 || inst+4 > len(chunk) {
			continue
		}
		word := binary.LittleEndian.Uint32(chunk[inst:])
		instAt := base + uint64(int64(inst))

		site := inst + p.PatchOffset
		if p.Rule.Condition(word) {
			patch := p.Rule.Patch(word)
			at := base + uint64(int64(site))
			res := PatchedSyspatch
			plog := e.log.WithFields(log.Fields{
				"pattern": w.key.String(),
				"addr":    hexAddr(at),
			})
			if err := proc.WriteMemory(at, patch); err != nil {
				plog.WithError(err).Error("Failed to write patch")
				res = FailedWrite
			} else {
				plog.Debug("Patched")
			}
			out.Hits = append(out.Hits, Hit{Key: w.key, Inst: instAt, Address: at, Word: word, Written: patch, Result: res})
			return res, true
		}

		var existing []byte
		if site >= 0 && site <= len(chunk) {
			existing = chunk[site:]
		}
		if p.Rule.Applied(existing, word) {
			at := base + uint64(int64(site))
			e.log.WithFields(log.Fields{
				"pattern": w.key.String(),
				"addr":    hexAddr(at),
			}).Debug("Already patched")
			out.Hits = append(out.Hits, Hit{Key: w.key, Inst: instAt, Address: at, Word: word, Result: PatchedFile})
			return PatchedFile, true
		}
	}
	return NotFound, false
}

type hexAddr uint64

func (a hexAddr) String() string { return fmt.Sprintf("%#x", uint64(a)) }

type programID uint64

func (p programID) String() string { return fmt.Sprintf("%016x", uint64(p)) }
