// Package snapshot serves process memory from code segments dumped to disk.
//
// A manifest describes the platform and every process:
//
//	firmware: 18.1.0
//	provider: 1.8.0
//	provider_target: 18.1.0
//	keygen: 19
//	hash: 0xaf66ff9912345678
//	processes:
//	  - pid: 0x50
//	    program_id: 0x0100000000000000
//	    regions:
//	      - address: 0x7100004000
//	        perm: r-x
//	        file: fs/text.bin
//
// Region files are loaded into memory; writes go to the in-memory copy and are
// only persisted by Save.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/blacktop/syspatch/pkg/platform"
	"github.com/blacktop/syspatch/pkg/version"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoProcess = errors.New("snapshot: no such process")
	ErrUnmapped  = errors.New("snapshot: address not mapped")
	ErrReadOnly  = errors.New("snapshot: region is read only")
)

// Manifest is the YAML description of a snapshot.
type Manifest struct {
	Firmware       string            `yaml:"firmware"`
	Provider       string            `yaml:"provider"`
	ProviderTarget string            `yaml:"provider_target,omitempty"`
	Keygen         uint8             `yaml:"keygen,omitempty"`
	Hash           uint64            `yaml:"hash,omitempty"`
	Emummc         EmummcManifest    `yaml:"emummc,omitempty"`
	Processes      []ProcessManifest `yaml:"processes"`
}

type EmummcManifest struct {
	File     string `yaml:"file,omitempty"`
	Nintendo string `yaml:"nintendo,omitempty"`
}

type ProcessManifest struct {
	PID       uint64           `yaml:"pid"`
	ProgramID uint64           `yaml:"program_id"`
	Regions   []RegionManifest `yaml:"regions"`
}

type RegionManifest struct {
	Address  uint64  `yaml:"address"`
	Perm     string  `yaml:"perm"`
	Type     *uint32 `yaml:"type,omitempty"` // defaults to code static
	File     string  `yaml:"file"`
	ReadOnly bool    `yaml:"read_only,omitempty"` // writes to the region fail
}

// Region is one loaded memory region.
type Region struct {
	Info     patcher.MemoryInfo
	File     string
	Data     []byte
	ReadOnly bool
	Dirty    bool
}

type proc struct {
	pid       uint64
	programID uint64
	regions   []*Region // sorted by address
	open      int
}

// System is a loaded snapshot. It implements patcher.ProcessDirectory and
// platform.Query.
type System struct {
	manifest Manifest
	dir      string
	procs    map[uint64]*proc
	pids     []uint64
}

// ParsePerm reads "r-x", "rx" or "rwx" style permissions.
func ParsePerm(s string) (patcher.Perm, error) {
	var p patcher.Perm
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			p |= patcher.PermR
		case 'w':
			p |= patcher.PermW
		case 'x':
			p |= patcher.PermX
		case '-':
		default:
			return 0, fmt.Errorf("invalid permission %q", s)
		}
	}
	return p, nil
}

// Load reads the manifest at path and every region file it names. Region
// files are resolved relative to the manifest.
func Load(ctx context.Context, path string) (*System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return New(ctx, m, filepath.Dir(path))
}

// New loads the region files of m, resolving them against dir.
func New(ctx context.Context, m Manifest, dir string) (*System, error) {
	sys := &System{
		manifest: m,
		dir:      dir,
		procs:    make(map[uint64]*proc),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	fail := func(err error) (*System, error) {
		_ = g.Wait()
		return nil, err
	}

	for _, pm := range m.Processes {
		if _, dup := sys.procs[pm.PID]; dup {
			return fail(fmt.Errorf("duplicate pid %#x", pm.PID))
		}
		p := &proc{pid: pm.PID, programID: pm.ProgramID}
		for _, rm := range pm.Regions {
			perm, err := ParsePerm(rm.Perm)
			if err != nil {
				return fail(fmt.Errorf("pid %#x region %#x: %w", pm.PID, rm.Address, err))
			}
			typ := patcher.CodeStatic
			if rm.Type != nil {
				typ = patcher.MemoryType(*rm.Type)
			}
			r := &Region{
				Info:     patcher.MemoryInfo{Addr: rm.Address, Perm: perm, Type: typ},
				File:     sys.resolve(rm.File),
				ReadOnly: rm.ReadOnly,
			}
			p.regions = append(p.regions, r)

			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				data, err := os.ReadFile(r.File)
				if err != nil {
					return fmt.Errorf("failed to load region %#x: %w", r.Info.Addr, err)
				}
				r.Data = data
				r.Info.Size = uint64(len(data))
				return nil
			})
		}
		sys.procs[pm.PID] = p
		sys.pids = append(sys.pids, pm.PID)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range sys.procs {
		slices.SortFunc(p.regions, func(a, b *Region) int {
			switch {
			case a.Info.Addr < b.Info.Addr:
				return -1
			case a.Info.Addr > b.Info.Addr:
				return 1
			}
			return 0
		})
		for i := 1; i < len(p.regions); i++ {
			prev := p.regions[i-1].Info
			if prev.Addr+prev.Size > p.regions[i].Info.Addr {
				return nil, fmt.Errorf("pid %#x: region %#x overlaps %#x", p.pid, p.regions[i].Info.Addr, prev.Addr)
			}
		}
	}

	return sys, nil
}

func (s *System) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(s.dir, file)
}

// Processes implements patcher.ProcessDirectory.
func (s *System) Processes() ([]uint64, error) {
	return slices.Clone(s.pids), nil
}

// Attach implements patcher.ProcessDirectory.
func (s *System) Attach(pid uint64) (patcher.Process, error) {
	p, ok := s.procs[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrNoProcess, pid)
	}
	p.open++
	return &handle{p: p}, nil
}

// OpenHandles returns the number of handles not yet closed.
func (s *System) OpenHandles() int {
	var n int
	for _, p := range s.procs {
		n += p.open
	}
	return n
}

// Dirty returns every region that was written to.
func (s *System) Dirty() []*Region {
	var out []*Region
	for _, pid := range s.pids {
		for _, r := range s.procs[pid].regions {
			if r.Dirty {
				out = append(out, r)
			}
		}
	}
	return out
}

// Save writes every dirty region back to its file.
func (s *System) Save() error {
	for _, r := range s.Dirty() {
		if err := os.WriteFile(r.File, r.Data, 0o644); err != nil {
			return fmt.Errorf("failed to save region %#x: %w", r.Info.Addr, err)
		}
		r.Dirty = false
	}
	return nil
}

// FirmwareVersion implements platform.Query.
func (s *System) FirmwareVersion() (version.Version, error) {
	return version.Parse(s.manifest.Firmware)
}

// ProviderConfig implements platform.Query.
func (s *System) ProviderConfig(item platform.ConfigItem) (uint64, error) {
	switch item {
	case platform.ExosphereAPIVersion:
		provider, err := version.Parse(s.manifest.Provider)
		if err != nil {
			return 0, err
		}
		var target version.Version
		if s.manifest.ProviderTarget != "" {
			if target, err = version.Parse(s.manifest.ProviderTarget); err != nil {
				return 0, err
			}
		}
		return uint64(provider)<<40 | uint64(s.manifest.Keygen)<<32 | uint64(target), nil
	case platform.ExosphereGitCommitHash:
		return s.manifest.Hash, nil
	}
	return 0, fmt.Errorf("unsupported config item %d", item)
}

// EmummcConfig implements platform.Query.
func (s *System) EmummcConfig() (platform.EmummcPaths, error) {
	return platform.EmummcPaths{
		File:     s.manifest.Emummc.File,
		Nintendo: s.manifest.Emummc.Nintendo,
	}, nil
}

type handle struct {
	p      *proc
	closed bool
}

func (h *handle) ProgramID() (uint64, error) {
	return h.p.programID, nil
}

func (h *handle) QueryMemory(addr uint64) (patcher.MemoryInfo, error) {
	for _, r := range h.p.regions {
		if addr < r.Info.Addr {
			return patcher.MemoryInfo{Addr: addr, Size: r.Info.Addr - addr}, nil
		}
		if addr < r.Info.Addr+r.Info.Size {
			return r.Info, nil
		}
	}
	// unmapped space up to the top of the address space
	return patcher.MemoryInfo{Addr: addr, Size: -addr}, nil
}

func (h *handle) region(addr uint64, n int) (*Region, uint64, error) {
	for _, r := range h.p.regions {
		if addr >= r.Info.Addr && addr-r.Info.Addr+uint64(n) <= r.Info.Size {
			return r, addr - r.Info.Addr, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %#x+%#x", ErrUnmapped, addr, n)
}

func (h *handle) ReadMemory(dst []byte, addr uint64) error {
	r, off, err := h.region(addr, len(dst))
	if err != nil {
		return err
	}
	copy(dst, r.Data[off:])
	return nil
}

func (h *handle) WriteMemory(addr uint64, src []byte) error {
	r, off, err := h.region(addr, len(src))
	if err != nil {
		return err
	}
	if r.ReadOnly {
		return fmt.Errorf("%w: %#x", ErrReadOnly, r.Info.Addr)
	}
	copy(r.Data[off:], src)
	r.Dirty = true
	return nil
}

func (h *handle) Close() error {
	if h.closed {
		return errors.New("snapshot: handle already closed")
	}
	h.closed = true
	h.p.open--
	return nil
}
