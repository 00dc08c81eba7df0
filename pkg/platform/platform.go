// Package platform reads the firmware and patch provider versions the patch
// rules are gated on.
package platform

import (
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/syspatch/pkg/version"
	"github.com/caarlos0/env/v8"
)

// ConfigItem is a provider specific system configuration item.
type ConfigItem uint32

const (
	// ExosphereAPIVersion packs the provider version, keygen and target firmware.
	ExosphereAPIVersion ConfigItem = 65000
	// ExosphereGitCommitHash is the provider build hash.
	ExosphereGitCommitHash ConfigItem = 65003
)

// EmummcPaths are the two storage paths reported for emulated storage. Both
// empty means the system runs from internal storage.
type EmummcPaths struct {
	File     string
	Nintendo string
}

// Query is the privileged interface platform values are read from.
type Query interface {
	FirmwareVersion() (version.Version, error)
	ProviderConfig(item ConfigItem) (uint64, error)
	EmummcConfig() (EmummcPaths, error)
}

// Identity is established once at startup and never changes during a run.
type Identity struct {
	Firmware       version.Version
	Provider       version.Version
	ProviderTarget version.Version
	Keygen         uint8
	Hash           uint64
	Emulated       bool
}

// Gate returns the version gate for this identity.
func (id Identity) Gate(enabled bool) version.Gate {
	return version.Gate{
		Enabled:  enabled,
		Firmware: id.Firmware,
		Provider: id.Provider,
	}
}

// DecodeProviderConfig splits the ExosphereAPIVersion item into the provider
// version, its key generation and the lowest firmware it targets.
func DecodeProviderConfig(v uint64) (provider version.Version, keygen uint8, target version.Version) {
	provider = version.Version((v >> 40) & 0xFFFFFF)
	keygen = uint8((v >> 32) & 0xFF)
	target = version.Version(v & 0xFFFFFF)
	return
}

// Identify reads every platform value from q. Only a failed firmware query is
// an error; the provider and emummc values stay zero when their query fails
// and the failure is logged to logger (log.Log when nil).
func Identify(q Query, logger log.Interface) (Identity, error) {
	if logger == nil {
		logger = log.Log
	}
	var id Identity

	fw, err := q.FirmwareVersion()
	if err != nil {
		return id, fmt.Errorf("failed to get firmware version: %w", err)
	}
	id.Firmware = fw

	if api, err := q.ProviderConfig(ExosphereAPIVersion); err != nil {
		logger.WithError(err).Warn("Failed to get provider version")
	} else {
		id.Provider, id.Keygen, id.ProviderTarget = DecodeProviderConfig(api)
	}

	if hash, err := q.ProviderConfig(ExosphereGitCommitHash); err != nil {
		logger.WithError(err).Warn("Failed to get provider hash")
	} else {
		id.Hash = hash
	}

	if paths, err := q.EmummcConfig(); err != nil {
		logger.WithError(err).Warn("Failed to get emummc config")
	} else {
		id.Emulated = paths.File != "" || paths.Nintendo != ""
	}

	return id, nil
}

// Overrides replace identity values from SYSPATCH_* environment variables.
type Overrides struct {
	Firmware string `env:"FIRMWARE"`
	Provider string `env:"PROVIDER"`
	Emummc   *bool  `env:"EMUMMC"`
}

// LoadOverrides reads overrides from the process environment, or from environ
// when it is non-nil.
func LoadOverrides(environ map[string]string) (Overrides, error) {
	var o Overrides
	opts := env.Options{Prefix: "SYSPATCH_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return o, fmt.Errorf("failed to parse environment: %w", err)
	}
	return o, nil
}

// Apply returns id with every set override applied.
func (o Overrides) Apply(id Identity) (Identity, error) {
	if o.Firmware != "" {
		v, err := version.Parse(o.Firmware)
		if err != nil {
			return id, err
		}
		id.Firmware = v
	}
	if o.Provider != "" {
		v, err := version.Parse(o.Provider)
		if err != nil {
			return id, err
		}
		id.Provider = v
	}
	if o.Emummc != nil {
		id.Emulated = *o.Emummc
	}
	return id, nil
}
