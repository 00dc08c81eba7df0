package platform

import (
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/blacktop/syspatch/pkg/version"
	"github.com/stretchr/testify/require"
)

var quiet = &log.Logger{Handler: discard.Default, Level: log.InfoLevel}

type fakeQuery struct {
	fw         version.Version
	items      map[ConfigItem]uint64
	paths      EmummcPaths
	failFW     bool
	failEmummc bool
}

func (q fakeQuery) FirmwareVersion() (version.Version, error) {
	if q.failFW {
		return 0, errors.New("setsys unavailable")
	}
	return q.fw, nil
}

func (q fakeQuery) ProviderConfig(item ConfigItem) (uint64, error) {
	v, ok := q.items[item]
	if !ok {
		return 0, errors.New("unknown config item")
	}
	return v, nil
}

func (q fakeQuery) EmummcConfig() (EmummcPaths, error) {
	if q.failEmummc {
		return EmummcPaths{}, errors.New("emummc unavailable")
	}
	return q.paths, nil
}

// 1.8.0, keygen 19, target 18.1.0
const apiVersion uint64 = 0x010800_13_00_120100

func TestDecodeProviderConfig(t *testing.T) {
	provider, keygen, target := DecodeProviderConfig(apiVersion)
	require.Equal(t, version.Make(1, 8, 0), provider)
	require.Equal(t, uint8(19), keygen)
	require.Equal(t, version.Make(18, 1, 0), target)
}

func TestIdentify(t *testing.T) {
	q := fakeQuery{
		fw: version.Make(18, 1, 0),
		items: map[ConfigItem]uint64{
			ExosphereAPIVersion:    apiVersion,
			ExosphereGitCommitHash: 0xAF66FF9912345678,
		},
	}

	id, err := Identify(q, quiet)
	require.NoError(t, err)
	require.Equal(t, Identity{
		Firmware:       version.Make(18, 1, 0),
		Provider:       version.Make(1, 8, 0),
		ProviderTarget: version.Make(18, 1, 0),
		Keygen:         19,
		Hash:           0xAF66FF9912345678,
	}, id)

	q.paths = EmummcPaths{Nintendo: "emuMMC/SD00/Nintendo"}
	id, err = Identify(q, quiet)
	require.NoError(t, err)
	require.True(t, id.Emulated)

	gate := id.Gate(true)
	require.True(t, gate.Enabled)
	require.Equal(t, id.Firmware, gate.Firmware)
	require.Equal(t, id.Provider, gate.Provider)
}

func TestIdentifyErrors(t *testing.T) {
	_, err := Identify(fakeQuery{failFW: true}, quiet)
	require.ErrorContains(t, err, "firmware")

	// provider queries failing leave zero values behind
	id, err := Identify(fakeQuery{fw: version.Make(18, 1, 0)}, quiet)
	require.NoError(t, err)
	require.Equal(t, Identity{Firmware: version.Make(18, 1, 0)}, id)

	id, err = Identify(fakeQuery{
		fw:         version.Make(18, 1, 0),
		items:      map[ConfigItem]uint64{ExosphereAPIVersion: apiVersion},
		paths:      EmummcPaths{Nintendo: "emuMMC/SD00/Nintendo"},
		failEmummc: true,
	}, quiet)
	require.NoError(t, err)
	require.Equal(t, version.Make(1, 8, 0), id.Provider)
	require.Zero(t, id.Hash)
	require.False(t, id.Emulated)
}

func TestOverrides(t *testing.T) {
	o, err := LoadOverrides(map[string]string{
		"SYSPATCH_FIRMWARE": "14.1.2",
		"SYSPATCH_EMUMMC":   "true",
	})
	require.NoError(t, err)

	id, err := o.Apply(Identity{Firmware: version.Make(18, 1, 0), Provider: version.Make(1, 8, 0)})
	require.NoError(t, err)
	require.Equal(t, version.Make(14, 1, 2), id.Firmware)
	require.Equal(t, version.Make(1, 8, 0), id.Provider)
	require.True(t, id.Emulated)

	o, err = LoadOverrides(map[string]string{})
	require.NoError(t, err)
	require.Nil(t, o.Emummc)

	_, err = Overrides{Provider: "one.two"}.Apply(Identity{})
	require.Error(t, err)
}
