package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/spf13/viper"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantBuf int
		wantErr string
	}{
		{
			name:    "defaults",
			wantBuf: patcher.DefaultBufferSize,
		},
		{
			name:    "buffer size",
			set:     map[string]any{"run.buffer_size": 0x4000},
			wantBuf: 0x4000,
		},
		{
			name:    "too large",
			set:     map[string]any{"run.buffer_size": 0x200000},
			wantErr: "out of range",
		},
		{
			name:    "unaligned",
			set:     map[string]any{"run.buffer_size": 0x1001},
			wantErr: "multiple of 4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			dir := t.TempDir()
			viper.Set("dir", dir)
			for k, v := range tt.set {
				viper.Set(k, v)
			}

			c, err := LoadConfig()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("LoadConfig() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if c.Run.BufferSize != tt.wantBuf {
				t.Errorf("BufferSize = %#x, want %#x", c.Run.BufferSize, tt.wantBuf)
			}
			if c.ConfigPath() != filepath.Join(dir, "config.ini") || c.LogPath() != filepath.Join(dir, "log.ini") {
				t.Errorf("unexpected paths %s %s", c.ConfigPath(), c.LogPath())
			}
		})
	}
}
