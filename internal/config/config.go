// Package config is used to load the configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blacktop/syspatch/pkg/patcher"
	"github.com/spf13/viper"
)

const maxBufferSize = 0x100000

type run struct {
	Manifest   string `json:"manifest" mapstructure:"manifest"`
	BufferSize int    `json:"buffer_size" mapstructure:"buffer_size"`
	Yes        bool   `json:"yes" mapstructure:"yes"`
	DryRun     bool   `json:"dry_run" mapstructure:"dry_run"`
}

// Config is the configuration struct
type Config struct {
	// Dir holds config.ini and log.ini
	Dir string `json:"dir" mapstructure:"dir"`
	Run run    `json:"run" mapstructure:"run"`
}

// ConfigPath returns the path of the device-side options file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, "config.ini")
}

// LogPath returns the path of the run report.
func (c *Config) LogPath() string {
	return filepath.Join(c.Dir, "log.ini")
}

func (c *Config) verify() error {
	if c.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: failed to get user home directory: %v", err)
		}
		c.Dir = filepath.Join(home, ".config", "syspatch", "sys-patch")
	}
	switch {
	case c.Run.BufferSize == 0:
		c.Run.BufferSize = patcher.DefaultBufferSize
	case c.Run.BufferSize < 0 || c.Run.BufferSize > maxBufferSize:
		return fmt.Errorf("config: buffer size %#x out of range (max %#x)", c.Run.BufferSize, maxBufferSize)
	case c.Run.BufferSize%4 != 0:
		return fmt.Errorf("config: buffer size %#x must be a multiple of 4", c.Run.BufferSize)
	}
	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	var c *Config

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
