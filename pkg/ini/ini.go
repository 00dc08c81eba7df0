// Package ini is the key/value store behind config.ini and log.ini.
package ini

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goini "gopkg.in/ini.v1"
)

func init() {
	// one key=value pair per line, no padding around '='
	goini.PrettyFormat = false
}

var loadOptions = goini.LoadOptions{
	Insensitive: true,
	Loose:       true,
}

// File is an INI file with case-insensitive sections and keys. Changes are
// kept in memory until Save.
type File struct {
	path string
	cfg  *goini.File
}

// Open loads path. A missing file is an empty store.
func Open(path string) (*File, error) {
	cfg, err := goini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &File{path: path, cfg: cfg}, nil
}

// Path returns the file the store saves to.
func (f *File) Path() string {
	return f.path
}

func (f *File) lookup(section, key string) (*goini.Key, bool) {
	sec, err := f.cfg.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return nil, false
	}
	return sec.Key(key), true
}

// GetString returns the raw value of section/key.
func (f *File) GetString(section, key string) (string, bool) {
	k, ok := f.lookup(section, key)
	if !ok {
		return "", false
	}
	return k.String(), true
}

// GetOrCreateString returns section/key, storing def first if it is missing.
func (f *File) GetOrCreateString(section, key, def string) string {
	if v, ok := f.GetString(section, key); ok {
		return v
	}
	f.SetString(section, key, def)
	return def
}

// GetOrCreateInt returns section/key as an integer, storing def first if it
// is missing or not a number.
func (f *File) GetOrCreateInt(section, key string, def int) int {
	if k, ok := f.lookup(section, key); ok {
		if v, err := k.Int(); err == nil {
			return v
		}
	}
	f.SetInt(section, key, def)
	return def
}

// GetOrCreateBool is GetOrCreateInt for flags stored as 0/1.
func (f *File) GetOrCreateBool(section, key string, def bool) bool {
	if k, ok := f.lookup(section, key); ok {
		if v, err := k.Bool(); err == nil {
			return v
		}
	}
	f.SetBool(section, key, def)
	return def
}

func (f *File) SetString(section, key, value string) {
	f.cfg.Section(section).Key(key).SetValue(value)
}

func (f *File) SetInt(section, key string, value int) {
	f.SetString(section, key, strconv.Itoa(value))
}

func (f *File) SetBool(section, key string, value bool) {
	if value {
		f.SetInt(section, key, 1)
	} else {
		f.SetInt(section, key, 0)
	}
}

// Reset drops every section.
func (f *File) Reset() {
	f.cfg = goini.Empty(loadOptions)
}

// Sections lists section names in file order.
func (f *File) Sections() []string {
	var names []string
	for _, s := range f.cfg.Sections() {
		if strings.EqualFold(s.Name(), goini.DefaultSection) && len(s.Keys()) == 0 {
			continue
		}
		names = append(names, s.Name())
	}
	return names
}

// Keys lists the keys of section in file order.
func (f *File) Keys(section string) []string {
	sec, err := f.cfg.GetSection(section)
	if err != nil {
		return nil
	}
	return sec.KeyStrings()
}

// Save writes the store to its path, creating the parent directory.
func (f *File) Save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(f.path), err)
	}
	if err := f.cfg.SaveTo(f.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", f.path, err)
	}
	return nil
}
