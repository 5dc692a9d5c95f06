// Package scanner discovers template units in a components folder.
//
// A unit named "card" is either a "card<ext>" file, a "card/" directory of
// typed variants ("card/primary<ext>", ...), or both. Every unit found is
// registered with the component registry, which broadcasts change events.
// Units that disappeared since the previous scan are removed. File contents
// are hashed with CRC32 so that rescans only report real changes.
package scanner

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/registry"
	"github.com/conneroisu/tagforge/internal/types"
)

// ComponentScanner discovers template units and feeds the registry.
type ComponentScanner struct {
	registry *registry.ComponentRegistry
	ext      string
}

// NewComponentScanner creates a scanner registering units whose template
// files end in ext (".html" when empty).
func NewComponentScanner(reg *registry.ComponentRegistry, ext string) *ComponentScanner {
	if ext == "" {
		ext = ".html"
	}

	return &ComponentScanner{registry: reg, ext: ext}
}

// GetRegistry returns the component registry
func (s *ComponentScanner) GetRegistry() *registry.ComponentRegistry {
	return s.registry
}

// ScanDirectory registers every template unit directly inside dir and
// removes registry entries for units that no longer exist. Hidden entries
// are ignored. A missing dir is a FileNotFound error.
func (s *ComponentScanner) ScanDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.WrapIO(err, dir, "components folder unavailable")
	}
	if !info.IsDir() {
		return errors.NewIOError(errors.ErrCodeIO, "components folder is not a directory", nil).
			WithLocation(dir, 0, 0)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WrapIO(err, dir, "reading components folder")
	}

	units := make(map[string]*types.ComponentInfo)
	unit := func(name string) *types.ComponentInfo {
		if u, ok := units[name]; ok {
			return u
		}
		u := &types.ComponentInfo{Name: name}
		units[name] = u

		return u
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		switch {
		case entry.IsDir():
			variants, err := s.variants(path)
			if err != nil {
				return err
			}
			if len(variants) == 0 {
				continue
			}
			u := unit(name)
			u.Dir = path
			u.Variants = variants
		case strings.HasSuffix(name, s.ext) && len(name) > len(s.ext):
			u := unit(strings.TrimSuffix(name, s.ext))
			u.FilePath = path
		}
	}

	keep := make(map[string]bool, len(units))
	for name, u := range units {
		if err := s.fingerprint(u); err != nil {
			return err
		}
		keep[name] = true
		s.registry.Register(u)
	}
	s.registry.Retain(keep)

	return nil
}

// variants lists the type names of the template files inside dir.
func (s *ComponentScanner) variants(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapIO(err, dir, "reading variant folder")
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, s.ext) && len(name) > len(s.ext) {
			names = append(names, strings.TrimSuffix(name, s.ext))
		}
	}
	sort.Strings(names)

	return names, nil
}

// fingerprint fills Hash and LastMod from every file making up the unit.
func (s *ComponentScanner) fingerprint(u *types.ComponentInfo) error {
	paths := make([]string, 0, len(u.Variants)+1)
	if u.FilePath != "" {
		paths = append(paths, u.FilePath)
	}
	for _, v := range u.Variants {
		paths = append(paths, filepath.Join(u.Dir, v+s.ext))
	}

	hash := crc32.NewIEEE()
	var lastMod time.Time
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.WrapIO(err, path, "reading template")
		}
		_, _ = hash.Write([]byte(path))
		_, _ = hash.Write(content)

		if info, err := os.Stat(path); err == nil && info.ModTime().After(lastMod) {
			lastMod = info.ModTime()
		}
	}
	u.Hash = fmt.Sprintf("%x", hash.Sum32())
	u.LastMod = lastMod

	return nil
}

// IsTemplatePath reports whether path, relative to the components folder,
// names a file that can contribute to a template unit.
func (s *ComponentScanner) IsTemplatePath(rel string) bool {
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if strings.HasPrefix(p, ".") {
			return false
		}
	}

	return strings.HasSuffix(rel, s.ext) || len(parts) == 1
}
