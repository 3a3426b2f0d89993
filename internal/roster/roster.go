package roster

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"jimpitan/internal/domain"
)

const supportedVersion = 1

// File is the on-disk roster layout:
//
//	version = 1
//	[category.kategori1]
//	donors = ["Mas Ani", "Pak Kholis"]
type File struct {
	Version  int                        `toml:"version"`
	Category map[string]CategorySection `toml:"category"`
}

// CategorySection lists one category's donors in canonical order.
type CategorySection struct {
	Donors []string `toml:"donors"`
}

// Load reads path and merges it over the built-in rosters. An empty path yields the defaults.
func Load(path string) (domain.Roster, error) {
	if strings.TrimSpace(path) == "" {
		return domain.DefaultRosters(), nil
	}
	var file File
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse %s: unknown keys %v", path, undecoded)
	}
	r, err := Build(file)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return r, nil
}

// Decode parses roster TOML from memory.
func Decode(data string) (domain.Roster, error) {
	var file File
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return Build(file)
}

// Build validates file and merges it over the built-in rosters.
func Build(file File) (domain.Roster, error) {
	if file.Version != 0 && file.Version != supportedVersion {
		return nil, fmt.Errorf("unsupported roster version %d", file.Version)
	}
	out := domain.DefaultRosters()
	for key, section := range file.Category {
		cat, err := domain.ParseCategory(key)
		if err != nil {
			return nil, err
		}
		names, err := cleanNames(cat, section.Donors)
		if err != nil {
			return nil, err
		}
		out[cat] = names
	}
	return out, nil
}

func cleanNames(cat domain.Category, donors []string) ([]string, error) {
	if len(donors) == 0 {
		return nil, fmt.Errorf("category %s: donors must not be empty", cat)
	}
	seen := make(map[string]struct{}, len(donors))
	out := make([]string, 0, len(donors))
	for i, raw := range donors {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("category %s: donor %d is blank", cat, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("category %s: duplicate donor %q", cat, name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
