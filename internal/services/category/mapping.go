package category

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed mapping.yaml
var defaultMappingYAML []byte

// Mapping is the curated vendor/category lookup table.
type Mapping struct {
	Categories []MappedCategory `yaml:"categories"`
}

// MappedCategory is one curated category and the vendor keys that map to it.
type MappedCategory struct {
	Name    string   `yaml:"name"`
	Color   string   `yaml:"color"`
	Icon    string   `yaml:"icon"`
	Vendors []string `yaml:"vendors"`
}

// DefaultMapping returns the embedded table.
func DefaultMapping() (*Mapping, error) {
	return parseMapping(defaultMappingYAML)
}

// LoadMapping reads a YAML table from path. An empty path yields the
// embedded default.
func LoadMapping(path string) (*Mapping, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultMapping()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category mapping: %w", err)
	}
	return parseMapping(b)
}

func parseMapping(b []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse category mapping: %w", err)
	}
	for i, c := range m.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("parse category mapping: entry %d has no name", i)
		}
		for j, v := range c.Vendors {
			m.Categories[i].Vendors[j] = strings.ToLower(strings.TrimSpace(v))
		}
	}
	return &m, nil
}

// lookup finds the curated category for a lowercased vendor: exact key match
// first, then the longest key contained in the vendor.
func (m *Mapping) lookup(vendor string) (MappedCategory, bool) {
	for _, c := range m.Categories {
		for _, key := range c.Vendors {
			if key == vendor {
				return c, true
			}
		}
	}

	var best MappedCategory
	bestLen := 0
	for _, c := range m.Categories {
		for _, key := range c.Vendors {
			if key == "" || len(key) <= bestLen {
				continue
			}
			if containsWord(vendor, key) {
				best, bestLen = c, len(key)
			}
		}
	}
	return best, bestLen > 0
}

// containsWord reports whether key occurs in s on word boundaries, so "bp"
// does not match "bpm" and "amc" does not match "amcor".
func containsWord(s, key string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], key)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(key)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
