// Package deck loads the image references a card stack is built from.
package deck

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var defaultRefs = []string{
	"images/gallery/weaving-circle.jpg",
	"images/gallery/market-day.jpg",
	"images/gallery/seed-bank.jpg",
	"images/gallery/literacy-class.jpg",
}

// DefaultRefs returns the built-in deck used when no deck file exists.
func DefaultRefs() []string {
	return append([]string(nil), defaultRefs...)
}

// manifest is the YAML deck layout. Either form is accepted:
//
//	cards:
//	  - image: a.jpg
//
// or a bare list of strings.
type manifest struct {
	Cards []struct {
		Image string `yaml:"image"`
	} `yaml:"cards"`
}

// LoadRefs reads image references from path. YAML files are parsed as a
// manifest; anything else is read one reference per line, skipping blank
// lines and # comments.
func LoadRefs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var refs []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		refs, err = parseManifest(data)
	default:
		refs, err = parseLines(data)
	}
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("deck is empty")
	}
	return refs, nil
}

func parseManifest(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return trimAll(list), nil
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode deck manifest: %w", err)
	}
	refs := make([]string, 0, len(m.Cards))
	for _, c := range m.Cards {
		refs = append(refs, c.Image)
	}
	return trimAll(refs), nil
}

func parseLines(data []byte) ([]string, error) {
	var refs []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func trimAll(refs []string) []string {
	out := refs[:0]
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
