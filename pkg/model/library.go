package model

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Library holds descriptors loaded from disk, keyed by form name. Lookups
// return deep copies so a page may adjust its descriptor per request.
type Library struct {
	forms   map[string]Descriptor
	sources map[string]string
}

// LoadFS walks fsys and parses every JSON/YAML file into descriptors. Each
// document is a mapping of form name to Config; the key doubles as the name
// when the Config omits it. A nil fsys yields an empty library.
func LoadFS(fsys fs.FS, options ...BuilderOption) (*Library, error) {
	lib := &Library{
		forms:   make(map[string]Descriptor),
		sources: make(map[string]string),
	}
	if fsys == nil {
		return lib, nil
	}
	builder := NewBuilder(options...)

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDescriptorFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("model library: read %s: %w", path, err)
		}
		configs, err := parseLibraryFile(data, path)
		if err != nil {
			return err
		}

		for _, cfg := range configs {
			desc, err := builder.Build(cfg)
			if err != nil {
				return fmt.Errorf("model library: %s: %w", path, err)
			}
			if prev, exists := lib.sources[desc.Name]; exists {
				return fmt.Errorf("model library: duplicate form %q (files %s and %s)", desc.Name, prev, path)
			}
			lib.forms[desc.Name] = desc
			lib.sources[desc.Name] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// Descriptor returns a copy of the named descriptor.
func (l *Library) Descriptor(name string) (Descriptor, bool) {
	if l == nil {
		return Descriptor{}, false
	}
	desc, ok := l.forms[name]
	if !ok {
		return Descriptor{}, false
	}
	return desc.Clone(), true
}

// Names lists the loaded form names in sorted order.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.forms))
	for name := range l.forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source reports which file defined the named form.
func (l *Library) Source(name string) string {
	if l == nil {
		return ""
	}
	return l.sources[name]
}

// Empty reports whether the library holds any forms.
func (l *Library) Empty() bool {
	return l == nil || len(l.forms) == 0
}

func isDescriptorFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ParseConfigs decodes a library document (JSON or YAML) into configs in
// document order. The path is only used for messages and format detection.
func ParseConfigs(data []byte, path string) ([]Config, error) {
	return parseLibraryFile(data, path)
}

func parseLibraryFile(data []byte, path string) ([]Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") && !json.Valid(data) {
		return nil, fmt.Errorf("model library: %s: invalid JSON", path)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("model library: parse %s: %w", path, err)
	}
	if root.Kind == 0 {
		return nil, nil
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("model library: %s: top level must map form names to definitions", path)
	}

	configs := make([]Config, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := strings.TrimSpace(doc.Content[i].Value)
		if key == "" {
			return nil, fmt.Errorf("model library: %s: empty form name", path)
		}
		var cfg Config
		if err := doc.Content[i+1].Decode(&cfg); err != nil {
			return nil, fmt.Errorf("model library: %s: form %q: %w", path, key, err)
		}
		if cfg.Name == "" {
			cfg.Name = key
		}
		if cfg.Name != key {
			return nil, fmt.Errorf("model library: %s: form key %q does not match name %q", path, key, cfg.Name)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Metadata = copyStrings(d.Metadata)
	out.Elements = cloneElements(d.Elements)
	return out
}

func cloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, el := range in {
		el.Rules = append([]Rule(nil), el.Rules...)
		el.Options = append([]Option(nil), el.Options...)
		el.Metadata = copyStrings(el.Metadata)
		el.Elements = cloneElements(el.Elements)
		if labels, ok := el.Value.([]string); ok {
			el.Value = append([]string(nil), labels...)
		}
		out[i] = el
	}
	return out
}
