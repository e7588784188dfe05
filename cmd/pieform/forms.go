package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mahara/pieform/internal/site"
	"github.com/mahara/pieform/pkg/model"
)

// formSet is a set of descriptors loaded from the command line.
type formSet struct {
	forms   map[string]model.Descriptor
	sources map[string]string
}

func (s *formSet) Descriptor(name string) (model.Descriptor, bool) {
	desc, ok := s.forms[name]
	if !ok {
		return model.Descriptor{}, false
	}
	return desc.Clone(), true
}

func (s *formSet) Names() []string {
	names := make([]string, 0, len(s.forms))
	for name := range s.forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *formSet) Source(name string) string { return s.sources[name] }

// loadForms reads a descriptor file, a directory of descriptor files, or the
// builtin site forms when path is empty.
func loadForms(path string) (*formSet, error) {
	if path == "" {
		lib, err := site.Builtin()
		if err != nil {
			return nil, err
		}
		return fromLibrary(lib), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		lib, err := model.LoadFS(os.DirFS(path))
		if err != nil {
			return nil, err
		}
		set := fromLibrary(lib)
		for name, source := range set.sources {
			set.sources[name] = filepath.Join(path, source)
		}
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	configs, err := model.ParseConfigs(data, path)
	if err != nil {
		return nil, err
	}
	set := &formSet{forms: map[string]model.Descriptor{}, sources: map[string]string{}}
	for _, c := range configs {
		desc, err := model.Build(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := set.forms[desc.Name]; dup {
			return nil, fmt.Errorf("%s: form %q is defined twice", path, desc.Name)
		}
		set.forms[desc.Name] = desc
		set.sources[desc.Name] = path
	}
	return set, nil
}

func fromLibrary(lib *model.Library) *formSet {
	set := &formSet{forms: map[string]model.Descriptor{}, sources: map[string]string{}}
	for _, name := range lib.Names() {
		desc, _ := lib.Descriptor(name)
		set.forms[name] = desc
		set.sources[name] = lib.Source(name)
	}
	return set
}
