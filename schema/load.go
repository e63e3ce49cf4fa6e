package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// fileSchema is the on-disk YAML shape for a schema definition. Fields
// are a list rather than a map so declaration order survives parsing,
// which matters for the dependency graph's insertion-order tie-break.
type fileSchema struct {
	Entities []fileEntity `yaml:"entities"`
}

type fileEntity struct {
	Name   string      `yaml:"name"`
	Fields []fileField `yaml:"fields"`
}

type fileField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// LoadFile parses one YAML schema document and merges its entities
// into schema, in file order.
func LoadFile(s *Schema, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schema file %s: %w", path, err)
	}
	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return Wrap(KindInvalidSchema, "malformed schema yaml in "+path, err)
	}
	for _, fe := range fs.Entities {
		order := make([]string, 0, len(fe.Fields))
		fields := make(map[string]string, len(fe.Fields))
		for _, ff := range fe.Fields {
			order = append(order, ff.Name)
			fields[ff.Name] = ff.Type
		}
		entity, err := ParseEntity(fe.Name, order, fields)
		if err != nil {
			return err
		}
		if _, exists := s.Entities[fe.Name]; !exists {
			s.EntityOrder = append(s.EntityOrder, fe.Name)
		}
		s.Entities[fe.Name] = entity
	}
	return nil
}

// LoadDir parses every *.yaml / *.yml file in dir, in lexical filename
// order, and merges them into a single Schema.
func LoadDir(dir string) (*Schema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading schema directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	s := NewSchema()
	for _, name := range names {
		if err := LoadFile(s, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
	}
	return s, nil
}
