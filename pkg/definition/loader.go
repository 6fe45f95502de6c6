package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-intake/pkg/wizard"
)

// ErrUnknown is returned when a store has no definition with the requested
// name.
var ErrUnknown = errors.New("definition: unknown wizard")

// Store holds parsed definition files keyed by wizard name.
type Store struct {
	files map[string]File
}

// LoadFS walks fsys and parses every JSON/YAML file as a definition. When fsys
// is nil or holds no definition files, the returned store is empty.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{files: make(map[string]File)}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("definition: read %s: %w", path, err)
		}
		file, err := Parse(data, path)
		if err != nil {
			return err
		}
		if _, exists := store.files[file.Name]; exists {
			return fmt.Errorf("definition: duplicate wizard %q (file %s)", file.Name, path)
		}
		store.files[file.Name] = file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Parse decodes a single definition document. JSON is tried first, then
// YAML.
func Parse(data []byte, source string) (File, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return File{}, fmt.Errorf("definition: file %s is empty", source)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		file = File{}
		if yerr := yaml.Unmarshal(data, &file); yerr != nil {
			return File{}, fmt.Errorf("definition: parse %s: %w", source, yerr)
		}
	}

	file.Name = strings.TrimSpace(file.Name)
	if file.Name == "" {
		return File{}, fmt.Errorf("definition: file %s has no name", source)
	}
	file.Source = source
	return file, nil
}

// File returns the parsed file for name.
func (s *Store) File(name string) (File, bool) {
	if s == nil {
		return File{}, false
	}
	file, ok := s.files[name]
	return file, ok
}

// Names lists the wizard names in the store, sorted.
func (s *Store) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the store holds any definitions.
func (s *Store) Empty() bool {
	return s == nil || len(s.files) == 0
}

// Compile compiles the definition named name.
func (s *Store) Compile(name string, opts ...Option) (wizard.Definition, error) {
	file, ok := s.File(name)
	if !ok {
		return wizard.Definition{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return Compile(file, opts...)
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
