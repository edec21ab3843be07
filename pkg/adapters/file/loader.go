// Package file loads machine descriptions from .bsm, .json and .yaml files.
package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a machine file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf infers the format from the file extension. .bsm files are JSON.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bsm", ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(path))
}

// Load reads and decodes the machine at path. A machine without a name is
// named after the file.
func Load(path string) (domain.Machine, error) {
	format, err := FormatOf(path)
	if err != nil {
		return domain.Machine{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Machine{}, fmt.Errorf("failed to read machine file: %w", err)
	}
	m, err := Decode(data, format)
	if err != nil {
		return domain.Machine{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// Decode parses data into a loosely typed map and then decodes it into a
// domain.Machine, so JSON and YAML share the mapstructure tags.
func Decode(data []byte, format Format) (domain.Machine, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Machine{}, domain.ErrEmptyFile
	}

	var raw map[string]any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return domain.Machine{}, fmt.Errorf("invalid JSON: %w", err)
		}
		raw, _ = domain.NormalizeValue(raw).(map[string]any)
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return domain.Machine{}, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return domain.Machine{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}

	var m domain.Machine
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           &m,
	})
	if err != nil {
		return domain.Machine{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Machine{}, fmt.Errorf("%w: %w", domain.ErrInvalidDefinition, err)
	}
	return m, nil
}

// Save writes m to path in the format implied by its extension.
func Save(path string, m domain.Machine) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(m)
	default:
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode machine: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Loader implements ports.MachineLoader over a directory of machine files.
// References are paths relative to the directory.
type Loader struct {
	dir string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadMachine loads the machine file ref, relative to the loader's directory.
func (l *Loader) LoadMachine(ref string) (domain.Machine, error) {
	return Load(filepath.Join(l.dir, filepath.FromSlash(ref)))
}

// ListMachines returns every machine file under the directory, sorted.
func (l *Loader) ListMachines() ([]string, error) {
	var refs []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := FormatOf(path); ferr != nil {
			return nil
		}
		rel, err := filepath.Rel(l.dir, path)
		if err != nil {
			return err
		}
		refs = append(refs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	sort.Strings(refs)
	return refs, nil
}
