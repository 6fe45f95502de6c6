package definition

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-intake/pkg/validation"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// File is the on-disk shape of a wizard definition.
type File struct {
	Name          string        `json:"name" yaml:"name"`
	BasePath      string        `json:"basePath" yaml:"basePath"`
	AutosaveDelay Duration      `json:"autosaveDelay,omitempty" yaml:"autosaveDelay,omitempty"`
	Bindings      []BindingFile `json:"bindings,omitempty" yaml:"bindings,omitempty"`
	Pages         []PageFile    `json:"pages" yaml:"pages"`

	// Source is the path the file was read from.
	Source string `json:"-" yaml:"-"`
}

// BindingFile declares a wizard.Mirror.
type BindingFile struct {
	Flag           string            `json:"flag" yaml:"flag"`
	Copies         map[string]string `json:"copies" yaml:"copies"`
	ClearOnDisable bool              `json:"clearOnDisable,omitempty" yaml:"clearOnDisable,omitempty"`
}

// PageFile declares one page. Kind defaults to form.
type PageFile struct {
	Slug          string            `json:"slug" yaml:"slug"`
	Title         string            `json:"title" yaml:"title"`
	Kind          string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	AutosaveDelay Duration          `json:"autosaveDelay,omitempty" yaml:"autosaveDelay,omitempty"`
	Fields        []wizard.Field    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Rules         []validation.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	Template      string            `json:"template,omitempty" yaml:"template,omitempty"`
}

// Duration accepts Go duration strings ("3s", "1500ms") or integer
// milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d *Duration) set(raw any) error {
	switch v := raw.(type) {
	case nil:
		*d = 0
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("definition: invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Millisecond)
	case float64:
		*d = Duration(time.Duration(v) * time.Millisecond)
	default:
		return fmt.Errorf("definition: invalid duration %v", raw)
	}
	if *d < 0 {
		return fmt.Errorf("definition: negative duration %v", raw)
	}
	return nil
}
