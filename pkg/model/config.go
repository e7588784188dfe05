package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the configuration literal a page hands to the builder. Element
// order is preserved through ElementConfig.Name.
type Config struct {
	Name             string            `json:"name" yaml:"name"`
	Method           string            `json:"method,omitempty" yaml:"method,omitempty"`
	Action           string            `json:"action,omitempty" yaml:"action,omitempty"`
	Renderer         string            `json:"renderer,omitempty" yaml:"renderer,omitempty"`
	PluginType       string            `json:"plugintype,omitempty" yaml:"plugintype,omitempty"`
	PluginName       string            `json:"pluginname,omitempty" yaml:"pluginname,omitempty"`
	SuccessCallback  string            `json:"successcallback,omitempty" yaml:"successcallback,omitempty"`
	ValidateCallback string            `json:"validatecallback,omitempty" yaml:"validatecallback,omitempty"`
	JSONForm         bool              `json:"jsform,omitempty" yaml:"jsform,omitempty"`
	Elements         ElementConfigs    `json:"elements" yaml:"elements"`
	Metadata         map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ElementConfig is one element of the configuration literal.
type ElementConfig struct {
	Name         string            `json:"name" yaml:"name"`
	Type         string            `json:"type" yaml:"type"`
	Title        string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Help         string            `json:"help,omitempty" yaml:"help,omitempty"`
	Rules        map[string]any    `json:"rules,omitempty" yaml:"rules,omitempty"`
	DefaultValue any               `json:"defaultvalue,omitempty" yaml:"defaultvalue,omitempty"`
	Value        any               `json:"value,omitempty" yaml:"value,omitempty"`
	Options      OptionConfigs     `json:"options,omitempty" yaml:"options,omitempty"`
	Multiple     bool              `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Goto         string            `json:"goto,omitempty" yaml:"goto,omitempty"`
	Elements     ElementConfigs    `json:"elements,omitempty" yaml:"elements,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ElementConfigs decodes either a list of elements carrying a name or a
// mapping of name to element. Mappings keep their document order.
type ElementConfigs []ElementConfig

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ElementConfigs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []ElementConfig
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = list
		return nil
	case yaml.MappingNode:
		out := make(ElementConfigs, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var el ElementConfig
			if err := node.Content[i+1].Decode(&el); err != nil {
				return fmt.Errorf("element %q: %w", node.Content[i].Value, err)
			}
			if el.Name == "" {
				el.Name = node.Content[i].Value
			}
			out = append(out, el)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("line %d: elements must be a list or a mapping", node.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler. JSON objects are decoded through
// the YAML decoder so key order survives.
func (c *ElementConfigs) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []ElementConfig
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*c = list
		return nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return c.UnmarshalYAML(node.Content[0])
	}
	return c.UnmarshalYAML(&node)
}

// OptionConfig is one select/radio choice in a configuration literal.
type OptionConfig struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// OptionConfigs decodes either a list of {value,label} pairs, a list of
// scalars (value doubles as label) or a mapping of value to label.
type OptionConfigs []OptionConfig

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *OptionConfigs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		out := make(OptionConfigs, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode {
				out = append(out, OptionConfig{Value: item.Value, Label: item.Value})
				continue
			}
			var opt OptionConfig
			if err := item.Decode(&opt); err != nil {
				return err
			}
			if opt.Label == "" {
				opt.Label = opt.Value
			}
			out = append(out, opt)
		}
		*o = out
		return nil
	case yaml.MappingNode:
		out := make(OptionConfigs, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, OptionConfig{Value: node.Content[i].Value, Label: node.Content[i+1].Value})
		}
		*o = out
		return nil
	default:
		return fmt.Errorf("line %d: options must be a list or a mapping", node.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionConfigs) UnmarshalJSON(data []byte) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return o.UnmarshalYAML(node.Content[0])
	}
	return o.UnmarshalYAML(&node)
}

// Options is a convenience constructor for ordered value/label pairs:
// Options("a", "Alpha", "b", "Beta").
func Options(pairs ...string) OptionConfigs {
	out := make(OptionConfigs, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, OptionConfig{Value: pairs[i], Label: pairs[i+1]})
	}
	return out
}
