package loam

// NodeMetadata is the frontmatter of one node file.
// The markdown body becomes the node description.
type NodeMetadata struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Kind       string         `json:"kind" yaml:"kind" mapstructure:"kind"`
	Entry      bool           `json:"entry,omitempty" yaml:"entry,omitempty" mapstructure:"entry"`
	Repeatable bool           `json:"repeatable,omitempty" yaml:"repeatable,omitempty" mapstructure:"repeatable"`
	Inputs     []PinMetadata  `json:"inputs,omitempty" yaml:"inputs,omitempty" mapstructure:"inputs"`
	Outputs    []PinMetadata  `json:"outputs,omitempty" yaml:"outputs,omitempty" mapstructure:"outputs"`
	Config     map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`

	// Next is sugar for links from the control output to the control input of each target.
	Next []string `json:"next,omitempty" yaml:"next,omitempty" mapstructure:"next"`

	// Links are edges leaving this node from any output pin.
	Links []LinkMetadata `json:"links,omitempty" yaml:"links,omitempty" mapstructure:"links"`
}

type PinMetadata struct {
	ID      string `json:"id" yaml:"id" mapstructure:"id"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Default any    `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}

// LinkMetadata connects pin From of this node to To, written "node.pin".
// A bare node id means its control input.
type LinkMetadata struct {
	From string `json:"from,omitempty" yaml:"from,omitempty" mapstructure:"from"`
	To   string `json:"to" yaml:"to" mapstructure:"to"`
}
