package compiler

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// payload is the typed view of a node config. Fields a kind does not use
// stay at their zero value.
type payload struct {
	Title      string            `mapstructure:"title"`
	Milestone  bool              `mapstructure:"milestone"`
	MaxRepeats int               `mapstructure:"max_repeats"`
	When       string            `mapstructure:"when"`
	Optional   bool              `mapstructure:"optional"`
	Targets    []string          `mapstructure:"targets"`
	Cases      map[string]string `mapstructure:"cases"`
	Join       string            `mapstructure:"join"`
	Action     string            `mapstructure:"action"`
	Params     map[string]any    `mapstructure:"params"`
	Refs       []string          `mapstructure:"refs"`
	Outcome    string            `mapstructure:"outcome"`
}

func decodePayload(nodeID string, cfg map[string]any) (payload, error) {
	var p payload
	if len(cfg) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(cfg); err != nil {
		return p, fmt.Errorf("node %s: %w", nodeID, err)
	}
	return p, nil
}
