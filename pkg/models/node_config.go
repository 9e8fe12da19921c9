package models

import (
	"encoding/json"
	"fmt"
)

// Typed views over the opaque per-node config blobs. DecodeNodeConfig is
// the tagged-union boundary: handlers and the validation engine work
// against these structs instead of string-keyed map lookups.

type GreetingConfig struct {
	Message      string `json:"message"`
	Language     string `json:"language,omitempty"`
	CulturalTone string `json:"cultural_tone,omitempty"`
}

type MenuOption struct {
	Digit  string `json:"digit"`
	Label  string `json:"label"`
	Target string `json:"target,omitempty"`
}

type MenuConfig struct {
	Prompt  string       `json:"prompt,omitempty"`
	Options []MenuOption `json:"options"`
	Timeout int          `json:"timeout_seconds,omitempty"`
}

type ConditionConfig struct {
	Condition string `json:"condition"`
}

type STTConfig struct {
	Language string `json:"language,omitempty"`
	Model    string `json:"model,omitempty"`
}

type NLUConfig struct {
	Engine  string   `json:"engine,omitempty"`
	Intents []string `json:"intents,omitempty"`
}

type TTSConfig struct {
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

type DepartmentRoutingConfig struct {
	Department string `json:"department"`
	Queue      string `json:"queue,omitempty"`
}

// DecodeNodeConfig maps a node's raw config onto its typed form. Unknown
// node types return the raw map unchanged: the enumeration is open and
// unrecognized types still execute generically.
func DecodeNodeConfig(nodeType string, config map[string]any) (any, error) {
	switch nodeType {
	case NodeTypeGreeting:
		return decodeConfig[GreetingConfig](config)
	case NodeTypeMenu:
		return decodeConfig[MenuConfig](config)
	case NodeTypeCondition:
		return decodeConfig[ConditionConfig](config)
	case NodeTypeSTT:
		return decodeConfig[STTConfig](config)
	case NodeTypeNLU:
		return decodeConfig[NLUConfig](config)
	case NodeTypeTTS:
		return decodeConfig[TTSConfig](config)
	case NodeTypeDepartmentRouting:
		return decodeConfig[DepartmentRoutingConfig](config)
	default:
		return config, nil
	}
}

func decodeConfig[T any](config map[string]any) (*T, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node config: %w", err)
	}

	var typed T

	err = json.Unmarshal(raw, &typed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode node config: %w", err)
	}

	return &typed, nil
}
