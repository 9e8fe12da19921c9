package registry

import (
	"context"
	"fmt"

	"github.com/callforge/callflow/pkg/models"
)

func registerBuiltins(registry *Registry) {
	registry.Register(greetingHandler())
	registry.Register(menuHandler())
	registry.Register(conditionHandler())
	registry.Register(sttHandler())
	registry.Register(nluHandler())
	registry.Register(ttsHandler())
	registry.Register(departmentRoutingHandler())
}

func greetingHandler() *NodeHandler {
	return &NodeHandler{
		Type:        models.NodeTypeGreeting,
		Label:       "Greeting",
		Description: "Plays a welcome message to the caller",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message":       map[string]any{"type": "string"},
				"language":      map[string]any{"type": "string"},
				"cultural_tone": map[string]any{"type": "string"},
			},
		},
		Simulate: func(_ context.Context, node *models.WorkflowNode, input map[string]any) (map[string]any, error) {
			config, err := greetingConfig(node)
			if err != nil {
				return nil, err
			}

			message := config.Message
			if message == "" {
				message = "Welcome"
			}

			language := config.Language
			if language == "" {
				language = inputLanguage(input)
			}

			return map[string]any{
				"message":       message,
				"language":      language,
				"cultural_tone": config.CulturalTone,
			}, nil
		},
	}
}

func menuHandler() *NodeHandler {
	return &NodeHandler{
		Type:        models.NodeTypeMenu,
		Label:       "Menu",
		Description: "Prompts the caller and collects a DTMF selection",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{"type": "string"},
				"options": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"digit":  map[string]any{"type": "string"},
							"label":  map[string]any{"type": "string"},
							"target": map[string]any{"type": "string"},
						},
					},
				},
				"timeout": map[string]any{"type": "integer", "minimum": 0},
			},
		},
		Simulate: func(_ context.Context, node *models.WorkflowNode, input map[string]any) (map[string]any, error) {
			decoded, err := models.DecodeNodeConfig(node.Type, node.Config)
			if err != nil {
				return nil, fmt.Errorf("invalid menu config for node %s: %w", node.ID, err)
			}

			config, _ := decoded.(*models.MenuConfig)

			selected := ""
			if digit, ok := input["digit"].(string); ok {
				selected = digit
			}

			if selected == "" && config != nil && len(config.Options) > 0 {
				selected = config.Options[0].Digit
			}

			output := map[string]any{
				"prompt":   promptOf(config),
				"selected": selected,
			}

			if config != nil {
				for _, option := range config.Options {
					if option.Digit == selected {
						output["selected_label"] = option.Label

						break
					}
				}
			}

			return output, nil
		},
	}
}

func conditionHandler() *NodeHandler {
	return &NodeHandler{
		Type:        models.NodeTypeCondition,
		Label:       "Condition",
		Description: "Branches the call based on an expression",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"condition": map[string]any{"type": "string"},
			},
		},
		Simulate: func(_ context.Context, node *models.WorkflowNode, _ map[string]any) (map[string]any, error) {
			decoded, err := models.DecodeNodeConfig(node.Type, node.Config)
			if err != nil {
				return nil, fmt.Errorf("invalid condition config for node %s: %w", node.ID, err)
			}

			config, _ := decoded.(*models.ConditionConfig)

			expression := ""
			if config != nil {
				expression = config.Condition
			}

			return map[string]any{
				"condition": expression,
				"evaluated": true,
			}, nil
		},
	}
}

func sttHandler() *NodeHandler {
	return &NodeHandler{
		Type:        models.NodeTypeSTT,
		Label:       "Speech to Text",
		Description: "Transcribes caller speech",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"language": map[string]any{"type": "string"},
				"model":    map[string]any{"type": "string"},
			},
		},
		Simulate: func(_ context.Context, _ *models.WorkflowNode, input map[string]any) (map[string]any, error) {
			return map[string]any{
				"transcript": "I would like to check my account balance",
				"confidence": 0.92,
				"language":   inputLanguage(input),
			}, nil
		},
	}
}

func nluHandler() *NodeHandler {
	return &NodeHandler{
		Type:        models.NodeTypeNLU,
		Label:       "Intent Detection",
		Description: "Classifies the caller's intent",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model":     map[string]any{"type": "string"},
				"threshold": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
		},
		Simulate: func(_ context.Context, _ *models.WorkflowNode, _ map[string]any) (map[string]any, error) {
			return map[string]any{
				"intent":     "account_balance",
				"confidence": 0.87,
				"entities":   map[string]any{},
			}, nil
		},
	}
}

func ttsHandler() *NodeHandler {
	return &NodeHandler{
		Type:        models.NodeTypeTTS,
		Label:       "Text to Speech",
		Description: "Synthesizes a spoken response",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":     map[string]any{"type": "string"},
				"voice":    map[string]any{"type": "string"},
				"language": map[string]any{"type": "string"},
			},
		},
		Simulate: func(_ context.Context, node *models.WorkflowNode, input map[string]any) (map[string]any, error) {
			text := ""
			if raw, ok := node.Config["text"].(string); ok {
				text = raw
			}

			return map[string]any{
				"text":      text,
				"language":  inputLanguage(input),
				"audio_url": fmt.Sprintf("mock://tts/%s.wav", node.ID),
			}, nil
		},
	}
}

func departmentRoutingHandler() *NodeHandler {
	return &NodeHandler{
		Type:        models.NodeTypeDepartmentRouting,
		Label:       "Department Routing",
		Description: "Transfers the call to a department queue",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"department": map[string]any{"type": "string"},
				"queue":      map[string]any{"type": "string"},
			},
			"required": []any{"department"},
		},
		Simulate: func(_ context.Context, node *models.WorkflowNode, _ map[string]any) (map[string]any, error) {
			decoded, err := models.DecodeNodeConfig(node.Type, node.Config)
			if err != nil {
				return nil, fmt.Errorf("invalid routing config for node %s: %w", node.ID, err)
			}

			config, _ := decoded.(*models.DepartmentRoutingConfig)

			department := "general"
			queue := "default"

			if config != nil {
				if config.Department != "" {
					department = config.Department
				}

				if config.Queue != "" {
					queue = config.Queue
				}
			}

			return map[string]any{
				"department": department,
				"queue":      queue,
				"routed":     true,
			}, nil
		},
	}
}

func greetingConfig(node *models.WorkflowNode) (*models.GreetingConfig, error) {
	decoded, err := models.DecodeNodeConfig(node.Type, node.Config)
	if err != nil {
		return nil, fmt.Errorf("invalid greeting config for node %s: %w", node.ID, err)
	}

	config, ok := decoded.(*models.GreetingConfig)
	if !ok {
		return &models.GreetingConfig{}, nil
	}

	return config, nil
}

func promptOf(config *models.MenuConfig) string {
	if config == nil || config.Prompt == "" {
		return "Please choose an option"
	}

	return config.Prompt
}

func inputLanguage(input map[string]any) string {
	if language, ok := input["language"].(string); ok && language != "" {
		return language
	}

	return models.DefaultLanguage
}
