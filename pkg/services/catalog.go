package services

import "github.com/callforge/callflow/pkg/models"

// builtinTemplates is the static template catalog. Templates live in
// process, not in the workflow table; instantiating one goes through
// the normal create path.
func builtinTemplates() []*models.WorkflowTemplate {
	return []*models.WorkflowTemplate{
		{
			ID:               "customer-service-basic",
			Name:             "Basic Customer Service",
			Description:      "Greets the caller, offers a department menu and routes the call",
			Category:         models.CategoryCustomerService,
			Language:         "en",
			CulturalFeatures: []string{},
			Nodes: []*models.TemplateNode{
				{
					Ref:   "greet",
					Type:  models.NodeTypeGreeting,
					Label: "Welcome",
					Config: map[string]any{
						"message": "Welcome to customer service. How can we help you today?",
					},
					NextRef: "menu",
				},
				{
					Ref:   "menu",
					Type:  models.NodeTypeMenu,
					Label: "Main Menu",
					Config: map[string]any{
						"prompt": "Press 1 for support, 2 for billing, 3 for an agent",
						"options": []any{
							map[string]any{"digit": "1", "label": "Support"},
							map[string]any{"digit": "2", "label": "Billing"},
							map[string]any{"digit": "3", "label": "Agent"},
						},
						"timeout": 10,
					},
					NextRef: "route",
				},
				{
					Ref:   "route",
					Type:  models.NodeTypeDepartmentRouting,
					Label: "Route Call",
					Config: map[string]any{
						"department": "support",
						"queue":      "general",
					},
				},
			},
		},
		{
			ID:               "banking-ivr-ml",
			Name:             "Malayalam Banking IVR",
			Description:      "Culturally adapted banking flow with speech recognition",
			Category:         models.CategoryBanking,
			Language:         "ml",
			CulturalFeatures: []string{"malayalam_speech", "formal_register", "festival_greetings"},
			Nodes: []*models.TemplateNode{
				{
					Ref:   "greet",
					Type:  models.NodeTypeGreeting,
					Label: "Namaskaram",
					Config: map[string]any{
						"message":       "Namaskaram, welcome to the bank",
						"language":      "ml",
						"cultural_tone": "formal",
					},
					NextRef: "listen",
				},
				{
					Ref:     "listen",
					Type:    models.NodeTypeSTT,
					Label:   "Listen to Caller",
					Config:  map[string]any{"language": "ml"},
					NextRef: "intent",
				},
				{
					Ref:     "intent",
					Type:    models.NodeTypeNLU,
					Label:   "Detect Intent",
					Config:  map[string]any{"threshold": 0.7},
					NextRef: "balance_check",
				},
				{
					Ref:       "balance_check",
					Type:      models.NodeTypeCondition,
					Label:     "Balance Inquiry?",
					Config:    map[string]any{"condition": `intent == "account_balance"`},
					NextRef:   "respond",
					Condition: `intent == "account_balance"`,
				},
				{
					Ref:   "respond",
					Type:  models.NodeTypeTTS,
					Label: "Speak Balance",
					Config: map[string]any{
						"text":     "Your account balance is being retrieved",
						"language": "ml",
					},
				},
			},
		},
		{
			ID:               "healthcare-triage",
			Name:             "Healthcare Triage Line",
			Description:      "Symptom triage with appointment routing",
			Category:         models.CategoryHealthcare,
			Language:         "en",
			CulturalFeatures: []string{},
			Nodes: []*models.TemplateNode{
				{
					Ref:   "greet",
					Type:  models.NodeTypeGreeting,
					Label: "Clinic Welcome",
					Config: map[string]any{
						"message": "Thank you for calling the clinic",
					},
					NextRef: "menu",
				},
				{
					Ref:   "menu",
					Type:  models.NodeTypeMenu,
					Label: "Triage Menu",
					Config: map[string]any{
						"prompt": "Press 1 for appointments, 2 for prescriptions, 3 for urgent advice",
						"options": []any{
							map[string]any{"digit": "1", "label": "Appointments"},
							map[string]any{"digit": "2", "label": "Prescriptions"},
							map[string]any{"digit": "3", "label": "Urgent"},
						},
					},
					NextRef: "route",
				},
				{
					Ref:   "route",
					Type:  models.NodeTypeDepartmentRouting,
					Label: "Route to Desk",
					Config: map[string]any{
						"department": "appointments",
						"queue":      "frontdesk",
					},
				},
			},
		},
	}
}
