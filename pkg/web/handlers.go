package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/registry"
	"github.com/callforge/callflow/pkg/services"
)

type APIHandlers struct {
	workflowService *services.Workflow
	templateService *services.Template
	validator       *validator.Validate
	registry        *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	templateService *services.Template,
	validate *validator.Validate,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		templateService: templateService,
		validator:       validate,
		registry:        reg,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "CallFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "CallFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"node_types": h.registry.Types(),
		"timestamp":  time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.Category = c.Query("category")
	req.Search = c.Query("search")

	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return nil, err
		}

		req.Active = &active
	}

	if culturalStr := c.Query("cultural_only"); culturalStr != "" {
		cultural, err := strconv.ParseBool(culturalStr)
		if err != nil {
			return nil, err
		}

		req.CulturalOnly = cultural
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	detail, err := h.workflowService.Detail(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.workflowService.Create(c.Context(), services.CreateWorkflowRequest{
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		Language:         req.Language,
		CulturalSettings: req.CulturalSettings,
		Nodes:            nodeDefinitions(req.Nodes),
		Connections:      connectionDefinitions(req.Connections),
		IsActive:         req.IsActive,
		IsTemplate:       req.IsTemplate,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(summary)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	update := services.UpdateWorkflowRequest{
		ID:                c.Params("id"),
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		IsActive:          req.IsActive,
		CulturalSettings:  req.CulturalSettings,
		ChangeDescription: req.ChangeDescription,
		UpdatedBy:         req.UpdatedBy,
	}

	if req.Nodes != nil {
		nodes := nodeDefinitions(*req.Nodes)
		update.Nodes = &nodes
	}

	if req.Connections != nil {
		connections := connectionDefinitions(*req.Connections)
		update.Connections = &connections
	}

	summary, err := h.workflowService.Update(c.Context(), update)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	permanent := false

	if permanentStr := c.Query("permanent"); permanentStr != "" {
		parsed, err := strconv.ParseBool(permanentStr)
		if err != nil {
			return badRequest(c, "Invalid permanent flag")
		}

		permanent = parsed
	}

	err := h.workflowService.Delete(c.Context(), c.Params("id"), permanent)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"deleted":   true,
		"permanent": permanent,
	})
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	summary, err := h.workflowService.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	summary, err := h.workflowService.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) UpdateCulturalSettings(c fiber.Ctx) error {
	var req CulturalSettingsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.workflowService.UpdateCulturalSettings(c.Context(), c.Params("id"), req.CulturalSettings, req.UpdatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	result, err := h.workflowService.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// ExecuteWorkflow answers 200 even when the workflow itself failed; the
// result's success flag carries that distinction.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, err := h.workflowService.Execute(c.Context(), c.Params("id"), req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) TestWorkflow(c fiber.Ctx) error {
	var req ExecuteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, err := h.workflowService.Test(c.Context(), c.Params("id"), req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) DeployWorkflow(c fiber.Ctx) error {
	deployment, err := h.workflowService.Deploy(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deployment)
}

func (h *APIHandlers) PreviewWorkflow(c fiber.Ctx) error {
	preview, err := h.templateService.PreviewWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	export, err := h.templateService.ExportWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(export)
}

func (h *APIHandlers) CloneWorkflow(c fiber.Ctx) error {
	var req CloneWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.templateService.CloneWorkflow(c.Context(), c.Params("id"), req.Name, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(summary)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	var req ImportWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	summary, err := h.templateService.ImportWorkflow(c.Context(), importRequest(req))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(summary)
}

// importRequest normalizes the two accepted body shapes, enveloped and
// bare, into one service request.
func importRequest(req ImportWorkflowRequest) services.ImportRequest {
	imported := req.Workflow
	if imported == nil {
		imported = &ImportedWorkflow{
			Nodes:            req.Nodes,
			Connections:      req.Connections,
			CulturalSettings: req.CulturalSettings,
		}
	}

	source := &models.Workflow{
		Name:             imported.Name,
		Description:      imported.Description,
		Category:         imported.Category,
		Language:         imported.Language,
		CulturalSettings: imported.CulturalSettings,
	}

	for index, input := range imported.Nodes {
		source.Nodes = append(source.Nodes, &models.WorkflowNode{
			ID:          input.ID,
			Type:        input.Type,
			Label:       input.Label,
			Description: input.Description,
			Position:    index,
			Config:      input.Config,
		})
	}

	for _, input := range imported.Connections {
		source.Connections = append(source.Connections, &models.NodeConnection{
			SourceNodeID: input.Source,
			TargetNodeID: input.Target,
			SourceHandle: input.SourceHandle,
			TargetHandle: input.TargetHandle,
			Condition:    input.Condition,
		})
	}

	return services.ImportRequest{
		Envelope: &models.ExportEnvelope{
			Version:    req.Version,
			ExportedAt: req.ExportedAt,
			Workflow:   source,
		},
		Name:      req.Name,
		Category:  req.Category,
		CreatedBy: req.CreatedBy,
	}
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	templates := h.templateService.ListTemplates(c.Query("category"), c.Query("language"))

	return c.JSON(fiber.Map{
		"templates": templates,
		"count":     len(templates),
	})
}

func (h *APIHandlers) CreateFromTemplate(c fiber.Ctx) error {
	var req CreateFromTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.templateService.CreateFromTemplate(c.Context(), req.TemplateID, req.Name, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(summary)
}

func (h *APIHandlers) DeleteWorkflowNode(c fiber.Ctx) error {
	err := h.workflowService.DeleteNode(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *APIHandlers) DeleteWorkflowConnection(c fiber.Ctx) error {
	err := h.workflowService.DeleteConnection(c.Context(), c.Params("id"), c.Params("connectionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *APIHandlers) GetWorkflowVersions(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit")
	}

	versions, err := h.workflowService.Versions(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"versions": versions,
		"count":    len(versions),
	})
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit")
	}

	executions, err := h.workflowService.Executions(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}

func parseLimit(c fiber.Ctx) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return 0, nil
	}

	return strconv.Atoi(limitStr)
}
