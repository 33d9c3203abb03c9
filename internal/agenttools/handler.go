package agenttools

import (
	"net/http"
	"time"

	apperrors "medbook/pkg/errors"
	httputil "medbook/pkg/http"
	"medbook/pkg/logger"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/lexlapax/go-llms/pkg/agent/domain"
	sdomain "github.com/lexlapax/go-llms/pkg/schema/domain"
)

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  *sdomain.Schema `json:"parameters,omitempty"`
	Category    string          `json:"category,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	RunID  string `json:"run_id"`
	Result any    `json:"result"`
}

type ToolHandler struct {
	registry *Registry
	log      *logger.Logger
}

func NewToolHandler(registry *Registry, log *logger.Logger) *ToolHandler {
	return &ToolHandler{
		registry: registry,
		log:      log,
	}
}

func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	all := h.registry.Tools()
	defs := make([]ToolDefinition, 0, len(all))
	for _, tool := range all {
		defs = append(defs, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.ParameterSchema(),
			Category:    tool.Category(),
		})
	}

	if err := httputil.WriteSuccess(w, defs); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

// Call runs one tool with the JSON object in the body as its parameters.
func (h *ToolHandler) Call(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	tool, ok := h.registry.Get(name)
	if !ok {
		h.writeError(w, "Call", apperrors.NotFoundWithID("Tool", name))
		return
	}

	params := map[string]any{}
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &params); err != nil {
			h.writeError(w, "Call", err)
			return
		}
	}

	runID := uuid.NewString()
	result, err := tool.Execute(&domain.ToolContext{
		Context:   r.Context(),
		RunID:     runID,
		StartTime: time.Now(),
	}, params)
	if err != nil {
		h.log.Error("Agent tool execution failed", "tool", name, "run_id", runID, "error", err)
		h.writeError(w, "Call", apperrors.Internal("Tool execution failed", err))
		return
	}

	if err := httputil.WriteSuccess(w, ToolResult{Tool: name, RunID: runID, Result: result}); err != nil {
		h.log.Error("failed to write success response", "handler", "Call", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ToolHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ToolHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/agent/tools", h.List)
	router.POST("/api/v1/agent/tools/:name", h.Call)
}
