package apihandlers

import (
	"errors"
	"log/slog"
	"net/http"

	projectDB "github.com/ddsurveys/dds-backend/pkg/db/project"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) getCustomVariables(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")

	defs, err := h.store.GetCustomVariableDefinitions(token.InstanceID, projectID)
	if err != nil {
		errorResponse(c, err, "failed to get custom variables", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}

	type customVariableInfo struct {
		ddsTypes.CustomVariable
		Field string `json:"field"`
	}
	variables := make([]customVariableInfo, 0, len(defs))
	for _, def := range defs {
		variables = append(variables, customVariableInfo{CustomVariable: def, Field: def.Field()})
	}
	c.JSON(http.StatusOK, gin.H{"customVariables": variables})
}

func (h *HttpEndpoints) createCustomVariable(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")

	var req struct {
		Provider     string                `json:"provider"`
		Category     string                `json:"category"`
		VariableType ddsTypes.VariableType `json:"variableType"`
		Description  string                `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.GetProject(token.InstanceID, projectID); err != nil {
		errorResponse(c, err, "failed to get project", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}

	def := ddsTypes.CustomVariable{
		ProjectID:    projectID,
		Provider:     req.Provider,
		Category:     req.Category,
		VariableType: req.VariableType,
		Description:  req.Description,
	}
	if err := h.catalog.ValidateDefinitions([]ddsTypes.CustomVariable{def}); err != nil {
		errorResponse(c, err, "invalid custom variable", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	if def.VariableType == "" {
		cat, _ := h.catalog.Lookup(def.Provider, def.Category)
		def.VariableType = cat.VariableType
	}

	created, err := h.store.CreateCustomVariable(token.InstanceID, def)
	if err != nil {
		if errors.Is(err, projectDB.ErrCustomVariableExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "custom variable already exists", "field": def.Field()})
			return
		}
		errorResponse(c, err, "failed to create custom variable", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	slog.Info("custom variable created", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID), slog.String("field", created.Field()), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, created)
}

// validateCustomVariables checks the stored definitions of a project against the catalog.
func (h *HttpEndpoints) validateCustomVariables(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")

	defs, err := h.store.GetCustomVariableDefinitions(token.InstanceID, projectID)
	if err != nil {
		errorResponse(c, err, "failed to get custom variables", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	if err := h.catalog.ValidateDefinitions(defs); err != nil {
		errorResponse(c, err, "invalid custom variables", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "count": len(defs)})
}

func (h *HttpEndpoints) deleteCustomVariable(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")
	variableID := c.Param("variableID")

	if err := h.store.DeleteCustomVariable(token.InstanceID, projectID, variableID); err != nil {
		errorResponse(c, err, "failed to delete custom variable", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID), slog.String("variableID", variableID))
		return
	}
	slog.Info("custom variable deleted", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID), slog.String("variableID", variableID), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, gin.H{"message": "custom variable deleted"})
}
