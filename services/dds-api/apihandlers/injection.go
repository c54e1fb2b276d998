package apihandlers

import (
	"context"
	"log/slog"
	"net/http"

	mw "github.com/ddsurveys/dds-backend/pkg/apihelpers/middlewares"
	"github.com/ddsurveys/dds-backend/pkg/dds/orchestrator"
	"github.com/gin-gonic/gin"
)

// AddInjectionAPI registers the trigger the survey platform calls when a respondent starts a survey.
func (h *HttpEndpoints) AddInjectionAPI(rg *gin.RouterGroup) {
	injectGroup := rg.Group("/inject")
	injectGroup.Use(mw.HasValidAPIKey(h.surveyPlatformKeys))
	injectGroup.Use(mw.InstanceIDFromHeader(h.allowedInstanceIDs))
	{
		injectGroup.POST("/:projectID/:respondentID", h.injectVariables)
	}
}

type variableResult struct {
	Field     string `json:"field"`
	State     string `json:"state"`
	Value     string `json:"value"`
	ErrorKind string `json:"errorKind,omitempty"`
}

func (h *HttpEndpoints) injectVariables(c *gin.Context) {
	instanceID := c.GetString(mw.CTX_INSTANCE_ID)
	projectID := c.Param("projectID")
	respondentID := c.Param("respondentID")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.injectionTimeout)
	defer cancel()

	out, err := h.injector.Run(ctx, instanceID, projectID, respondentID)

	variables := make([]variableResult, 0, len(out.Results))
	for _, r := range out.Results {
		variables = append(variables, variableResult{
			Field:     r.Field,
			State:     string(r.State),
			Value:     r.Value,
			ErrorKind: string(r.ErrorKind()),
		})
	}
	body := gin.H{
		"runID":     out.RunID,
		"status":    out.Status,
		"variables": variables,
	}

	if err != nil {
		status := statusForError(err)
		if ctx.Err() != nil {
			status = http.StatusServiceUnavailable
		}
		body["error"] = err.Error()
		body["retryable"] = orchestrator.IsRetryable(err)
		slog.Error("variable injection failed", slog.String("instanceID", instanceID), slog.String("projectID", projectID), slog.String("respondentID", respondentID), slog.String("runID", out.RunID), slog.Int("status", status), slog.String("error", err.Error()))
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
