package apihandlers

import (
	"log/slog"
	"net/http"

	mw "github.com/ddsurveys/dds-backend/pkg/apihelpers/middlewares"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	jwthandling "github.com/ddsurveys/dds-backend/pkg/jwt-handling"
	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) AddProjectManagementAPI(rg *gin.RouterGroup) {
	rg.GET("/catalog", mw.ResearcherAuthMiddleware(h.tokenSignKey, h.allowedInstanceIDs), h.getCatalog)

	projectsGroup := rg.Group("/projects")
	projectsGroup.Use(mw.ResearcherAuthMiddleware(h.tokenSignKey, h.allowedInstanceIDs))
	{
		projectsGroup.GET("", h.getProjects)
		projectsGroup.POST("", mw.RequirePayload(), h.createProject)
	}

	projectGroup := projectsGroup.Group("/:projectID")
	projectGroup.Use(mw.CanAccessProject())
	{
		projectGroup.GET("", h.getProject)
		projectGroup.PUT("/survey", mw.RequirePayload(), h.updateProjectSurvey)

		projectGroup.GET("/custom-variables", h.getCustomVariables)
		projectGroup.POST("/custom-variables", mw.RequirePayload(), h.createCustomVariable)
		projectGroup.GET("/custom-variables/validate", h.validateCustomVariables)
		projectGroup.DELETE("/custom-variables/:variableID", h.deleteCustomVariable)

		projectGroup.GET("/data-connections", h.getDataConnections)
		projectGroup.POST("/data-connections", mw.RequirePayload(), h.attachDataConnection)
		projectGroup.DELETE("/data-connections/:provider", h.detachDataConnection)
	}
}

func researcherToken(c *gin.Context) *jwthandling.ResearcherClaims {
	return c.MustGet(mw.CTX_VALIDATED_TOKEN).(*jwthandling.ResearcherClaims)
}

func (h *HttpEndpoints) getCatalog(c *gin.Context) {
	type categoryInfo struct {
		Name         string                `json:"name"`
		Variable     string                `json:"variable"`
		VariableType ddsTypes.VariableType `json:"variableType"`
		Description  string                `json:"description,omitempty"`
	}
	type providerInfo struct {
		ddsTypes.DataProvider
		Categories []categoryInfo `json:"categories"`
	}

	providers := []providerInfo{}
	for _, p := range h.catalog.Providers() {
		info := providerInfo{DataProvider: p, Categories: []categoryInfo{}}
		for _, cat := range h.catalog.Categories(p.Name) {
			info.Categories = append(info.Categories, categoryInfo{
				Name:         cat.Name,
				Variable:     ddsTypes.VariableName(p.Name, cat.Name),
				VariableType: cat.VariableType,
				Description:  cat.Description,
			})
		}
		providers = append(providers, info)
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

func (h *HttpEndpoints) getProjects(c *gin.Context) {
	token := researcherToken(c)

	projects, err := h.store.GetProjects(token.InstanceID)
	if err != nil {
		errorResponse(c, err, "failed to get projects", slog.String("instanceID", token.InstanceID))
		return
	}

	visible := []ddsTypes.Project{}
	for _, p := range projects {
		if token.CanAccessProject(p.ID.Hex()) {
			visible = append(visible, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"projects": visible})
}

func (h *HttpEndpoints) createProject(c *gin.Context) {
	token := researcherToken(c)
	if !token.IsAdmin {
		slog.Warn("non admin researcher tried to create a project", slog.String("instanceID", token.InstanceID), slog.String("userID", token.Subject))
		c.JSON(http.StatusForbidden, gin.H{"error": "only admins can create projects"})
		return
	}

	var req struct {
		Name     string `json:"name"`
		SurveyID string `json:"surveyID"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	project, err := h.store.CreateProject(token.InstanceID, ddsTypes.Project{Name: req.Name, SurveyID: req.SurveyID})
	if err != nil {
		errorResponse(c, err, "failed to create project", slog.String("instanceID", token.InstanceID))
		return
	}
	slog.Info("project created", slog.String("instanceID", token.InstanceID), slog.String("projectID", project.ID.Hex()), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, project)
}

func (h *HttpEndpoints) getProject(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")

	project, err := h.store.GetProject(token.InstanceID, projectID)
	if err != nil {
		errorResponse(c, err, "failed to get project", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *HttpEndpoints) updateProjectSurvey(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")

	var req struct {
		SurveyID string `json:"surveyID"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SurveyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "surveyID is required"})
		return
	}

	if _, err := h.store.GetProject(token.InstanceID, projectID); err != nil {
		errorResponse(c, err, "failed to get project", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	if err := h.store.UpdateProjectSurvey(token.InstanceID, projectID, req.SurveyID); err != nil {
		errorResponse(c, err, "failed to update project survey", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "survey updated"})
}
