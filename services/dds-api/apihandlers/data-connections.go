package apihandlers

import (
	"log/slog"
	"net/http"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) getDataConnections(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")

	conns, err := h.store.GetDataConnections(token.InstanceID, projectID)
	if err != nil {
		errorResponse(c, err, "failed to get data connections", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataConnections": conns})
}

func (h *HttpEndpoints) attachDataConnection(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")

	var req struct {
		Provider    string   `json:"provider"`
		ClientID    string   `json:"clientID"`
		Scopes      []string `json:"scopes"`
		RedirectURL string   `json:"redirectURL"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("failed to bind request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, ok := h.catalog.Provider(req.Provider)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider", "provider": req.Provider})
		return
	}
	if provider.Type == ddsTypes.DATA_PROVIDER_TYPE_OAUTH && (req.ClientID == "" || req.RedirectURL == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientID and redirectURL are required for oauth providers"})
		return
	}

	if _, err := h.store.GetProject(token.InstanceID, projectID); err != nil {
		errorResponse(c, err, "failed to get project", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID))
		return
	}

	conn, err := h.store.SaveDataConnection(token.InstanceID, ddsTypes.DataConnection{
		ProjectID:   projectID,
		Provider:    provider.Name,
		ClientID:    req.ClientID,
		Scopes:      req.Scopes,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		errorResponse(c, err, "failed to save data connection", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID), slog.String("provider", provider.Name))
		return
	}
	slog.Info("data connection attached", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID), slog.String("provider", provider.Name), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, conn)
}

func (h *HttpEndpoints) detachDataConnection(c *gin.Context) {
	token := researcherToken(c)
	projectID := c.Param("projectID")
	provider := c.Param("provider")

	if err := h.store.DeleteDataConnection(token.InstanceID, projectID, provider); err != nil {
		errorResponse(c, err, "failed to delete data connection", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID), slog.String("provider", provider))
		return
	}
	slog.Info("data connection detached", slog.String("instanceID", token.InstanceID), slog.String("projectID", projectID), slog.String("provider", provider), slog.String("userID", token.Subject))
	c.JSON(http.StatusOK, gin.H{"message": "data connection deleted"})
}
