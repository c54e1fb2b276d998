package apihandlers

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	projectDB "github.com/ddsurveys/dds-backend/pkg/db/project"
	jwthandling "github.com/ddsurveys/dds-backend/pkg/jwt-handling"
	"github.com/ddsurveys/dds-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// AddConsentAPI registers the respondent facing OAuth consent round trip.
func (h *HttpEndpoints) AddConsentAPI(rg *gin.RouterGroup) {
	rg.GET("/connect/:projectID/:provider", h.startConsent) // ?instanceID=&respondentID=
	rg.GET("/oauth/callback/:provider", h.consentCallback)  // ?code=&state=
}

func (h *HttpEndpoints) startConsent(c *gin.Context) {
	projectID := c.Param("projectID")
	provider := c.Param("provider")
	instanceID := c.Query("instanceID")
	respondentID := c.Query("respondentID")

	if !slices.Contains(h.allowedInstanceIDs, instanceID) {
		slog.Warn("instanceID not allowed", slog.String("instanceID", instanceID))
		c.JSON(http.StatusBadRequest, gin.H{"error": "instanceID not allowed"})
		return
	}
	if respondentID == "" || !utils.IsURLSafe(respondentID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid respondentID"})
		return
	}

	conn, err := h.store.GetDataConnection(instanceID, projectID, provider)
	if err != nil {
		errorResponse(c, err, "provider not connected to project", slog.String("instanceID", instanceID), slog.String("projectID", projectID), slog.String("provider", provider))
		return
	}

	state, err := jwthandling.GenerateOAuthStateToken(h.stateTokenTTL, instanceID, projectID, provider, respondentID, h.tokenSignKey)
	if err != nil {
		slog.Error("failed to generate state token", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start consent"})
		return
	}

	consentURL, err := h.consent.AuthCodeURL(conn, state)
	if err != nil {
		errorResponse(c, err, "failed to build consent url", slog.String("instanceID", instanceID), slog.String("projectID", projectID), slog.String("provider", provider))
		return
	}
	slog.Debug("redirecting respondent to consent page", slog.String("instanceID", instanceID), slog.String("projectID", projectID), slog.String("provider", provider), slog.String("respondentID", respondentID))
	c.Redirect(http.StatusFound, consentURL)
}

func (h *HttpEndpoints) consentCallback(c *gin.Context) {
	provider := c.Param("provider")

	if providerErr := c.Query("error"); providerErr != "" {
		slog.Warn("consent denied", slog.String("provider", provider), slog.String("error", providerErr))
		c.JSON(http.StatusBadRequest, gin.H{"error": "consent denied", "reason": providerErr})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code missing"})
		return
	}

	claims, err := jwthandling.ValidateOAuthStateToken(c.Query("state"), provider, h.tokenSignKey)
	if err != nil {
		slog.Warn("invalid consent state", slog.String("provider", provider), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}
	if !slices.Contains(h.allowedInstanceIDs, claims.InstanceID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instanceID not allowed"})
		return
	}

	logAttrs := []any{
		slog.String("instanceID", claims.InstanceID),
		slog.String("projectID", claims.ProjectID),
		slog.String("provider", provider),
		slog.String("respondentID", claims.RespondentID()),
	}

	if err := h.store.MarkStateTokenUsed(claims.InstanceID, claims.ID, claims.ExpiresAt.Time); err != nil {
		if errors.Is(err, projectDB.ErrStateTokenUsed) {
			slog.Warn("consent state replayed", logAttrs...)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
			return
		}
		errorResponse(c, err, "failed to record consent state", logAttrs...)
		return
	}

	conn, err := h.store.GetDataConnection(claims.InstanceID, claims.ProjectID, provider)
	if err != nil {
		errorResponse(c, err, "provider not connected to project", logAttrs...)
		return
	}

	access, err := h.consent.Exchange(c.Request.Context(), conn, claims.RespondentID(), code)
	if err != nil {
		errorResponse(c, err, "failed to exchange consent code", logAttrs...)
		return
	}

	if err := h.store.SaveDataProviderAccess(claims.InstanceID, access); err != nil {
		errorResponse(c, err, "failed to save data provider access", logAttrs...)
		return
	}
	slog.Info("data provider access granted", logAttrs...)
	c.JSON(http.StatusOK, gin.H{"message": "access granted", "provider": provider})
}
