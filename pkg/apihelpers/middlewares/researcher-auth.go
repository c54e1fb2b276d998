package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	jwthandling "github.com/ddsurveys/dds-backend/pkg/jwt-handling"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "Api-Key"
	HeaderInstanceID    = "X-Instance-ID"

	CTX_VALIDATED_TOKEN = "validatedToken"
	CTX_INSTANCE_ID     = "instanceID"
)

// ResearcherAuthMiddleware validates the researcher JWT and its instance.
func ResearcherAuthMiddleware(tokenSignKey string, allowedInstanceIDs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			slog.Warn("no Authorization token found")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		parsedToken, ok, err := jwthandling.ValidateResearcherToken(token, tokenSignKey)
		if err != nil || !ok {
			slog.Warn("token validation failed", slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "error during token validation"})
			return
		}

		if !isInstanceAllowed(parsedToken.InstanceID, allowedInstanceIDs) {
			slog.Warn("instanceID not allowed", slog.String("instanceID", parsedToken.InstanceID), slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "instanceID not allowed"})
			return
		}
		c.Set(CTX_VALIDATED_TOKEN, parsedToken)
		c.Set(CTX_INSTANCE_ID, parsedToken.InstanceID)
		c.Next()
	}
}

// CanAccessProject rejects researchers that may not manage the :projectID of the route.
func CanAccessProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenValue, ok := c.Get(CTX_VALIDATED_TOKEN)
		if !ok {
			slog.Warn("CanAccessProject: validatedToken not found in context")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validatedToken not found in context"})
			return
		}
		parsedToken := tokenValue.(*jwthandling.ResearcherClaims)

		projectID := c.Param("projectID")
		if !parsedToken.CanAccessProject(projectID) {
			slog.Warn("researcher tried to access foreign project", slog.String("instanceID", parsedToken.InstanceID), slog.String("userID", parsedToken.Subject), slog.String("projectID", projectID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no access to project"})
			return
		}
		c.Next()
	}
}

// InstanceIDFromHeader reads the instance of service calls from the X-Instance-ID header.
func InstanceIDFromHeader(allowedInstanceIDs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		instanceID := c.GetHeader(HeaderInstanceID)
		if !isInstanceAllowed(instanceID, allowedInstanceIDs) {
			slog.Warn("instanceID not allowed", slog.String("instanceID", instanceID), slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "instanceID not allowed"})
			return
		}
		c.Set(CTX_INSTANCE_ID, instanceID)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	tokens, ok := c.Request.Header[HeaderAuthorization]
	if !ok || len(tokens) == 0 {
		return "", errors.New("no Authorization header found")
	}
	token := strings.TrimPrefix(tokens[0], "Bearer ")
	if len(token) == 0 {
		return "", errors.New("no token found in Authorization header")
	}
	return token, nil
}

func isInstanceAllowed(instanceID string, allowedInstanceIDs []string) bool {
	return instanceID != "" && slices.Contains(allowedInstanceIDs, instanceID)
}
