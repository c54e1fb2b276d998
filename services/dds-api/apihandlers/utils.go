package apihandlers

import (
	"errors"
	"log/slog"
	"net/http"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// statusForError maps store and pipeline errors to HTTP statuses.
func statusForError(err error) int {
	if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, primitive.ErrInvalidHex) {
		return http.StatusNotFound
	}
	kind, ok := ddsTypes.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case ddsTypes.ERROR_KIND_CONFIGURATION:
		return http.StatusBadRequest
	case ddsTypes.ERROR_KIND_FLOW_WRITE:
		return http.StatusServiceUnavailable
	case ddsTypes.ERROR_KIND_PROVIDER_AUTH:
		return http.StatusBadGateway
	case ddsTypes.ERROR_KIND_PROVIDER_RESPONSE:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorResponse(c *gin.Context, err error, msg string, attrs ...any) {
	status := statusForError(err)
	attrs = append(attrs, slog.String("error", err.Error()), slog.Int("status", status))
	if status >= http.StatusInternalServerError {
		slog.Error(msg, attrs...)
	} else {
		slog.Warn(msg, attrs...)
	}

	body := gin.H{"error": msg}
	if kind, ok := ddsTypes.KindOf(err); ok {
		body["errorKind"] = kind
		if kind == ddsTypes.ERROR_KIND_CONFIGURATION {
			body["detail"] = err.Error()
		}
	}
	c.JSON(status, body)
}
