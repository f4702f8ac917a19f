package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/util"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindInsufficientStock, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Causes are logged, never returned.
func respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.ErrInternal.Wrap(err)
	}

	status := statusFor(ae.Kind)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(c.Request.Context()).Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("code", ae.Code),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    ae.Code,
			"message": ae.Message,
		},
	})
}

func respondBindError(c *gin.Context, err error) {
	util.LoggerFromContext(c.Request.Context()).Debug("Invalid request body", zap.Error(err))
	respondError(c, apperr.ErrInvalidInput.WithMessage("Invalid request body"))
}

// idParam parses a positive integer path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperr.ErrInvalidInput.WithMessage("Invalid %s", name))
		return 0, false
	}
	return id, true
}

// intQuery parses an optional integer query parameter
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		respondError(c, apperr.ErrInvalidInput.WithMessage("Invalid %s", name))
		return 0, false
	}
	return v, true
}
