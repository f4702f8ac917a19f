package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// UserIDHeader carries the identity-provider id of the authenticated caller
const UserIDHeader = "X-User-ID"

const (
	ctxUser  = "user"
	ctxAdmin = "is_admin"
)

// authenticate resolves the caller to a local user, creating the record on
// first sight.
func (h *Handler) authenticate(c *gin.Context) {
	providerID := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if providerID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"},
		})
		return
	}

	user, err := h.svc.Identity.EnsureUser(c.Request.Context(), providerID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "Account no longer exists"},
			})
			return
		}
		respondError(c, err)
		return
	}

	trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.Int64("user.id", user.ID))
	c.Set(ctxUser, user)
	c.Set(ctxAdmin, h.svc.Identity.IsAdmin(user))
	c.Next()
}

func (h *Handler) requireAdmin(c *gin.Context) {
	if !c.GetBool(ctxAdmin) {
		respondError(c, apperr.ErrForbidden)
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(ctxUser).(*models.User)
}
