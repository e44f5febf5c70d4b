package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reflow_oven/internal/service"
)

// ctxOperatorID is the gin context key holding the authenticated operator.
const ctxOperatorID = "operatorId"

// requireOperator rejects requests without a valid bearer token. The
// operator is stored on the gin context and on the request context, where
// the services pick it up for the command log.
func (h *Handler) requireOperator(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	id, err := h.services.ParseToken(strings.TrimSpace(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(ctxOperatorID, id)
	c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), id))
	c.Next()
}

// operatorID returns the operator set by requireOperator, or 0.
func operatorID(c *gin.Context) int {
	return c.GetInt(ctxOperatorID)
}
