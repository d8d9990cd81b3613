package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pokedi/edfc/internal/logging"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// interactionAuth rejects webhook calls whose signature does not verify.
func interactionAuth(h InteractionHandler, logger *logging.Logger) gin.HandlerFunc {
	if h == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "not_configured",
				Message: "Discord interactions are not configured",
				Code:    http.StatusServiceUnavailable,
			})
		}
	}

	return func(c *gin.Context) {
		if !h.Verify(c.Request) {
			logger.WarnWithContext(c.Request.Context(), "interaction signature rejected",
				"client_ip", c.ClientIP(),
				"path", c.Request.URL.Path,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "invalid request signature",
				Code:    http.StatusUnauthorized,
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleInteraction(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		status := http.StatusBadRequest
		if isBodyTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		c.AbortWithStatusJSON(status, ErrorResponse{
			Error:   "bad_request",
			Message: "unable to read body",
			Code:    status,
		})
		return
	}

	resp, err := s.deps.Interactions.Handle(c.Request.Context(), body)
	if err != nil {
		s.logger.WarnWithContext(c.Request.Context(), "interaction rejected", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}
