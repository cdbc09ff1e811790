package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"maestro/config"
	"maestro/config/models"
	"maestro/internal/llm"
	"maestro/internal/maestro"
)

// writeError maps domain errors onto status codes. Invocation failures keep
// their category so clients can tell a bad key from a rate limit.
func (s *Server) writeError(c *gin.Context, err error) {
	var verr *config.ValidationError
	var ierr *llm.InvocationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": config.ErrInvalidConfigList.Error(), "fields": verr.Fields})
	case errors.Is(err, config.ErrNoActiveModel), errors.Is(err, config.ErrUndecryptable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, maestro.ErrEmptyDescription), errors.Is(err, maestro.ErrUnknownLayer), errors.Is(err, models.ErrUnknownMaskedKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &ierr):
		s.log.WithError(err).Warn("model invocation failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    ierr.UserMessage(),
			"category": ierr.Category,
			"provider": ierr.Provider,
			"model":    ierr.Model,
		})
	default:
		s.log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
