package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maestro/config/models"
)

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": models.MaskAll(s.registry.LoadConfigs())})
}

// replaceModels swaps in the whole list. A masked apiKey sent back for an
// existing id keeps the stored key; entries without an id get a new one.
// The models field is required; an explicit empty list clears the registry.
func (s *Server) replaceModels(c *gin.Context) {
	var body struct {
		Models *[]models.ModelConfig `json:"models"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if body.Models == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": `invalid request body: missing "models" list`})
		return
	}

	var saved []models.ModelConfig
	err := s.registry.Edit(func(current []models.ModelConfig) ([]models.ModelConfig, error) {
		var err error
		saved, err = models.RestoreMaskedKeys(current, *body.Models)
		return saved, err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models.MaskAll(saved)})
}

func (s *Server) activeModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": models.MaskAll(s.registry.Active())})
}

func (s *Server) nextModel(c *gin.Context) {
	cfg, err := s.registry.Next()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": cfg.Masked()})
}
