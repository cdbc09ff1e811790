package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"maestro/internal/maestro"
)

func (s *Server) listLayers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"layers": maestro.Layers()})
}

func (s *Server) listThreats(c *gin.Context) {
	state := s.workspace.Load()
	if c.Query("group") == "layer" {
		c.JSON(http.StatusOK, gin.H{
			"systemDescription": state.SystemDescription,
			"groups":            maestro.GroupByLayer(state.Threats),
		})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) setDescription(c *gin.Context) {
	var body struct {
		SystemDescription string `json:"systemDescription"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(body.SystemDescription) == "" {
		s.writeError(c, maestro.ErrEmptyDescription)
		return
	}
	state, err := s.workspace.SetDescription(body.SystemDescription)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// description falls back to the workspace description when the request
// carries none.
func (s *Server) description(given string) string {
	if strings.TrimSpace(given) != "" {
		return given
	}
	return s.workspace.Load().SystemDescription
}

func (s *Server) generateThreats(c *gin.Context) {
	var body struct {
		SystemDescription string `json:"systemDescription"`
		Layer             string `json:"layer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := s.generator.GenerateThreats(c.Request.Context(), s.description(body.SystemDescription), body.Layer)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if _, err := s.workspace.AddThreats(res.Value...); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threats": res.Value, "model": res.Model})
}

func (s *Server) removeThreat(c *gin.Context) {
	removed, err := s.workspace.RemoveThreat(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "threat not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type matrixRow struct {
	Likelihood maestro.Likelihood        `json:"likelihood"`
	Counts     map[maestro.RiskLevel]int `json:"counts"`
}

func (s *Server) riskMatrix(c *gin.Context) {
	m := maestro.BuildRiskMatrix(s.workspace.Load().Threats)
	rows := make([]matrixRow, 0, len(maestro.Likelihoods))
	for _, l := range maestro.Likelihoods {
		row := matrixRow{Likelihood: l, Counts: make(map[maestro.RiskLevel]int, len(maestro.RiskLevels))}
		for _, r := range maestro.RiskLevels {
			row.Counts[r] = m.Count(l, r)
		}
		rows = append(rows, row)
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "total": m.Total()})
}

func (s *Server) generateDiagram(c *gin.Context) {
	var body struct {
		SystemDescription string `json:"systemDescription"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := s.generator.GenerateDiagram(c.Request.Context(), s.description(body.SystemDescription))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagram": res.Value, "model": res.Model})
}

func (s *Server) generateLayerPrompt(c *gin.Context) {
	var body struct {
		SystemDescription string `json:"systemDescription"`
		Layer             string `json:"layer" binding:"required"`
		ThreatTemplates   string `json:"threatTemplates"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := s.generator.GenerateLayerPrompt(c.Request.Context(), s.description(body.SystemDescription), body.Layer, body.ThreatTemplates)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": res.Value, "model": res.Model})
}
