package server

import (
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"
)

type dependencyCheck struct {
	Name      string
	Available bool
	Detail    string
}

func (s *Server) checkDependencies() []dependencyCheck {
	checks := []dependencyCheck{
		binaryCheck("tesseract", s.deps.OCR.Tesseract, "image OCR"),
		binaryCheck("pdftotext", s.deps.OCR.Pdftotext, "native PDF text"),
		binaryCheck("pdftoppm", s.deps.OCR.Pdftoppm, "scanned PDF rasterization"),
	}

	db := dependencyCheck{Name: "postgres"}
	if s.deps.DB == nil {
		db.Detail = "not configured"
	} else if sqlDB, err := s.deps.DB.DB(); err != nil {
		db.Detail = err.Error()
	} else if err := sqlDB.Ping(); err != nil {
		db.Detail = err.Error()
	} else {
		db.Available = true
		db.Detail = "connected"
	}
	checks = append(checks, db)

	llm := dependencyCheck{Name: "llm"}
	if s.deps.LLMModel == "" {
		llm.Detail = "no API key set, heuristic parser only"
	} else {
		llm.Available = true
		llm.Detail = "model " + s.deps.LLMModel
	}
	return append(checks, llm)
}

func binaryCheck(name, path, purpose string) dependencyCheck {
	if path == "" {
		path = name
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return dependencyCheck{Name: name, Detail: "not found, " + purpose + " unavailable"}
	}
	return dependencyCheck{Name: name, Available: true, Detail: resolved}
}

func (s *Server) showStatus(c *gin.Context) {
	s.render(c, http.StatusOK, "status.html", gin.H{
		"Checks":   s.checkDependencies(),
		"LLMModel": s.deps.LLMModel,
	})
}

func (s *Server) apiHealth(c *gin.Context) {
	checks := s.checkDependencies()
	deps := make(map[string]bool, len(checks))
	for _, ch := range checks {
		deps[ch.Name] = ch.Available
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": deps})
}
