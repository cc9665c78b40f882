package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contest-maker-150/assessment/internal/domain"
)

type languageResponse struct {
	Language domain.Language `json:"language"`
	Version  string          `json:"version"`
	Snippet  string          `json:"snippet"`
}

// LanguageHandler lists the languages code can be run in
type LanguageHandler struct {
	languages domain.LanguageTable
}

// NewLanguageHandler creates a new language handler
func NewLanguageHandler(languages domain.LanguageTable) *LanguageHandler {
	return &LanguageHandler{languages: languages}
}

// GetLanguages returns every supported language with its default snippet
// GET /api/languages
func (h *LanguageHandler) GetLanguages(c *gin.Context) {
	langs := h.languages.Languages()
	responses := make([]languageResponse, 0, len(langs))
	for _, lang := range langs {
		spec := h.languages[lang]
		responses = append(responses, languageResponse{
			Language: lang,
			Version:  spec.Version,
			Snippet:  spec.Snippet,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"languages": responses,
	})
}
