package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/middleware"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/services"
)

// maxBatchTexts caps the texts accepted per request
const maxBatchTexts = 500

type TranslationHandler struct {
	engine *services.TranslationEngine
	live   *services.LiveTranslator
}

func NewTranslationHandler(engine *services.TranslationEngine, live *services.LiveTranslator) *TranslationHandler {
	return &TranslationHandler{engine: engine, live: live}
}

type languagePair struct {
	SourceLanguage string `json:"source_language" binding:"required"`
	TargetLanguage string `json:"target_language" binding:"required"`
	PageKey        string `json:"page_key"`
}

type translateRequest struct {
	languagePair
	Text       string `json:"text"`
	ElementKey string `json:"element_key"`
}

type batchRequest struct {
	languagePair
	Texts []string `json:"texts" binding:"required"`
}

type structureRequest struct {
	languagePair
	Data services.Value `json:"data"`
}

type pageRequest struct {
	languagePair
	Entries map[string]string `json:"entries" binding:"required"`
}

// bindPair decodes the body and validates the language codes. It writes the
// 400 response itself and reports whether the handler may continue.
func bindPair(c *gin.Context, req interface{}, pair *languagePair) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return false
	}
	if !services.IsValidLanguageCode(pair.SourceLanguage) || !services.IsValidLanguageCode(pair.TargetLanguage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid language code", "code": "INVALID_LANGUAGE"})
		return false
	}
	return true
}

// respondTranslateError maps the only error the engine returns to a 400.
func respondTranslateError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, services.ErrMissingLanguage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "MISSING_LANGUAGE"})
		return true
	}
	// Anything else still produced a usable (fallback) result.
	return false
}

// Translate translates one text
// POST /api/translate
func (h *TranslationHandler) Translate(c *gin.Context) {
	var req translateRequest
	if !bindPair(c, &req, &req.languagePair) {
		return
	}

	translated, err := h.engine.TranslateOne(c.Request.Context(), req.Text, req.SourceLanguage, req.TargetLanguage,
		services.Location{PageKey: req.PageKey, ElementKey: req.ElementKey})
	if respondTranslateError(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"translation":     translated,
		"source_language": req.SourceLanguage,
		"target_language": req.TargetLanguage,
	})
}

// TranslateBatch translates a list of texts, preserving order
// POST /api/translate/batch
func (h *TranslationHandler) TranslateBatch(c *gin.Context) {
	var req batchRequest
	if !bindPair(c, &req, &req.languagePair) {
		return
	}
	if len(req.Texts) > maxBatchTexts {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many texts", "max": maxBatchTexts})
		return
	}

	translations, err := h.engine.TranslateBatch(c.Request.Context(), req.Texts, req.SourceLanguage, req.TargetLanguage, req.PageKey)
	if respondTranslateError(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"translations":    translations,
		"count":           len(translations),
		"source_language": req.SourceLanguage,
		"target_language": req.TargetLanguage,
	})
}

// TranslateStructure translates every string leaf of a JSON document
// POST /api/translate/structure
func (h *TranslationHandler) TranslateStructure(c *gin.Context) {
	var req structureRequest
	if !bindPair(c, &req, &req.languagePair) {
		return
	}

	data, err := h.engine.TranslateStructure(c.Request.Context(), req.Data, req.SourceLanguage, req.TargetLanguage, req.PageKey)
	if respondTranslateError(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

// TranslatePage translates the keyed strings of one page
// POST /api/translate/page
func (h *TranslationHandler) TranslatePage(c *gin.Context) {
	var req pageRequest
	if !bindPair(c, &req, &req.languagePair) {
		return
	}
	if len(req.Entries) > maxBatchTexts {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many entries", "max": maxBatchTexts})
		return
	}

	entries, err := h.engine.TranslatePage(c.Request.Context(), req.Entries, req.SourceLanguage, req.TargetLanguage, req.PageKey)
	if respondTranslateError(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "page_key": req.PageKey})
}

// TranslateLive answers immediately with whatever is already translated and
// translates the rest after the response was sent.
// POST /api/translate/live
func (h *TranslationHandler) TranslateLive(c *gin.Context) {
	var req batchRequest
	if !bindPair(c, &req, &req.languagePair) {
		return
	}
	if len(req.Texts) > maxBatchTexts {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many texts", "max": maxBatchTexts})
		return
	}

	session := middleware.LiveSession(c)
	if !sessionServes(session, req.languagePair) {
		session = h.live.NewSession(req.PageKey, req.SourceLanguage, req.TargetLanguage)
		defer session.Flush()
	}

	ctx := c.Request.Context()
	translations := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		translations[i] = session.Text(ctx, text)
	}

	c.JSON(http.StatusOK, gin.H{
		"translations": translations,
		"session_id":   session.ID,
		"pending":      len(session.Pending()),
		"state":        session.State().String(),
	})
}

// sessionServes reports whether the middleware session was opened for the
// same languages and page as the request body.
func sessionServes(session *services.PageSession, pair languagePair) bool {
	if session == nil {
		return false
	}
	if session.SourceLanguage != services.NormalizeLanguageCode(pair.SourceLanguage) ||
		session.TargetLanguage != services.NormalizeLanguageCode(pair.TargetLanguage) {
		return false
	}
	return pair.PageKey == "" || session.PageKey == pair.PageKey
}

// GetLanguages returns the advisory list of supported languages
// GET /api/languages
func (h *TranslationHandler) GetLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": services.SupportedLanguages()})
}

// DetectLanguage resolves free-form input to a language code
// GET /api/languages/detect?q=French
func (h *TranslationHandler) DetectLanguage(c *gin.Context) {
	code := services.DetectLanguageCode(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"code": code,
		"name": services.SupportedLanguages()[code],
	})
}
