package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/services"
)

const liveSessionKey = "live_translation_session"

// DefaultSourceLanguage is assumed when a request does not name one.
const DefaultSourceLanguage = "en"

// LiveTranslation attaches a live translation session to requests that ask
// for a target language (?lang= or X-Target-Language) and flushes it after the
// handler wrote its response.
func LiveTranslation(lt *services.LiveTranslator) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Query("lang")
		if target == "" {
			target = c.GetHeader("X-Target-Language")
		}
		if target == "" || !services.IsValidLanguageCode(target) {
			c.Next()
			return
		}

		source := c.GetHeader("X-Source-Language")
		if !services.IsValidLanguageCode(source) {
			source = DefaultSourceLanguage
		}
		pageKey := c.GetHeader("X-Page-Key")
		if pageKey == "" {
			pageKey = c.FullPath()
		}

		session := lt.NewSession(pageKey, source, target)
		c.Set(liveSessionKey, session)
		c.Next()
		session.Flush()
	}
}

// LiveSession returns the session attached by LiveTranslation, or nil.
func LiveSession(c *gin.Context) *services.PageSession {
	v, ok := c.Get(liveSessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*services.PageSession)
	return session
}
