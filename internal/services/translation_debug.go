package services

import (
	"log"

	"go.uber.org/atomic"
)

var translationDebugEnabled atomic.Bool

// SetDebug toggles verbose translation logging (TRANSLATION_DEBUG).
func SetDebug(enabled bool) {
	translationDebugEnabled.Store(enabled)
	if enabled {
		log.Println("[TRANSLATION] Debug logging: ENABLED")
	}
}

// debugLog logs only when debug logging is enabled.
// Use this for verbose per-request details, cache hits/misses, batch splits, etc.
func debugLog(format string, args ...interface{}) {
	if translationDebugEnabled.Load() {
		log.Printf("[TRANSLATION DEBUG] "+format, args...)
	}
}

// infoLog always logs important translation events.
// Use this for fallback triggers, retention sweeps, cache stats, etc.
func infoLog(format string, args ...interface{}) {
	log.Printf("[TRANSLATION] "+format, args...)
}

// warnLog reports rejected input that was handled locally.
func warnLog(format string, args ...interface{}) {
	log.Printf("[TRANSLATION WARN] "+format, args...)
}

// errorLog reports backend and store failures that triggered a fallback.
func errorLog(format string, args ...interface{}) {
	log.Printf("[TRANSLATION ERROR] "+format, args...)
}

// truncateText truncates text to maxLen runes with ellipsis.
// Uses rune count instead of byte count to properly handle UTF-8.
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
