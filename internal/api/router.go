package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/api/handlers"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/middleware"
	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/services"
)

// Deps is everything the router needs from the running service.
type Deps struct {
	Engine      *services.TranslationEngine
	Live        *services.LiveTranslator
	Retention   *services.RetentionWorker
	Auth        *middleware.AdminAuth
	ClientLimit *middleware.ClientRateLimiter
	CORSOrigins []string
}

// NewRouter builds the HTTP surface of the translation service.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(d.CORSOrigins), metrics.HTTPMetrics())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": d.Engine.BackendName()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	translation := handlers.NewTranslationHandler(d.Engine, d.Live)
	admin := handlers.NewAdminHandler(d.Engine, d.Retention)

	apiGroup := router.Group("/api")
	if d.ClientLimit != nil {
		apiGroup.Use(d.ClientLimit.Middleware())
	}
	{
		apiGroup.GET("/languages", translation.GetLanguages)
		apiGroup.GET("/languages/detect", translation.DetectLanguage)

		apiGroup.POST("/translate", translation.Translate)
		apiGroup.POST("/translate/batch", translation.TranslateBatch)
		apiGroup.POST("/translate/structure", translation.TranslateStructure)
		apiGroup.POST("/translate/page", translation.TranslatePage)
		apiGroup.POST("/translate/live", middleware.LiveTranslation(d.Live), translation.TranslateLive)

		auth := d.Auth
		if auth == nil {
			auth = middleware.NewAdminAuth("")
		}
		apiGroup.GET("/auth/status", auth.Status)
		apiGroup.GET("/auth/verify", auth.Verify)

		adminGroup := apiGroup.Group("/admin")
		adminGroup.Use(auth.Middleware())
		{
			adminGroup.GET("/translations/stats", admin.GetStats)
			adminGroup.POST("/translations/cleanup", admin.Cleanup)
			adminGroup.POST("/translations/stats/reset", admin.ResetStats)
		}
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Target-Language", "X-Source-Language", "X-Page-Key"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			break
		}
		if o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}
