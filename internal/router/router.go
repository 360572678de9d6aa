package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mantra/backend/internal/handler"
	"mantra/backend/internal/middleware"
	"mantra/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	counterHandler *handler.CounterHandler,
	practiceHandler *handler.PracticeHandler,
	backupHandler *handler.BackupHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.Auth(authService))

	counters := authed.Group("/counters")
	counters.GET("", counterHandler.List)
	counters.POST("", counterHandler.Create)
	counters.PUT("/:id", counterHandler.Update)
	counters.DELETE("/:id", counterHandler.Delete)
	counters.GET("/:id/stats", counterHandler.Stats)
	counters.DELETE("/:id/sessions", counterHandler.ClearHistory)

	sessions := authed.Group("/sessions")
	sessions.GET("", counterHandler.History)
	sessions.DELETE("/:id", counterHandler.DeleteSession)

	practice := authed.Group("/practice")
	practice.GET("/state", practiceHandler.State)
	practice.POST("/select", practiceHandler.Select)
	practice.POST("/tap", practiceHandler.Tap)
	practice.POST("/decrement", practiceHandler.Decrement)
	practice.POST("/finish", practiceHandler.Finish)
	practice.POST("/reset", practiceHandler.Reset)
	practice.POST("/reset-counter", practiceHandler.ResetCounter)
	practice.POST("/tick", practiceHandler.Tick)

	authed.GET("/export", backupHandler.Export)
	authed.POST("/import", backupHandler.Import)

	return engine
}
