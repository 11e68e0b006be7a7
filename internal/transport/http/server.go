package http

import (
	"github.com/gin-gonic/gin"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/bootstrap"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/pkg/jwtutil"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http/handler"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http/middleware"
)

const multipartOverhead = 1 << 20

func NewRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config
	if cfg.App.GinMode != "" {
		gin.SetMode(cfg.App.GinMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(app.Logger),
		gin.Recovery(),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/", healthHandler.Liveness)
	router.GET("/healthz", healthHandler.Check)

	jsonLimit := middleware.BodyLimit(cfg.HTTP.MaxJSONBodyBytes)

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst))

	if app.Chat != nil {
		api.POST("/chat", jsonLimit, handler.NewChatHandler(app.Chat, app.Logger).Send)
	} else {
		api.POST("/chat", degraded(app, bootstrap.ComponentChat))
	}

	if app.Documents != nil {
		docHandler := handler.NewDocumentHandler(app.Documents, cfg.Documents.FormField, app.Logger)
		api.GET("/documents", docHandler.List)
		api.GET("/documents/:name", docHandler.Serve)
		api.HEAD("/documents/:name", docHandler.Serve)
	} else {
		api.GET("/documents", degraded(app, bootstrap.ComponentDocuments))
		api.GET("/documents/:name", degraded(app, bootstrap.ComponentDocuments))
		api.HEAD("/documents/:name", degraded(app, bootstrap.ComponentDocuments))
	}

	if app.AdminAuth != nil {
		api.POST("/admin/token", jsonLimit, handler.NewAuthHandler(app.AdminAuth, app.Logger).IssueToken)
	} else {
		api.POST("/admin/token", degraded(app, bootstrap.ComponentAuth))
	}

	admin := api.Group("/admin")
	if cfg.Auth.JWTSecret != "" {
		admin.Use(middleware.AuthJWT(cfg.Auth.JWTSecret, jwtutil.RoleAdmin))
	}

	if app.Documents != nil {
		uploadLimit := middleware.BodyLimit(app.Documents.MaxBytes() + multipartOverhead)
		docHandler := handler.NewDocumentHandler(app.Documents, cfg.Documents.FormField, app.Logger)
		admin.POST("/upload", uploadLimit, docHandler.Upload)
	} else {
		admin.POST("/upload", degraded(app, bootstrap.ComponentDocuments))
	}

	if app.Retrain != nil {
		admin.POST("/retrain", jsonLimit, handler.NewRetrainHandler(app.Retrain, app.Logger).Trigger)
	} else {
		admin.POST("/retrain", degraded(app, bootstrap.ComponentRetrain))
	}

	if app.Runs != nil {
		admin.GET("/retrain/runs", handler.NewRunsHandler(app.Runs, app.Logger).List)
	} else {
		admin.GET("/retrain/runs", degraded(app, bootstrap.ComponentRuns))
	}

	return router
}

func degraded(app *bootstrap.App, component string) gin.HandlerFunc {
	if err := app.InitErrors[component]; err != nil {
		app.Logger.Warn("serving degraded responder", "component", component, "err", err)
	}
	return handler.Degraded(component)
}
