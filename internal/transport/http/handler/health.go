package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Liveness is the plain-text banner served at the root.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.String(http.StatusOK, "Language Agnostic Chatbot Backend API is running on port %d", h.app.Config.App.Port)
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	allOK := true
	for _, name := range []string{bootstrap.ComponentChat, bootstrap.ComponentRetrain, bootstrap.ComponentDocuments} {
		status := dependencyStatus{OK: true}
		if err, failed := h.app.InitErrors[name]; failed {
			status = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
		}
		components[name] = status
	}
	optional := make([]string, 0, len(h.app.InitErrors))
	for name := range h.app.InitErrors {
		if name == bootstrap.ComponentAuth || name == bootstrap.ComponentRuns {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	for _, name := range optional {
		components[name] = dependencyStatus{OK: false, Message: h.app.InitErrors[name].Error()}
	}

	dependencies := gin.H{}
	if h.app.Config.RedisEnabled() {
		status := h.checkRedis(ctx)
		allOK = allOK && status.OK
		dependencies["redis"] = status
	}
	if h.app.Config.MySQLEnabled() {
		status := h.checkMySQL(ctx)
		allOK = allOK && status.OK
		dependencies["mysql"] = status
	}
	if h.app.Config.RabbitMQEnabled() {
		status := h.checkRabbitMQ()
		allOK = allOK && status.OK
		dependencies["rabbitmq"] = status
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":          h.app.Config.App.Name,
		"env":          h.app.Config.App.Env,
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
		"components":   components,
		"dependencies": dependencies,
	})
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	if h.app.MySQL == nil {
		return dependencyStatus{OK: false, Message: "not connected"}
	}
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if h.app.Redis == nil {
		return dependencyStatus{OK: false, Message: "not connected"}
	}
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
