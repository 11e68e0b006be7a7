package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/app"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http/response"
)

type RetrainRunner interface {
	Run(ctx context.Context, w http.ResponseWriter) (*model.RetrainRun, error)
}

type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.RetrainRun, error)
}

type RetrainHandler struct {
	relay RetrainRunner
	log   *logger.Logger
}

func NewRetrainHandler(relay RetrainRunner, log *logger.Logger) *RetrainHandler {
	return &RetrainHandler{relay: relay, log: log}
}

// Trigger streams the job's output. The relay owns the response from here on,
// including status and error text.
func (h *RetrainHandler) Trigger(c *gin.Context) {
	h.log.Info("retrain requested", "client_ip", c.ClientIP())
	run, err := h.relay.Run(c.Request.Context(), c.Writer)
	if err != nil {
		if run != nil {
			c.Set("run_id", run.RunID)
		}
		if !errors.Is(err, app.ErrRetrainInProgress) && !errors.Is(err, app.ErrClientGone) {
			_ = c.Error(err)
		}
	}
	c.Abort()
}

type RunsHandler struct {
	runs RunLister
	log  *logger.Logger
}

func NewRunsHandler(runs RunLister, log *logger.Logger) *RunsHandler {
	return &RunsHandler{runs: runs, log: log}
}

func (h *RunsHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	runs, err := h.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("list retrain runs failed", "err", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list retrain runs failed")
		return
	}
	response.OK(c, runs)
}
