package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelgateway/chatproxy/internal/proxy"
	apperrors "github.com/modelgateway/chatproxy/pkg/errors"
	"go.uber.org/zap"
)

// ChatHandler binds POST /chat, runs pre-stream validation, and then hands
// the response body over to the orchestrator's line-delimited JSON stream.
type ChatHandler struct {
	orch   *proxy.Orchestrator
	logger *zap.Logger
}

func NewChatHandler(orch *proxy.Orchestrator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{orch: orch, logger: logger}
}

func (h *ChatHandler) Handle(c *gin.Context) {
	var req proxy.CanonicalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeErrorEnvelope(c, apperrors.NewValidationError("malformed request body: "+err.Error()))
		return
	}

	if err := h.orch.Validate(&req); err != nil {
		h.writeErrorEnvelope(c, err)
		return
	}

	requestID := proxy.NewRequestID()
	log := h.logger.With(zap.String("request_id", requestID))

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ew := &ginEventWriter{c: c}
	h.orch.Stream(c.Request.Context(), &req, requestID, ew)
	log.Info("chat stream finished")
}

// writeErrorEnvelope writes spec.md §6.1's pre-stream JSON error shape. The
// X-Accel-Buffering header is set here too (SPEC_FULL.md §C.2) so an
// upstream-disabled 503 isn't buffered behind a reverse proxy any more than
// a 200 stream would be.
func (h *ChatHandler) writeErrorEnvelope(c *gin.Context, err *apperrors.AppError) {
	c.Header("X-Accel-Buffering", "no")
	c.JSON(err.HTTPStatus(), apperrors.NewEnvelope(err))
}

// ginEventWriter adapts gin's ResponseWriter to proxy.EventWriter: one JSON
// object per NormalizedEvent, LF-terminated, flushed immediately so the
// reverse proxy doesn't coalesce events into a larger buffer.
type ginEventWriter struct {
	c *gin.Context
}

func (w *ginEventWriter) Write(ev proxy.NormalizedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.c.Writer.Write(data); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
