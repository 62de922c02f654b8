package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"ShelfLayoutServer/analysis"
	"ShelfLayoutServer/engine"
	"ShelfLayoutServer/gateway"
	"ShelfLayoutServer/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalyzeRequest struct {
	Detections []engine.RawDetection `json:"detections"`
}

type AskRequest struct {
	Context    string                `json:"context"`
	Detections []engine.RawDetection `json:"detections"`
	Question   string                `json:"question" binding:"required"`
}

type AskResponse struct {
	Answer   string `json:"answer"`
	Attempts int    `json:"attempts"`
	Cached   bool   `json:"cached"`
	ID       string `json:"id,omitempty"`
	Context  string `json:"context,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusOf maps service errors to an HTTP status and a client facing body.
func statusOf(err error) (int, ErrorResponse) {
	var f *gateway.Failure
	switch {
	case errors.As(err, &f) && f.Kind == gateway.NoAnswer:
		return http.StatusUnprocessableEntity, ErrorResponse{Error: f.Kind.String(), Message: f.UserMessage()}
	case errors.As(err, &f):
		return http.StatusServiceUnavailable, ErrorResponse{Error: f.Kind.String(), Message: f.UserMessage()}
	case errors.Is(err, analysis.ErrNoDetector), errors.Is(err, analysis.ErrNoGateway):
		return http.StatusNotImplemented, ErrorResponse{Error: err.Error()}
	case errors.Is(err, analysis.ErrPoolStopped):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ErrorResponse{Error: err.Error()}
	}
	return http.StatusBadGateway, ErrorResponse{Error: err.Error()}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, body := statusOf(err)
	if code >= http.StatusInternalServerError {
		logger.Log().Warn("request failed", zap.String("path", c.FullPath()), zap.Int("status", code), zap.Error(err))
	}
	c.JSON(code, body)
}

func (h *Handler) Analyze(c *gin.Context) {
	h.metrics.IncRequest("http")
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.Analyze(c.Request.Context(), req.Detections)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *Handler) Detect(c *gin.Context) {
	h.metrics.IncRequest("http")
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "File upload failed: " + err.Error()})
		return
	}
	if file.Size > h.opts.MaxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "image too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.svc.AnalyzeImage(c.Request.Context(), data, file.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *Handler) Ask(c *gin.Context) {
	h.metrics.IncRequest("http")
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	out := AskResponse{}
	layoutContext := req.Context
	if layoutContext == "" {
		res, err := h.svc.Analyze(c.Request.Context(), req.Detections)
		if err != nil {
			h.fail(c, err)
			return
		}
		layoutContext = res.Context
		out.ID, out.Context = res.ID, res.Context
	}
	ans, err := h.svc.AskContext(c.Request.Context(), layoutContext, req.Question)
	if err != nil {
		h.fail(c, err)
		return
	}
	out.Answer, out.Attempts, out.Cached = ans.Text, ans.Attempts, ans.Cached
	c.JSON(http.StatusOK, out)
}
