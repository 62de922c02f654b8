package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"ShelfLayoutServer/analysis"
	"ShelfLayoutServer/engine"
	"ShelfLayoutServer/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFrame is a text frame of /ws/analyze. A text frame holding a
// data: URL is treated as a base64 image instead.
type streamFrame struct {
	Detections []engine.RawDetection `json:"detections"`
	Question   string                `json:"question,omitempty"`
}

type streamReply struct {
	Seq             int                   `json:"seq"`
	ID              string                `json:"id,omitempty"`
	Summary         *engine.LayoutSummary `json:"summary,omitempty"`
	Stock           []engine.RowStock     `json:"stock,omitempty"`
	Recommendations []string              `json:"recommendations,omitempty"`
	Answer          string                `json:"answer,omitempty"`
	Error           string                `json:"error,omitempty"`
	Message         string                `json:"message,omitempty"`
}

type session struct {
	id        string
	conn      *websocket.Conn
	closeOnce sync.Once
}

func (s *session) close(reason string) {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

// AnalyzeStream keeps one websocket open for a sequence of analyses. Each
// frame gets one JSON reply; a connection idle for longer than the configured
// timeout is released.
func (h *Handler) AnalyzeStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already answered the client
		return
	}
	sess := &session{id: uuid.NewString(), conn: conn}
	conn.SetReadLimit(h.opts.MaxUpload)
	logger.Log().Debug("stream opened", zap.String("session", sess.id))

	for seq := 0; ; seq++ {
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				sess.close(fmt.Sprintf("%s not active, released", h.opts.IdleTimeout))
			} else {
				sess.close("bye")
			}
			logger.Log().Debug("stream closed", zap.String("session", sess.id), zap.Error(err))
			return
		}
		h.metrics.IncRequest("ws")

		reply := h.handleFrame(c.Request.Context(), mt, msg)
		reply.Seq = seq
		if err := conn.WriteJSON(reply); err != nil {
			sess.close("write failed")
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, mt int, msg []byte) streamReply {
	var frame streamFrame
	switch {
	case mt == websocket.BinaryMessage:
		return h.replyFor(h.svc.AnalyzeImage(ctx, msg, "frame"))
	case mt == websocket.TextMessage && strings.HasPrefix(string(msg), "data:"):
		img, err := decodeDataURL(string(msg))
		if err != nil {
			return streamReply{Error: "invalid image: " + err.Error()}
		}
		return h.replyFor(h.svc.AnalyzeImage(ctx, img, "frame"))
	case mt == websocket.TextMessage:
		if err := json.Unmarshal(msg, &frame); err != nil {
			return streamReply{Error: "invalid frame: " + err.Error()}
		}
	default:
		return streamReply{Error: "unsupported message type"}
	}

	res, err := h.svc.Analyze(ctx, frame.Detections)
	reply := h.replyFor(res, err)
	if err != nil || strings.TrimSpace(frame.Question) == "" {
		return reply
	}
	ans, err := h.svc.AskContext(ctx, res.Context, frame.Question)
	if err != nil {
		_, body := statusOf(err)
		reply.Error, reply.Message = body.Error, body.Message
		return reply
	}
	reply.Answer = ans.Text
	return reply
}

func (h *Handler) replyFor(res *analysis.Result, err error) streamReply {
	if err != nil {
		_, body := statusOf(err)
		return streamReply{Error: body.Error, Message: body.Message}
	}
	return streamReply{
		ID:              res.ID,
		Summary:         &res.Analysis.Summary,
		Stock:           res.Analysis.Stock,
		Recommendations: res.Analysis.Recommendations,
	}
}

// decodeDataURL strips a data:image/...;base64, prefix and decodes the rest.
func decodeDataURL(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i != -1 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}
