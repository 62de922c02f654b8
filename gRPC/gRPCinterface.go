package proto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"ShelfLayoutServer/analysis"
	"ShelfLayoutServer/gateway"
	"ShelfLayoutServer/logger"
	"ShelfLayoutServer/monitor"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

// MaxUploadBytes caps the size of an image streamed through UploadImage.
const MaxUploadBytes = 32 << 20

type Server struct {
	UnimplementedShelfServiceServer
	svc        *analysis.Service
	metrics    *monitor.Metrics
	workers    int
	answerMode string
	detector   bool
}

type ServerInfo struct {
	Workers            int
	AnswerMode         string
	DetectorConfigured bool
}

func NewServer(svc *analysis.Service, metrics *monitor.Metrics, info ServerInfo) *Server {
	return &Server{
		svc:        svc,
		metrics:    metrics,
		workers:    info.Workers,
		answerMode: info.AnswerMode,
		detector:   info.DetectorConfigured,
	}
}

func toResponse(res *analysis.Result) *AnalyzeResponse {
	a := res.Analysis
	return &AnalyzeResponse{
		Id:              res.ID,
		Summary:         a.Summary,
		Stock:           a.Stock,
		Report:          a.Report,
		Recommendations: a.Recommendations,
		Context:         res.Context,
	}
}

// statusFromError maps service errors onto gRPC codes.
func statusFromError(err error) error {
	var f *gateway.Failure
	switch {
	case errors.As(err, &f) && f.Kind == gateway.NoAnswer:
		return status.Error(codes.FailedPrecondition, f.UserMessage())
	case errors.As(err, &f):
		return status.Error(codes.Unavailable, f.UserMessage())
	case errors.Is(err, analysis.ErrNoDetector), errors.Is(err, analysis.ErrNoGateway):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, analysis.ErrPoolStopped):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (s *Server) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	s.metrics.IncRequest("grpc")
	res, err := s.svc.Analyze(ctx, req.Detections)
	if err != nil {
		return nil, statusFromError(err)
	}
	return toResponse(res), nil
}

func (s *Server) UploadImage(stream ShelfService_UploadImageServer) error {
	s.metrics.IncRequest("grpc")
	var (
		buf      bytes.Buffer
		filename string
	)
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if req.Filename != "" && filename == "" {
			filename = req.Filename
		}
		if buf.Len()+len(req.Chunk) > MaxUploadBytes {
			return status.Errorf(codes.ResourceExhausted, "image exceeds %d bytes", MaxUploadBytes)
		}
		buf.Write(req.Chunk)
	}
	if buf.Len() == 0 {
		return status.Error(codes.InvalidArgument, "empty image")
	}
	logger.Log().Debug("image received", zap.String("filename", filename), zap.Int("bytes", buf.Len()))

	res, err := s.svc.AnalyzeImage(stream.Context(), buf.Bytes(), filename)
	if err != nil {
		return statusFromError(err)
	}
	return stream.SendAndClose(toResponse(res))
}

func (s *Server) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	s.metrics.IncRequest("grpc")
	layoutContext := req.Context
	if layoutContext == "" {
		res, err := s.svc.Analyze(ctx, req.Detections)
		if err != nil {
			return nil, statusFromError(err)
		}
		layoutContext = res.Context
	}
	ans, err := s.svc.AskContext(ctx, layoutContext, req.Question)
	if err != nil {
		return nil, statusFromError(err)
	}
	out := &AskResponse{Answer: ans.Text, Attempts: ans.Attempts, Cached: ans.Cached}
	if req.Context == "" {
		out.Context = layoutContext
	}
	return out, nil
}

func (s *Server) Health(ctx context.Context, _ *emptypb.Empty) (*HealthResponse, error) {
	s.metrics.IncRequest("grpc")
	return &HealthResponse{
		Status:             "SERVING",
		Workers:            s.workers,
		DetectorConfigured: s.detector,
		AnswerMode:         s.answerMode,
	}, nil
}

// StartGRPCServer listens on port and serves srv in the background.
func StartGRPCServer(port int, srv ShelfServiceServer) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s := grpc.NewServer()
	RegisterShelfServiceServer(s, srv)
	go func() {
		logger.Log().Info("gRPC server listening", zap.String("addr", addr))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}
