// Package analysis wires the detection collaborator, the shelf pipeline and
// the question gateway behind one service used by every transport.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ShelfLayoutServer/engine"
	"ShelfLayoutServer/gateway"
	iface "ShelfLayoutServer/interface"
	"ShelfLayoutServer/logger"
	"ShelfLayoutServer/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoDetector = errors.New("no detection service configured")
	ErrNoGateway  = errors.New("no answer service configured")
)

// Result is one finished analysis.
type Result struct {
	ID       string           `json:"id"`
	Analysis *engine.Analysis `json:"analysis"`
	Context  string           `json:"context"`
}

// AskResult pairs an analysis with the answer to a question about it.
type AskResult struct {
	Result *Result        `json:"result"`
	Answer gateway.Answer `json:"answer"`
}

type Service struct {
	detector iface.Detector
	gateway  *gateway.Gateway
	opts     engine.Options
	pool     *Pool
	metrics  *monitor.Metrics
}

// NewService builds the service. detector and gw may be nil, in which case
// image analysis or question answering report ErrNoDetector / ErrNoGateway.
func NewService(detector iface.Detector, gw *gateway.Gateway, opts engine.Options, pool *Pool, metrics *monitor.Metrics) (*Service, error) {
	if pool == nil {
		return nil, errors.New("analysis service needs a worker pool")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline options: %w", err)
	}
	return &Service{detector: detector, gateway: gw, opts: opts, pool: pool, metrics: metrics}, nil
}

func (s *Service) Options() engine.Options { return s.opts }

// Analyze runs the pipeline over detections that are already known.
func (s *Service) Analyze(ctx context.Context, raws []engine.RawDetection) (*Result, error) {
	return s.analyze(ctx, func(context.Context) ([]engine.RawDetection, error) { return raws, nil })
}

// AnalyzeImage asks the detection collaborator for detections first. The
// call happens on a pool worker so the collaborator sees bounded load.
func (s *Service) AnalyzeImage(ctx context.Context, image []byte, filename string) (*Result, error) {
	if s.detector == nil {
		return nil, ErrNoDetector
	}
	return s.analyze(ctx, func(ctx context.Context) ([]engine.RawDetection, error) {
		raws, err := s.detector.Detect(ctx, image, filename)
		if err != nil {
			return nil, fmt.Errorf("detect %q: %w", filename, err)
		}
		return raws, nil
	})
}

func (s *Service) analyze(ctx context.Context, source func(context.Context) ([]engine.RawDetection, error)) (*Result, error) {
	start := time.Now()
	id := uuid.NewString()
	var (
		a      *engine.Analysis
		layout []byte
	)
	err := s.pool.Submit(ctx, func(ctx context.Context) error {
		raws, err := source(ctx)
		if err != nil {
			return err
		}
		a = engine.Run(raws, s.opts)
		layout, err = engine.BuildContext(a)
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		// a and layout may still be written by a worker after a cancelled Submit
		s.metrics.ObserveAnalysis(engine.NormalizeReport{}, elapsed, err)
		logger.Log().Error("analysis failed", zap.String("id", id), zap.Duration("cost", elapsed), zap.Error(err))
		return nil, err
	}

	res := &Result{ID: id, Analysis: a, Context: string(layout)}
	report := a.Report
	s.metrics.ObserveAnalysis(report, elapsed, nil)
	sum := res.Analysis.Summary
	logger.Log().Info("analysis done",
		zap.String("id", res.ID),
		zap.Int("input", report.Input),
		zap.Int("kept", report.Kept),
		zap.Int("rows", sum.EstimatedRows),
		zap.Int("columns", sum.EstimatedColumns),
		zap.String("layout", string(sum.LayoutType)),
		zap.Duration("cost", elapsed))
	return res, nil
}

// Ask analyzes raws and then forwards the question. The pool slot is released
// before the answer call so slow answers never starve other analyses.
func (s *Service) Ask(ctx context.Context, raws []engine.RawDetection, question string) (*AskResult, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}
	res, err := s.Analyze(ctx, raws)
	if err != nil {
		return nil, err
	}
	ans, err := s.AskContext(ctx, res.Context, question)
	if err != nil {
		return &AskResult{Result: res}, err
	}
	return &AskResult{Result: res, Answer: ans}, nil
}

// AskContext forwards a question about a context built earlier.
func (s *Service) AskContext(ctx context.Context, layoutContext, question string) (gateway.Answer, error) {
	if s.gateway == nil {
		return gateway.Answer{}, ErrNoGateway
	}
	return s.gateway.Ask(ctx, layoutContext, question)
}
