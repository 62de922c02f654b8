package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"ShelfLayoutServer/analysis"
	"ShelfLayoutServer/api"
	"ShelfLayoutServer/config"
	"ShelfLayoutServer/detector"
	backend "ShelfLayoutServer/gRPC"
	"ShelfLayoutServer/gateway"
	iface "ShelfLayoutServer/interface"
	"ShelfLayoutServer/logger"
	"ShelfLayoutServer/monitor"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// stack is everything a transport needs to serve requests.
type stack struct {
	svc      *analysis.Service
	pool     *analysis.Pool
	detector *detector.Client
}

func newAnswerer(cfg config.AnswerConfig) iface.Answerer {
	if cfg.Mode == config.AnswerModeHTTP {
		return gateway.NewHTTPAnswerer(cfg.URL, cfg.APIKey)
	}
	return gateway.NewLocalAnswerer()
}

func buildStack(cfg *config.Config, metrics *monitor.Metrics) (*stack, error) {
	pool, err := analysis.NewPool(cfg.Workers.Num, cfg.Workers.QueueSize, metrics)
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(newAnswerer(cfg.Answer), cfg.Answer.Config, metrics)
	if err != nil {
		pool.Stop()
		return nil, err
	}

	st := &stack{pool: pool}
	var det iface.Detector
	if cfg.Detector.URL != "" {
		st.detector = detector.NewClient(cfg.Detector.URL, cfg.Detector.Timeout)
		det = st.detector
	}
	st.svc, err = analysis.NewService(det, gw, cfg.Pipeline, pool, metrics)
	if err != nil {
		pool.Stop()
		return nil, err
	}
	return st, nil
}

func printBanner(cfg *config.Config) {
	cpuNum := runtime.NumCPU()
	fmt.Println(strings.Repeat("#", 64))
	fmt.Printf("Shelf Layout Server %s\n", Version)
	fmt.Printf("CPU Cores: %d\n", cpuNum)
	fmt.Println(" HTTP    Port:", cfg.Server.HTTPPort)
	fmt.Println(" gRPC    Port:", cfg.Server.RPCPort)
	fmt.Println(" Metrics Port:", cfg.Server.MetricsPort)
	fmt.Println("Configured Workers Num:", cfg.Workers.Num)
	fmt.Println("Answer Mode:", cfg.Answer.Mode)
	fmt.Println(strings.Repeat("#", 64))
	if cfg.Workers.Num > cpuNum {
		fmt.Println(strings.Repeat("!", 64))
		fmt.Println("Please note that workers.num exceeds CPU cores, which may lead to performance degradation.")
		fmt.Println(strings.Repeat("!", 64))
	}
	if cfg.Detector.URL == "" {
		fmt.Println("detector.url is empty, image uploads are disabled")
	}
	fmt.Println("")
}

func serveCommand(current func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, websocket and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, current())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	printBanner(cfg)
	log := logger.Log()

	metrics := monitor.NewMetrics()
	st, err := buildStack(cfg, metrics)
	if err != nil {
		return err
	}
	defer st.pool.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if st.detector != nil && cfg.Detector.HealthInterval > 0 {
		wg.Add(1)
		go st.detector.Watch(ctx, cfg.Detector.HealthInterval, &wg, nil)
	}
	if cfg.Server.MetricsPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.StartMon(ctx, cfg.Server.MetricsPort, metrics)
		}()
	}

	fmt.Println("Starting gRPC Server")
	grpcServer, err := backend.StartGRPCServer(cfg.Server.RPCPort, backend.NewServer(st.svc, metrics, backend.ServerInfo{
		Workers:            cfg.Workers.Num,
		AnswerMode:         cfg.Answer.Mode,
		DetectorConfigured: st.detector != nil,
	}))
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}

	opts := api.DefaultOptions()
	opts.Version = Version
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           api.NewRouter(api.NewHandler(st.svc, metrics, opts), cfg.Server.Mode),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
		close(httpErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-httpErr:
		log.Error("HTTP server failed", zap.Error(err))
	}

	cancel()
	shutdownCtx, release := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer release()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	fmt.Println("Done")
	wg.Wait()
	fmt.Println("Safely exited")
	return err
}
