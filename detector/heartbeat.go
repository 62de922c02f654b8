package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ShelfLayoutServer/logger"

	"go.uber.org/zap"
)

// Watch probes the detector every interval until ctx is cancelled and logs
// each change between healthy and unhealthy. report, when non-nil, receives
// every probe result.
func (c *Client) Watch(ctx context.Context, interval time.Duration, wg *sync.WaitGroup, report func(healthy bool)) {
	defer wg.Done()
	log := logger.Named("detector")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	probe := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error(fmt.Sprintf("detector probe panic recovered: %v", r))
			}
		}()
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		err := c.CheckHealth(probeCtx)
		switch {
		case err != nil && healthy:
			log.Warn("detector became unhealthy", zap.String("url", c.baseURL), zap.Error(err))
		case err == nil && !healthy:
			log.Info("detector recovered", zap.String("url", c.baseURL))
		}
		healthy = err == nil
		if report != nil {
			report(healthy)
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			log.Info("detector watch stopped")
			return
		case <-ticker.C:
			probe()
		}
	}
}
