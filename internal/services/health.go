package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// HealthChecker is implemented by every service client.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) error
}

// HealthReport maps a service name to whether it answered healthy.
type HealthReport map[string]bool

// Healthy reports whether every service in the report is up.
func (r HealthReport) Healthy() bool {
	for _, ok := range r {
		if !ok {
			return false
		}
	}
	return true
}

// CheckAll checks every service concurrently. It never fails: an
// unreachable service is reported as unhealthy.
func CheckAll(ctx context.Context, log *zap.Logger, checkers ...HealthChecker) HealthReport {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = make(HealthReport, len(checkers))
	)

	for _, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := c.Health(ctx)
			if err != nil {
				log.Warn("service unhealthy", zap.String("service", c.Name()), zap.Error(err))
			}

			mu.Lock()
			report[c.Name()] = err == nil
			mu.Unlock()
		}()
	}

	wg.Wait()

	return report
}
