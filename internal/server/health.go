package server

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/region23/tablebook/pkg/metrics"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	healthTimeout    = 3 * time.Second
	goroutineWarning = 500
	heapWarning      = 512 << 20
)

// Pinger проверяет доступность зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name     string
	pinger   Pinger
	critical bool
}

// CheckResult описывает результат проверки одной зависимости
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthReport возвращается /health
type HealthReport struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	Checks     map[string]CheckResult `json:"checks"`
	Goroutines int                    `json:"goroutines"`
	HeapBytes  uint64                 `json:"heap_bytes"`
}

// HealthChecker опрашивает зависимости сервиса. Отказ критичной
// зависимости дает 503, некритичной только degraded.
type HealthChecker struct {
	deps    []dependency
	started time.Time
	version string
}

// NewHealthChecker создает проверку с базой данных в качестве критичной зависимости
func NewHealthChecker(db Pinger, version string) *HealthChecker {
	h := &HealthChecker{started: time.Now(), version: version}
	if db != nil {
		h.deps = append(h.deps, dependency{name: "database", pinger: db, critical: true})
	}
	return h
}

// Optional добавляет некритичную зависимость
func (h *HealthChecker) Optional(name string, p Pinger) *HealthChecker {
	h.deps = append(h.deps, dependency{name: name, pinger: p})
	return h
}

// Handle обрабатывает запросы health check
func (h *HealthChecker) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := h.Check(ctx)
	code := http.StatusOK
	if report.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

// Check опрашивает все зависимости параллельно
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	results := make([]CheckResult, len(h.deps))
	var wg sync.WaitGroup
	for i, p := range h.deps {
		wg.Add(1)
		go func(i int, p dependency) {
			defer wg.Done()
			start := time.Now()
			status := statusHealthy
			if err := p.pinger.Ping(ctx); err != nil {
				status = statusUnhealthy
			}
			results[i] = CheckResult{Status: status, LatencyMS: time.Since(start).Milliseconds()}
		}(i, p)
	}
	wg.Wait()

	report := HealthReport{
		Status:  statusHealthy,
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Checks:  make(map[string]CheckResult, len(h.deps)),
	}
	for i, p := range h.deps {
		report.Checks[p.name] = results[i]
		if results[i].Status == statusHealthy {
			continue
		}
		if p.critical {
			report.Status = statusUnhealthy
		} else if report.Status == statusHealthy {
			report.Status = statusDegraded
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	report.HeapBytes = mem.HeapAlloc
	report.Goroutines = runtime.NumGoroutine()
	metrics.MemoryUsage.Set(float64(mem.HeapAlloc))
	metrics.GoroutinesCount.Set(float64(report.Goroutines))

	if report.Status == statusHealthy && (report.Goroutines > goroutineWarning || mem.HeapAlloc > heapWarning) {
		report.Status = statusDegraded
	}
	return report
}
