package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可探测连通性的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health  healthcheck.Handler
	checks  map[string]Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器，store 为必选依赖
func NewHealthChecker(store Pinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		checks:  make(map[string]Pinger),
		timeout: 5 * time.Second,
		logger:  logger,
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	hc.AddReadinessCheck("database", store)

	return hc
}

// AddReadinessCheck 添加就绪检查，例如 Redis
func (hc *HealthChecker) AddReadinessCheck(name string, dep Pinger) {
	hc.checks[name] = dep
	hc.health.AddReadinessCheck(name, hc.pingCheck(name, dep))
}

func (hc *HealthChecker) pingCheck(name string, dep Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
		defer cancel()

		if err := dep.Ping(ctx); err != nil {
			hc.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	}
}

// Handler 返回健康检查处理器，提供 /live 与 /ready
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行全部依赖检查，返回每项结果
func (hc *HealthChecker) CheckHealth(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(hc.checks)+1)
	healthy := true

	for name, dep := range hc.checks {
		checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
		err := dep.Ping(checkCtx)
		cancel()

		if err != nil {
			results[name] = fmt.Sprintf("ERROR: %v", err)
			healthy = false
			continue
		}
		results[name] = "OK"
	}

	results["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return results, healthy
}
