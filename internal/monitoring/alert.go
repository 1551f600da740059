package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 告警
type Alert struct {
	RuleID     string     `json:"rule_id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Level      AlertLevel `json:"level"`
	Component  string     `json:"component"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// AlertRule 告警规则，Condition 返回 true 表示处于告警状态
type AlertRule struct {
	ID        string
	Name      string
	Condition func(ctx context.Context) bool
	Level     AlertLevel
	Component string
	Message   string
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(alert *Alert) error
}

// Pinger 可探测连通性的依赖（数据库、Redis）
type Pinger interface {
	Ping(ctx context.Context) error
}

// AlertManager 周期性检查规则，同一规则在恢复前只通知一次
type AlertManager struct {
	mu        sync.RWMutex
	alerts    map[string]*Alert // 按规则 ID 索引
	rules     []AlertRule
	receivers []AlertReceiver
	logger    *zap.Logger
	now       func() time.Time
}

// NewAlertManager 创建告警管理器
func NewAlertManager(logger *zap.Logger) *AlertManager {
	return &AlertManager{
		alerts: make(map[string]*Alert),
		logger: logger,
		now:    time.Now,
	}
}

// AddReceiver 添加告警接收器
func (am *AlertManager) AddReceiver(receiver AlertReceiver) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.receivers = append(am.receivers, receiver)
}

// AddRule 添加告警规则
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append(am.rules, rule)
}

// ActiveAlerts 返回未恢复的告警
func (am *AlertManager) ActiveAlerts() []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	alerts := make([]Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		if !alert.Resolved {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

// CheckRules 检查全部规则：条件成立时触发，条件消失时恢复
func (am *AlertManager) CheckRules(ctx context.Context) {
	am.mu.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mu.RUnlock()

	for _, rule := range rules {
		if rule.Condition(ctx) {
			am.trigger(rule)
		} else {
			am.resolve(rule.ID)
		}
	}
}

func (am *AlertManager) trigger(rule AlertRule) {
	am.mu.Lock()
	if existing, ok := am.alerts[rule.ID]; ok && !existing.Resolved {
		am.mu.Unlock()
		return
	}

	alert := &Alert{
		RuleID:    rule.ID,
		Title:     rule.Name,
		Message:   rule.Message,
		Level:     rule.Level,
		Component: rule.Component,
		Timestamp: am.now(),
	}
	am.alerts[rule.ID] = alert
	receivers := make([]AlertReceiver, len(am.receivers))
	copy(receivers, am.receivers)
	am.mu.Unlock()

	for _, receiver := range receivers {
		if err := receiver.SendAlert(alert); err != nil {
			am.logger.Error("failed to send alert",
				zap.String("rule_id", rule.ID),
				zap.Error(err),
			)
		}
	}
}

func (am *AlertManager) resolve(ruleID string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	alert, ok := am.alerts[ruleID]
	if !ok || alert.Resolved {
		return
	}

	now := am.now()
	alert.Resolved = true
	alert.ResolvedAt = &now

	am.logger.Info("alert resolved",
		zap.String("rule_id", ruleID),
		zap.Duration("duration", now.Sub(alert.Timestamp)),
	)
}

// StartMonitoring 按固定间隔检查规则，直到 ctx 结束
func (am *AlertManager) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CheckRules(ctx)
		}
	}
}

// HighMemoryUsageRule 堆内存超过阈值
func HighMemoryUsageRule(thresholdMB float64) AlertRule {
	return AlertRule{
		ID:   "high_memory_usage",
		Name: "High Memory Usage",
		Condition: func(context.Context) bool {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return float64(m.Alloc)/1024/1024 > thresholdMB
		},
		Level:     AlertLevelWarning,
		Component: "memory",
		Message:   fmt.Sprintf("Memory usage exceeds %.0f MB", thresholdMB),
	}
}

// DependencyDownRule 依赖连续探测失败
func DependencyDownRule(component string, dep Pinger, timeout time.Duration) AlertRule {
	return AlertRule{
		ID:   component + "_down",
		Name: component + " unreachable",
		Condition: func(ctx context.Context) bool {
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return dep.Ping(pingCtx) != nil
		},
		Level:     AlertLevelCritical,
		Component: component,
		Message:   fmt.Sprintf("%s ping failed", component),
	}
}

// LogAlertReceiver 日志告警接收器
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	return &LogAlertReceiver{logger: logger}
}

// SendAlert 按级别写日志
func (lar *LogAlertReceiver) SendAlert(alert *Alert) error {
	fields := []zap.Field{
		zap.String("rule_id", alert.RuleID),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
		zap.String("component", alert.Component),
		zap.Time("timestamp", alert.Timestamp),
	}

	switch alert.Level {
	case AlertLevelCritical:
		lar.logger.Error("CRITICAL ALERT", fields...)
	case AlertLevelWarning:
		lar.logger.Warn("WARNING ALERT", fields...)
	default:
		lar.logger.Info("INFO ALERT", fields...)
	}
	return nil
}
