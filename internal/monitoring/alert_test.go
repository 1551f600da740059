package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingReceiver struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingReceiver) SendAlert(alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *alert)
	return nil
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(context.Context) error {
	return p.err
}

func TestAlertManager_TriggerOnceUntilResolved(t *testing.T) {
	ctx := context.Background()
	dep := &stubPinger{err: errors.New("connection refused")}
	receiver := &recordingReceiver{}

	am := NewAlertManager(zap.NewNop())
	am.AddReceiver(receiver)
	am.AddRule(DependencyDownRule("database", dep, time.Second))

	am.CheckRules(ctx)
	am.CheckRules(ctx)

	require.Len(t, receiver.alerts, 1)
	assert.Equal(t, "database_down", receiver.alerts[0].RuleID)
	assert.Equal(t, AlertLevelCritical, receiver.alerts[0].Level)
	assert.Len(t, am.ActiveAlerts(), 1)

	// 恢复后不再活跃
	dep.err = nil
	am.CheckRules(ctx)
	assert.Empty(t, am.ActiveAlerts())

	// 再次故障重新通知
	dep.err = errors.New("timeout")
	am.CheckRules(ctx)
	assert.Len(t, receiver.alerts, 2)
}

func TestHighMemoryUsageRule(t *testing.T) {
	ctx := context.Background()

	assert.False(t, HighMemoryUsageRule(1<<20).Condition(ctx))
	assert.True(t, HighMemoryUsageRule(0).Condition(ctx))
}

func TestLogAlertReceiver(t *testing.T) {
	receiver := NewLogAlertReceiver(zap.NewNop())
	for _, level := range []AlertLevel{AlertLevelInfo, AlertLevelWarning, AlertLevelCritical} {
		assert.NoError(t, receiver.SendAlert(&Alert{RuleID: "r", Level: level}))
	}
}
