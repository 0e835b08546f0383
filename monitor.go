package lottery

import (
	"sync"
	"sync/atomic"
	"time"
)

// SettlementMetrics 结算指标
type SettlementMetrics struct {
	// 结算统计
	TotalSettlements      int64 `json:"total_settlements"`       // 总结算次数
	SettledSlips          int64 `json:"settled_slips"`           // 成功结算次数
	RejectedSlips         int64 `json:"rejected_slips"`          // 校验未通过次数
	FailedSlips           int64 `json:"failed_slips"`            // 基础设施失败次数
	InsufficientFunds     int64 `json:"insufficient_funds"`      // 余额不足次数
	PracticePlays         int64 `json:"practice_plays"`          // 练习次数
	CostCents             int64 `json:"cost_cents"`              // 累计花费(分)
	PayoutCents           int64 `json:"payout_cents"`            // 累计派彩(分)
	LegsPriced            int64 `json:"legs_priced"`             // 已定价注数
	AverageSettlementTime int64 `json:"average_settlement_time"` // 平均结算时间(纳秒)
	TotalSettlementTime   int64 `json:"total_settlement_time"`   // 总结算时间(纳秒)

	// 锁操作统计
	LockAcquisitions    int64 `json:"lock_acquisitions"`     // 锁获取次数
	LockAcquisitionTime int64 `json:"lock_acquisition_time"` // 锁获取总时间(纳秒)
	LockReleases        int64 `json:"lock_releases"`         // 锁释放次数
	LockFailures        int64 `json:"lock_failures"`         // 锁获取失败次数

	// 存储统计
	StoreErrors int64 `json:"store_errors"` // 余额存储错误数

	// 时间戳
	StartTime      int64 `json:"start_time"`       // 开始时间
	LastUpdateTime int64 `json:"last_update_time"` // 最后更新时间
}

// GetSuccessRate 获取成功率
func (m *SettlementMetrics) GetSuccessRate() float64 {
	total := atomic.LoadInt64(&m.TotalSettlements)
	if total == 0 {
		return 0.0
	}
	return float64(atomic.LoadInt64(&m.SettledSlips)) / float64(total) * 100.0
}

// GetAverageLockTime 获取平均锁获取时间
func (m *SettlementMetrics) GetAverageLockTime() time.Duration {
	acquisitions := atomic.LoadInt64(&m.LockAcquisitions)
	if acquisitions == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.LockAcquisitionTime) / acquisitions)
}

// Reset 重置指标
func (m *SettlementMetrics) Reset() {
	for _, p := range []*int64{
		&m.TotalSettlements, &m.SettledSlips, &m.RejectedSlips, &m.FailedSlips,
		&m.InsufficientFunds, &m.PracticePlays, &m.CostCents, &m.PayoutCents,
		&m.LegsPriced, &m.AverageSettlementTime, &m.TotalSettlementTime,
		&m.LockAcquisitions, &m.LockAcquisitionTime, &m.LockReleases, &m.LockFailures,
		&m.StoreErrors,
	} {
		atomic.StoreInt64(p, 0)
	}
	now := time.Now().UnixNano()
	atomic.StoreInt64(&m.StartTime, now)
	atomic.StoreInt64(&m.LastUpdateTime, now)
}

// ================================================================================

// SettlementOutcome classifies how a settlement attempt ended
type SettlementOutcome int

const (
	OutcomeSettled SettlementOutcome = iota
	OutcomeRejected
	OutcomeInsufficientFunds
	OutcomeFailed
)

// SettlementMonitor 结算监控器
type SettlementMonitor struct {
	metrics *SettlementMetrics
	mu      sync.RWMutex
	enabled bool
}

// NewSettlementMonitor 创建新的结算监控器
func NewSettlementMonitor() *SettlementMonitor {
	m := &SettlementMonitor{
		metrics: &SettlementMetrics{},
		enabled: true,
	}
	m.metrics.Reset()
	return m
}

// Enable 启用监控
func (m *SettlementMonitor) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

// Disable 禁用监控
func (m *SettlementMonitor) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// IsEnabled 检查是否启用了监控
func (m *SettlementMonitor) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// RecordSettlement 记录一次结算
func (m *SettlementMonitor) RecordSettlement(outcome SettlementOutcome, legs int, costCents, payoutCents int64, duration time.Duration) {
	if !m.IsEnabled() {
		return
	}

	atomic.AddInt64(&m.metrics.TotalSettlements, 1)
	atomic.AddInt64(&m.metrics.TotalSettlementTime, int64(duration))

	switch outcome {
	case OutcomeSettled:
		atomic.AddInt64(&m.metrics.SettledSlips, 1)
		atomic.AddInt64(&m.metrics.LegsPriced, int64(legs))
		atomic.AddInt64(&m.metrics.CostCents, costCents)
		atomic.AddInt64(&m.metrics.PayoutCents, payoutCents)
	case OutcomeRejected:
		atomic.AddInt64(&m.metrics.RejectedSlips, 1)
	case OutcomeInsufficientFunds:
		atomic.AddInt64(&m.metrics.InsufficientFunds, 1)
	case OutcomeFailed:
		atomic.AddInt64(&m.metrics.FailedSlips, 1)
	}

	// 更新平均结算时间
	total := atomic.LoadInt64(&m.metrics.TotalSettlements)
	totalTime := atomic.LoadInt64(&m.metrics.TotalSettlementTime)
	atomic.StoreInt64(&m.metrics.AverageSettlementTime, totalTime/total)

	m.touch()
}

// RecordPractice 记录一次练习
func (m *SettlementMonitor) RecordPractice() {
	if !m.IsEnabled() {
		return
	}
	atomic.AddInt64(&m.metrics.PracticePlays, 1)
	m.touch()
}

// RecordLockAcquisition 记录锁获取操作
func (m *SettlementMonitor) RecordLockAcquisition(success bool, duration time.Duration) {
	if !m.IsEnabled() {
		return
	}

	if success {
		atomic.AddInt64(&m.metrics.LockAcquisitions, 1)
		atomic.AddInt64(&m.metrics.LockAcquisitionTime, int64(duration))
	} else {
		atomic.AddInt64(&m.metrics.LockFailures, 1)
	}
	m.touch()
}

// RecordLockRelease 记录锁释放操作
func (m *SettlementMonitor) RecordLockRelease() {
	if !m.IsEnabled() {
		return
	}
	atomic.AddInt64(&m.metrics.LockReleases, 1)
	m.touch()
}

// RecordStoreError 记录余额存储错误
func (m *SettlementMonitor) RecordStoreError() {
	if !m.IsEnabled() {
		return
	}
	atomic.AddInt64(&m.metrics.StoreErrors, 1)
	m.touch()
}

func (m *SettlementMonitor) touch() {
	atomic.StoreInt64(&m.metrics.LastUpdateTime, time.Now().UnixNano())
}

// GetMetrics 获取指标的副本
func (m *SettlementMonitor) GetMetrics() SettlementMetrics {
	return SettlementMetrics{
		TotalSettlements:      atomic.LoadInt64(&m.metrics.TotalSettlements),
		SettledSlips:          atomic.LoadInt64(&m.metrics.SettledSlips),
		RejectedSlips:         atomic.LoadInt64(&m.metrics.RejectedSlips),
		FailedSlips:           atomic.LoadInt64(&m.metrics.FailedSlips),
		InsufficientFunds:     atomic.LoadInt64(&m.metrics.InsufficientFunds),
		PracticePlays:         atomic.LoadInt64(&m.metrics.PracticePlays),
		CostCents:             atomic.LoadInt64(&m.metrics.CostCents),
		PayoutCents:           atomic.LoadInt64(&m.metrics.PayoutCents),
		LegsPriced:            atomic.LoadInt64(&m.metrics.LegsPriced),
		AverageSettlementTime: atomic.LoadInt64(&m.metrics.AverageSettlementTime),
		TotalSettlementTime:   atomic.LoadInt64(&m.metrics.TotalSettlementTime),
		LockAcquisitions:      atomic.LoadInt64(&m.metrics.LockAcquisitions),
		LockAcquisitionTime:   atomic.LoadInt64(&m.metrics.LockAcquisitionTime),
		LockReleases:          atomic.LoadInt64(&m.metrics.LockReleases),
		LockFailures:          atomic.LoadInt64(&m.metrics.LockFailures),
		StoreErrors:           atomic.LoadInt64(&m.metrics.StoreErrors),
		StartTime:             atomic.LoadInt64(&m.metrics.StartTime),
		LastUpdateTime:        atomic.LoadInt64(&m.metrics.LastUpdateTime),
	}
}

// ResetMetrics 重置指标
func (m *SettlementMonitor) ResetMetrics() { m.metrics.Reset() }
