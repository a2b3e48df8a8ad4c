package unzipper

import (
	"sync/atomic"
	"time"
)

// ProgressReporter 进度报告器接口
type ProgressReporter interface {
	// Add 累加已写入字节数
	Add(n uint64)

	// Report 每次成功写入一个块后调用，返回是否真正发出了快照
	Report(entryPath string) bool
}

// progressThrottle 跨任务聚合字节计数，并限制进度事件的频率。
// 计数器和上次发出时间都是原子变量，CAS 成功的调用方才发出快照。
type progressThrottle struct {
	interval       time.Duration
	start          time.Time
	estimatedTotal uint64
	emit           func(ProgressSnapshot)
	clock          func() time.Time

	bytes      atomic.Uint64
	lastEmitMs atomic.Int64
}

// newProgressThrottle 创建进度节流器，第一次 Report 立即发出
func newProgressThrottle(interval time.Duration, estimatedTotal uint64, emit func(ProgressSnapshot)) *progressThrottle {
	t := &progressThrottle{
		interval:       interval,
		start:          time.Now(),
		estimatedTotal: estimatedTotal,
		emit:           emit,
		clock:          time.Now,
	}
	t.lastEmitMs.Store(-interval.Milliseconds())
	return t
}

// Add 累加已写入字节数
func (t *progressThrottle) Add(n uint64) {
	t.bytes.Add(n)
}

// BytesExtracted 当前累计字节数
func (t *progressThrottle) BytesExtracted() uint64 {
	return t.bytes.Load()
}

// Report 距上次发出不足 interval 时直接返回
func (t *progressThrottle) Report(entryPath string) bool {
	elapsed := t.clock().Sub(t.start)
	nowMs := elapsed.Milliseconds()

	last := t.lastEmitMs.Load()
	if nowMs-last < t.interval.Milliseconds() {
		return false
	}
	if !t.lastEmitMs.CompareAndSwap(last, nowMs) {
		return false
	}

	extracted := t.bytes.Load()
	var speed float64
	if secs := elapsed.Seconds(); secs > 0 {
		speed = float64(extracted) / 1e6 / secs
	}

	if t.emit != nil {
		t.emit(ProgressSnapshot{
			BytesExtracted:      extracted,
			EstimatedTotalBytes: t.estimatedTotal,
			CurrentEntryPath:    entryPath,
			SpeedMBps:           speed,
		})
	}
	return true
}
