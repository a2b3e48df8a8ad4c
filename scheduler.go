package unzipper

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/mirbf/unzipper"

// eventBuffer 事件通道容量。进度事件在通道满时被丢弃。
const eventBuffer = 256

// Session 一次批量解压会话。取消标志只会被设置一次，不会复位，
// 因此一个 Session 只用于一次 Run。
type Session struct {
	cfg      Config
	observer Observer
	tracer   trace.Tracer

	cancelled atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc

	// 测试注入
	verify verifyFunc
}

// NewSession 创建会话。observer 为 nil 时丢弃所有事件。
func NewSession(cfg Config, observer Observer) *Session {
	if observer == nil {
		observer = BaseObserver{}
	}
	return &Session{
		cfg:      cfg,
		observer: observer,
		tracer:   otel.Tracer(tracerName),
	}
}

// Cancel 设置取消标志，可重复调用。正在执行的任务在下一个检查点中止。
func (s *Session) Cancel() {
	s.cancelled.Store(true)

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cancelled 是否已请求取消
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Run 按波次执行任务并返回汇总。无论成功、失败还是取消，OnFinished 都恰好触发一次。
func (s *Session) Run(ctx context.Context, jobs []ArchiveJob) (summary BatchSummary) {
	cfg := s.cfg.WithDefaults()
	start := time.Now()
	summary.TotalCount = len(jobs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	if s.cancelled.Load() {
		cancel()
	}
	stop := context.AfterFunc(ctx, func() { s.cancelled.Store(true) })
	defer stop()

	events := newDispatcher(s.observer, eventBuffer)
	defer events.close()

	ctx, span := s.tracer.Start(ctx, "unzipper.batch",
		trace.WithAttributes(
			attribute.Int("batch.jobs", len(jobs)),
			attribute.Int("batch.parallel", cfg.MaxParallel),
		))
	defer span.End()

	finished := false
	finish := func(success bool, message string) {
		if finished {
			return
		}
		finished = true
		if !success {
			span.SetStatus(codes.Error, message)
		}
		events.finished(success, message)
	}

	defer func() {
		if p := recover(); p != nil {
			summary.LastError = fmt.Sprintf("Extraction failed: internal error: %v", p)
			summary.Duration = time.Since(start)
			finish(false, summary.LastError)
		}
	}()

	if err := ValidateConfig(cfg); err != nil {
		summary.LastError = err.Error()
		finish(false, summary.LastError)
		return summary
	}

	utils := NewArchiveUtils()
	var estimated uint64
	for _, job := range jobs {
		estimated += utils.ArchiveSize(job.SourcePath) * cfg.ExpansionFactor
	}
	throttle := newProgressThrottle(cfg.ThrottleInterval, estimated, events.progress)

	runner := newJobRunner(cfg, throttle, events, s.tracer, s.Cancelled)
	if s.verify != nil {
		runner.verify = s.verify
	}

	summary.Outcomes = s.runWaves(ctx, jobs, cfg.MaxParallel, runner, events)
	summary.Duration = time.Since(start)

	for _, o := range summary.Outcomes {
		switch {
		case o.Success:
			summary.SuccessCount++
		case o.Cancelled:
			summary.Cancelled = true
		case o.Err != nil:
			summary.LastError = o.Err.Message
		}
	}

	seconds := int(summary.Duration.Seconds())
	events.log("Done: %d/%d archives in %d seconds", summary.SuccessCount, summary.TotalCount, seconds)
	span.SetAttributes(
		attribute.Int("batch.succeeded", summary.SuccessCount),
		attribute.Int64("batch.bytes", int64(throttle.BytesExtracted())),
	)

	switch {
	case summary.Cancelled:
		finish(false, "Extraction cancelled by user")
	case summary.SuccessCount == summary.TotalCount:
		finish(true, fmt.Sprintf("Successfully extracted %d archive(s) in %d seconds", summary.SuccessCount, seconds))
	default:
		finish(false, fmt.Sprintf("Extracted %d/%d archives. Last error: %s", summary.SuccessCount, summary.TotalCount, summary.LastError))
	}
	return summary
}

// runWaves 连续的任务分成不超过 parallel 个的一波，一波全部结束后才开始下一波。
// 波次之间观察到取消时，剩余任务记为已取消。
func (s *Session) runWaves(ctx context.Context, jobs []ArchiveJob, parallel int, runner *jobRunner, events *dispatcher) []ExtractionOutcome {
	total := len(jobs)
	outcomes := make([]ExtractionOutcome, total)

	for waveStart := 0; waveStart < total; waveStart += parallel {
		waveEnd := min(waveStart+parallel, total)

		if s.Cancelled() {
			for i := waveStart; i < total; i++ {
				outcomes[i] = ExtractionOutcome{Archive: jobs[i].SourcePath, Cancelled: true}
			}
			break
		}

		var g errgroup.Group
		for i := waveStart; i < waveEnd; i++ {
			name := filepath.Base(jobs[i].SourcePath)
			events.archiveStarted(i+1, total, name)
			events.log("Extracting %d/%d: %s", i+1, total, name)

			i := i
			g.Go(func() error {
				outcomes[i] = runner.run(ctx, jobs[i])
				return nil
			})
		}
		g.Wait()

		for i := waveStart; i < waveEnd; i++ {
			s.reportOutcome(outcomes[i], events)
		}
	}
	return outcomes
}

// reportOutcome 一波结束后按任务顺序输出结果
func (s *Session) reportOutcome(o ExtractionOutcome, events *dispatcher) {
	name := filepath.Base(o.Archive)
	switch {
	case o.Success:
		events.log("  ✓ %s (%s)", name, FormatBytes(o.BytesWritten))
	case o.Cancelled:
		events.log("  - %s cancelled", name)
	case o.Err != nil:
		events.log("  ✗ %s - %s", name, o.Err.Message)
		events.reportError(o.Err.Message)
	}
}
