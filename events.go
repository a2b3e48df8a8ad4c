package unzipper

import (
	"fmt"
	"sync"
)

// Observer 接收解压过程中的事件。所有方法只在同一个分发协程中被调用，
// 实现无需加锁，但不应长时间阻塞。
type Observer interface {
	OnLog(message string)
	OnArchiveStarted(index, total int, name string)
	OnProgress(progress ProgressSnapshot)
	OnError(message string)
	OnFinished(success bool, message string)
}

// BaseObserver 空实现，便于嵌入后只覆盖关心的方法
type BaseObserver struct{}

func (BaseObserver) OnLog(string) {}
func (BaseObserver) OnArchiveStarted(int, int, string) {}
func (BaseObserver) OnProgress(ProgressSnapshot) {}
func (BaseObserver) OnError(string) {}
func (BaseObserver) OnFinished(bool, string) {}

type eventKind int

const (
	eventLog eventKind = iota
	eventArchiveStarted
	eventProgress
	eventError
	eventFinished
)

type event struct {
	kind     eventKind
	message  string
	index    int
	total    int
	success  bool
	progress ProgressSnapshot
}

// dispatcher 工作协程把事件写入通道，单个消费协程调用 Observer
type dispatcher struct {
	observer Observer
	events   chan event
	done     chan struct{}
	once     sync.Once

	// 仅由消费协程访问
	lastBytes uint64
}

// newDispatcher 创建并启动事件分发器
func newDispatcher(observer Observer, buffer int) *dispatcher {
	if observer == nil {
		observer = BaseObserver{}
	}
	d := &dispatcher{
		observer: observer,
		events:   make(chan event, buffer),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for ev := range d.events {
		d.deliver(ev)
	}
}

// deliver Observer 中的 panic 不影响会话
func (d *dispatcher) deliver(ev event) {
	defer func() {
		_ = recover()
	}()

	switch ev.kind {
	case eventLog:
		d.observer.OnLog(ev.message)
	case eventArchiveStarted:
		d.observer.OnArchiveStarted(ev.index, ev.total, ev.message)
	case eventProgress:
		// 并发发出的快照可能乱序到达，保证字节数单调不减
		if ev.progress.BytesExtracted < d.lastBytes {
			return
		}
		d.lastBytes = ev.progress.BytesExtracted
		d.observer.OnProgress(ev.progress)
	case eventError:
		d.observer.OnError(ev.message)
	case eventFinished:
		d.observer.OnFinished(ev.success, ev.message)
	}
}

func (d *dispatcher) log(format string, args ...any) {
	d.events <- event{kind: eventLog, message: fmt.Sprintf(format, args...)}
}

func (d *dispatcher) archiveStarted(index, total int, name string) {
	d.events <- event{kind: eventArchiveStarted, index: index, total: total, message: name}
}

func (d *dispatcher) reportError(message string) {
	d.events <- event{kind: eventError, message: message}
}

func (d *dispatcher) finished(success bool, message string) {
	d.events <- event{kind: eventFinished, success: success, message: message}
}

// progress 通道满时丢弃，不阻塞写盘
func (d *dispatcher) progress(p ProgressSnapshot) {
	select {
	case d.events <- event{kind: eventProgress, progress: p}:
	default:
	}
}

// close 关闭通道并等待剩余事件分发完毕，之后不能再发送
func (d *dispatcher) close() {
	d.once.Do(func() {
		close(d.events)
	})
	<-d.done
}
