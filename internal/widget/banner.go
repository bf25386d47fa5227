package widget

import (
	"sync"
	"time"
)

// CancelFunc 取消已安排的回调，返回回调是否仍未执行
type CancelFunc func() bool

// Scheduler 延时执行回调
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) CancelFunc
}

// RealScheduler 使用真实时钟
type RealScheduler struct{}

// AfterFunc 封装 time.AfterFunc
func (RealScheduler) AfterFunc(d time.Duration, f func()) CancelFunc {
	return time.AfterFunc(d, f).Stop
}

// Banner 可见标志加一个自动隐藏计时器，再次显示会重新计时而不是叠加计时器
type Banner struct {
	scheduler Scheduler
	duration  time.Duration
	onChange  func(visible bool)

	mu      sync.Mutex
	visible bool
	gen     uint64
	cancel  CancelFunc
}

// NewBanner 创建隐藏的横幅，onChange 在持有横幅锁时调用
func NewBanner(scheduler Scheduler, duration time.Duration, onChange func(visible bool)) *Banner {
	if scheduler == nil {
		scheduler = RealScheduler{}
	}
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Banner{scheduler: scheduler, duration: duration, onChange: onChange}
}

// Show 显示横幅并重新开始倒计时
func (b *Banner) Show() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	b.gen++
	gen := b.gen
	b.visible = true
	b.cancel = b.scheduler.AfterFunc(b.duration, func() { b.expire(gen) })
	b.onChange(true)
}

// Hide 隐藏横幅并取消倒计时
func (b *Banner) Hide() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	b.gen++
	if !b.visible {
		return
	}
	b.visible = false
	b.onChange(false)
}

// Visible 横幅是否可见
func (b *Banner) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

func (b *Banner) expire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 已被之后的 Show 或 Hide 取代
	if gen != b.gen || !b.visible {
		return
	}
	b.cancel = nil
	b.visible = false
	b.onChange(false)
}

func (b *Banner) stopLocked() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}
