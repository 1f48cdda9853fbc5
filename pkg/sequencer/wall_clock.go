package sequencer

import (
	"sync"
	"time"
)

// WallClock 真实时间时钟
//
// 所有回调都在同一个调度 goroutine 中按到期顺序执行，
// 相当于 UI 运行时的单线程定时器队列。使用完毕必须调用 Close。
// 不要在回调中调用 Close。
type WallClock struct {
	mu    sync.Mutex
	start time.Time
	queue timerQueue

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWallClock 创建时钟并启动调度 goroutine
func NewWallClock() *WallClock {
	c := &WallClock{
		start: time.Now(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// AfterFunc 在 d 之后执行 f
func (c *WallClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	t := c.queue.push(time.Since(c.start)+d, f)
	c.mu.Unlock()
	c.notify()
	return &wallTimer{clock: c, t: t}
}

// Close 停止调度 goroutine，尚未到期的定时器被丢弃
func (c *WallClock) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *WallClock) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *WallClock) loop() {
	defer c.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.Lock()
		now := time.Since(c.start)
		t := c.queue.popDue(now)
		if t != nil {
			c.mu.Unlock()
			t.fn()
			continue
		}
		next, ok := c.queue.next()
		c.mu.Unlock()

		var wait <-chan time.Time
		if ok {
			timer.Reset(next - now)
			wait = timer.C
		}

		select {
		case <-wait:
		case <-c.wake:
		case <-c.done:
			return
		}
		timer.Stop()
	}
}

type wallTimer struct {
	clock *WallClock
	t     *pendingTimer
}

func (wt *wallTimer) Stop() bool {
	wt.clock.mu.Lock()
	stopped := wt.clock.queue.remove(wt.t)
	wt.clock.mu.Unlock()
	if stopped {
		wt.clock.notify()
	}
	return stopped
}
