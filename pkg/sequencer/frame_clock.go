package sequencer

import (
	"sync"
	"time"
)

// FrameClock 由游戏循环驱动的时钟
//
// 时间只在调用 Advance / Update 时前进，到期的回调在调用方的 goroutine 中
// 按到期时间顺序执行。用于 ebiten 场景（每帧 Update(deltaTime)）和确定性测试。
type FrameClock struct {
	mu    sync.Mutex
	now   time.Duration
	queue timerQueue
}

// NewFrameClock 创建时钟，起点为 0
func NewFrameClock() *FrameClock {
	return &FrameClock{}
}

// AfterFunc 在当前时间之后 d 执行 f
func (c *FrameClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &frameTimer{clock: c, t: c.queue.push(c.now+d, f)}
}

// Advance 让时间前进 d，并依次执行期间到期的回调
// 回调中新调度且在本次推进范围内到期的定时器也会被执行
func (c *FrameClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.queue.popDue(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.due
		c.mu.Unlock()

		t.fn()
	}
}

// Update 按秒推进时间，与场景的 Update(deltaTime) 签名保持一致
func (c *FrameClock) Update(deltaTime float64) {
	c.Advance(time.Duration(deltaTime * float64(time.Second)))
}

// Now 返回时钟当前时间
func (c *FrameClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending 返回尚未执行也未取消的定时器数量
func (c *FrameClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

type frameTimer struct {
	clock *FrameClock
	t     *pendingTimer
}

func (ft *frameTimer) Stop() bool {
	ft.clock.mu.Lock()
	defer ft.clock.mu.Unlock()
	return ft.clock.queue.remove(ft.t)
}
