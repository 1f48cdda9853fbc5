package sequencer

import (
	"container/heap"
	"time"
)

// Clock 定时器调度接口
//
// 实现必须保证：同一个 Clock 上的回调按到期时间顺序、在单一执行流中依次执行，
// 到期时间相同的回调按调度顺序执行。
type Clock interface {
	// AfterFunc 在 d 之后执行 f，返回可取消的定时器
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 可取消的定时器
type Timer interface {
	// Stop 取消定时器；如果定时器已执行或已取消返回 false
	Stop() bool
}

// pendingTimer 队列中的一个定时器
type pendingTimer struct {
	due     time.Duration // 相对时钟起点的到期时间
	seq     uint64        // 调度顺序，用于同一时刻的稳定排序
	fn      func()
	index   int
	stopped bool
	fired   bool
}

// timerHeap 按 (due, seq) 排序的最小堆
type timerHeap []*pendingTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*pendingTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// timerQueue FrameClock 和 WallClock 共用的定时器队列（调用方负责加锁）
type timerQueue struct {
	heap timerHeap
	seq  uint64
}

func (q *timerQueue) push(due time.Duration, fn func()) *pendingTimer {
	q.seq++
	t := &pendingTimer{due: due, seq: q.seq, fn: fn}
	heap.Push(&q.heap, t)
	return t
}

func (q *timerQueue) remove(t *pendingTimer) bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	if t.index >= 0 && t.index < len(q.heap) && q.heap[t.index] == t {
		heap.Remove(&q.heap, t.index)
	}
	return true
}

// popDue 弹出一个到期时间不晚于 now 的定时器
func (q *timerQueue) popDue(now time.Duration) *pendingTimer {
	if len(q.heap) == 0 || q.heap[0].due > now {
		return nil
	}
	t := heap.Pop(&q.heap).(*pendingTimer)
	t.fired = true
	return t
}

// next 返回最早的到期时间
func (q *timerQueue) next() (time.Duration, bool) {
	if len(q.heap) == 0 {
		return 0, false
	}
	return q.heap[0].due, true
}

func (q *timerQueue) len() int {
	return len(q.heap)
}
