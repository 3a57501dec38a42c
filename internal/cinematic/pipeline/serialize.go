package pipeline

import "sync"

// workGroup runs tasks FIFO per key while letting different keys proceed in
// parallel. A key's worker goroutine drains its queue and exits; the next
// submission restarts it. Two messages from the same user in the same room
// therefore never interleave.
type workGroup struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

func newWorkGroup() *workGroup {
	return &workGroup{queues: make(map[string][]func())}
}

// Submit enqueues task behind any tasks already pending for key.
func (g *workGroup) Submit(key string, task func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if queue, running := g.queues[key]; running {
		g.queues[key] = append(queue, task)
		return
	}
	g.queues[key] = nil
	g.wg.Add(1)
	go g.drain(key, task)
}

func (g *workGroup) drain(key string, task func()) {
	defer g.wg.Done()
	for {
		task()

		g.mu.Lock()
		queue := g.queues[key]
		if len(queue) == 0 {
			delete(g.queues, key)
			g.mu.Unlock()
			return
		}
		task = queue[0]
		g.queues[key] = queue[1:]
		g.mu.Unlock()
	}
}

// Wait blocks until every submitted task has finished.
func (g *workGroup) Wait() {
	g.wg.Wait()
}
