package worker

import (
	"sync"
	"time"
)

type workerMeta struct {
	id        int
	ch        chan Job
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

// jobChannelPool is an elastic set of workers between min and max; idle workers above min expire.
type jobChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	nextID   int
	expiry   time.Duration
	closed   bool
	quit     chan struct{}
}

const defaultWorkerIdle = 30 * time.Second

func newJobChannelPool(minWorkers, maxWorkers int, idle time.Duration) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		quit:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// newWorkerLocked registers a worker; callers start it after unlocking.
func (p *jobChannelPool) newWorkerLocked() *Worker {
	p.nextID++
	worker := NewWorker(p.nextID, p)
	p.metadata[worker.jobChannel] = &workerMeta{id: p.nextID, ch: worker.jobChannel}
	p.running++
	return worker
}

// spawnWorker adds an idle worker, used to warm up the pool
func (p *jobChannelPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max || p.closed {
		p.mu.Unlock()
		return
	}
	worker := p.newWorkerLocked()
	meta := p.metadata[worker.jobChannel]
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	worker.Start()
}

// acquire gets an idle worker, or spawns a new one, blocking while the pool is saturated.
// It returns a nil channel once the pool is closed.
func (p *jobChannelPool) acquire() (chan Job, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return nil, 0
		}
		if meta := p.popIdleLocked(); meta != nil {
			return meta.ch, meta.id
		}
		if p.running < p.max {
			worker := p.newWorkerLocked()
			worker.Start()
			return worker.jobChannel, worker.id
		}
		p.cond.Wait()
	}
}

// Release puts a worker back into the idle queue. It reports false once the pool is closed.
func (p *jobChannelPool) Release(ch chan Job) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return ok && !meta.discarded
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
	return true
}

// retire deletes a worker
func (p *jobChannelPool) retire(ch chan Job) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// popIdleLocked returns the first live idle worker
func (p *jobChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *jobChannelPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			p.shutdownExpired()
		}
	}
}

// shutdownExpired retires idle workers unused for longer than expiry, keeping min alive
func (p *jobChannelPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0] // keep the original array
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- Job{Type: Stop}
	}
}

// close stops idle workers; busy workers exit after their current job.
func (p *jobChannelPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()
	close(p.quit)
	p.cond.Broadcast()

	for _, meta := range idle {
		if !meta.discarded {
			meta.ch <- Job{Type: Stop}
		}
	}
}

func (p *jobChannelPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
