package worker

import (
	"container/list"
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned by TrySubmit when the intake queue has no room.
var ErrQueueFull = errors.New("job queue full")

// Config sizes a Dispatcher.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher hands jobs to a pool of workers, round-robin across keys so one
// busy key cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job // intake for outer jobs

	mu        sync.Mutex
	queues    map[string]*keyQueue // pending jobs per key
	ready     *list.List           // keys with pending jobs, in service order
	positions map[string]*list.Element

	submitMu sync.Mutex
	closed   bool
	pending  sync.WaitGroup
	quit     chan struct{}
	done     chan struct{}
}

func NewDispatcher(cfg Config) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		pool:      newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout),
		jobQueue:  make(chan Job, queueSize),
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}
	go d.run()
	return d
}

// TrySubmit queues fn without blocking.
func (d *Dispatcher) TrySubmit(key string, fn func()) error {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.pending.Add(1)
	job := Job{Type: Run, Key: key, Fn: d.track(fn)}
	select {
	case d.jobQueue <- job:
		return nil
	default:
		d.pending.Done()
		return ErrQueueFull
	}
}

func (d *Dispatcher) track(fn func()) func() {
	return func() {
		defer d.pending.Done()
		if fn != nil {
			fn()
		}
	}
}

// Close stops intake and waits for queued jobs until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.submitMu.Lock()
	if d.closed {
		d.submitMu.Unlock()
		return nil
	}
	d.closed = true
	d.submitMu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	close(d.quit)
	d.pool.close()
	<-d.done
	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)
	defer d.dropQueued()
	for {
		// dispatch one job of the key in front of the ready queue
		if !d.dispatchOne() {
			select {
			case job := <-d.jobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				return
			}
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			return
		default:
		}
	}
}

// dropQueued releases jobs that never reached a worker so pending reaches zero.
func (d *Dispatcher) dropQueued() {
	dropped := 0
drain:
	for {
		select {
		case <-d.jobQueue:
			dropped++
		default:
			break drain
		}
	}
	d.mu.Lock()
	for key, q := range d.queues {
		dropped += len(q.jobs)
		delete(d.queues, key)
	}
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.mu.Unlock()

	for i := 0; i < dropped; i++ {
		d.pending.Done()
	}
	if dropped > 0 {
		log.Printf("[dispatcher] dropped %d queued jobs on close", dropped)
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne takes the first key in the ready queue and dispatches one of its jobs
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan, workerID := d.pool.acquire()
	if workerChan == nil {
		// pool closed underneath us; account for the job so Close does not hang
		job.Fn = nil
		d.pending.Done()
		return true
	}
	debugLog("[dispatcher] assign job for %s to worker-%d", key, workerID)
	workerChan <- job
	return true
}
