package worker

import "log"

// JobType tells a worker what to do with a job.
type JobType string

const (
	Run  JobType = "run"
	Stop JobType = "stop"
)

// Job is a unit of work. Key groups jobs for fair dispatching.
type Job struct {
	Type JobType
	Key  string
	Fn   func()
}

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				debugLog("[worker-%d] stop", w.id)
				w.pool.retire(w.jobChannel)
				return
			}
			w.run(job)
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}

func (w *Worker) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[worker-%d] job for %s panicked: %v", w.id, job.Key, r)
		}
	}()
	if job.Fn != nil {
		job.Fn()
	}
}
