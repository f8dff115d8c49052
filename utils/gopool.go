package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ErrScheduleTimeout is returned by GoPool when no worker became free in time
var ErrScheduleTimeout = fmt.Errorf("schedule error: timed out")

// GoPool runs tasks on a bounded set of reusable goroutines.
// Used by the registry to fan messages out to local sockets.
type GoPool struct {
	name string
	sem  chan struct{}
	work chan func()

	active int64
}

// NewGoPool creates a pool with the given max number of workers.
// A fifth of the workers is spawned eagerly, the task queue holds a tenth of the size.
func NewGoPool(name string, size int) *GoPool {
	spawn := size / 5
	queue := size / 10

	if spawn <= 0 {
		spawn = 1
	}

	if queue <= 0 {
		queue = 1
	}

	p := &GoPool{
		name: name,
		sem:  make(chan struct{}, size),
		work: make(chan func(), queue),
	}

	for i := 0; i < spawn; i++ {
		p.sem <- struct{}{}
		go p.worker(nil)
	}

	return p
}

func (p *GoPool) Name() string {
	return p.name
}

// Size returns the max number of workers
func (p *GoPool) Size() int {
	return cap(p.sem)
}

// Busy returns the number of workers executing a task at the moment
func (p *GoPool) Busy() int {
	return int(atomic.LoadInt64(&p.active))
}

// Schedule blocks until the task is accepted by a worker or the queue
func (p *GoPool) Schedule(task func()) {
	p.schedule(task, nil) // nolint:errcheck
}

// ScheduleTimeout returns ErrScheduleTimeout when the task hasn't been accepted within the timeout
func (p *GoPool) ScheduleTimeout(timeout time.Duration, task func()) error {
	return p.schedule(task, time.After(timeout))
}

func (p *GoPool) schedule(task func(), timeout <-chan time.Time) error {
	select {
	case <-timeout:
		return ErrScheduleTimeout
	case p.work <- task:
		return nil
	case p.sem <- struct{}{}:
		go p.worker(task)
		return nil
	}
}

func (p *GoPool) worker(task func()) {
	defer func() { <-p.sem }()

	if task != nil {
		p.run(task)
	}

	for task := range p.work {
		p.run(task)
	}
}

func (p *GoPool) run(task func()) {
	atomic.AddInt64(&p.active, 1)
	defer atomic.AddInt64(&p.active, -1)

	task()
}
