package meshing

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"seamcraft/internal/registry"
)

// WorkerPool runs mesh compiles on a fixed set of goroutines. A slot is taken
// with TryAcquire before Submit and returned once the result is posted.
type WorkerPool struct {
	jobQueue chan *Precomp
	results  chan *Precomp
	slots    *semaphore.Weighted
	inFlight atomic.Int32
	workers  int

	compile func(*Precomp)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a pool with one slot per worker.
func NewWorkerPool(workers int, reg *registry.Registry) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := &WorkerPool{
		jobQueue: make(chan *Precomp, workers),
		results:  make(chan *Precomp, workers),
		slots:    semaphore.NewWeighted(int64(workers)),
		workers:  workers,
		compile:  func(pc *Precomp) { Compile(pc, reg) },
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool
}

// TryAcquire reserves a worker slot without blocking.
func (p *WorkerPool) TryAcquire() bool {
	if !p.slots.TryAcquire(1) {
		return false
	}
	p.inFlight.Inc()
	return true
}

// Release returns a slot that was acquired but not used.
func (p *WorkerPool) Release() {
	p.inFlight.Dec()
	p.slots.Release(1)
}

// Submit hands a snapshot to a worker. The caller must hold a slot.
func (p *WorkerPool) Submit(pc *Precomp) {
	select {
	case p.jobQueue <- pc:
	case <-p.ctx.Done():
		p.Release()
	}
}

// Results delivers compiled snapshots to the coordinator.
func (p *WorkerPool) Results() <-chan *Precomp { return p.results }

// InFlight returns the number of held slots.
func (p *WorkerPool) InFlight() int { return int(p.inFlight.Load()) }

func (p *WorkerPool) Workers() int { return p.workers }

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case pc := <-p.jobQueue:
			p.compile(pc)
			select {
			case p.results <- pc:
				p.Release()
			case <-p.ctx.Done():
				p.Release()
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Shutdown stops the workers. Results not yet drained are dropped.
func (p *WorkerPool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
