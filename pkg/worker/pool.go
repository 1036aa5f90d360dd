package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/storage"
	"github.com/cisco7507/LangId-mr/pkg/types"
)

const idleSleep = 50 * time.Millisecond

// Pool runs a fixed number of claim-and-process workers against the store.
type Pool struct {
	store    storage.Store
	pipeline *Pipeline
	workers  int

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPool builds a pool of n workers.
func NewPool(store storage.Store, pipeline *Pipeline, n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		store:    store,
		pipeline: pipeline,
		workers:  n,
		stop:     make(chan struct{}),
	}
}

// Start launches the workers. Each loops claiming the oldest queued job,
// sleeping briefly when the queue is empty.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.WithComponent("worker").Info().Int("workers", p.workers).Msg("worker pool started")
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	close(p.stop)
	p.wg.Wait()
	log.WithComponent("worker").Info().Msg("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	logger := log.WithComponent("worker")
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.store.ClaimNext()
		if err != nil {
			logger.Error().Err(err).Int("worker", id).Msg("claim failed")
			p.sleep()
			continue
		}
		if job == nil {
			p.sleep()
			continue
		}
		p.runSafe(ctx, job)
	}
}

// runSafe converts a pipeline panic into an ordinary job failure so one bad
// job cannot take a worker down.
func (p *Pool) runSafe(ctx context.Context, job *types.Job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithJobID(job.ID).Error().Any("panic", r).Msg("pipeline panicked")
			p.pipeline.HandleFailure(job, fmt.Errorf("panic: %v", r))
		}
	}()
	p.pipeline.Process(ctx, job)
}

func (p *Pool) sleep() {
	select {
	case <-time.After(idleSleep):
	case <-p.stop:
	}
}
