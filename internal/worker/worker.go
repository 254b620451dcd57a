// Package worker runs model load jobs on a fixed pool of goroutines.
// Results are posted to a channel unless the pool context ends first, so a
// canceled load never publishes a stale model.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bimkit/bimkit/internal/channel"
	"github.com/bimkit/bimkit/internal/events"
	"github.com/bimkit/bimkit/internal/loader"
)

// Job is one load request.
type Job struct {
	ID     string
	Loader loader.Loader
	Params loader.Params
}

// Result is the outcome of a job.
type Result struct {
	JobID    string
	Result   *loader.Result
	Err      error
	Duration time.Duration
}

// Pool is a fixed-size load worker pool.
type Pool struct {
	size int
	bus  *events.Bus
	log  *slog.Logger

	jobs    channel.Channel[Job]
	results channel.Channel[Result]

	duration metric.Float64Histogram

	wg      sync.WaitGroup
	started bool
}

// NewPool creates a pool of the given size. The bus may be nil; with a bus,
// every finished job emits a model.loaded or model.error event.
func NewPool(size int, bus *events.Bus, log *slog.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}

	duration, err := meter().Float64Histogram(
		"worker.load.duration",
		metric.WithDescription("Model load duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Pool{
		size:     size,
		bus:      bus,
		log:      log,
		jobs:     channel.New[Job](size * 2),
		results:  channel.New[Result](size * 2),
		duration: duration,
	}, nil
}

// Start launches the workers. They exit when ctx ends or the pool is closed.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Submit queues a job, or returns the context error if the context ends
// while the queue is full.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	return p.jobs.Send(ctx, job)
}

// Results returns the result stream. It is closed by Wait.
func (p *Pool) Results() <-chan Result {
	return p.results.Receive()
}

// Close stops accepting jobs. Workers finish what is queued.
func (p *Pool) Close() {
	p.jobs.Close()
}

// Wait blocks until all workers have exited and closes the result stream.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.results.Close()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs.Receive():
			if !ok {
				return
			}
			p.process(ctx, id, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job Job) {
	start := time.Now()
	res, err := job.Loader.Load(ctx, job.Params)
	elapsed := time.Since(start)

	p.duration.Record(context.Background(), elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("format", job.Loader.Name()),
			attribute.Bool("error", err != nil)))

	if err != nil {
		p.log.Error("Load job failed",
			"job", job.ID,
			"worker", workerID,
			"format", job.Loader.Name(),
			"error", err)
		if p.bus != nil {
			p.bus.Emit(events.Event{Name: events.ModelError, ModelID: job.ID, Err: err})
		}
	} else if p.bus != nil {
		p.bus.Emit(events.Event{
			Name:    events.ModelLoaded,
			ModelID: res.Scene.ID,
			Payload: res,
		})
	}

	if ctx.Err() != nil {
		// Canceled before posting: the result is dropped on purpose.
		p.log.Debug("Dropping result after cancellation", "job", job.ID)
		return
	}
	result := Result{JobID: job.ID, Result: res, Err: err, Duration: elapsed}
	if sendErr := p.results.Send(ctx, result); sendErr != nil {
		p.log.Debug("Dropping result after cancellation", "job", job.ID)
	}
}
