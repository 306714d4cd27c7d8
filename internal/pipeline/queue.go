package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("pipeline queue closed")

// Queue runs pipeline requests one at a time on a single worker goroutine.
//
// A request can be abandoned through its context while it waits. Once the
// worker has started it, the run goes to completion; a caller that stops
// waiting simply never sees the result.
type Queue struct {
	p         *Pipeline
	jobs      chan job
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type job struct {
	ctx     context.Context
	img     image.Image
	observe CanvasObserver
	reply   chan jobResult
}

type jobResult struct {
	report *Report
	err    error
}

// NewQueue starts the worker. Call Close to stop it.
func NewQueue(p *Pipeline) *Queue {
	q := &Queue{
		p:    p,
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Submit queues img and waits for its Result.
func (q *Queue) Submit(ctx context.Context, img image.Image) (*Result, error) {
	report, err := q.SubmitInspect(ctx, img, nil)
	if err != nil {
		return nil, err
	}
	return &report.Result, nil
}

// SubmitInspect queues img and waits for its full Report.
func (q *Queue) SubmitInspect(ctx context.Context, img image.Image, observe CanvasObserver) (*Report, error) {
	j := job{ctx: ctx, img: img, observe: observe, reply: make(chan jobResult, 1)}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrQueueClosed
	}

	select {
	case res := <-j.reply:
		return res.report, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the worker after the request it is running, if any.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case j := <-q.jobs:
			if err := j.ctx.Err(); err != nil {
				j.reply <- jobResult{err: err}
				continue
			}
			report, err := q.p.Inspect(j.img, j.observe)
			j.reply <- jobResult{report: report, err: err}
		case <-q.done:
			return
		}
	}
}
