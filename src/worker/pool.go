package worker

import (
	"context"
	"log"
	"runtime"
	"sync"

	"im2any/src/llm"
	"im2any/src/task"
)

// CompletionFunc is invoked from a worker goroutine once the task reached a
// terminal state. Pass a closure that posts back into the event loop; never
// touch UI resources here.
type CompletionFunc func(t *task.Task)

// QueryFunc matches llm.Query; swappable for tests.
type QueryFunc func(ctx context.Context, prompt string, image []byte) (string, error)

// Pool executes remote conversion calls on a fixed set of goroutines so the
// hook and event-loop goroutines never block on the network.
type Pool struct {
	jobs  chan job
	wg    sync.WaitGroup
	query QueryFunc
}

type job struct {
	ctx  context.Context
	t    *task.Task
	done CompletionFunc
}

// New creates a pool. Size defaults to NumCPU when size <= 0. The queue holds
// a few jobs so independent actions submitted back-to-back both run.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 4), query: llm.Query}
	p.start(size)
	return p
}

// NewWithQuery is New with an injected query function.
func NewWithQuery(size int, query QueryFunc) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 4), query: query}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.run(j)
			}
		}()
	}
}

func (p *Pool) run(j job) {
	req := j.t.Request
	log.Printf("Worker: converting %s region %s (task %d)", req.Action, req.Region, j.t.ID)

	text, err := p.query(j.ctx, req.Prompt, req.Image)
	if err != nil {
		if !j.t.Fail(err) {
			log.Printf("Worker: task %d already terminal, failure discarded", j.t.ID)
			return
		}
	} else {
		if !j.t.Succeed(text) {
			log.Printf("Worker: task %d already terminal, result discarded", j.t.ID)
			return
		}
	}
	j.done(j.t)
}

// Submit enqueues a pending task. Returns false when the queue is full.
func (p *Pool) Submit(ctx context.Context, t *task.Task, done CompletionFunc) bool {
	select {
	case p.jobs <- job{ctx: ctx, t: t, done: done}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining queued work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
