package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"im2any/src/llm"
	"im2any/src/task"
)

func newTask(id uint64, action string) *task.Task {
	return &task.Task{ID: id, Request: task.CaptureRequest{
		Action: action,
		Prompt: "prompt",
		Image:  []byte{1, 2, 3},
	}}
}

func TestPoolRunsTaskToSuccess(t *testing.T) {
	p := NewWithQuery(1, func(ctx context.Context, prompt string, image []byte) (string, error) {
		return "x^2", nil
	})
	defer p.Close()

	done := make(chan *task.Task, 1)
	tk := newTask(1, "math2latex")
	if !p.Submit(context.Background(), tk, func(t *task.Task) { done <- t }) {
		t.Fatal("Submit rejected")
	}
	got := <-done
	if got.State() != task.Succeeded || got.Result() != "x^2" {
		t.Errorf("Unexpected terminal state %v result %q", got.State(), got.Result())
	}
}

func TestPoolRecordsClassifiedFailure(t *testing.T) {
	p := NewWithQuery(1, func(ctx context.Context, prompt string, image []byte) (string, error) {
		return "", &llm.Error{Kind: llm.KindQuota}
	})
	defer p.Close()

	done := make(chan *task.Task, 1)
	if !p.Submit(context.Background(), newTask(2, "table"), func(t *task.Task) { done <- t }) {
		t.Fatal("Submit rejected")
	}
	got := <-done
	if got.State() != task.Failed || got.ErrorKind() != llm.KindQuota {
		t.Errorf("Expected Failed/quota, got %v/%v", got.State(), got.ErrorKind())
	}
}

func TestPoolDiscardsCompletionOfCancelledTask(t *testing.T) {
	release := make(chan struct{})
	p := NewWithQuery(1, func(ctx context.Context, prompt string, image []byte) (string, error) {
		<-release
		return "late result", nil
	})
	defer p.Close()

	var calls sync.Mutex
	invoked := false
	tk := newTask(3, "math2latex")
	p.Submit(context.Background(), tk, func(t *task.Task) {
		calls.Lock()
		invoked = true
		calls.Unlock()
	})

	tk.Cancel()
	close(release)
	time.Sleep(50 * time.Millisecond)

	calls.Lock()
	defer calls.Unlock()
	if invoked {
		t.Error("Completion callback ran for a cancelled task")
	}
	if tk.State() != task.Cancelled {
		t.Errorf("Expected Cancelled, got %v", tk.State())
	}
}

func TestPoolConcurrentTasksCompleteIndependently(t *testing.T) {
	var mu sync.Mutex
	started := map[string]chan struct{}{
		"table":           make(chan struct{}),
		"text_extraction": make(chan struct{}),
	}
	release := make(chan struct{})
	p := NewWithQuery(2, func(ctx context.Context, prompt string, image []byte) (string, error) {
		mu.Lock()
		ch := started[prompt]
		mu.Unlock()
		close(ch)
		<-release
		return prompt + "-result", nil
	})
	defer p.Close()

	done := make(chan *task.Task, 2)
	for i, action := range []string{"table", "text_extraction"} {
		tk := &task.Task{ID: uint64(i + 10), Request: task.CaptureRequest{Action: action, Prompt: action, Image: []byte{1}}}
		if !p.Submit(context.Background(), tk, func(t *task.Task) { done <- t }) {
			t.Fatalf("Submit rejected for %s", action)
		}
	}

	// Both must be in flight at the same time before either completes.
	<-started["table"]
	<-started["text_extraction"]
	close(release)

	for i := 0; i < 2; i++ {
		got := <-done
		if got.State() != task.Succeeded {
			t.Errorf("Task %d finished %v", got.ID, got.State())
		}
	}
}

func TestPoolSubmitBackpressure(t *testing.T) {
	block := make(chan struct{})
	p := NewWithQuery(1, func(ctx context.Context, prompt string, image []byte) (string, error) {
		<-block
		return "", nil
	})
	defer func() {
		close(block)
		p.Close()
	}()

	accepted := 0
	for i := 0; i < 20; i++ {
		if p.Submit(context.Background(), newTask(uint64(i+100), "a"), func(t *task.Task) {}) {
			accepted++
		}
	}
	if accepted == 20 {
		t.Error("Expected the queue to reject some submissions while saturated")
	}
	if accepted == 0 {
		t.Error("Expected at least one accepted submission")
	}
}
