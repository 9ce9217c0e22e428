package task

import (
	"sync"
	"time"

	"im2any/src/llm"
	"im2any/src/screenshot"
)

// State of a conversion request. A task starts Pending and makes exactly one
// transition to a terminal state.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CaptureRequest is the ephemeral payload of one confirmed selection. It
// lives only as long as its task; nothing persists it.
type CaptureRequest struct {
	Region    screenshot.Region
	Action    string
	Prompt    string
	Image     []byte // PNG bytes from the capture primitive
	CreatedAt time.Time
}

// Task tracks one in-flight remote conversion.
type Task struct {
	ID      uint64
	Request CaptureRequest

	mu     sync.Mutex
	state  State
	result string
	kind   llm.ErrorKind
	err    error
}

// terminal performs the one allowed transition. Returns false if the task
// already reached a terminal state (e.g. cancelled at shutdown while the
// remote call was completing).
func (t *Task) terminal(to State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Pending {
		return false
	}
	t.state = to
	return true
}

// Succeed records the verbatim result text.
func (t *Task) Succeed(text string) bool {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return false
	}
	t.state = Succeeded
	t.result = text
	t.mu.Unlock()
	return true
}

// Fail records a classified remote failure.
func (t *Task) Fail(err error) bool {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return false
	}
	t.state = Failed
	t.err = err
	t.kind = llm.KindOf(err)
	t.mu.Unlock()
	return true
}

// Cancel marks the task abandoned. A completion arriving afterwards is
// discarded by the Succeed/Fail guards above.
func (t *Task) Cancel() bool { return t.terminal(Cancelled) }

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the text of a Succeeded task.
func (t *Task) Result() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// ErrorKind returns the classification of a Failed task.
func (t *Task) ErrorKind() llm.ErrorKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kind
}

func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
