// Package eventloop coordinates the capture pipeline: hotkey triggers in,
// overlay selection, capture, remote conversion on the worker pool, and
// result routing to clipboard, sound, and history.
package eventloop

import (
	"context"
	"fmt"
	"log"
	"time"

	"im2any/src/clipboard"
	"im2any/src/config"
	"im2any/src/history"
	"im2any/src/hotkey"
	"im2any/src/notification"
	"im2any/src/overlay"
	"im2any/src/screenshot"
	"im2any/src/sound"
	"im2any/src/task"
	"im2any/src/tray"
	"im2any/src/worker"
)

// Loop is the single-goroutine coordinator. All dispatch decisions and result
// routing happen on the Run goroutine; the hook callback and the workers only
// post into its channels.
type Loop struct {
	store    *config.Store
	hist     *history.Store
	listener *hotkey.Listener
	selector overlay.Selector
	pool     *worker.Pool
	guard    *task.Guard

	triggers chan string
	reloads  chan struct{}
	results  chan completion

	inFlight       int
	defaultTooltip string

	// Side effects, swappable in tests.
	capture        func(screenshot.Region) ([]byte, error)
	writeClipboard func(string) error
	playSound      func()
	notify         func(string)
	notifyError    func(string)
}

// completion carries a terminal task from a worker back to the loop, together
// with the guard reservation and deadline to release.
type completion struct {
	t      *task.Task
	id     uint64
	cancel context.CancelFunc
}

func New(store *config.Store, hist *history.Store, listener *hotkey.Listener) *Loop {
	return &Loop{
		store:          store,
		hist:           hist,
		listener:       listener,
		selector:       overlay.New(),
		pool:           worker.New(0),
		guard:          task.NewGuard(),
		triggers:       make(chan string, 4),
		reloads:        make(chan struct{}, 1),
		results:        make(chan completion, 8),
		defaultTooltip: "im2any",
		capture:        screenshot.CaptureRegion,
		writeClipboard: clipboard.Write,
		playSound:      sound.PlayDone,
		notify:         notification.Notify,
		notifyError:    notification.NotifyError,
	}
}

// Trigger posts a hotkey activation. Called from the hook goroutine; never
// blocks, excess presses are dropped.
func (l *Loop) Trigger(action string) {
	select {
	case l.triggers <- action:
	default:
		log.Printf("Trigger for %q dropped, queue full", action)
	}
}

// RequestReload schedules a config re-read on the loop goroutine.
func (l *Loop) RequestReload() {
	select {
	case l.reloads <- struct{}{}:
	default:
	}
}

// ArmHotkeys compiles the snapshot's bindings and installs the global hook.
func (l *Loop) ArmHotkeys() error {
	snap := l.store.Snapshot()
	bindings := make([]hotkey.Binding, len(snap.Bindings))
	for i, b := range snap.Bindings {
		bindings[i] = hotkey.Binding{Combo: b.Combo, Action: b.Action}
	}
	return l.listener.Start(bindings, l.Trigger)
}

// Run processes events until ctx is cancelled. Completions that arrive after
// Run returns are discarded by the non-blocking post in the submit callback.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()
	tray.UpdateTooltip(l.defaultTooltip)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action := <-l.triggers:
			l.handleTrigger(ctx, action)
		case <-l.reloads:
			l.handleReload()
		case c := <-l.results:
			l.handleResult(c)
		}
	}
}

func (l *Loop) handleTrigger(ctx context.Context, action string) {
	snap := l.store.Snapshot()
	prompt, ok := snap.Prompt(action)
	if !ok {
		log.Printf("Trigger for %q: no prompt in current config", action)
		l.notify(fmt.Sprintf("No prompt configured for action %q", action))
		return
	}

	// One pending task per action. Reserving before the overlay means a
	// second press of the same combination is rejected without flashing a
	// second selection.
	id, ok := l.guard.Begin(action)
	if !ok {
		log.Printf("Trigger for %q rejected: previous task still pending", action)
		l.notify(fmt.Sprintf("Still processing previous %s capture", action))
		return
	}

	region, cancelled, err := l.selector.Select(ctx)
	// Presses made while the overlay was up queue behind it; they were aimed
	// at a selection that no longer exists.
	l.drainTriggers()
	if err != nil {
		log.Printf("Selection failed for %q: %v", action, err)
		l.guard.Abort(action, id)
		l.notify("Region selection failed")
		return
	}
	if cancelled {
		log.Printf("Selection cancelled for %q", action)
		l.guard.Abort(action, id)
		return
	}

	image, err := l.capture(region)
	if err != nil {
		log.Printf("Capture failed for %q region %s: %v", action, region, err)
		l.guard.Abort(action, id)
		l.notify("Screen capture failed")
		return
	}

	t := &task.Task{
		ID: id,
		Request: task.CaptureRequest{
			Region:    region,
			Action:    action,
			Prompt:    prompt,
			Image:     image,
			CreatedAt: time.Now(),
		},
	}

	timeout := time.Duration(snap.RequestTimeoutSec) * time.Second
	jobCtx, cancel := context.WithTimeout(ctx, timeout)

	submitted := l.pool.Submit(jobCtx, t, func(t *task.Task) {
		select {
		case l.results <- completion{t: t, id: id, cancel: cancel}:
		default:
			// Loop gone or saturated; nobody will route this result.
			cancel()
			log.Printf("Late completion for task %d discarded", t.ID)
		}
	})
	if !submitted {
		cancel()
		l.guard.Abort(action, id)
		log.Printf("Queue full, dropping %q task %d", action, id)
		l.notify("Too many conversions in flight, try again")
		return
	}

	l.setInFlight(+1)
	log.Printf("Dispatched %q task %d: region %s, timeout %s", action, id, region, timeout)
}

func (l *Loop) handleResult(c completion) {
	l.guard.Finish(c.t.Request.Action, c.id)
	c.cancel()
	l.setInFlight(-1)

	switch c.t.State() {
	case task.Succeeded:
		l.deliver(c.t)
	case task.Failed:
		kind := c.t.ErrorKind()
		log.Printf("Task %d (%s) failed [%s]: %v", c.t.ID, c.t.Request.Action, kind, c.t.Err())
		l.notifyError(kind.Message())
	default:
		// Cancelled: nothing reaches the user, per the task contract.
		log.Printf("Task %d (%s) cancelled, result dropped", c.t.ID, c.t.Request.Action)
	}
}

// deliver routes a successful result: clipboard, chime, history. A failed
// clipboard write is reported but does not block the history append; the
// entry records what the conversion produced.
func (l *Loop) deliver(t *task.Task) {
	text := t.Result()
	log.Printf("Task %d (%s) succeeded: %d chars", t.ID, t.Request.Action, len(text))

	if err := l.writeClipboard(text); err != nil {
		log.Printf("Clipboard write failed for task %d: %v", t.ID, err)
		l.notify("Result ready but clipboard write failed")
	} else {
		l.playSound()
	}

	if l.hist != nil {
		req := t.Request
		if _, err := l.hist.Append(req.Action, req.Prompt, text, req.Image); err != nil {
			log.Printf("History append failed for task %d: %v", t.ID, err)
		}
	}
}

func (l *Loop) handleReload() {
	snap, err := l.store.Reload()
	if err != nil {
		log.Printf("Config reload failed, keeping previous config: %v", err)
		l.notify("Config reload failed, keeping previous settings")
		return
	}

	l.listener.Stop()
	if err := l.ArmHotkeys(); err != nil {
		log.Printf("Re-arming hotkeys after reload failed: %v", err)
		l.notify("Config reloaded but hotkeys could not be re-armed")
		return
	}
	log.Printf("Config reloaded: %d bindings, model %s", len(snap.Bindings), snap.Model)
	l.notify("Config reloaded")
}

func (l *Loop) drainTriggers() {
	for {
		select {
		case action := <-l.triggers:
			log.Printf("Dropping trigger for %q queued during selection", action)
		default:
			return
		}
	}
}

func (l *Loop) setInFlight(delta int) {
	l.inFlight += delta
	if l.inFlight > 0 {
		tray.UpdateTooltip(fmt.Sprintf("%s: processing (%d)...", l.defaultTooltip, l.inFlight))
	} else {
		tray.UpdateTooltip(l.defaultTooltip)
	}
}
