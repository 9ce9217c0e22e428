package hotkey

import (
	"fmt"
	"log"
	"sync"

	gohook "github.com/robotn/gohook"

	"im2any/src/keymap"
)

// Binding pairs a normalized combination with the action it triggers.
type Binding struct {
	Combo  keymap.Combo
	Action string
}

// TriggerFunc receives the action id of a detected combination. It is called
// from the hook goroutine and must not block.
type TriggerFunc func(action string)

// Listener is the process-scoped global hotkey service. One OS-level hook
// feeds all registered combinations; Start arms it, Stop tears it down.
type Listener struct {
	mu       sync.Mutex
	running  bool
	bindings []*compiledBinding
	trigger  TriggerFunc
}

type compiledBinding struct {
	action string
	combo  string
	keys   []keyState
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

func NewListener() *Listener { return &Listener{} }

// Start compiles the bindings and begins listening for global key events.
// Compilation failures are reported before any hook is installed.
func (l *Listener) Start(bindings []Binding, trigger TriggerFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("hotkey listener already running")
	}

	compiled, err := compile(bindings)
	if err != nil {
		return err
	}

	evChan := gohook.Start()
	if evChan == nil {
		return fmt.Errorf("failed to install global key hook")
	}

	l.bindings = compiled
	l.trigger = trigger
	l.running = true

	go l.run(evChan)
	for _, cb := range compiled {
		log.Printf("Hotkey armed: %s -> %s", cb.combo, cb.action)
	}
	return nil
}

// Stop removes the OS hook. Idempotent; safe to call during shutdown even if
// Start never ran.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	gohook.End()
}

func compile(bindings []Binding) ([]*compiledBinding, error) {
	compiled := make([]*compiledBinding, 0, len(bindings))
	for _, b := range bindings {
		cb := &compiledBinding{action: b.Action, combo: b.Combo.String()}
		for _, tok := range b.Combo.Tokens() {
			rawcodes := tokenRawcodes(tok)
			if len(rawcodes) == 0 {
				return nil, fmt.Errorf("combination %q: no rawcode mapping for %q", cb.combo, tok)
			}
			cb.keys = append(cb.keys, keyState{name: tok, rawcodes: rawcodes})
		}
		compiled = append(compiled, cb)
	}
	return compiled, nil
}

func (l *Listener) run(evChan chan gohook.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in hotkey goroutine: %v", r)
		}
	}()

	for ev := range evChan {
		switch ev.Kind {
		case gohook.KeyDown, gohook.KeyHold:
			l.handleKeyDown(ev.Rawcode)
		case gohook.KeyUp:
			l.handleKeyUp(ev.Rawcode)
		}
	}
	log.Printf("Hotkey event channel closed")
}

func (l *Listener) handleKeyDown(rawcode uint16) {
	var fired []*compiledBinding

	l.mu.Lock()
	for _, cb := range l.bindings {
		matched := false
		all := true
		for i := range cb.keys {
			if cb.keys[i].matches(rawcode) {
				cb.keys[i].pressed = true
				matched = true
			}
			if !cb.keys[i].pressed {
				all = false
			}
		}
		if matched && all {
			// Reset so holding the combination fires once per press.
			for i := range cb.keys {
				cb.keys[i].pressed = false
			}
			fired = append(fired, cb)
		}
	}
	trigger := l.trigger
	l.mu.Unlock()

	for _, cb := range fired {
		log.Printf("Hotkey detected: %s (%s)", cb.combo, cb.action)
		if trigger != nil {
			trigger(cb.action)
		}
	}
}

func (l *Listener) handleKeyUp(rawcode uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cb := range l.bindings {
		for i := range cb.keys {
			if cb.keys[i].matches(rawcode) {
				cb.keys[i].pressed = false
			}
		}
	}
}

func (k *keyState) matches(rawcode uint16) bool {
	for _, rc := range k.rawcodes {
		if rc == rawcode {
			return true
		}
	}
	return false
}

// tokenRawcodes maps a normalized combination token to its virtual key codes.
// Modifiers cover both left and right variants. The supported set is the
// modifier group plus single a-z / 0-9 keys.
func tokenRawcodes(tok string) []uint16 {
	switch tok {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "cmd":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	}
	if len(tok) != 1 {
		return nil
	}
	c := tok[0]
	switch {
	case c >= 'a' && c <= 'z':
		return []uint16{uint16(c-'a') + 0x41}
	case c >= '0' && c <= '9':
		return []uint16{uint16(c-'0') + 0x30}
	}
	return nil
}
