package hotkey

import (
	"testing"

	"im2any/src/keymap"
)

func mustCombo(t *testing.T, s string) keymap.Combo {
	t.Helper()
	c, err := keymap.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", s, err)
	}
	return c
}

func TestTokenRawcodes(t *testing.T) {
	cases := []struct {
		token string
		want  uint16
	}{
		{"a", 0x41},
		{"z", 0x5A},
		{"0", 0x30},
		{"9", 0x39},
	}
	for _, c := range cases {
		codes := tokenRawcodes(c.token)
		if len(codes) != 1 || codes[0] != c.want {
			t.Errorf("tokenRawcodes(%q) = %v, expected [%d]", c.token, codes, c.want)
		}
	}

	for _, mod := range []string{"ctrl", "alt", "shift", "cmd"} {
		if len(tokenRawcodes(mod)) != 2 {
			t.Errorf("Expected left+right rawcodes for %q", mod)
		}
	}

	for _, bad := range []string{"", "esc", "f1", "+"} {
		if tokenRawcodes(bad) != nil {
			t.Errorf("Expected no rawcodes for %q", bad)
		}
	}
}

func TestCompileRejectsUnmappableToken(t *testing.T) {
	// A combo constructed outside keymap.Parse can carry an unsupported key.
	bad := Binding{Combo: keymap.Combo{Modifiers: []string{"ctrl"}, Key: "esc"}, Action: "x"}
	if _, err := compile([]Binding{bad}); err == nil {
		t.Fatal("Expected compile error for unmappable key")
	}
}

func pressSequence(l *Listener, codes ...uint16) {
	for _, c := range codes {
		l.handleKeyDown(c)
	}
}

func newTestListener(t *testing.T, trigger TriggerFunc, bindings ...Binding) *Listener {
	t.Helper()
	compiled, err := compile(bindings)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return &Listener{bindings: compiled, trigger: trigger, running: true}
}

func TestCombinationFiresWhenAllKeysDown(t *testing.T) {
	var fired []string
	l := newTestListener(t, func(a string) { fired = append(fired, a) },
		Binding{Combo: mustCombo(t, "ctrl+alt+z"), Action: "math2latex"})

	pressSequence(l, 162, 164) // ctrl, alt
	if len(fired) != 0 {
		t.Fatalf("Fired before key, got %v", fired)
	}
	pressSequence(l, 0x5A) // z
	if len(fired) != 1 || fired[0] != "math2latex" {
		t.Fatalf("Expected one math2latex trigger, got %v", fired)
	}
}

func TestCombinationRequiresRepress(t *testing.T) {
	var fired []string
	l := newTestListener(t, func(a string) { fired = append(fired, a) },
		Binding{Combo: mustCombo(t, "ctrl+alt+z"), Action: "math2latex"})

	pressSequence(l, 163, 165, 0x5A)
	pressSequence(l, 0x5A) // key repeat without modifiers re-tracked
	if len(fired) != 1 {
		t.Fatalf("Expected a single trigger, got %d", len(fired))
	}
}

func TestIndependentBindingsTrackSeparately(t *testing.T) {
	var fired []string
	l := newTestListener(t, func(a string) { fired = append(fired, a) },
		Binding{Combo: mustCombo(t, "ctrl+alt+c"), Action: "table"},
		Binding{Combo: mustCombo(t, "ctrl+alt+x"), Action: "text_extraction"})

	pressSequence(l, 162, 164, 0x43) // ctrl+alt+c
	l.handleKeyUp(0x43)
	pressSequence(l, 0x58) // x while ctrl+alt still held
	if len(fired) != 2 || fired[0] != "table" || fired[1] != "text_extraction" {
		t.Fatalf("Expected table then text_extraction, got %v", fired)
	}
}

func TestKeyUpClearsState(t *testing.T) {
	var fired []string
	l := newTestListener(t, func(a string) { fired = append(fired, a) },
		Binding{Combo: mustCombo(t, "ctrl+alt+z"), Action: "math2latex"})

	pressSequence(l, 162, 164)
	l.handleKeyUp(162) // release ctrl
	pressSequence(l, 0x5A)
	if len(fired) != 0 {
		t.Fatalf("Fired without full combination, got %v", fired)
	}
}
