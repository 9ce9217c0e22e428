package keymap

import "testing"

func TestParseNormalizesModifierOrder(t *testing.T) {
	a, err := Parse("shift+ctrl+z")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b, err := Parse("Ctrl+Shift+Z")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.String() != b.String() {
		t.Errorf("Expected equal canonical forms, got %q and %q", a.String(), b.String())
	}
	if a.String() != "ctrl+shift+z" {
		t.Errorf("Expected canonical 'ctrl+shift+z', got %q", a.String())
	}
}

func TestParseCanonicalizesSuperAliases(t *testing.T) {
	for _, spelling := range []string{"win+shift+z", "cmd+shift+z", "super+shift+z"} {
		c, err := Parse(spelling)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", spelling, err)
		}
		if c.String() != "cmd+shift+z" {
			t.Errorf("Parse(%q) = %q, expected cmd+shift+z", spelling, c.String())
		}
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	cases := []string{
		"",            // empty
		"z",           // no modifier
		"ctrl+",       // empty key
		"ctrl+esc",    // multi-char key
		"hyper+z",     // unknown modifier
		"ctrl+alt+F1", // function keys not in the supported set
	}
	for _, in := range cases {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should have failed", in)
		}
	}
}

func TestParseDropsDuplicateModifiers(t *testing.T) {
	c, err := Parse("ctrl+ctrl+x")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(c.Modifiers) != 1 {
		t.Errorf("Expected one modifier, got %v", c.Modifiers)
	}
}

func TestTokens(t *testing.T) {
	c, err := Parse("ctrl+alt+c")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tokens := c.Tokens()
	if len(tokens) != 3 || tokens[2] != "c" {
		t.Errorf("Unexpected tokens %v", tokens)
	}
}
