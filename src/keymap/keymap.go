package keymap

import (
	"fmt"
	"sort"
	"strings"
)

// Combo is a normalized hotkey combination: lower-cased modifiers in sorted
// order followed by exactly one alphanumeric key. Two spellings of the same
// combination ("Shift+Ctrl+Z", "ctrl+shift+z") normalize to the same Combo.
type Combo struct {
	Modifiers []string
	Key       string
}

// canonicalModifier maps every accepted modifier spelling to its canonical
// name. Win, cmd and super are the same physical key on their platforms.
var canonicalModifier = map[string]string{
	"ctrl":  "ctrl",
	"alt":   "alt",
	"shift": "shift",
	"win":   "cmd",
	"cmd":   "cmd",
	"super": "cmd",
}

// Parse normalizes a "+"-separated combination string like "ctrl+alt+z".
// The last token must be a single a-z or 0-9 key; every preceding token must
// be a known modifier and at least one modifier is required.
func Parse(s string) (Combo, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) < 2 {
		return Combo{}, fmt.Errorf("combination %q needs at least one modifier and a key", s)
	}

	seen := make(map[string]bool)
	var mods []string
	for _, raw := range parts[:len(parts)-1] {
		tok := strings.TrimSpace(raw)
		mod, ok := canonicalModifier[tok]
		if !ok {
			return Combo{}, fmt.Errorf("combination %q: unsupported modifier %q", s, tok)
		}
		if seen[mod] {
			continue
		}
		seen[mod] = true
		mods = append(mods, mod)
	}
	sort.Strings(mods)

	key := strings.TrimSpace(parts[len(parts)-1])
	if !validKey(key) {
		return Combo{}, fmt.Errorf("combination %q: key must be a single a-z or 0-9 character, got %q", s, key)
	}

	return Combo{Modifiers: mods, Key: key}, nil
}

func validKey(key string) bool {
	if len(key) != 1 {
		return false
	}
	c := key[0]
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// String renders the canonical form, e.g. "alt+ctrl+z". Canonical strings are
// safe to use as map keys for duplicate detection.
func (c Combo) String() string {
	if len(c.Modifiers) == 0 {
		return c.Key
	}
	return strings.Join(c.Modifiers, "+") + "+" + c.Key
}

// Tokens returns modifiers followed by the key, for listener registration.
func (c Combo) Tokens() []string {
	return append(append([]string(nil), c.Modifiers...), c.Key)
}
