package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"

	"im2any/src/keymap"
)

const (
	ConfigFileName   = "config.json"
	ConfigPathEnvVar = "IM2ANY_CONFIG"
	APIKeyEnvVar     = "IM2ANY_API_KEY"
	APIKeyPathEnvVar = "IM2ANY_API_KEY_FILE"

	DefaultModel             = "gemini-2.0-flash"
	DefaultRequestTimeoutSec = 30

	apiKeyPlaceholder = "YOUR_API_KEY_HERE"
)

// Load-time validation failures. Both block startup: silently dropping or
// overwriting half the bindings would be a correctness bug.
var (
	ErrDuplicateBinding = errors.New("duplicate shortcut binding")
	ErrUnknownAction    = errors.New("shortcut references undefined action")
)

// DefaultPrompt ships as the math2latex prompt in a freshly written config.
const DefaultPrompt = "Convert the mathematical content in this image to raw LaTeX math code. " +
	"Use \\text{} for plain text within equations. For one equation, return only its code. " +
	"For multiple equations, use \\begin{array}{l}...\\end{array} with \\\\ between equations, " +
	"matching the image's visual structure. Never use standalone environments like equation or align, " +
	"and never wrap output in code block markers (e.g., ```). Return NA if no math is present."

// File mirrors config.json on disk.
type File struct {
	APIKey            string                     `json:"api_key"`
	Model             string                     `json:"model,omitempty"`
	Prompts           map[string]string          `json:"prompts"`
	Shortcuts         map[string][]ShortcutEntry `json:"shortcuts"`
	RequestTimeoutSec int                        `json:"request_timeout_sec,omitempty"`
}

type ShortcutEntry struct {
	ShortcutStr string `json:"shortcut_str"`
	Action      string `json:"action"`
}

// Binding is one validated shortcut for the running platform.
type Binding struct {
	Combo  keymap.Combo
	Action string
}

// Snapshot is the immutable, validated view of the configuration. Readers
// keep whatever snapshot they captured; a reload publishes a new one.
type Snapshot struct {
	APIKey            string
	Model             string
	Prompts           map[string]string
	Bindings          []Binding
	RequestTimeoutSec int
	EnableFileLogging bool
}

// Prompt returns the prompt for an action id, reporting whether it exists.
func (s *Snapshot) Prompt(action string) (string, bool) {
	p, ok := s.Prompts[action]
	return p, ok
}

// Store publishes the current snapshot atomically. In-flight work keeps the
// snapshot it started with; Reload swaps the pointer in one step.
type Store struct {
	path string
	cur  atomic.Pointer[Snapshot]
}

// Open loads and validates the config at path (resolved via ResolvePath when
// empty) and returns a store positioned on that snapshot.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ResolvePath()
	}
	snap, err := load(path)
	if err != nil {
		return nil, err
	}
	st := &Store{path: path}
	st.cur.Store(snap)
	return st, nil
}

// Snapshot returns the current configuration. Never nil after Open.
func (st *Store) Snapshot() *Snapshot { return st.cur.Load() }

// Reload re-parses the file and swaps the snapshot in. On error the previous
// snapshot stays published.
func (st *Store) Reload() (*Snapshot, error) {
	snap, err := load(st.path)
	if err != nil {
		return nil, err
	}
	st.cur.Store(snap)
	return snap, nil
}

// Path returns the config file location backing this store.
func (st *Store) Path() string { return st.path }

// ResolvePath picks the config.json location: explicit env override first,
// then the executable directory, then the working directory.
func ResolvePath() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		return p
	}
	if execPath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(execPath), ConfigFileName)
	}
	return ConfigFileName
}

// WriteDefault writes a starter config.json so the user has something to
// edit. Returns an error if a file already exists at path.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	def := File{
		APIKey: apiKeyPlaceholder,
		Model:  DefaultModel,
		Prompts: map[string]string{
			"math2latex": DefaultPrompt,
		},
		Shortcuts: map[string][]ShortcutEntry{
			"windows": {{ShortcutStr: "ctrl+alt+z", Action: "math2latex"}},
			"darwin":  {{ShortcutStr: "cmd+shift+z", Action: "math2latex"}},
			"linux":   {{ShortcutStr: "ctrl+alt+z", Action: "math2latex"}},
		},
		RequestTimeoutSec: DefaultRequestTimeoutSec,
	}
	data, err := json.MarshalIndent(def, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func load(path string) (*Snapshot, error) {
	loadDotenv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return build(&f, runtime.GOOS)
}

func build(f *File, goos string) (*Snapshot, error) {
	apiKey := resolveAPIKey(f.APIKey)
	if apiKey == "" || apiKey == apiKeyPlaceholder {
		return nil, errors.New("api_key is missing or still the placeholder")
	}

	bindings, err := platformBindings(f, goos)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(f.Model)
	if env := strings.TrimSpace(os.Getenv("MODEL")); env != "" {
		model = env
	}
	if model == "" {
		model = DefaultModel
	}

	timeoutSec := f.RequestTimeoutSec
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeoutSec = n
		}
	}
	if timeoutSec <= 0 {
		timeoutSec = DefaultRequestTimeoutSec
	}

	prompts := make(map[string]string, len(f.Prompts))
	for action, prompt := range f.Prompts {
		prompts[action] = prompt
	}

	return &Snapshot{
		APIKey:            apiKey,
		Model:             model,
		Prompts:           prompts,
		Bindings:          bindings,
		RequestTimeoutSec: timeoutSec,
		EnableFileLogging: strings.EqualFold(os.Getenv("ENABLE_FILE_LOGGING"), "true"),
	}, nil
}

// LoadFile builds a snapshot from an already-parsed file for the given
// platform. Used by the CLI and tests.
func LoadFile(f *File, goos string) (*Snapshot, error) {
	return build(f, goos)
}

// platformAliases lists the config keys consulted for each GOOS, most
// specific first. Older configs used win32/macos/unix spellings.
func platformAliases(goos string) []string {
	switch goos {
	case "windows":
		return []string{"windows", "win32", "win", "default"}
	case "darwin":
		return []string{"darwin", "macos", "default"}
	case "linux":
		return []string{"linux", "unix", "default"}
	default:
		return []string{goos, "default"}
	}
}

func platformBindings(f *File, goos string) ([]Binding, error) {
	var entries []ShortcutEntry
	seen := make(map[string]bool)
	for _, key := range platformAliases(goos) {
		for _, e := range f.Shortcuts[key] {
			id := e.ShortcutStr + "\x00" + e.Action
			if seen[id] {
				continue
			}
			seen[id] = true
			entries = append(entries, e)
		}
	}

	var bindings []Binding
	combos := make(map[string]string) // canonical combo -> action
	for _, e := range entries {
		combo, err := keymap.Parse(e.ShortcutStr)
		if err != nil {
			return nil, fmt.Errorf("shortcut for action %q: %w", e.Action, err)
		}
		canon := combo.String()
		if prev, dup := combos[canon]; dup {
			return nil, fmt.Errorf("%w: %q bound to both %q and %q",
				ErrDuplicateBinding, canon, prev, e.Action)
		}
		if _, ok := f.Prompts[e.Action]; !ok {
			return nil, fmt.Errorf("%w: %q (combo %q)", ErrUnknownAction, e.Action, canon)
		}
		combos[canon] = e.Action
		bindings = append(bindings, Binding{Combo: combo, Action: e.Action})
	}
	return bindings, nil
}

// loadDotenv applies a .env from the executable directory: secrets and
// machine-local overrides live next to the binary, not in the JSON file.
func loadDotenv() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}
	envPath := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}
}

func resolveAPIKey(fromFile string) string {
	if keyPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			if k := strings.TrimSpace(string(data)); k != "" {
				return k
			}
		}
	}
	if k := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); k != "" {
		return k
	}
	return strings.TrimSpace(fromFile)
}
