package history

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one immutable record of a completed successful conversion. The
// sequence number is the SQLite rowid, monotonic within and across sessions.
type Entry struct {
	Sequence   int64
	Action     string
	Prompt     string
	ResultText string
	ImagePath  string
	Timestamp  time.Time
}

// Store is the append-only history log. The core only ever appends; the
// history viewer is a read-only consumer of the same database.
type Store struct {
	mu             sync.Mutex
	db             *sql.DB
	screenshotsDir string
}

const timestampLayout = "20060102_150405"

// Open creates (or opens) the history database and the screenshots
// directory next to it.
func Open(dbPath, screenshotsDir string) (*Store, error) {
	if err := os.MkdirAll(screenshotsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshots dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	s := &Store{db: db, screenshotsDir: screenshotsDir}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		image_path TEXT NOT NULL,
		prompt TEXT NOT NULL,
		result_text TEXT,
		action TEXT NOT NULL
	);`)
	return err
}

// Append stores one successful conversion: row first (so SQLite assigns the
// sequence), then the PNG named after it, then the path update. Returns the
// immutable entry as persisted.
func (s *Store) Append(action, prompt, resultText string, image []byte) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	ts := now.Format(timestampLayout)

	res, err := s.db.Exec(
		`INSERT INTO conversions (timestamp, image_path, prompt, result_text, action)
		 VALUES (?, ?, ?, ?, ?)`,
		ts, "", prompt, resultText, action,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Entry{}, err
	}

	imageName := fmt.Sprintf("%d_%s.png", seq, ts)
	imagePath := filepath.Join(s.screenshotsDir, imageName)
	if err := os.WriteFile(imagePath, image, 0o644); err != nil {
		return Entry{}, fmt.Errorf("write screenshot: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE conversions SET image_path = ? WHERE id = ?`, imageName, seq); err != nil {
		return Entry{}, fmt.Errorf("update image path: %w", err)
	}

	return Entry{
		Sequence:   seq,
		Action:     action,
		Prompt:     prompt,
		ResultText: resultText,
		ImagePath:  imagePath,
		Timestamp:  now,
	}, nil
}

// List returns all entries newest first, ordered by sequence without
// re-sorting on the caller side. Restartable: each call runs a fresh query.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, timestamp, image_path, prompt, result_text, action
		 FROM conversions ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts, imageName string
		var result sql.NullString
		if err := rows.Scan(&e.Sequence, &ts, &imageName, &e.Prompt, &result, &e.Action); err != nil {
			return nil, err
		}
		e.ResultText = result.String
		if imageName != "" && !filepath.IsAbs(imageName) {
			e.ImagePath = filepath.Join(s.screenshotsDir, imageName)
		} else {
			e.ImagePath = imageName
		}
		if t, err := time.ParseInLocation(timestampLayout, ts, time.Local); err == nil {
			e.Timestamp = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MaxSequence returns the highest assigned sequence, 0 when empty.
func (s *Store) MaxSequence() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM conversions`).Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64, nil
}

// ScreenshotsDir exposes the sidecar directory for the tray "open folder"
// menu item.
func (s *Store) ScreenshotsDir() string { return s.screenshotsDir }

// Reset deletes every entry and its screenshot sidecar. The capture pipeline
// never calls this; it exists for the history viewer's "clear all".
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT image_path FROM conversions`)
	if err != nil {
		return err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		if name != "" {
			names = append(names, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM conversions`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for _, name := range names {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.screenshotsDir, name)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Remove screenshot %s failed: %v", path, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
