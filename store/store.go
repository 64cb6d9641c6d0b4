// Package store keeps health reports on disk.
//
// Every report is written to its own timestamped file. After the file is
// complete and synced, the "latest" pointer (a symlink) is replaced in one
// rename, so a reader following it always finds a whole report. A small JSON
// index lists every stored run for history and trend queries.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/report"
)

const (
	// LatestName is the file name of the latest pointer.
	LatestName = "latest_health_report.json"
	// IndexName is the file name of the history index.
	IndexName = "index.json"

	filePrefix = "health_report_"
	fileLayout = "20060102_150405"
)

// Entry describes one stored run.
type Entry struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"overall_score"`
	File      string    `json:"file"`
}

// Config configures a Store.
type Config struct {
	// Dir holds the reports. It is created if missing.
	Dir string `yaml:"dir" validate:"required"`

	// Keep is how many reports are retained; 0 keeps all.
	Keep int `yaml:"keep" validate:"gte=0"`

	Logger observe.Logger `yaml:"-"`
}

// Store reads and writes reports in one directory. It is safe for
// concurrent use within a process.
type Store struct {
	dir    string
	keep   int
	logger observe.Logger
	mu     sync.RWMutex
}

// Open returns a Store on config.Dir, creating the directory.
func Open(config Config) (*Store, error) {
	if config.Dir == "" {
		return nil, ErrNoDir
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", config.Dir, err)
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Store{dir: config.Dir, keep: config.Keep, logger: config.Logger}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// LatestPath returns the path of the latest pointer.
func (s *Store) LatestPath() string { return filepath.Join(s.dir, LatestName) }

// FileName returns the report file name for a run at ts.
func FileName(ts time.Time) string {
	return filePrefix + ts.UTC().Format(fileLayout) + ".json"
}

// Save writes r, then points latest at it, then records it in the index.
func (s *Store) Save(ctx context.Context, r *report.Report) (Entry, error) {
	data, err := report.Marshal(r)
	if err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Read before writing so that a rebuilt index does not list the new
	// report twice.
	index, err := s.readIndex(ctx)
	if err != nil {
		return Entry{}, err
	}

	name := s.freeName(r.Timestamp)
	if err := writeAtomic(filepath.Join(s.dir, name), data); err != nil {
		return Entry{}, fmt.Errorf("store: write report: %w", err)
	}
	if err := s.pointLatest(ctx, name, data); err != nil {
		return Entry{}, fmt.Errorf("store: update latest: %w", err)
	}

	entry := Entry{RunID: r.RunID, Timestamp: r.Timestamp.UTC(), Score: r.OverallScore, File: name}
	index = s.prune(ctx, append(index, entry))
	if err := s.writeIndex(index); err != nil {
		return entry, err
	}

	s.logger.Debug(ctx, "report saved", observe.F("file", name), observe.F("score", r.OverallScore))
	return entry, nil
}

// freeName picks a report file name that is not yet taken, since two runs
// can finish within the same second.
func (s *Store) freeName(ts time.Time) string {
	name := FileName(ts)
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(s.dir, name)); errors.Is(err, fs.ErrNotExist) {
			return name
		}
		name = fmt.Sprintf("%s%s_%d.json", filePrefix, ts.UTC().Format(fileLayout), i)
	}
}

// pointLatest replaces the latest symlink with one to name. Where symlinks
// are not available the report is copied instead.
func (s *Store) pointLatest(ctx context.Context, name string, data []byte) error {
	latest := s.LatestPath()
	tmp := latest + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(name, tmp); err != nil {
		s.logger.Debug(ctx, "symlink unavailable, copying latest report", observe.Err(err))
		return writeAtomic(latest, data)
	}
	if err := os.Rename(tmp, latest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return syncDir(s.dir)
}

// Latest reads the report the latest pointer refers to.
func (s *Store) Latest() (*report.Report, error) {
	data, err := s.LatestBytes()
	if err != nil {
		return nil, err
	}
	return report.Unmarshal(data)
}

// LatestBytes returns the latest report exactly as stored.
func (s *Store) LatestBytes() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.LatestPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoLatest
	}
	if err != nil {
		return nil, fmt.Errorf("store: read latest: %w", err)
	}
	return data, nil
}

// Get reads the report of a stored run.
func (s *Store) Get(runID string) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.readIndex(context.Background())
	if err != nil {
		return nil, err
	}
	for _, e := range index {
		if e.RunID == runID {
			data, err := os.ReadFile(filepath.Join(s.dir, e.File))
			if err != nil {
				return nil, fmt.Errorf("store: read %s: %w", e.File, err)
			}
			return report.Unmarshal(data)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
}

// List returns every stored run, newest first.
func (s *Store) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.readIndex(context.Background())
	if err != nil {
		return nil, err
	}
	slices.Reverse(index)
	return index, nil
}

// Last returns the newest stored run, or ErrNoLatest.
func (s *Store) Last() (Entry, error) {
	list, err := s.List()
	if err != nil {
		return Entry{}, err
	}
	if len(list) == 0 {
		return Entry{}, ErrNoLatest
	}
	return list[0], nil
}

// prune drops the oldest entries beyond keep and removes their files.
func (s *Store) prune(ctx context.Context, index []Entry) []Entry {
	if s.keep <= 0 || len(index) <= s.keep {
		return index
	}
	drop := index[:len(index)-s.keep]
	for _, e := range drop {
		if err := os.Remove(filepath.Join(s.dir, e.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn(ctx, "failed to remove old report", observe.F("file", e.File), observe.Err(err))
		}
	}
	return slices.Clone(index[len(index)-s.keep:])
}

func (s *Store) readIndex(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IndexName))
	if errors.Is(err, fs.ErrNotExist) {
		return s.rebuildIndex(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read index: %w", err)
	}
	var index []Entry
	if err := json.Unmarshal(data, &index); err != nil {
		s.logger.Warn(ctx, "index unreadable, rebuilding", observe.Err(err))
		return s.rebuildIndex(ctx)
	}
	return index, nil
}

// rebuildIndex recovers the index from the report files themselves.
func (s *Store) rebuildIndex(ctx context.Context) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	index := []Entry{}
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		r, err := report.Unmarshal(data)
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable report", observe.F("file", m), observe.Err(err))
			continue
		}
		index = append(index, Entry{RunID: r.RunID, Timestamp: r.Timestamp.UTC(), Score: r.OverallScore, File: filepath.Base(m)})
	}
	slices.SortStableFunc(index, func(a, b Entry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.File, b.File)
	})
	return index, nil
}

func (s *Store) writeIndex(index []Entry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode index: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, IndexName), append(data, '\n')); err != nil {
		return fmt.Errorf("store: write index: %w", err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the same directory, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some file systems cannot sync a directory; the rename is still done.
	_ = d.Sync()
	return nil
}
