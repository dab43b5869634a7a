package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultKey names the session used when no key is given.
const DefaultKey = "default"

// formatVersion is bumped whenever the on-disk envelope changes shape.
const formatVersion = 1

const tmpPrefix = ".tmp-"

var (
	ErrInvalidKey = errors.New("invalid session key")
	ErrNotFound   = errors.New("session not found")
	ErrCorrupt    = errors.New("session file corrupt")
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidateKey reports whether key can name a session file.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q (letters and digits only)", ErrInvalidKey, key)
	}
	return nil
}

// Snapshot is one saved engine state. State is opaque to this package.
type Snapshot struct {
	Version int       `json:"version"`
	Key     string    `json:"key"`
	ID      string    `json:"id"`
	Model   string    `json:"model,omitempty"`
	SavedAt time.Time `json:"saved_at"`
	State   []byte    `json:"state"`
}

// Info describes a stored session without its state.
type Info struct {
	Key     string    `json:"key"`
	ID      string    `json:"id"`
	Model   string    `json:"model,omitempty"`
	SavedAt time.Time `json:"saved_at"`
	Size    int64     `json:"size"`
}

// Store keeps session snapshots as one file per key under Dir.
type Store struct {
	dir   string
	clock func() time.Time
}

// Open returns a store rooted at dir. The directory is created on first save.
func Open(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("sessions directory is empty")
	}
	return &Store{dir: filepath.Clean(dir), clock: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key), nil
}

// Load reads the snapshot stored under key.
func (s *Store) Load(key string) (*Snapshot, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read session %s: %w", key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if snap.Version != formatVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, key, snap.Version)
	}
	return &snap, nil
}

// Save writes state under key, replacing any previous snapshot atomically.
func (s *Store) Save(key, model string, state []byte) (*Snapshot, error) {
	if key == "" {
		key = DefaultKey
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Version: formatVersion,
		Key:     key,
		ID:      uuid.NewString(),
		Model:   model,
		SavedAt: s.clock().UTC(),
		State:   state,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(p, data); err != nil {
		return nil, fmt.Errorf("write session %s: %w", key, err)
	}
	return snap, nil
}

// List returns every readable session sorted by key.
func (s *Store) List() ([]Info, error) {
	ents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Info, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !keyPattern.MatchString(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		snap, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		out = append(out, Info{
			Key:     e.Name(),
			ID:      snap.ID,
			Model:   snap.Model,
			SavedAt: snap.SavedAt,
			Size:    fi.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Stat returns metadata for a single session.
func (s *Store) Stat(key string) (Info, error) {
	p, err := s.path(key)
	if err != nil {
		return Info{}, err
	}
	snap, err := s.Load(key)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return Info{}, err
	}
	if key == "" {
		key = DefaultKey
	}
	return Info{Key: key, ID: snap.ID, Model: snap.Model, SavedAt: snap.SavedAt, Size: fi.Size()}, nil
}

// Remove deletes the session stored under key.
func (s *Store) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return err
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), tmpPrefix+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
